package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	fserrors "github.com/familysync/familysync-go/errors"
)

// GenerateAuthState returns a random state value for CSRF protection of the
// authorization redirect.
func GenerateAuthState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating auth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type callbackResult struct {
	code string
	err  error
}

// CaptureCallback runs a one-shot loopback HTTP listener on addr and waits
// for the provider to redirect back with an authorization code. The state
// parameter must match or the code is rejected.
func CaptureCallback(ctx context.Context, addr, state string) (string, error) {
	results := make(chan callbackResult, 1)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/callback", func(c echo.Context) error {
		if errParam := c.QueryParam("error"); errParam != "" {
			results <- callbackResult{err: fserrors.NewAuthenticationFailed(
				fmt.Sprintf("provider returned %s: %s", errParam, c.QueryParam("error_description")))}
			return c.String(http.StatusBadRequest, "Sign-in failed. You can close this window.")
		}
		if c.QueryParam("state") != state {
			results <- callbackResult{err: fserrors.NewAuthenticationFailed("state mismatch on OAuth2 callback")}
			return c.String(http.StatusBadRequest, "Sign-in failed. You can close this window.")
		}
		code := c.QueryParam("code")
		if code == "" {
			results <- callbackResult{err: fserrors.NewAuthenticationFailed("no authorization code in callback")}
			return c.String(http.StatusBadRequest, "Sign-in failed. You can close this window.")
		}
		results <- callbackResult{code: code}
		return c.String(http.StatusOK, "Signed in. You can close this window.")
	})

	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			results <- callbackResult{err: fmt.Errorf("callback listener: %w", err)}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Debug().Err(err).Msg("callback listener shutdown")
		}
	}()

	select {
	case r := <-results:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CallbackURL builds the redirect URL for the loopback listener.
func CallbackURL(listenAddr string) string {
	return "http://" + listenAddr + "/callback"
}
