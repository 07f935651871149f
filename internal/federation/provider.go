// Package federation holds the per-provider OAuth2 metadata for the
// generic-OAuth2 sign-in path (GitHub, Google) and the loopback redirect
// capture used by the CLI. Apple uses the native credential path and never
// goes through here.
package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	githubOAuth2 "golang.org/x/oauth2/github"
	googleOAuth2 "golang.org/x/oauth2/google"

	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
)

var (
	githubUserInfoEndpoint = "https://api.github.com/user"
	googleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// DefaultScopes returns the scopes requested from each provider.
func DefaultScopes(p domain.Provider) []string {
	switch p {
	case domain.ProviderApple:
		return []string{"name", "email"}
	case domain.ProviderGitHub:
		return []string{"read:user", "user:email"}
	case domain.ProviderGoogle:
		return []string{"openid", "profile", "email"}
	default:
		return nil
	}
}

// OAuthConfig builds the oauth2.Config for a generic-OAuth2 provider.
func OAuthConfig(p domain.Provider, clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	var endpoint oauth2.Endpoint
	switch p {
	case domain.ProviderGitHub:
		endpoint = githubOAuth2.Endpoint
	case domain.ProviderGoogle:
		endpoint = googleOAuth2.Endpoint
	default:
		return nil, fmt.Errorf("provider %s has no generic OAuth2 flow", p)
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("provider %s is not configured", p)
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       DefaultScopes(p),
		Endpoint:     endpoint,
	}, nil
}

// FetchCredential exchanges the token for provider user info, mapped onto a
// FederatedCredential. The provider user ID becomes the handle.
func FetchCredential(ctx context.Context, p domain.Provider, conf *oauth2.Config, token *oauth2.Token) (domain.FederatedCredential, error) {
	client := conf.Client(ctx, token)
	switch p {
	case domain.ProviderGitHub:
		return fetchGitHubCredential(ctx, client)
	case domain.ProviderGoogle:
		return fetchGoogleCredential(ctx, client)
	default:
		return domain.FederatedCredential{}, fmt.Errorf("provider %s has no user info endpoint", p)
	}
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching user info: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fserrors.NewAuthenticationFailed(
			fmt.Sprintf("user info endpoint returned %d", resp.StatusCode))
	}
	return json.Unmarshal(body, out)
}

func fetchGitHubCredential(ctx context.Context, client *http.Client) (domain.FederatedCredential, error) {
	var info struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := fetchJSON(ctx, client, githubUserInfoEndpoint, &info); err != nil {
		return domain.FederatedCredential{}, err
	}
	if info.ID == 0 {
		return domain.FederatedCredential{}, fserrors.NewAuthenticationFailed("github returned no user ID")
	}
	return domain.FederatedCredential{
		Provider:  domain.ProviderGitHub,
		Handle:    strconv.FormatInt(info.ID, 10),
		Email:     info.Email,
		GivenName: info.Name,
	}, nil
}

func fetchGoogleCredential(ctx context.Context, client *http.Client) (domain.FederatedCredential, error) {
	var info struct {
		Sub        string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
	}
	if err := fetchJSON(ctx, client, googleUserInfoEndpoint, &info); err != nil {
		return domain.FederatedCredential{}, err
	}
	if info.Sub == "" {
		return domain.FederatedCredential{}, fserrors.NewAuthenticationFailed("google returned no subject")
	}
	return domain.FederatedCredential{
		Provider:   domain.ProviderGoogle,
		Handle:     info.Sub,
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
	}, nil
}
