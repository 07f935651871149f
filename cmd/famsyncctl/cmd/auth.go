package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
	"github.com/familysync/familysync-go/internal/federation"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign out, and inspect the session",
}

var (
	appleHandle     string
	appleEmail      string
	appleGivenName  string
	appleFamilyName string
)

var loginAppleCmd = &cobra.Command{
	Use:   "apple",
	Short: "Sign in with an Apple credential",
	Long: `Signs in with the handle from a native Apple authorization. The email
and name flags are optional; Apple only supplies them on the first
authorization.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cred := domain.FederatedCredential{
			Provider:   domain.ProviderApple,
			Handle:     appleHandle,
			Email:      appleEmail,
			GivenName:  appleGivenName,
			FamilyName: appleFamilyName,
		}
		return finishSignIn(cmd.Context(), a, func(ctx context.Context) error {
			return a.Coordinator.SignIn(ctx, cred)
		})
	},
}

func oauthLoginCmd(provider domain.Provider) *cobra.Command {
	return &cobra.Command{
		Use:   provider.String(),
		Short: fmt.Sprintf("Sign in with %s via OAuth2", provider),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			clientID, clientSecret := a.Config.GitHubClientID, a.Config.GitHubClientSecret
			if provider == domain.ProviderGoogle {
				clientID, clientSecret = a.Config.GoogleClientID, a.Config.GoogleClientSecret
			}

			redirectURL := federation.CallbackURL(a.Config.CallbackListenAddr)
			conf, err := federation.OAuthConfig(provider, clientID, clientSecret, redirectURL)
			if err != nil {
				return err
			}
			state, err := federation.GenerateAuthState()
			if err != nil {
				return err
			}

			fmt.Println("Open this URL in your browser to continue:")
			fmt.Println("  " + conf.AuthCodeURL(state))

			ctx := cmd.Context()
			code, err := federation.CaptureCallback(ctx, a.Config.CallbackListenAddr, state)
			if err != nil {
				return err
			}
			token, err := conf.Exchange(ctx, code)
			if err != nil {
				return fserrors.NewAuthenticationFailed(err.Error())
			}
			cred, err := federation.FetchCredential(ctx, provider, conf, token)
			if err != nil {
				return err
			}
			return finishSignIn(ctx, a, func(ctx context.Context) error {
				return a.Coordinator.SignIn(ctx, cred)
			})
		},
	}
}

var (
	loginEmail    string
	loginPassword string
	signupName    string
)

var loginEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return finishSignIn(cmd.Context(), a, func(ctx context.Context) error {
			return a.Coordinator.SignInWithEmail(ctx, loginEmail, loginPassword)
		})
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an email/password account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return finishSignIn(cmd.Context(), a, func(ctx context.Context) error {
			return a.Coordinator.SignUpWithEmail(ctx, loginEmail, loginPassword, signupName)
		})
	},
}

// finishSignIn runs the sign-in, then evaluates onboarding skips so the next
// shown step reflects remote state.
func finishSignIn(ctx context.Context, a *app, signIn func(context.Context) error) error {
	if err := signIn(ctx); err != nil {
		return err
	}
	if err := a.Machine.CheckAndSkipSteps(ctx); err != nil {
		appLogger.Warn(ctx, "skip evaluation failed", map[string]any{"error": err.Error()})
	}
	state := a.Coordinator.State()
	fmt.Printf("Signed in as %s via %s\n", state.User.Email, state.Provider)
	fmt.Printf("Onboarding step: %s\n", a.Machine.Current())
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a provider",
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear local state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Coordinator.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current authentication state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		state := a.Coordinator.CheckExistingSession(cmd.Context())
		if !state.Authenticated {
			fmt.Println("Not signed in.")
			return nil
		}
		fmt.Printf("Signed in as %s (%s) via %s\n", state.User.Name, state.User.Email, state.Provider)
		return nil
	},
}

func init() {
	loginAppleCmd.Flags().StringVar(&appleHandle, "handle", "", "Apple user handle (required)")
	loginAppleCmd.Flags().StringVar(&appleEmail, "email", "", "email from the Apple credential")
	loginAppleCmd.Flags().StringVar(&appleGivenName, "given-name", "", "given name from the Apple credential")
	loginAppleCmd.Flags().StringVar(&appleFamilyName, "family-name", "", "family name from the Apple credential")
	_ = loginAppleCmd.MarkFlagRequired("handle")

	for _, c := range []*cobra.Command{loginEmailCmd, signupCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "account email (required)")
		c.Flags().StringVar(&loginPassword, "password", "", "account password (required)")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	signupCmd.Flags().StringVar(&signupName, "name", "", "display name")

	loginCmd.AddCommand(loginAppleCmd, oauthLoginCmd(domain.ProviderGitHub), oauthLoginCmd(domain.ProviderGoogle), loginEmailCmd)
	authCmd.AddCommand(loginCmd, signupCmd, logoutCmd, statusCmd)
	rootCmd.AddCommand(authCmd)
}
