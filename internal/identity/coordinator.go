// Package identity turns federated sign-in credentials into authenticated
// backend sessions and owns the provider-agnostic authentication state.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/familysync/familysync-go/backend"
	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
)

// ProfileEnsurer upserts the remote user profile after authentication.
type ProfileEnsurer interface {
	EnsureExists(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// LocalState is the slice of the device-local store the coordinator clears on
// sign-out.
type LocalState interface {
	Clear() error
}

// Observer receives AuthState snapshots after every mutation.
type Observer func(domain.AuthState)

// Coordinator is the single writer of AuthState. All mutations happen under
// its mutex; reads return copies. Sign-in attempts are serialized per
// coordinator: a new attempt while one is in flight is rejected, and the
// generation counter discards stale completions so the last accepted request
// wins.
type Coordinator struct {
	accounts backend.Accounts
	profiles ProfileEnsurer
	local    LocalState

	mu        sync.Mutex
	state     domain.AuthState
	inFlight  bool
	gen       uint64
	observers []Observer
}

// NewCoordinator wires a coordinator over the given backend. profiles may be
// nil in tests that don't exercise the profile upsert.
func NewCoordinator(accounts backend.Accounts, profiles ProfileEnsurer, local LocalState) *Coordinator {
	return &Coordinator{accounts: accounts, profiles: profiles, local: local}
}

// BindProfiles attaches the profile upserter after construction. The profile
// service needs the coordinator as its user ID source, so one of the two is
// wired late.
func (c *Coordinator) BindProfiles(profiles ProfileEnsurer) {
	c.mu.Lock()
	c.profiles = profiles
	c.mu.Unlock()
}

// State returns a snapshot of the current authentication state.
func (c *Coordinator) State() domain.AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUserID returns the authenticated backend user ID, or "".
func (c *Coordinator) CurrentUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.User == nil {
		return ""
	}
	return c.state.User.ID
}

// Subscribe registers an observer for state changes. Observers are invoked
// outside the coordinator lock with a snapshot.
func (c *Coordinator) Subscribe(fn Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

func (c *Coordinator) notify(snapshot domain.AuthState) {
	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(snapshot)
	}
}

// mutate applies fn under the lock and fans the snapshot out to observers.
func (c *Coordinator) mutate(fn func(*domain.AuthState)) {
	c.mu.Lock()
	fn(&c.state)
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)
}

// SignIn resolves a federated credential into an authenticated session:
// derive the stable identity, best-effort clear any existing session, try
// login, fall back to account creation plus login, then flip the state and
// upsert the remote profile. A concurrent call returns ErrSignInInProgress.
func (c *Coordinator) SignIn(ctx context.Context, cred domain.FederatedCredential) error {
	if cred.Handle == "" {
		return fserrors.NewValidationFailed("handle", "a provider-unique handle is required")
	}
	if cred.Provider == domain.ProviderNone {
		return fserrors.NewValidationFailed("provider", "a provider is required")
	}

	gen, err := c.begin()
	if err != nil {
		return err
	}

	secret, err := SyntheticSecret(cred.Handle)
	if err != nil {
		return c.fail(gen, fserrors.NewAuthenticationFailed(err.Error()))
	}
	userID := StableUserID(cred.Provider, cred.Handle)
	email := SyntheticEmail(cred)

	log.Debug().
		Str("provider", cred.Provider.String()).
		Str("user_id", userID).
		Msg("sign-in attempt")

	account, err := c.loginOrCreate(ctx, userID, email, secret, cred.DisplayName())
	if err != nil {
		return c.fail(gen, err)
	}
	return c.succeed(ctx, gen, account, cred.Provider)
}

// SignInWithEmail logs in with a real email/password pair. No account
// creation fallback: an unknown account is a failure here.
func (c *Coordinator) SignInWithEmail(ctx context.Context, email, password string) error {
	gen, err := c.begin()
	if err != nil {
		return err
	}
	if _, err := c.accounts.CreateEmailSession(ctx, email, password); err != nil {
		if fserrors.KindOf(err) == fserrors.KindRateLimited {
			return c.fail(gen, err)
		}
		return c.fail(gen, fserrors.NewAuthenticationFailed(err.Error()))
	}
	account, err := c.accounts.GetCurrent(ctx)
	if err != nil {
		return c.fail(gen, fserrors.NewAuthenticationFailed(err.Error()))
	}
	return c.succeed(ctx, gen, account, domain.ProviderEmail)
}

// SignUpWithEmail creates an email/password account and logs in.
func (c *Coordinator) SignUpWithEmail(ctx context.Context, email, password, name string) error {
	gen, err := c.begin()
	if err != nil {
		return err
	}
	account, err := c.loginOrCreate(ctx, "", email, password, name)
	if err != nil {
		return c.fail(gen, err)
	}
	return c.succeed(ctx, gen, account, domain.ProviderEmail)
}

// begin claims the in-flight slot and bumps the generation.
func (c *Coordinator) begin() (uint64, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return 0, fserrors.ErrSignInInProgress
	}
	c.inFlight = true
	c.gen++
	gen := c.gen
	c.state.Loading = true
	c.state.LastError = nil
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)
	return gen, nil
}

// loginOrCreate runs the login-then-create-then-login fallback. Login
// rejection is the expected "account does not exist" condition, not a hard
// failure; rate limiting is surfaced as-is at any step. When userID is empty
// the backend assigns one (email/password sign-up path).
func (c *Coordinator) loginOrCreate(ctx context.Context, userID, email, secret, name string) (*domain.Account, error) {
	// Stale session from a previous user must not shadow the new one.
	if err := c.accounts.DeleteSession(ctx, backend.CurrentSession); err != nil {
		log.Debug().Err(err).Msg("pre-sign-in session cleanup skipped")
	}

	_, err := c.accounts.CreateEmailSession(ctx, email, secret)
	if err != nil {
		if fserrors.KindOf(err) == fserrors.KindRateLimited {
			return nil, err
		}
		log.Debug().Str("email", email).Msg("login rejected, creating account")
		if userID == "" {
			userID = "unique()"
		}
		if _, err := c.accounts.Create(ctx, userID, email, secret, name); err != nil {
			if fserrors.KindOf(err) == fserrors.KindRateLimited {
				return nil, err
			}
			return nil, fserrors.NewAuthenticationFailed(err.Error())
		}
		if _, err := c.accounts.CreateEmailSession(ctx, email, secret); err != nil {
			if fserrors.KindOf(err) == fserrors.KindRateLimited {
				return nil, err
			}
			return nil, fserrors.NewAuthenticationFailed(err.Error())
		}
	}

	account, err := c.accounts.GetCurrent(ctx)
	if err != nil {
		return nil, fserrors.NewAuthenticationFailed(err.Error())
	}
	return account, nil
}

// succeed applies a successful sign-in, unless a newer attempt superseded
// this one.
func (c *Coordinator) succeed(ctx context.Context, gen uint64, account *domain.Account, provider domain.Provider) error {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		log.Debug().Uint64("gen", gen).Msg("discarding stale sign-in completion")
		return nil
	}
	c.inFlight = false
	c.state = domain.AuthState{
		Authenticated: true,
		User:          account,
		Provider:      provider,
	}
	snapshot := c.state
	profiles := c.profiles
	c.mu.Unlock()
	c.notify(snapshot)

	log.Info().
		Str("provider", provider.String()).
		Str("user_id", account.ID).
		Msg("signed in")

	if profiles != nil {
		if _, err := profiles.EnsureExists(ctx, account.ID); err != nil {
			log.Warn().Err(err).Str("user_id", account.ID).Msg("profile upsert failed")
		}
	}
	return nil
}

// fail records the error and releases the in-flight slot, unless superseded.
func (c *Coordinator) fail(gen uint64, err error) error {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = false
	c.state = domain.AuthState{LastError: err}
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)
	return err
}

// SignOut deletes the backend session, resets AuthState, and clears every
// locally cached onboarding/profile value. The local clear is a hard
// requirement: stale cached data must never leak into a different user's
// session on the same device.
func (c *Coordinator) SignOut(ctx context.Context) error {
	c.mutate(func(s *domain.AuthState) { s.Loading = true })

	if err := c.accounts.DeleteSession(ctx, backend.CurrentSession); err != nil {
		c.mutate(func(s *domain.AuthState) {
			s.Loading = false
			s.LastError = err
		})
		return err
	}

	c.mutate(func(s *domain.AuthState) { *s = domain.AuthState{} })

	if err := c.local.Clear(); err != nil {
		return fmt.Errorf("clearing local state: %w", err)
	}
	log.Info().Msg("signed out")
	return nil
}

// CheckExistingSession probes the backend for a live session on process
// start. A present session is treated as authenticated without re-deriving
// credentials; absence is the expected unauthenticated case and never an
// error.
func (c *Coordinator) CheckExistingSession(ctx context.Context) domain.AuthState {
	c.mutate(func(s *domain.AuthState) { s.Loading = true })

	sess, err := c.accounts.GetSession(ctx, backend.CurrentSession)
	if err != nil {
		c.mutate(func(s *domain.AuthState) { *s = domain.AuthState{} })
		return c.State()
	}

	account, err := c.accounts.GetCurrent(ctx)
	if err != nil {
		c.mutate(func(s *domain.AuthState) { *s = domain.AuthState{} })
		return c.State()
	}

	provider, perr := domain.ParseProvider(sess.Provider)
	if perr != nil || provider == domain.ProviderNone {
		// Synthetic-credential sessions report as plain email sessions.
		provider = domain.ProviderEmail
	}

	c.mutate(func(s *domain.AuthState) {
		*s = domain.AuthState{
			Authenticated: true,
			User:          account,
			Provider:      provider,
		}
	})
	log.Debug().Str("provider", provider.String()).Msg("existing session restored")
	return c.State()
}

// ClearError drops the last recorded error.
func (c *Coordinator) ClearError() {
	c.mutate(func(s *domain.AuthState) { s.LastError = nil })
}

// IsProviderAvailable reports whether a provider can be used for sign-in.
func (c *Coordinator) IsProviderAvailable(p domain.Provider) bool {
	switch p {
	case domain.ProviderApple, domain.ProviderGitHub, domain.ProviderGoogle, domain.ProviderEmail:
		return true
	default:
		return false
	}
}
