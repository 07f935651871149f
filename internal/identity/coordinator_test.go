package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/familysync/familysync-go/backend"
	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
)

// --- Mock Implementations ---

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Create(ctx context.Context, id, email, secret, name string) (*domain.Account, error) {
	args := m.Called(ctx, id, email, secret, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccounts) CreateEmailSession(ctx context.Context, email, secret string) (*backend.Session, error) {
	args := m.Called(ctx, email, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Session), args.Error(1)
}

func (m *MockAccounts) GetSession(ctx context.Context, sessionID string) (*backend.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Session), args.Error(1)
}

func (m *MockAccounts) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockAccounts) GetCurrent(ctx context.Context) (*domain.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) EnsureExists(ctx context.Context, userID string) (*domain.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserProfile), args.Error(1)
}

type MockLocal struct {
	mock.Mock
}

func (m *MockLocal) Clear() error {
	args := m.Called()
	return args.Error(0)
}

// --- Coordinator Tests ---

func appleCred() domain.FederatedCredential {
	return domain.FederatedCredential{
		Provider:  domain.ProviderApple,
		Handle:    "001234.abcdef.5678",
		GivenName: "Ada",
	}
}

func TestCoordinator_SignIn_FreshAccountCreatesThenLogsIn(t *testing.T) {
	accounts := new(MockAccounts)
	profiles := new(MockProfiles)
	c := NewCoordinator(accounts, profiles, new(MockLocal))

	cred := appleCred()
	userID := StableUserID(cred.Provider, cred.Handle)
	email := SyntheticEmail(cred)
	secret, err := SyntheticSecret(cred.Handle)
	require.NoError(t, err)

	accounts.On("DeleteSession", mock.Anything, backend.CurrentSession).Return(fserrors.ErrNoSession)
	// First login is rejected: the account does not exist yet.
	accounts.On("CreateEmailSession", mock.Anything, email, secret).
		Return(nil, fserrors.NewInvalidCredentials("invalid credentials")).Once()
	accounts.On("Create", mock.Anything, userID, email, secret, "Ada").
		Return(&domain.Account{ID: userID, Email: email, Name: "Ada"}, nil).Once()
	accounts.On("CreateEmailSession", mock.Anything, email, secret).
		Return(&backend.Session{ID: "sess1", UserID: userID}, nil).Once()
	accounts.On("GetCurrent", mock.Anything).
		Return(&domain.Account{ID: userID, Email: email, Name: "Ada"}, nil)
	profiles.On("EnsureExists", mock.Anything, userID).
		Return(&domain.UserProfile{ID: userID, UserID: userID}, nil)

	err = c.SignIn(context.Background(), cred)
	require.NoError(t, err)

	state := c.State()
	assert.True(t, state.Authenticated)
	assert.False(t, state.Loading)
	assert.Equal(t, domain.ProviderApple, state.Provider)
	require.NotNil(t, state.User)
	assert.Equal(t, userID, state.User.ID)
	accounts.AssertExpectations(t)
	profiles.AssertExpectations(t)
}

func TestCoordinator_SignIn_ExistingAccountLogsInDirectly(t *testing.T) {
	accounts := new(MockAccounts)
	c := NewCoordinator(accounts, nil, new(MockLocal))

	cred := appleCred()
	userID := StableUserID(cred.Provider, cred.Handle)
	email := SyntheticEmail(cred)
	secret, err := SyntheticSecret(cred.Handle)
	require.NoError(t, err)

	accounts.On("DeleteSession", mock.Anything, backend.CurrentSession).Return(nil)
	accounts.On("CreateEmailSession", mock.Anything, email, secret).
		Return(&backend.Session{ID: "sess2", UserID: userID}, nil).Once()
	accounts.On("GetCurrent", mock.Anything).
		Return(&domain.Account{ID: userID, Email: email}, nil)

	err = c.SignIn(context.Background(), cred)
	require.NoError(t, err)

	assert.True(t, c.State().Authenticated)
	// No Create call: the second sign-in resolves to the same account.
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	accounts.AssertExpectations(t)
}

func TestCoordinator_SignIn_RateLimitSurfacedAsIs(t *testing.T) {
	accounts := new(MockAccounts)
	c := NewCoordinator(accounts, nil, new(MockLocal))

	cred := appleCred()
	accounts.On("DeleteSession", mock.Anything, backend.CurrentSession).Return(nil)
	accounts.On("CreateEmailSession", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fserrors.NewRateLimited())

	err := c.SignIn(context.Background(), cred)
	require.Error(t, err)
	assert.Equal(t, fserrors.KindRateLimited, fserrors.KindOf(err))

	state := c.State()
	assert.False(t, state.Authenticated)
	assert.Equal(t, fserrors.KindRateLimited, fserrors.KindOf(state.LastError))
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_SignIn_RejectsIncompleteCredential(t *testing.T) {
	c := NewCoordinator(new(MockAccounts), nil, new(MockLocal))

	err := c.SignIn(context.Background(), domain.FederatedCredential{Provider: domain.ProviderApple})
	assert.Equal(t, fserrors.KindValidationFailed, fserrors.KindOf(err))

	err = c.SignIn(context.Background(), domain.FederatedCredential{Handle: "h"})
	assert.Equal(t, fserrors.KindValidationFailed, fserrors.KindOf(err))
}

// blockingAccounts parks CreateEmailSession until released, keeping a sign-in
// attempt in flight for as long as the test needs.
type blockingAccounts struct {
	release chan struct{}
}

func (b *blockingAccounts) Create(ctx context.Context, id, email, secret, name string) (*domain.Account, error) {
	return &domain.Account{ID: id, Email: email, Name: name}, nil
}

func (b *blockingAccounts) CreateEmailSession(ctx context.Context, email, secret string) (*backend.Session, error) {
	<-b.release
	return &backend.Session{ID: "sess1"}, nil
}

func (b *blockingAccounts) GetSession(ctx context.Context, sessionID string) (*backend.Session, error) {
	return nil, fserrors.ErrNoSession
}

func (b *blockingAccounts) DeleteSession(ctx context.Context, sessionID string) error { return nil }

func (b *blockingAccounts) GetCurrent(ctx context.Context) (*domain.Account, error) {
	return &domain.Account{ID: "u1"}, nil
}

func TestCoordinator_SignIn_ConcurrentAttemptRejected(t *testing.T) {
	accounts := &blockingAccounts{release: make(chan struct{})}
	c := NewCoordinator(accounts, nil, new(MockLocal))

	done := make(chan error, 1)
	go func() { done <- c.SignIn(context.Background(), appleCred()) }()

	// Wait until the first attempt holds the in-flight slot.
	require.Eventually(t, func() bool { return c.State().Loading },
		time.Second, time.Millisecond)

	err := c.SignIn(context.Background(), domain.FederatedCredential{
		Provider: domain.ProviderGitHub,
		Handle:   "another-handle",
	})
	assert.ErrorIs(t, err, fserrors.ErrSignInInProgress)

	// The rejected attempt must not disturb the one in flight.
	close(accounts.release)
	require.NoError(t, <-done)

	state := c.State()
	assert.True(t, state.Authenticated)
	assert.False(t, state.Loading)
	assert.Equal(t, domain.ProviderApple, state.Provider)

	// The slot is free again after completion.
	assert.NoError(t, c.SignIn(context.Background(), appleCred()))
}

func TestCoordinator_SignInWithEmail_NoCreateFallback(t *testing.T) {
	accounts := new(MockAccounts)
	c := NewCoordinator(accounts, nil, new(MockLocal))

	accounts.On("CreateEmailSession", mock.Anything, "user@example.com", "wrong").
		Return(nil, fserrors.NewInvalidCredentials("invalid credentials"))

	err := c.SignInWithEmail(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, fserrors.KindAuthenticationFailed, fserrors.KindOf(err))
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_SignOut_ClearsLocalStateAndResets(t *testing.T) {
	accounts := new(MockAccounts)
	local := new(MockLocal)
	c := NewCoordinator(accounts, nil, local)

	accounts.On("DeleteSession", mock.Anything, backend.CurrentSession).Return(nil)
	local.On("Clear").Return(nil)

	err := c.SignOut(context.Background())
	require.NoError(t, err)

	state := c.State()
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.User)
	assert.Equal(t, domain.ProviderNone, state.Provider)
	local.AssertExpectations(t)
}

func TestCoordinator_CheckExistingSession_RestoresAuth(t *testing.T) {
	accounts := new(MockAccounts)
	c := NewCoordinator(accounts, nil, new(MockLocal))

	accounts.On("GetSession", mock.Anything, backend.CurrentSession).
		Return(&backend.Session{ID: "sess1", UserID: "u1", Provider: "email"}, nil)
	accounts.On("GetCurrent", mock.Anything).
		Return(&domain.Account{ID: "u1", Email: "user@example.com"}, nil)

	state := c.CheckExistingSession(context.Background())
	assert.True(t, state.Authenticated)
	assert.Equal(t, domain.ProviderEmail, state.Provider)
	assert.Equal(t, "u1", c.CurrentUserID())
}

func TestCoordinator_CheckExistingSession_AbsenceIsBenign(t *testing.T) {
	accounts := new(MockAccounts)
	c := NewCoordinator(accounts, nil, new(MockLocal))

	accounts.On("GetSession", mock.Anything, backend.CurrentSession).
		Return(nil, fserrors.ErrNoSession)

	state := c.CheckExistingSession(context.Background())
	assert.False(t, state.Authenticated)
	assert.Nil(t, state.LastError)
	assert.False(t, state.Loading)
}

func TestCoordinator_Subscribe_ObserversSeeTerminalState(t *testing.T) {
	accounts := new(MockAccounts)
	c := NewCoordinator(accounts, nil, new(MockLocal))

	var states []domain.AuthState
	c.Subscribe(func(s domain.AuthState) { states = append(states, s) })

	accounts.On("DeleteSession", mock.Anything, backend.CurrentSession).Return(nil)
	accounts.On("CreateEmailSession", mock.Anything, mock.Anything, mock.Anything).
		Return(&backend.Session{ID: "sess1"}, nil)
	accounts.On("GetCurrent", mock.Anything).
		Return(&domain.Account{ID: "u1"}, nil)

	require.NoError(t, c.SignIn(context.Background(), appleCred()))

	require.NotEmpty(t, states)
	first := states[0]
	assert.True(t, first.Loading)
	last := states[len(states)-1]
	assert.True(t, last.Authenticated)
	assert.False(t, last.Loading)
}
