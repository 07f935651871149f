package domain

// AuthState is the provider-agnostic authentication state owned by the
// identity coordinator and observed (read-only) by the onboarding machine and
// any UI layer. Invariant: Provider != ProviderNone only while Authenticated
// is true; exactly one provider is active at a time, last successful sign-in
// wins.
type AuthState struct {
	Authenticated bool
	User          *Account
	Provider      Provider
	Loading       bool
	LastError     error
}
