package domain

import "strings"

// FederatedCredential is the opaque identity assertion handed to us by an
// external identity provider after a successful native sign-in. Handle is the
// provider-unique user identifier (e.g. the Apple "user" string, the GitHub
// node ID) and is the only required field: email and name parts are optional
// and may be withheld by the provider on repeat sign-ins.
type FederatedCredential struct {
	Provider   Provider
	Handle     string
	Email      string
	GivenName  string
	FamilyName string
}

// DisplayName joins the provided name parts, falling back to the provider
// placeholder when the provider withheld both.
func (c FederatedCredential) DisplayName() string {
	parts := make([]string, 0, 2)
	if c.GivenName != "" {
		parts = append(parts, c.GivenName)
	}
	if c.FamilyName != "" {
		parts = append(parts, c.FamilyName)
	}
	if len(parts) == 0 {
		return c.Provider.PlaceholderName()
	}
	return strings.Join(parts, " ")
}
