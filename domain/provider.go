package domain

import "fmt"

// Provider identifies the identity provider behind the active session.
type Provider string

const (
	ProviderNone   Provider = ""
	ProviderApple  Provider = "apple"
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
	ProviderEmail  Provider = "email"
)

// ParseProvider maps a provider name (as reported by the backend or given on
// the command line) to a Provider. Unknown names are an error.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderApple, ProviderGitHub, ProviderGoogle, ProviderEmail:
		return Provider(name), nil
	case ProviderNone:
		return ProviderNone, nil
	default:
		return ProviderNone, fmt.Errorf("unknown provider %q", name)
	}
}

func (p Provider) String() string {
	if p == ProviderNone {
		return "none"
	}
	return string(p)
}

// PlaceholderName returns the display name used when the provider supplies no
// name parts, e.g. "Apple User". Placeholders never count as a completed
// profile during onboarding skip evaluation.
func (p Provider) PlaceholderName() string {
	switch p {
	case ProviderApple:
		return "Apple User"
	case ProviderGitHub:
		return "GitHub User"
	case ProviderGoogle:
		return "Google User"
	default:
		return "FamilySync User"
	}
}

// IsPlaceholderName reports whether name is one of the provider placeholder
// display names.
func IsPlaceholderName(name string) bool {
	for _, p := range []Provider{ProviderApple, ProviderGitHub, ProviderGoogle, ProviderNone} {
		if name == p.PlaceholderName() {
			return true
		}
	}
	return false
}
