package onboarding

import (
	"regexp"
	"strings"
	"unicode/utf8"

	fserrors "github.com/familysync/familysync-go/errors"
)

const (
	familyNameMinLen = 2
	familyNameMaxLen = 50
)

// inviteCodePattern matches the generator's output: 16 alphanumerics, a dash,
// and a base36 timestamp. Earlier builds shipped an 8-character validator
// that rejected every code the generator produced; the generator format is
// the one enforced.
var inviteCodePattern = regexp.MustCompile(`^[A-Z0-9]{16}-[A-Z0-9]+$`)

func trimmed(s string) string { return strings.TrimSpace(s) }

// ValidateFamilyName requires a trimmed length between 2 and 50 characters.
func ValidateFamilyName(name string) error {
	n := utf8.RuneCountInString(trimmed(name))
	if n < familyNameMinLen || n > familyNameMaxLen {
		return fserrors.NewValidationFailed("family_name",
			"family name must be between 2 and 50 characters")
	}
	return nil
}

// ValidateInviteCode checks the code against the generator format. Input is
// trimmed and upper-cased first, so hand-typed lowercase codes pass.
func ValidateInviteCode(code string) error {
	normalized := strings.ToUpper(trimmed(code))
	if !inviteCodePattern.MatchString(normalized) {
		return fserrors.NewValidationFailed("invite_code",
			"invite code must look like XXXXXXXXXXXXXXXX-TTTTTT")
	}
	return nil
}

// NormalizeInviteCode returns the canonical form used for lookups.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(trimmed(code))
}

// ValidateProfileName rejects names that are empty after trimming.
func ValidateProfileName(name string) error {
	if trimmed(name) == "" {
		return fserrors.NewValidationFailed("name", "name must not be empty")
	}
	return nil
}
