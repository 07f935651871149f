package errors

import "fmt"

// AuthError represents a classified authentication or data error surfaced by
// the coordination layer.
type AuthError struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description,omitempty"`
	Field       string `json:"field,omitempty"`
}

// Kind is the stable machine-readable error class.
type Kind string

const (
	// KindAuthenticationFailed is a generic backend rejection of a sign-in.
	KindAuthenticationFailed Kind = "authentication_failed"
	// KindRateLimited is a distinguished, user-facing "wait and retry" error.
	KindRateLimited Kind = "rate_limited"
	// KindInvalidCredentials means login was rejected for the given
	// email/secret pair. During the login-or-create fallback this is an
	// expected condition, not a failure.
	KindInvalidCredentials Kind = "invalid_credentials"
	// KindDuplicateAccount means account creation collided with an existing
	// account.
	KindDuplicateAccount Kind = "duplicate_account"
	// KindInvalidInviteCode means no family matched the invite code.
	KindInvalidInviteCode Kind = "invalid_invite_code"
	// KindAlreadyMember means the user is already in the target family.
	KindAlreadyMember Kind = "already_member"
	// KindValidationFailed is a local, field-level validation error that
	// never reaches the backend.
	KindValidationFailed Kind = "validation_failed"
	// KindNoSession is the expected "not signed in" condition. It is benign
	// and never shown to the user.
	KindNoSession Kind = "no_session"
	// KindNotFound means a requested document does not exist.
	KindNotFound Kind = "not_found"
	// KindDeserialization means a document payload did not match the
	// expected schema.
	KindDeserialization Kind = "deserialization"
	// KindSignInInProgress means a sign-in attempt was ignored because one
	// is already in flight on this device.
	KindSignInInProgress Kind = "sign_in_in_progress"
	// KindUnknown classifies everything else.
	KindUnknown Kind = "unknown"
)

func (e *AuthError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Description)
	}
	if e.Description == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Is makes errors.Is match any AuthError of the same kind, so sentinels like
// ErrNoSession compare by class rather than by pointer.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for the expected, benign conditions.
var (
	ErrNoSession        = &AuthError{Kind: KindNoSession, Description: "no active session"}
	ErrNotFound         = &AuthError{Kind: KindNotFound, Description: "not found"}
	ErrSignInInProgress = &AuthError{Kind: KindSignInInProgress, Description: "a sign-in attempt is already in flight"}
)

// Common error constructors

func NewAuthenticationFailed(description string) *AuthError {
	return &AuthError{Kind: KindAuthenticationFailed, Description: description}
}

func NewRateLimited() *AuthError {
	return &AuthError{
		Kind:        KindRateLimited,
		Description: "too many attempts, please wait a moment and try again",
	}
}

func NewInvalidCredentials(description string) *AuthError {
	return &AuthError{Kind: KindInvalidCredentials, Description: description}
}

func NewDuplicateAccount(description string) *AuthError {
	return &AuthError{Kind: KindDuplicateAccount, Description: description}
}

func NewInvalidInviteCode() *AuthError {
	return &AuthError{Kind: KindInvalidInviteCode, Description: "invite code is not valid"}
}

func NewAlreadyMember() *AuthError {
	return &AuthError{Kind: KindAlreadyMember, Description: "already a member of this family"}
}

func NewValidationFailed(field, description string) *AuthError {
	return &AuthError{Kind: KindValidationFailed, Field: field, Description: description}
}

func NewDeserialization(field, description string) *AuthError {
	return &AuthError{Kind: KindDeserialization, Field: field, Description: description}
}

func NewUnknown(description string) *AuthError {
	return &AuthError{Kind: KindUnknown, Description: description}
}

// KindOf extracts the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var ae *AuthError
	if As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
