package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/familysync/familysync-go/domain"
)

// The backend models accounts as email+password pairs, so a federated
// credential is mapped onto a synthetic account whose identifiers are pure
// functions of the provider handle. Repeated sign-ins by the same physical
// user must always resolve to the same backend account.

// maxUserIDLen is the backend's user ID length limit.
const maxUserIDLen = 36

// syntheticEmailDomain hosts the placeholder addresses for providers that
// withhold the user's real email.
const syntheticEmailDomain = "users.familysync.app"

// secretSalt is a static salt for the synthetic secret derivation. The
// derived value is never a user-chosen password; it only satisfies the
// backend's account model.
var secretSalt = []byte("familysync/synthetic-credential/v1")

// StableUserID derives the deterministic backend user ID for a provider
// handle: "<provider>_<hex sha256 of handle>", truncated to the backend
// limit. Same handle, same ID, always.
func StableUserID(provider domain.Provider, handle string) string {
	sum := sha256.Sum256([]byte(handle))
	id := fmt.Sprintf("%s_%s", provider, hex.EncodeToString(sum[:]))
	if len(id) > maxUserIDLen {
		id = id[:maxUserIDLen]
	}
	return id
}

// SyntheticEmail returns the provider-supplied email when present, otherwise
// a deterministic placeholder address derived from the handle.
func SyntheticEmail(cred domain.FederatedCredential) string {
	if cred.Email != "" {
		return cred.Email
	}
	return StableUserID(cred.Provider, cred.Handle) + "@" + syntheticEmailDomain
}

// SyntheticSecret derives the account secret from the handle with
// HKDF-SHA256 over a static salt. Deterministic by construction.
func SyntheticSecret(handle string) (string, error) {
	r := hkdf.New(sha256.New, []byte(handle), secretSalt, []byte("session-secret"))
	buf := make([]byte, 32)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("deriving synthetic secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
