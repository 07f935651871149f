package domain

import (
	"slices"
	"time"
)

// Family is the remote family document. Invariants: CreatorID is always a
// member; membership is append-only from the client's perspective; invite
// codes are unique and never reused.
type Family struct {
	ID         string
	Name       string
	CreatorID  string
	Members    []string
	InviteCode string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasMember reports whether userID is already a member of the family.
func (f *Family) HasMember(userID string) bool {
	return slices.Contains(f.Members, userID)
}
