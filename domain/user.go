package domain

import "time"

// Account is the backend authentication account behind a session.
type Account struct {
	ID           string
	Email        string
	Name         string
	Registration time.Time
}

// UserProfile is the remote per-user document in the users collection. It is
// created on first successful authentication (if absent), mutated by the
// profile-setup step and by family join/create, and never deleted by the
// client. The server is the source of truth; the client holds transient
// cached copies only.
type UserProfile struct {
	ID          string
	UserID      string
	FamilyID    string
	DisplayName string
	Birthday    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasFamily reports whether the profile is linked to a family.
func (p *UserProfile) HasFamily() bool {
	return p != nil && p.FamilyID != ""
}
