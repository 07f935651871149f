// Package profile manages the per-user remote profile document and its
// device-local cache.
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/familysync/familysync-go/backend"
	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
	"github.com/familysync/familysync-go/internal/onboarding"
)

// CollectionID is the users collection. Documents are keyed by the auth
// account ID.
const CollectionID = "users"

const cacheTTL = 5 * time.Minute

// LocalCache is the slice of the device-local store profile writes mirror
// into.
type LocalCache interface {
	SetUserName(string) error
	SetUserBirthday(time.Time) error
}

// UserIDSource resolves the current authenticated user, usually the identity
// coordinator.
type UserIDSource interface {
	CurrentUserID() string
}

// Service owns profile document access.
type Service struct {
	db         backend.Databases
	databaseID string
	local      LocalCache
	auth       UserIDSource
	cache      *ttlcache.Cache[string, *domain.UserProfile]
}

// NewService creates a profile service. local may be nil when no device cache
// is wanted.
func NewService(db backend.Databases, databaseID string, local LocalCache, auth UserIDSource) *Service {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.UserProfile](cacheTTL),
	)
	go cache.Start()
	return &Service{db: db, databaseID: databaseID, local: local, auth: auth, cache: cache}
}

// Stop releases the cache's background goroutine.
func (s *Service) Stop() { s.cache.Stop() }

// EnsureExists fetches the profile for userID, creating it on first sign-in.
func (s *Service) EnsureExists(ctx context.Context, userID string) (*domain.UserProfile, error) {
	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	doc, err := s.db.CreateDocument(ctx, s.databaseID, CollectionID, userID,
		map[string]any{"user_id": userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	p, err := decodeProfile(doc)
	if err != nil {
		return nil, err
	}
	s.cache.Set(p.UserID, p, ttlcache.DefaultTTL)
	log.Debug().Str("user_id", userID).Msg("profile created")
	return p, nil
}

// Get fetches a profile, serving recent results from cache. A missing
// document returns nil without error.
func (s *Service) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if item := s.cache.Get(userID); item != nil {
		return item.Value(), nil
	}
	return s.fetch(ctx, userID)
}

// fetch always hits the backend, refreshing the cache.
func (s *Service) fetch(ctx context.Context, userID string) (*domain.UserProfile, error) {
	doc, err := s.db.GetDocument(ctx, s.databaseID, CollectionID, userID)
	if err != nil {
		if fserrors.Is(err, fserrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	p, err := decodeProfile(doc)
	if err != nil {
		return nil, err
	}
	s.cache.Set(p.UserID, p, ttlcache.DefaultTTL)
	return p, nil
}

// Current reloads the authenticated user's profile from the backend. Skip
// evaluation depends on fresh remote state, so this bypasses the cache.
func (s *Service) Current(ctx context.Context) (*domain.UserProfile, error) {
	userID := s.auth.CurrentUserID()
	if userID == "" {
		return nil, fserrors.ErrNoSession
	}
	return s.fetch(ctx, userID)
}

// SetProfile persists name and birthday remotely and mirrors them into the
// device-local cache.
func (s *Service) SetProfile(ctx context.Context, userID, name string, birthday time.Time) (*domain.UserProfile, error) {
	if err := onboarding.ValidateProfileName(name); err != nil {
		return nil, err
	}
	trimmedName := strings.TrimSpace(name)

	doc, err := s.db.UpdateDocument(ctx, s.databaseID, CollectionID, userID, map[string]any{
		"display_name": trimmedName,
		"birthday":     birthday.Format(time.RFC3339),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	p, err := decodeProfile(doc)
	if err != nil {
		return nil, err
	}
	s.cache.Set(p.UserID, p, ttlcache.DefaultTTL)

	if s.local != nil {
		if err := s.local.SetUserName(trimmedName); err != nil {
			return nil, fmt.Errorf("caching profile name: %w", err)
		}
		if err := s.local.SetUserBirthday(birthday); err != nil {
			return nil, fmt.Errorf("caching profile birthday: %w", err)
		}
	}
	log.Info().Str("user_id", userID).Msg("profile updated")
	return p, nil
}

// LinkFamily records the family membership on the profile.
func (s *Service) LinkFamily(ctx context.Context, userID, familyID string) (*domain.UserProfile, error) {
	doc, err := s.db.UpdateDocument(ctx, s.databaseID, CollectionID, userID,
		map[string]any{"family_id": familyID}, nil)
	if err != nil {
		return nil, fmt.Errorf("linking family: %w", err)
	}
	p, err := decodeProfile(doc)
	if err != nil {
		return nil, err
	}
	s.cache.Set(p.UserID, p, ttlcache.DefaultTTL)
	return p, nil
}

func decodeProfile(doc *backend.Document) (*domain.UserProfile, error) {
	userID, err := doc.String("user_id")
	if err != nil {
		return nil, err
	}
	familyID, err := doc.OptionalString("family_id")
	if err != nil {
		return nil, err
	}
	displayName, err := doc.OptionalString("display_name")
	if err != nil {
		return nil, err
	}
	birthday, err := doc.OptionalTime("birthday")
	if err != nil {
		return nil, err
	}
	return &domain.UserProfile{
		ID:          doc.ID,
		UserID:      userID,
		FamilyID:    familyID,
		DisplayName: displayName,
		Birthday:    birthday,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}
