// Package family manages the family documents: creation with generated
// invite codes, joining by code, and lookup.
package family

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/familysync/familysync-go/backend"
	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
	"github.com/familysync/familysync-go/internal/onboarding"
)

// CollectionID is the families collection.
const CollectionID = "families"

const (
	inviteCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength  = 16

	// maxIDLen is the backend's role/ID length limit for membership entries.
	maxIDLen = 32

	cacheTTL = 5 * time.Minute
)

// Service owns family document access. Lookups are cached in-process with a
// short TTL; the server stays the source of truth.
type Service struct {
	db         backend.Databases
	databaseID string
	cache      *ttlcache.Cache[string, *domain.Family]
}

// NewService creates a family service over the given database.
func NewService(db backend.Databases, databaseID string) *Service {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Family](cacheTTL),
	)
	go cache.Start()
	return &Service{db: db, databaseID: databaseID, cache: cache}
}

// Stop releases the cache's background goroutine.
func (s *Service) Stop() { s.cache.Stop() }

// GenerateInviteCode produces a share code: 16 random alphanumerics plus an
// uppercase base36 timestamp for uniqueness, joined as CODE-TIMESTAMP.
// Characters are drawn uniformly from the charset.
func GenerateInviteCode() (string, error) {
	charsetLen := big.NewInt(int64(len(inviteCodeCharset)))
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("generating invite code: %w", err)
		}
		code[i] = inviteCodeCharset[n.Int64()]
	}
	stamp := strings.ToUpper(strconv.FormatInt(time.Now().Unix(), 36))
	return string(code) + "-" + stamp, nil
}

// truncateID clamps an ID to the backend limit, mirroring what the document
// schema stores for members and creator.
func truncateID(id string) string {
	if len(id) > maxIDLen {
		return id[:maxIDLen]
	}
	return id
}

// Create validates the name, generates an invite code, and stores the family
// with the creator as first member, granting the creator full access.
func (s *Service) Create(ctx context.Context, name, creatorID string) (*domain.Family, error) {
	if err := onboarding.ValidateFamilyName(name); err != nil {
		return nil, err
	}
	code, err := GenerateInviteCode()
	if err != nil {
		return nil, err
	}
	creator := truncateID(creatorID)

	fields := map[string]any{
		"name":        strings.TrimSpace(name),
		"creator_id":  creator,
		"members":     []string{creator},
		"invite_code": code,
	}
	permissions := []string{
		backend.ReadPermission(backend.UserRole(creator)),
		backend.UpdatePermission(backend.UserRole(creator)),
		backend.DeletePermission(backend.UserRole(creator)),
	}

	doc, err := s.db.CreateDocument(ctx, s.databaseID, CollectionID, uuid.NewString(), fields, permissions)
	if err != nil {
		return nil, fmt.Errorf("creating family: %w", err)
	}
	fam, err := decodeFamily(doc)
	if err != nil {
		return nil, err
	}
	s.cache.Set(fam.ID, fam, ttlcache.DefaultTTL)

	log.Info().Str("family_id", fam.ID).Str("creator_id", creator).Msg("family created")
	return fam, nil
}

// Join adds userID to the family matching the invite code. A lookup miss is
// KindInvalidInviteCode; an existing membership is KindAlreadyMember. Nothing
// is mutated on failure.
func (s *Service) Join(ctx context.Context, code, userID string) (*domain.Family, error) {
	if err := onboarding.ValidateInviteCode(code); err != nil {
		return nil, err
	}
	normalized := onboarding.NormalizeInviteCode(code)

	docs, err := s.db.ListDocuments(ctx, s.databaseID, CollectionID,
		[]backend.Query{backend.Equal("invite_code", normalized)})
	if err != nil {
		return nil, fmt.Errorf("looking up invite code: %w", err)
	}
	if len(docs) == 0 {
		return nil, fserrors.NewInvalidInviteCode()
	}

	fam, err := decodeFamily(docs[0])
	if err != nil {
		return nil, err
	}

	member := truncateID(userID)
	if fam.HasMember(member) {
		return nil, fserrors.NewAlreadyMember()
	}

	members := append(append([]string{}, fam.Members...), member)

	// Membership change re-derives permissions: the creator keeps full
	// access, every member can read.
	permissions := []string{
		backend.ReadPermission(backend.UserRole(fam.CreatorID)),
		backend.UpdatePermission(backend.UserRole(fam.CreatorID)),
		backend.DeletePermission(backend.UserRole(fam.CreatorID)),
	}
	for _, m := range members {
		permissions = append(permissions, backend.ReadPermission(backend.UserRole(m)))
	}

	doc, err := s.db.UpdateDocument(ctx, s.databaseID, CollectionID, fam.ID,
		map[string]any{"members": members}, permissions)
	if err != nil {
		return nil, fmt.Errorf("joining family: %w", err)
	}
	updated, err := decodeFamily(doc)
	if err != nil {
		return nil, err
	}
	s.cache.Set(updated.ID, updated, ttlcache.DefaultTTL)

	log.Info().Str("family_id", updated.ID).Str("user_id", member).Msg("family joined")
	return updated, nil
}

// Get fetches a family by ID, serving recent results from cache. A missing
// document returns nil without error.
func (s *Service) Get(ctx context.Context, familyID string) (*domain.Family, error) {
	if item := s.cache.Get(familyID); item != nil {
		return item.Value(), nil
	}
	doc, err := s.db.GetDocument(ctx, s.databaseID, CollectionID, familyID)
	if err != nil {
		if fserrors.Is(err, fserrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching family: %w", err)
	}
	fam, err := decodeFamily(doc)
	if err != nil {
		return nil, err
	}
	s.cache.Set(fam.ID, fam, ttlcache.DefaultTTL)
	return fam, nil
}

func decodeFamily(doc *backend.Document) (*domain.Family, error) {
	name, err := doc.String("name")
	if err != nil {
		return nil, err
	}
	creatorID, err := doc.String("creator_id")
	if err != nil {
		return nil, err
	}
	members, err := doc.StringSlice("members")
	if err != nil {
		return nil, err
	}
	inviteCode, err := doc.String("invite_code")
	if err != nil {
		return nil, err
	}
	return &domain.Family{
		ID:         doc.ID,
		Name:       name,
		CreatorID:  creatorID,
		Members:    members,
		InviteCode: inviteCode,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}
