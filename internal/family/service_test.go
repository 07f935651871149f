package family

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/familysync/familysync-go/backend"
	fserrors "github.com/familysync/familysync-go/errors"
)

// --- Mock Implementations ---

type MockDatabases struct {
	mock.Mock
}

func (m *MockDatabases) GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*backend.Document, error) {
	args := m.Called(ctx, databaseID, collectionID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Document), args.Error(1)
}

func (m *MockDatabases) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, fields map[string]any, permissions []string) (*backend.Document, error) {
	args := m.Called(ctx, databaseID, collectionID, documentID, fields, permissions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Document), args.Error(1)
}

func (m *MockDatabases) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, fields map[string]any, permissions []string) (*backend.Document, error) {
	args := m.Called(ctx, databaseID, collectionID, documentID, fields, permissions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Document), args.Error(1)
}

func (m *MockDatabases) ListDocuments(ctx context.Context, databaseID, collectionID string, queries []backend.Query) ([]*backend.Document, error) {
	args := m.Called(ctx, databaseID, collectionID, queries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*backend.Document), args.Error(1)
}

func familyDoc(id string, fields map[string]any) *backend.Document {
	return &backend.Document{ID: id, Fields: fields}
}

const testCode = "ABCDEFGH12345678-SX2K1"

// --- Service Tests ---

func TestGenerateInviteCode_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{16}-[A-Z0-9]+$`)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	// The random prefix makes collisions within a run vanishingly unlikely.
	assert.Greater(t, len(seen), 1)
}

func TestService_Create_GrantsCreatorFullAccess(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	db.On("CreateDocument", mock.Anything, "db1", CollectionID, mock.Anything,
		mock.MatchedBy(func(fields map[string]any) bool {
			return fields["name"] == "Lovelace" &&
				fields["creator_id"] == "u1" &&
				len(fields["members"].([]string)) == 1
		}),
		[]string{
			backend.ReadPermission(backend.UserRole("u1")),
			backend.UpdatePermission(backend.UserRole("u1")),
			backend.DeletePermission(backend.UserRole("u1")),
		}).
		Return(familyDoc("fam1", map[string]any{
			"name":        "Lovelace",
			"creator_id":  "u1",
			"members":     []string{"u1"},
			"invite_code": testCode,
		}), nil)

	fam, err := s.Create(context.Background(), "  Lovelace  ", "u1")
	require.NoError(t, err)
	assert.Equal(t, "fam1", fam.ID)
	assert.Equal(t, "u1", fam.CreatorID)
	assert.Equal(t, []string{"u1"}, fam.Members)
	assert.Equal(t, testCode, fam.InviteCode)
	db.AssertExpectations(t)
}

func TestService_Create_RejectsInvalidName(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	_, err := s.Create(context.Background(), "A", "u1")
	assert.Equal(t, fserrors.KindValidationFailed, fserrors.KindOf(err))
	db.AssertNotCalled(t, "CreateDocument",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Create_TruncatesLongCreatorID(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	longID := "apple_0123456789abcdef0123456789abcdef"
	want := longID[:32]

	db.On("CreateDocument", mock.Anything, "db1", CollectionID, mock.Anything,
		mock.MatchedBy(func(fields map[string]any) bool {
			return fields["creator_id"] == want
		}), mock.Anything).
		Return(familyDoc("fam1", map[string]any{
			"name":        "Lovelace",
			"creator_id":  want,
			"members":     []string{want},
			"invite_code": testCode,
		}), nil)

	fam, err := s.Create(context.Background(), "Lovelace", longID)
	require.NoError(t, err)
	assert.Equal(t, want, fam.CreatorID)
}

func TestService_Join_UnknownCodeIsInvalidInviteCode(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	db.On("ListDocuments", mock.Anything, "db1", CollectionID,
		[]backend.Query{backend.Equal("invite_code", testCode)}).
		Return([]*backend.Document{}, nil)

	_, err := s.Join(context.Background(), testCode, "u2")
	assert.Equal(t, fserrors.KindInvalidInviteCode, fserrors.KindOf(err))
	// A failed join never writes.
	db.AssertNotCalled(t, "UpdateDocument",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Join_MalformedCodeNeverReachesBackend(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	_, err := s.Join(context.Background(), "nope", "u2")
	assert.Equal(t, fserrors.KindValidationFailed, fserrors.KindOf(err))
	db.AssertNotCalled(t, "ListDocuments",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Join_ExistingMemberIsAlreadyMember(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	db.On("ListDocuments", mock.Anything, "db1", CollectionID, mock.Anything).
		Return([]*backend.Document{familyDoc("fam1", map[string]any{
			"name":        "Lovelace",
			"creator_id":  "u1",
			"members":     []string{"u1", "u2"},
			"invite_code": testCode,
		})}, nil)

	_, err := s.Join(context.Background(), testCode, "u2")
	assert.Equal(t, fserrors.KindAlreadyMember, fserrors.KindOf(err))
	db.AssertNotCalled(t, "UpdateDocument",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Join_AppendsMemberAndRebuildsPermissions(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	db.On("ListDocuments", mock.Anything, "db1", CollectionID, mock.Anything).
		Return([]*backend.Document{familyDoc("fam1", map[string]any{
			"name":        "Lovelace",
			"creator_id":  "u1",
			"members":     []string{"u1"},
			"invite_code": testCode,
		})}, nil)
	db.On("UpdateDocument", mock.Anything, "db1", CollectionID, "fam1",
		map[string]any{"members": []string{"u1", "u2"}},
		[]string{
			backend.ReadPermission(backend.UserRole("u1")),
			backend.UpdatePermission(backend.UserRole("u1")),
			backend.DeletePermission(backend.UserRole("u1")),
			backend.ReadPermission(backend.UserRole("u1")),
			backend.ReadPermission(backend.UserRole("u2")),
		}).
		Return(familyDoc("fam1", map[string]any{
			"name":        "Lovelace",
			"creator_id":  "u1",
			"members":     []string{"u1", "u2"},
			"invite_code": testCode,
		}), nil)

	// Lowercase input is normalized before the lookup.
	fam, err := s.Join(context.Background(), "abcdefgh12345678-sx2k1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, fam.Members)
	db.AssertExpectations(t)
}

func TestService_Get_CachesAndMapsNotFoundToNil(t *testing.T) {
	db := new(MockDatabases)
	s := NewService(db, "db1")
	defer s.Stop()

	db.On("GetDocument", mock.Anything, "db1", CollectionID, "fam1").
		Return(familyDoc("fam1", map[string]any{
			"name":        "Lovelace",
			"creator_id":  "u1",
			"members":     []string{"u1"},
			"invite_code": testCode,
		}), nil).Once()

	fam, err := s.Get(context.Background(), "fam1")
	require.NoError(t, err)
	require.NotNil(t, fam)

	// Second read is served from cache.
	again, err := s.Get(context.Background(), "fam1")
	require.NoError(t, err)
	assert.Equal(t, fam, again)
	db.AssertExpectations(t)

	db.On("GetDocument", mock.Anything, "db1", CollectionID, "missing").
		Return(nil, fserrors.ErrNotFound)
	gone, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDecodeFamily_MissingFieldIsDeserializationError(t *testing.T) {
	_, err := decodeFamily(familyDoc("fam1", map[string]any{
		"creator_id": "u1",
	}))
	assert.Equal(t, fserrors.KindDeserialization, fserrors.KindOf(err))
}
