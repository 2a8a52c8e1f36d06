package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traildig/traildig-server/internal/auth"
	"github.com/traildig/traildig-server/internal/domain"
	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/id"
	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/search"
	"github.com/traildig/traildig-server/internal/store/sqlite"
)

// testEnv wires every service against a temporary sqlite store and an
// in-memory search index.
type testEnv struct {
	store        *sqlite.Store
	tokens       *auth.TokenService
	metrics      *metrics.Metrics
	sessions     *SessionService
	auth         *AuthService
	search       *SearchService
	resolver     *TagResolver
	workSessions *WorkSessionService
	tags         *TagService
}

func newTestEnv(t *testing.T, mode TagResolutionMode) *testEnv {
	t.Helper()

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, _, err := search.Open(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{7}, 32), 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	m := metrics.New()
	sessions := NewSessionService(st, tokens, nil)
	searchSvc := NewSearchService(idx, st, nil)
	resolver := NewTagResolver(mode, m)

	return &testEnv{
		store:        st,
		tokens:       tokens,
		metrics:      m,
		sessions:     sessions,
		auth:         NewAuthService(st, tokens, sessions, m, nil),
		search:       searchSvc,
		resolver:     resolver,
		workSessions: NewWorkSessionService(st, resolver, searchSvc, m, nil),
		tags:         NewTagService(st, searchSvc, m, nil),
	}
}

// mustUser stores a user directly, skipping password hashing.
func (e *testEnv) mustUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:        email,
		PasswordHash: "$argon2id$unused",
		Role:         role,
	}
	user.ID = id.MustGenerate(id.PrefixUser)
	user.InitTimestamps()
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) mustTag(t *testing.T, ownerID, name string) *domain.Tag {
	t.Helper()
	tag, err := newTag(ownerID, name)
	require.NoError(t, err)
	require.NoError(t, e.store.CreateTag(context.Background(), tag))
	return tag
}

func (e *testEnv) mustSession(t *testing.T, ownerID, title string, minutes int, tags ...string) *domain.WorkSession {
	t.Helper()
	ws, err := e.workSessions.Create(context.Background(), ownerID, WorkSessionInput{
		Title:        ptr(title),
		TimeMinutes:  ptr(minutes),
		NumberPeople: ptr(2),
		Tags:         tagRefs(tags...),
	})
	require.NoError(t, err)
	return ws
}

func ptr[T any](v T) *T {
	return &v
}

func tagRefs(names ...string) *[]domain.TagRef {
	refs := make([]domain.TagRef, len(names))
	for i, n := range names {
		refs[i] = domain.TagRef{Name: n}
	}
	return &refs
}

// assertCode checks that err is a domain error carrying code.
func assertCode(t *testing.T, err error, code domainerrors.Code) {
	t.Helper()
	var de *domainerrors.Error
	if assert.ErrorAs(t, err, &de) {
		assert.Equal(t, code, de.Code)
	}
}

// fieldErrors extracts validation details from a domain error.
func fieldErrors(t *testing.T, err error) []domainerrors.FieldError {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, domainerrors.CodeValidation, de.Code)
	details, ok := de.Details.([]domainerrors.FieldError)
	require.True(t, ok, "details: %#v", de.Details)
	return details
}

func tagNames(tags []*domain.Tag) []string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return names
}
