package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traildig/traildig-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, created, err := Open(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, created)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func makeSession(id, ownerID, title, description string, tags ...string) *domain.WorkSession {
	ws := &domain.WorkSession{
		OwnerID:      ownerID,
		Title:        title,
		Description:  description,
		TimeMinutes:  60,
		NumberPeople: 3,
	}
	ws.ID = id
	ws.InitTimestamps()
	for _, name := range tags {
		ws.Tags = append(ws.Tags, &domain.Tag{OwnerID: ownerID, Name: name})
	}
	return ws
}

func seed(t *testing.T, idx *Index) {
	t.Helper()
	docs := []*Document{
		FromWorkSession(makeSession("ws-1", "user-1", "Ridge trail ditch work", "Cleared three culverts", "Drainage")),
		FromWorkSession(makeSession("ws-2", "user-1", "Footbridge repair", "", "Bridge")),
		FromWorkSession(makeSession("ws-3", "user-1", "Saturday crew", "Mostly brushing", "Drainage", "Brushing")),
		FromWorkSession(makeSession("ws-4", "user-2", "Ditch digging", "Drainage on the lower loop", "Drainage")),
	}
	require.NoError(t, idx.IndexDocuments(docs))
}

func searchIDs(t *testing.T, idx *Index, ownerID, q string) []string {
	t.Helper()
	res, err := idx.Search(context.Background(), Params{OwnerID: ownerID, Query: q})
	require.NoError(t, err)
	return res.IDs()
}

func TestOpen_InMemory(t *testing.T) {
	idx, created, err := Open(Options{})
	require.NoError(t, err)
	defer idx.Close()

	assert.True(t, created)
	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestOpen_ReopensExistingIndex(t *testing.T) {
	dir := t.TempDir()

	idx, created, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, idx.IndexDocument(FromWorkSession(makeSession("ws-1", "user-1", "Ditch", ""))))
	require.NoError(t, idx.Close())

	idx, created, err = Open(Options{DataPath: dir})
	require.NoError(t, err)
	defer idx.Close()
	assert.False(t, created)

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestOpen_MappingVersionMismatchRecreates(t *testing.T) {
	dir := t.TempDir()

	idx, _, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, idx.IndexDocument(FromWorkSession(makeSession("ws-1", "user-1", "Ditch", ""))))
	require.NoError(t, idx.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFileName), []byte("0"), 0o644))

	idx, created, err := Open(Options{DataPath: dir})
	require.NoError(t, err)
	defer idx.Close()
	assert.True(t, created)

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearch_ScopedToOwner(t *testing.T) {
	idx := setupTestIndex(t)
	seed(t, idx)

	assert.ElementsMatch(t, []string{"ws-1"}, searchIDs(t, idx, "user-1", "ditch"))
	assert.ElementsMatch(t, []string{"ws-4"}, searchIDs(t, idx, "user-2", "ditch"))
}

func TestSearch_MatchesTagNames(t *testing.T) {
	idx := setupTestIndex(t)
	seed(t, idx)

	assert.ElementsMatch(t, []string{"ws-1", "ws-3"}, searchIDs(t, idx, "user-1", "drainage"))
}

func TestSearch_MatchesDescription(t *testing.T) {
	idx := setupTestIndex(t)
	seed(t, idx)

	assert.ElementsMatch(t, []string{"ws-1"}, searchIDs(t, idx, "user-1", "culverts"))
}

func TestSearch_EmptyQueryReturnsAllOfOwner(t *testing.T) {
	idx := setupTestIndex(t)
	seed(t, idx)

	assert.ElementsMatch(t, []string{"ws-1", "ws-2", "ws-3"}, searchIDs(t, idx, "user-1", ""))
}

func TestSearch_RequiresOwner(t *testing.T) {
	idx := setupTestIndex(t)

	_, err := idx.Search(context.Background(), Params{Query: "ditch"})
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestSearch_PagesDoNotOverlap(t *testing.T) {
	idx := setupTestIndex(t)

	var docs []*Document
	var want []string
	for _, id := range []string{"ws-e", "ws-a", "ws-d", "ws-b", "ws-c"} {
		docs = append(docs, FromWorkSession(makeSession(id, "user-1", "Ditch", "")))
		want = append(want, id)
	}
	require.NoError(t, idx.IndexDocuments(docs))

	var got []string
	for offset := 0; ; offset += 2 {
		res, err := idx.Search(context.Background(), Params{OwnerID: "user-1", Query: "ditch", Limit: 2, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, uint64(5), res.Total)
		if len(res.Hits) == 0 {
			break
		}
		got = append(got, res.IDs()...)
	}

	assert.Len(t, got, 5)
	assert.ElementsMatch(t, want, got)
}

func TestIndex_DeleteAndRebuild(t *testing.T) {
	idx := setupTestIndex(t)
	seed(t, idx)

	require.NoError(t, idx.DeleteDocument("ws-1"))
	assert.NotContains(t, searchIDs(t, idx, "user-1", "ditch"), "ws-1")

	require.NoError(t, idx.Rebuild())
	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestFromWorkSession(t *testing.T) {
	ws := makeSession("ws-1", "user-1", "Ditch", "Culverts", "Drainage", "Bridge")

	doc := FromWorkSession(ws)
	assert.Equal(t, "ws-1", doc.ID)
	assert.Equal(t, "user-1", doc.OwnerID)
	assert.Equal(t, []string{"Drainage", "Bridge"}, doc.Tags)
	assert.Equal(t, ws.CreatedAt.UnixMilli(), doc.CreatedAt)

	m := doc.ToMap()
	assert.Equal(t, "Culverts", m["description"])
	assert.NotContains(t, FromWorkSession(makeSession("ws-2", "user-1", "Bare", "")).ToMap(), "tags")
}
