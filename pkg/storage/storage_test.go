package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kpaschalidis/anvil/pkg/models"
)

func TestStore_PutAndGetDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	defer store.Close()

	score := 4.5
	doc := models.Document{
		DocID: "d1", Source: "forum", SourceEntity: "acme", URL: "https://example.com/1",
		RetrievedAt: time.Now().UTC().Truncate(time.Second), Title: "t", RawText: "body",
		Score: &score, Metadata: map[string]any{"entities": []string{"acme"}},
	}

	require.NoError(t, store.PutDocument(context.Background(), doc))

	got, ok, err := store.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, doc.Title, got.Title)
	require.NotNil(t, got.Score)
	require.InDelta(t, 4.5, *got.Score, 0.0001)
	require.True(t, doc.RetrievedAt.Equal(got.RetrievedAt))
}

func TestStore_PutDocumentUpserts(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	defer store.Close()

	doc := models.Document{DocID: "d1", RetrievedAt: time.Now(), Title: "v1"}
	require.NoError(t, store.PutDocument(context.Background(), doc))
	doc.Title = "v2"
	require.NoError(t, store.PutDocument(context.Background(), doc))

	count, err := store.CountDocuments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, _, err := store.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	require.Equal(t, "v2", got.Title)
}

func TestStore_ScanDocumentsIteratesAll(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.PutDocument(context.Background(), models.Document{
			DocID: string(rune('a' + i)), RetrievedAt: time.Now(),
		}))
	}

	it, err := store.ScanDocuments(context.Background())
	require.NoError(t, err)
	defer it.Close()

	var ids []string
	for {
		doc, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, doc.DocID)
	}
	require.Len(t, ids, 3)
}

func TestStore_DistinctEntitiesUnionsAcrossSnippets(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutSnippet(context.Background(), models.Snippet{
		SnippetID: "s1", DocID: "d1", Excerpt: "e", PainStatement: "p", SignalType: models.SignalBug,
		Intensity: 3, Confidence: 0.5, Entities: []string{"acme", "shared"},
	}))
	require.NoError(t, store.PutSnippet(context.Background(), models.Snippet{
		SnippetID: "s2", DocID: "d2", Excerpt: "e2", PainStatement: "p2", SignalType: models.SignalWish,
		Intensity: 2, Confidence: 0.7, Entities: []string{"beta", "shared"},
	}))

	entities, err := store.DistinctEntities(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"acme", "beta", "shared"}, entities)
}

func TestJSONLWriter_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := OpenJSONLWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(map[string]string{"kind": "a"}))
	require.NoError(t, w.Append(map[string]string{"kind": "b"}))
	require.NoError(t, w.Close())

	var kinds []string
	err = ReadJSONLInto[map[string]string](path, func(v map[string]string) error {
		kinds = append(kinds, v["kind"])
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, kinds)
}

func TestWriteJSONAtomic_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, WriteJSONAtomic(path, payload{Name: "session-1"}))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	require.Equal(t, "session-1", got.Name)
}
