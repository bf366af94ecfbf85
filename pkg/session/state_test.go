package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestState_EnqueueAndDequeue(t *testing.T) {
	s := New("sess1", "topic", "v1")
	s.EnqueueTask(QueuedTask{TaskID: "t1", Source: "forum", Query: "q1"})
	s.EnqueueTask(QueuedTask{TaskID: "t2", Source: "forum", Query: "q2"})
	require.Equal(t, 2, s.QueueLen())

	got := s.DequeueUpTo(1)
	require.Len(t, got, 1)
	require.Equal(t, "t1", got[0].TaskID)
	require.Equal(t, 1, s.QueueLen())
}

func TestState_EnqueueSkipsVisitedTask(t *testing.T) {
	s := New("sess1", "topic", "v1")
	s.MarkTaskVisited("t1")
	s.EnqueueTask(QueuedTask{TaskID: "t1"})
	require.Equal(t, 0, s.QueueLen())
}

func TestState_MarkDocVisitedDeduplicates(t *testing.T) {
	s := New("sess1", "topic", "v1")
	require.True(t, s.MarkDocVisited("d1"))
	require.False(t, s.MarkDocVisited("d1"))
}

func TestState_QueryScoreKnownVsUnknown(t *testing.T) {
	s := New("sess1", "topic", "v1")
	require.Equal(t, 0.2, s.QueryScore("unseen"))

	s.RecordQueryYield("known", 3, 10)
	require.InDelta(t, 0.3, s.QueryScore("known"), 0.0001)
}

func TestState_KnowledgeWindowBounded(t *testing.T) {
	s := New("sess1", "topic", "v1")
	for i := 0; i < maxKnowledgeWindow+10; i++ {
		s.AppendKnowledge("item")
	}
	snap := s.Snapshot()
	require.Len(t, snap.Knowledge, maxKnowledgeWindow)
}

func TestState_ComplexityDerivesMaxIterations(t *testing.T) {
	s := New("sess1", "topic", "v1")
	s.SetComplexity(ComplexitySimple)
	require.Equal(t, 30, s.Snapshot().MaxIterations)

	s.SetComplexity(ComplexityComplex)
	require.Equal(t, 100, s.Snapshot().MaxIterations)
}

func TestState_SaveAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New("sess1", "my topic", "v1")
	s.EnqueueTask(QueuedTask{TaskID: "t1", Source: "forum"})
	s.RecordQueryYield("q", 2, 4)

	require.NoError(t, s.Save(dir))
	require.FileExists(t, filepath.Join(dir, "sess1", "state.json"))

	loaded, err := Load(dir, "sess1")
	require.NoError(t, err)
	require.Equal(t, "my topic", loaded.Topic)
	require.Equal(t, 1, loaded.QueueLen())
	require.InDelta(t, 0.5, loaded.QueryScore("q"), 0.0001)
}
