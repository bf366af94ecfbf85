package session

import (
	"os"
	"path/filepath"

	"github.com/kpaschalidis/anvil/pkg/storage"
)

// StatePath returns the conventional state.json path for a session under
// dataDir (§6 on-disk layout: "<data_dir>/<session_id>/state.json").
func StatePath(dataDir, sessionID string) string {
	return filepath.Join(dataDir, sessionID, "state.json")
}

// Save persists the session's current snapshot atomically (§4.11).
func (s *State) Save(dataDir string) error {
	snap := s.Snapshot()
	path := StatePath(dataDir, snap.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return storage.WriteJSONAtomic(path, snap)
}

// Load reads a previously saved session snapshot back into a usable State.
func Load(dataDir, sessionID string) (*State, error) {
	var snap State
	if err := storage.ReadJSON(StatePath(dataDir, sessionID), &snap); err != nil {
		return nil, err
	}
	if snap.VisitedTasks == nil {
		snap.VisitedTasks = map[string]bool{}
	}
	if snap.VisitedDocs == nil {
		snap.VisitedDocs = map[string]bool{}
	}
	if snap.SourceCursors == nil {
		snap.SourceCursors = map[string]string{}
	}
	if snap.QueryStats == nil {
		snap.QueryStats = map[string]QueryStat{}
	}
	return &snap, nil
}
