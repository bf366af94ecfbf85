package research

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/storage"
)

// roundMeta is the on-disk shape of a round boundary snapshot (§6 research
// session layout: "rounds/round_<NN>/meta.json").
type roundMeta struct {
	Index   int                    `json:"index"`
	Kind    string                 `json:"kind"`
	State   RoundState             `json:"state"`
	Tasks   []Task                 `json:"tasks"`
	Results []models.WorkerResult  `json:"results"`
	Memo    models.ResearchMemo    `json:"memo"`
}

func roundDir(dataDir, sessionID string, index int) string {
	return filepath.Join(dataDir, sessionID, "research", "rounds", fmt.Sprintf("round_%02d", index))
}

// SaveRound persists a round boundary snapshot so a crashed run can resume
// from the last completed round instead of replanning from scratch (§4.8
// supplemented feature, ResumeFromRound).
func SaveRound(dataDir, sessionID string, snap RoundSnapshot, memo models.ResearchMemo) error {
	dir := roundDir(dataDir, sessionID, snap.Index)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	meta := roundMeta{Index: snap.Index, Kind: snap.Kind, State: snap.State, Tasks: snap.Tasks, Results: snap.Results, Memo: memo}
	return storage.WriteJSONAtomic(filepath.Join(dir, "meta.json"), meta)
}

// ResumeFromRound reloads the last completed round's snapshot and memo
// from disk, so Run can be restarted from that point instead of from
// scratch. Returns an error if no snapshot exists at that index.
func ResumeFromRound(dataDir, sessionID string, index int) (RoundSnapshot, models.ResearchMemo, error) {
	var meta roundMeta
	path := filepath.Join(roundDir(dataDir, sessionID, index), "meta.json")
	if err := storage.ReadJSON(path, &meta); err != nil {
		return RoundSnapshot{}, models.ResearchMemo{}, err
	}
	snap := RoundSnapshot{Index: meta.Index, Kind: meta.Kind, State: meta.State, Tasks: meta.Tasks, Results: meta.Results}
	return snap, meta.Memo, nil
}

// LatestCompletedRound scans rounds/round_<NN>/meta.json entries under a
// session directory and returns the highest index whose state is
// Collected, or 0 if none exist.
func LatestCompletedRound(dataDir, sessionID string) int {
	base := filepath.Join(dataDir, sessionID, "research", "rounds")
	entries, err := os.ReadDir(base)
	if err != nil {
		return 0
	}
	latest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(e.Name(), "round_%02d", &idx); err != nil {
			continue
		}
		var meta roundMeta
		if err := storage.ReadJSON(filepath.Join(base, e.Name(), "meta.json"), &meta); err != nil {
			continue
		}
		if meta.State == RoundCollected && idx > latest {
			latest = idx
		}
	}
	return latest
}
