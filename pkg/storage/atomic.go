package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kpaschalidis/anvil/pkg/errs"
)

// WriteJSONAtomic writes v as JSON to path via a sibling tempfile followed
// by a rename, so a reader never observes a partially written file (§4.11:
// "write to a sibling tempfile in the same directory, then rename over the
// target"). Used for session state.json and round snapshot files.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Storage("atomic_write", "failed to marshal value", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.Storage("atomic_write", "failed to create tempfile", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Storage("atomic_write", "failed to write tempfile", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Storage("atomic_write", "failed to close tempfile", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.Storage("atomic_write", "failed to rename tempfile over target", err)
	}
	return nil
}

// ReadJSON reads and decodes a JSON file written by WriteJSONAtomic.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Storage("read_json", "failed to read file", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Storage("read_json", "failed to decode json", err)
	}
	return nil
}
