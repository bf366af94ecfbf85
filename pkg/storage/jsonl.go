package storage

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/kpaschalidis/anvil/pkg/errs"
)

// JSONLWriter appends one JSON-encoded value per line to a file, used for
// the three append-only streams of §4.11 (raw.jsonl, snippets.jsonl,
// events.jsonl). Safe for concurrent Append calls from multiple goroutines
// writing to the same session.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
}

// OpenJSONLWriter opens path for appending, creating it if absent.
func OpenJSONLWriter(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errs.Storage("jsonl_open", "failed to open append stream", err)
	}
	return &JSONLWriter{file: f}, nil
}

// Append marshals v and writes it as one line.
func (w *JSONLWriter) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return errs.Storage("jsonl_append", "failed to marshal record", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(line); err != nil {
		return errs.Storage("jsonl_append", "failed to write record", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *JSONLWriter) Close() error { return w.file.Close() }

// ReadJSONLInto decodes every line of path into a T, calling fn for each.
// Used by tests and diagnostics tooling that need to replay a session's
// streams rather than query the relational store.
func ReadJSONLInto[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errs.Storage("jsonl_read", "failed to open stream", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	for dec.More() {
		var v T
		if err := dec.Decode(&v); err != nil {
			return errs.Storage("jsonl_read", "failed to decode record", err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}
