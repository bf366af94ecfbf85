package fstools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("line one\nline two\nline three\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "child.txt"), []byte("needle here\nirrelevant\n"), 0o644))
	return dir
}

func TestRead_FullFile(t *testing.T) {
	tools := New(setupDir(t))
	out, err := tools.Read("notes.txt", 0, 0)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two\nline three", out["content"])
	require.Equal(t, 3, out["total_lines"])
}

func TestRead_Range(t *testing.T) {
	tools := New(setupDir(t))
	out, err := tools.Read("notes.txt", 2, 2)
	require.NoError(t, err)
	require.Equal(t, "line two", out["content"])
}

func TestRead_RejectsTraversal(t *testing.T) {
	tools := New(setupDir(t))
	_, err := tools.Read("../etc/passwd", 0, 0)
	require.Error(t, err)
}

func TestRead_RejectsAbsolutePath(t *testing.T) {
	tools := New(setupDir(t))
	_, err := tools.Read("/etc/passwd", 0, 0)
	require.Error(t, err)
}

func TestGrep_FindsMatchAcrossSubdirectories(t *testing.T) {
	tools := New(setupDir(t))
	out, err := tools.Grep("needle", ".", false, 0)
	require.NoError(t, err)
	require.Equal(t, 1, out["count"])
}

func TestGrep_CaseInsensitive(t *testing.T) {
	tools := New(setupDir(t))
	out, err := tools.Grep("NEEDLE", ".", true, 0)
	require.NoError(t, err)
	require.Equal(t, 1, out["count"])
}

func TestGrep_InvalidPattern(t *testing.T) {
	tools := New(setupDir(t))
	_, err := tools.Grep("(unclosed", ".", false, 0)
	require.Error(t, err)
}

func TestList_ReturnsEntries(t *testing.T) {
	tools := New(setupDir(t))
	out, err := tools.List(".")
	require.NoError(t, err)
	entries := out["entries"].([]listEntry)
	require.Len(t, entries, 2)
}
