// Package fstools implements the read/grep/list tool trio that rounds out
// the §4.6 read-only worker tool set {read, grep, list, web_search,
// web_extract}. Grounded on kadirpekel-hector's pkg/tool/filetool
// (read_file.go, grep_search.go): same path-confinement discipline (no
// absolute paths, no ".." traversal, resolved path must stay under the
// working directory) re-expressed against this codebase's
// toolregistry.Impl signature instead of hector's functiontool wrapper.
//
// These tools let a worker inspect documents already pulled to disk by the
// ingestion/extraction pipeline (session raw.jsonl exports, round
// snapshots) without re-fetching them over the network.
package fstools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/toolregistry"
)

const maxFileSize = 10 << 20 // 10MB

// Tools roots every read/grep/list call at workingDir, rejecting any
// argument path that would escape it.
type Tools struct {
	workingDir string
}

// New builds a Tools confined to workingDir.
func New(workingDir string) *Tools {
	return &Tools{workingDir: workingDir}
}

func (t *Tools) resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed, use relative paths")
	}
	cleaned := filepath.Clean(path)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("directory traversal not allowed")
	}
	full, err := filepath.Abs(filepath.Join(t.workingDir, cleaned))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	root, err := filepath.Abs(t.workingDir)
	if err != nil {
		return "", fmt.Errorf("invalid working directory: %w", err)
	}
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes working directory")
	}
	return full, nil
}

// Read returns the content of path, optionally restricted to [startLine,
// endLine] (1-indexed, inclusive).
func (t *Tools) Read(path string, startLine, endLine int) (map[string]any, error) {
	full, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), int64(maxFileSize))
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	total := len(lines)
	start, end := 1, total
	if startLine > 0 {
		start = startLine
	}
	if endLine > 0 {
		end = endLine
	}
	if start > total {
		return nil, fmt.Errorf("start_line (%d) exceeds file length (%d)", start, total)
	}
	if end > total {
		end = total
	}
	if start > end {
		return nil, fmt.Errorf("invalid range: start_line (%d) > end_line (%d)", start, end)
	}

	return map[string]any{
		"content":     strings.Join(lines[start-1:end], "\n"),
		"total_lines": total,
		"start_line":  start,
		"end_line":    end,
	}, nil
}

// grepMatch is one matching line from Grep.
type grepMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Grep searches files under path (a file or directory) for pattern,
// capped to maxResults matches.
func (t *Tools) Grep(pattern, path string, caseInsensitive bool, maxResults int) (map[string]any, error) {
	if maxResults <= 0 {
		maxResults = 100
	}
	if maxResults > 1000 {
		maxResults = 1000
	}
	expr := pattern
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	full, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var files []string
	if info.IsDir() {
		err = filepath.Walk(full, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && fi.Size() <= maxFileSize {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		files = []string{full}
	}
	sort.Strings(files)

	var matches []grepMatch
	for _, fp := range files {
		if len(matches) >= maxResults {
			break
		}
		f, err := os.Open(fp)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		rel, _ := filepath.Rel(t.workingDir, fp)
		for scanner.Scan() {
			lineNo++
			if re.MatchString(scanner.Text()) {
				matches = append(matches, grepMatch{File: rel, Line: lineNo, Text: scanner.Text()})
				if len(matches) >= maxResults {
					break
				}
			}
		}
		f.Close()
	}

	return map[string]any{"matches": matches, "count": len(matches)}, nil
}

// listEntry is one directory entry from List.
type listEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// List returns the entries of the directory at path.
func (t *Tools) List(path string) (map[string]any, error) {
	full, err := t.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	out := make([]listEntry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		size := int64(0)
		if err == nil {
			size = info.Size()
		}
		out = append(out, listEntry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	return map[string]any{"entries": out}, nil
}

// RegisterTools wires Read/Grep/List into registry under the names "read",
// "grep", and "list", the read-only filesystem trio of the §4.6 worker tool
// set.
func (t *Tools) RegisterTools(registry *toolregistry.Registry) {
	registry.Register("read", "read a file's contents, optionally restricted to a line range",
		toolregistry.SchemaOf(toolregistry.ReadArgs{}), func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			start, end := 0, 0
			if v, ok := args["start_line"].(float64); ok {
				start = int(v)
			}
			if v, ok := args["end_line"].(float64); ok {
				end = int(v)
			}
			return t.Read(path, start, end)
		})

	registry.Register("grep", "search files for a regular expression pattern",
		toolregistry.SchemaOf(toolregistry.GrepArgs{}), func(_ context.Context, args map[string]any) (any, error) {
			pattern, _ := args["pattern"].(string)
			path, _ := args["path"].(string)
			ci, _ := args["case_insensitive"].(bool)
			maxResults := 0
			if v, ok := args["max_results"].(float64); ok {
				maxResults = int(v)
			}
			return t.Grep(pattern, path, ci, maxResults)
		})

	registry.Register("list", "list a directory's entries",
		toolregistry.SchemaOf(toolregistry.ListArgs{}), func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			return t.List(path)
		})
}
