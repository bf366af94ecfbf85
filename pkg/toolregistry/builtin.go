package toolregistry

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaOf generates a JSON-Schema parameters document from a Go struct
// using reflection, for tools whose arguments are conveniently described
// by a struct (web_search, web_extract, read/grep/list). This mirrors how
// the rest of the retrieval pack (basegraph's relay, hector) generates tool
// schemas from typed argument structs instead of hand-writing JSON.
func SchemaOf(v any) map[string]any {
	r := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(v)
	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// WebSearchArgs describes the arguments for the built-in web_search tool.
type WebSearchArgs struct {
	Query    string `json:"query" jsonschema:"required,description=search query"`
	Page     int    `json:"page,omitempty" jsonschema:"description=1-indexed page number"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"description=results per page"`
}

// WebExtractArgs describes the arguments for the built-in web_extract tool.
type WebExtractArgs struct {
	URL      string `json:"url" jsonschema:"required,description=URL to fetch and extract"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"description=truncate extracted text to this many characters"`
}

// ReadArgs describes the arguments for the built-in read tool.
type ReadArgs struct {
	Path      string `json:"path" jsonschema:"required,description=file path relative to the session working directory"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=1-indexed starting line,minimum=1"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=1-indexed ending line (inclusive)"`
}

// GrepArgs describes the arguments for the built-in grep tool.
type GrepArgs struct {
	Pattern         string `json:"pattern" jsonschema:"required,description=regular expression pattern to search for"`
	Path            string `json:"path,omitempty" jsonschema:"description=file or directory to search, relative to the working directory,default=."`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema:"description=perform a case-insensitive search"`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"description=cap on returned matches,default=100,minimum=1,maximum=1000"`
}

// ListArgs describes the arguments for the built-in list tool.
type ListArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=directory to list, relative to the working directory,default=."`
}
