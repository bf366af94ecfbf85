package models

// TaskMode identifies what kind of source operation a SearchTask requests.
type TaskMode string

const (
	// ModeSearch is a free-text query against a source's search endpoint.
	ModeSearch TaskMode = "search"
	// ModeListingPrefix prefixes a source-defined listing type, e.g.
	// "listing_top", "listing_new". Sources interpret the suffix.
	ModeListingPrefix = "listing_"
)

// SearchTask is a unit of source-side discovery work (§3). Cursor is
// opaque to the scheduler: it is produced by a Source and must be handed
// back unmodified on the continuation task.
type SearchTask struct {
	TaskID       string `json:"task_id"`
	Source       string `json:"source"`
	SourceEntity string `json:"source_entity"`
	Mode         TaskMode `json:"mode"`
	Query        string `json:"query,omitempty"`
	Sort         string `json:"sort,omitempty"`
	TimeFilter   string `json:"time_filter,omitempty"`
	Cursor       string `json:"cursor,omitempty"`
	Budget       int    `json:"budget"`
}

// DocumentRef is a lightweight discovery record pointing at a future
// Document, used to de-duplicate before a Source.Fetch call.
type DocumentRef struct {
	RefID          string  `json:"ref_id"`
	RefType        string  `json:"ref_type"`
	Source         string  `json:"source"`
	SourceEntity   string  `json:"source_entity"`
	OriginatingTask string `json:"originating_task_id"`
	Rank           int     `json:"rank"`
	Preview        string  `json:"preview,omitempty"`
}

// Page is an ordered page of items with an optional opaque continuation
// cursor. Exhausted implies NextCursor is empty (§3 invariant).
type Page[T any] struct {
	Items         []T     `json:"items"`
	NextCursor    string  `json:"next_cursor,omitempty"`
	Exhausted     bool    `json:"exhausted"`
	EstimatedTotal *int   `json:"estimated_total,omitempty"`
}

// Valid reports whether the page respects the exhausted/cursor invariant.
func (p Page[T]) Valid() bool {
	return !(p.Exhausted && p.NextCursor != "")
}
