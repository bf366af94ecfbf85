// Package models holds the shared domain entities used across the research
// and ingestion subsystems: documents, snippets, search tasks, worker
// results, and research memos. Types here are plain value structs with JSON
// tags; no package in this module depends on a specific storage engine.
package models

import "time"

// Document is an immutable record of one fetched piece of content.
// Created once by a Source's Fetch call and persisted exactly once;
// nothing mutates a Document after it is stored.
type Document struct {
	DocID         string         `json:"doc_id"`
	Source        string         `json:"source"`
	SourceEntity  string         `json:"source_entity"`
	URL           string         `json:"url"`
	Permalink     string         `json:"permalink"`
	RetrievedAt   time.Time      `json:"retrieved_at"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
	Title         string         `json:"title"`
	RawText       string         `json:"raw_text"`
	Author        string         `json:"author,omitempty"`
	Score         *float64       `json:"score,omitempty"`
	CommentCount  *int           `json:"comment_count,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
