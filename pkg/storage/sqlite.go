// Package storage implements the two storage layers of §4.11: a WAL-mode
// SQLite relational store (documents, snippets, schema_version) and
// append-only JSONL streams per session, plus the atomic-JSON-write
// primitive both session state and round snapshots rely on. Grounded on
// kadirpekel-hector's database/sql + mattn/go-sqlite3 usage, replacing the
// teacher's ent+Postgres stack per SPEC_FULL.md §3's dependency-drop
// justification (ent's codegen isn't available in this environment, and the
// spec's on-disk session layout calls for one embedded file per session
// rather than a shared server-backed database).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kpaschalidis/anvil/pkg/errs"
	"github.com/kpaschalidis/anvil/pkg/models"
)

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS documents (
	doc_id         TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	source_entity  TEXT NOT NULL,
	url            TEXT NOT NULL,
	permalink      TEXT,
	retrieved_at   TEXT NOT NULL,
	published_at   TEXT,
	title          TEXT,
	raw_text       TEXT,
	author         TEXT,
	score          REAL,
	comment_count  INTEGER,
	metadata       TEXT
);

CREATE TABLE IF NOT EXISTS snippets (
	snippet_id       TEXT PRIMARY KEY,
	doc_id           TEXT NOT NULL,
	excerpt          TEXT NOT NULL,
	pain_statement   TEXT NOT NULL,
	signal_type      TEXT NOT NULL,
	intensity        INTEGER NOT NULL,
	confidence       REAL NOT NULL,
	quality_score    REAL NOT NULL,
	entities         TEXT,
	extractor_model  TEXT,
	prompt_version   TEXT,
	extracted_at     TEXT
);
`

// Store is the relational layer of §4.11: one SQLite file per session, WAL
// mode, NORMAL synchronous, INSERT OR REPLACE semantics keyed by primary
// key.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path, applies the
// schema, and enables WAL mode + NORMAL synchronous per §4.11.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Storage("open", "failed to open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // WAL + a single writer avoids SQLITE_BUSY under this store's usage pattern

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, errs.Storage("open", "failed to enable WAL mode", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, errs.Storage("open", "failed to set synchronous mode", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, errs.Storage("open", "failed to apply schema", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return nil, errs.Storage("open", "failed to read schema_version", err)
	}
	if count == 0 {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return nil, errs.Storage("open", "failed to seed schema_version", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// PutDocument upserts a Document (INSERT OR REPLACE by doc_id, §4.11).
func (s *Store) PutDocument(ctx context.Context, doc models.Document) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return errs.Storage("put_document", "failed to marshal metadata", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents
		(doc_id, source, source_entity, url, permalink, retrieved_at, published_at, title, raw_text, author, score, comment_count, metadata)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		doc.DocID, doc.Source, doc.SourceEntity, doc.URL, doc.Permalink,
		doc.RetrievedAt.Format(timeLayout), formatTimePtr(doc.PublishedAt),
		doc.Title, doc.RawText, doc.Author, doc.Score, doc.CommentCount, string(metadata))
	if err != nil {
		return errs.Storage("put_document", "failed to upsert document", err)
	}
	return nil
}

// GetDocument looks up one document by ID.
func (s *Store) GetDocument(ctx context.Context, docID string) (models.Document, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc_id, source, source_entity, url, permalink, retrieved_at, published_at, title, raw_text, author, score, comment_count, metadata
		FROM documents WHERE doc_id = ?`, docID)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return models.Document{}, false, nil
	}
	if err != nil {
		return models.Document{}, false, errs.Storage("get_document", "failed to scan document", err)
	}
	return doc, true, nil
}

// ExistsDocument reports whether docID is already stored.
func (s *Store) ExistsDocument(ctx context.Context, docID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE doc_id = ?`, docID).Scan(&count)
	if err != nil {
		return false, errs.Storage("exists_document", "failed to count documents", err)
	}
	return count > 0, nil
}

// CountDocuments returns the total stored document count.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	if err != nil {
		return 0, errs.Storage("count_documents", "failed to count documents", err)
	}
	return count, nil
}

// ScanDocuments returns a lazy iterator over every stored document, ordered
// by rowid (insertion order).
func (s *Store) ScanDocuments(ctx context.Context) (*DocumentIterator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, source, source_entity, url, permalink, retrieved_at, published_at, title, raw_text, author, score, comment_count, metadata
		FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, errs.Storage("scan_documents", "failed to query documents", err)
	}
	return &DocumentIterator{rows: rows}, nil
}

// DocumentIterator lazily scans documents row by row.
type DocumentIterator struct {
	rows *sql.Rows
}

// Next advances the iterator. It returns (doc, true, nil) while there are
// more rows, (zero, false, nil) at exhaustion, and (zero, false, err) on a
// scan failure.
func (it *DocumentIterator) Next() (models.Document, bool, error) {
	if !it.rows.Next() {
		return models.Document{}, false, it.rows.Err()
	}
	doc, err := scanDocument(it.rows)
	if err != nil {
		return models.Document{}, false, err
	}
	return doc, true, nil
}

// Close releases the iterator's underlying rows handle.
func (it *DocumentIterator) Close() error { return it.rows.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.Document, error) {
	var doc models.Document
	var retrievedAt string
	var publishedAt, permalink, title, rawText, author, metadata sql.NullString
	var score sql.NullFloat64
	var commentCount sql.NullInt64

	if err := row.Scan(&doc.DocID, &doc.Source, &doc.SourceEntity, &doc.URL, &permalink,
		&retrievedAt, &publishedAt, &title, &rawText, &author, &score, &commentCount, &metadata); err != nil {
		return models.Document{}, err
	}

	doc.Permalink = permalink.String
	doc.Title = title.String
	doc.RawText = rawText.String
	doc.Author = author.String
	if t, err := parseTime(retrievedAt); err == nil {
		doc.RetrievedAt = t
	}
	if publishedAt.Valid && publishedAt.String != "" {
		if t, err := parseTime(publishedAt.String); err == nil {
			doc.PublishedAt = &t
		}
	}
	if score.Valid {
		v := score.Float64
		doc.Score = &v
	}
	if commentCount.Valid {
		v := int(commentCount.Int64)
		doc.CommentCount = &v
	}
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &doc.Metadata)
	}
	return doc, nil
}

// PutSnippet upserts a Snippet (INSERT OR REPLACE by snippet_id).
func (s *Store) PutSnippet(ctx context.Context, snip models.Snippet) error {
	entities, err := json.Marshal(snip.Entities)
	if err != nil {
		return errs.Storage("put_snippet", "failed to marshal entities", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snippets
		(snippet_id, doc_id, excerpt, pain_statement, signal_type, intensity, confidence, quality_score, entities, extractor_model, prompt_version, extracted_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		snip.SnippetID, snip.DocID, snip.Excerpt, snip.PainStatement, string(snip.SignalType),
		snip.Intensity, snip.Confidence, snip.QualityScore, string(entities),
		snip.ExtractorModel, snip.PromptVersion, snip.ExtractedAt.Format(timeLayout))
	if err != nil {
		return errs.Storage("put_snippet", "failed to upsert snippet", err)
	}
	return nil
}

// CountSnippets returns the total stored snippet count.
func (s *Store) CountSnippets(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snippets`).Scan(&count)
	if err != nil {
		return 0, errs.Storage("count_snippets", "failed to count snippets", err)
	}
	return count, nil
}

// DistinctEntities decodes every snippet's entities column (a JSON array)
// and returns the union; document metadata is not read
// (§4.11 "DISTINCT-entity aggregation: decode JSON-array cells and union").
func (s *Store) DistinctEntities(ctx context.Context) ([]string, error) {
	set := map[string]bool{}

	rows, err := s.db.QueryContext(ctx, `SELECT entities FROM snippets`)
	if err != nil {
		return nil, errs.Storage("distinct_entities", "failed to query snippets", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.Storage("distinct_entities", "failed to scan entities", err)
		}
		if !raw.Valid || raw.String == "" {
			continue
		}
		var entities []string
		if err := json.Unmarshal([]byte(raw.String), &entities); err != nil {
			continue
		}
		for _, e := range entities {
			if e != "" {
				set[e] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out, rows.Err()
}

const timeLayout = time.RFC3339Nano

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
