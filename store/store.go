// Package store is the persistence collaborator: SQLite-backed storage for
// documents, chunks, requirements, cross-references and processing jobs.
//
// Chunk and requirement order is preserved by storage (chunk_index, rowid)
// because it carries provenance meaning. Validation transitions go through
// Transition, a per-record atomic read-modify-write.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/tendertrace/rfpx/dbopen"
)

// ErrNotFound is returned when an operation references a document or
// requirement identity that does not exist.
var ErrNotFound = errors.New("store: not found")

// Document processing statuses.
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

// Requirement validation statuses.
const (
	StatusAIExtracted      = "ai_extracted"
	StatusHumanValidated   = "human_validated"
	StatusHumanCorrected   = "human_corrected"
	StatusFlaggedForReview = "flagged_for_review"
)

// Processing job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Store wraps an SQLite database for the extraction platform.
type Store struct {
	db *sql.DB

	// txMu serializes validation transitions. SQLite is single-writer and
	// this process is the single writer, so an in-process lock around the
	// read-modify-write guarantees strict history ordering without
	// busy-retry loops. Reads and bulk inserts do not take it.
	txMu sync.Mutex
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// Pass dbopen options to customise (dbopen.WithTrace, dbopen.WithMkdirAll).
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	db, err := dbopen.Open(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// New wraps an already-open database (e.g. dbopen.OpenMemory in tests) and
// runs migrations.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for sharing with health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id                TEXT PRIMARY KEY,
    original_filename TEXT NOT NULL,
    mime_type         TEXT NOT NULL,
    size_bytes        INTEGER NOT NULL,
    status            TEXT NOT NULL DEFAULT 'uploaded',
    page_count        INTEGER,
    chars_per_page    REAL,
    printable_ratio   REAL,
    wordlike_ratio    REAL,
    uploaded_at       TEXT NOT NULL,
    processed_at      TEXT
);

CREATE TABLE IF NOT EXISTS chunks (
    document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index  INTEGER NOT NULL,
    raw_text     TEXT NOT NULL,
    section      TEXT NOT NULL,
    subsection   TEXT NOT NULL,
    page         INTEGER NOT NULL,
    paragraph    INTEGER NOT NULL,
    PRIMARY KEY (document_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS requirements (
    id                TEXT PRIMARY KEY,
    document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    raw_text          TEXT NOT NULL,
    clean_text        TEXT NOT NULL,
    classification    TEXT NOT NULL,
    confidence        REAL NOT NULL,
    source_section    TEXT,
    source_subsection TEXT,
    source_page       INTEGER NOT NULL,
    source_paragraph  INTEGER,
    status            TEXT NOT NULL DEFAULT 'ai_extracted',
    validation_notes  TEXT,
    validated_by      TEXT,
    validated_at      TEXT,
    history           TEXT NOT NULL DEFAULT '[]',
    created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cross_references (
    id             TEXT PRIMARY KEY,
    requirement_id TEXT NOT NULL REFERENCES requirements(id) ON DELETE CASCADE,
    ref_type       TEXT NOT NULL,
    ref_text       TEXT NOT NULL,
    ref_target     TEXT NOT NULL,
    created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS processing_jobs (
    id              TEXT PRIMARY KEY,
    document_id     TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    status          TEXT NOT NULL DEFAULT 'pending',
    total_items     INTEGER NOT NULL DEFAULT 0,
    processed_items INTEGER NOT NULL DEFAULT 0,
    error_message   TEXT,
    created_at      TEXT NOT NULL,
    started_at      TEXT,
    completed_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_documents_status       ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_uploaded     ON documents(uploaded_at);
CREATE INDEX IF NOT EXISTS idx_requirements_doc       ON requirements(document_id);
CREATE INDEX IF NOT EXISTS idx_requirements_status    ON requirements(status);
CREATE INDEX IF NOT EXISTS idx_requirements_class     ON requirements(classification);
CREATE INDEX IF NOT EXISTS idx_requirements_conf      ON requirements(confidence);
CREATE INDEX IF NOT EXISTS idx_xrefs_requirement      ON cross_references(requirement_id);
CREATE INDEX IF NOT EXISTS idx_jobs_document          ON processing_jobs(document_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status            ON processing_jobs(status);
`
	_, err := s.db.Exec(ddl)
	return err
}
