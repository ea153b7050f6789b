package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tendertrace/rfpx/extract"
)

// HistoryEntry is one append-only snapshot of a requirement's pre-transition
// state. History entries are never edited or removed, only appended.
type HistoryEntry struct {
	Timestamp              string `json:"timestamp"`
	Action                 string `json:"action"`
	Actor                  string `json:"actor"`
	PreviousStatus         string `json:"previous_status"`
	PreviousCleanText      string `json:"previous_clean_text"`
	PreviousClassification string `json:"previous_classification"`
	Notes                  string `json:"notes,omitempty"`
}

// Requirement is a requirement row. Confidence is written once by the
// classifier at creation and never changed by validation.
type Requirement struct {
	ID               string         `json:"id"`
	DocumentID       string         `json:"document_id"`
	RawText          string         `json:"raw_text"`
	CleanText        string         `json:"clean_text"`
	Classification   string         `json:"classification"`
	Confidence       float64        `json:"confidence"`
	SourceSection    string         `json:"source_section"`
	SourceSubsection string         `json:"source_subsection"`
	SourcePage       int            `json:"source_page"`
	SourceParagraph  int            `json:"source_paragraph"`
	Status           string         `json:"status"`
	ValidationNotes  string         `json:"validation_notes,omitempty"`
	ValidatedBy      string         `json:"validated_by,omitempty"`
	ValidatedAt      string         `json:"validated_at,omitempty"`
	History          []HistoryEntry `json:"history"`
	CreatedAt        string         `json:"created_at"`
}

// InsertDrafts bulk-inserts requirement drafts in one transaction, preserving
// draft order (rowid follows insertion order).
func (s *Store) InsertDrafts(drafts []extract.Draft) error {
	if len(drafts) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO requirements
		 (id, document_id, raw_text, clean_text, classification, confidence,
		  source_section, source_subsection, source_page, source_paragraph,
		  status, history, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range drafts {
		if _, err := stmt.Exec(
			d.ID, d.DocumentID, d.RawText, d.CleanText, string(d.Classification), d.Confidence,
			d.SourceSection, d.SourceSubsection, d.SourcePage, d.SourceParagraph,
			d.Status, now,
		); err != nil {
			return fmt.Errorf("insert requirement %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

const requirementCols = `id, document_id, raw_text, clean_text, classification, confidence,
	source_section, source_subsection, source_page, source_paragraph,
	status, COALESCE(validation_notes, ''), COALESCE(validated_by, ''), COALESCE(validated_at, ''),
	history, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequirement(row rowScanner) (*Requirement, error) {
	r := &Requirement{}
	var history string
	err := row.Scan(&r.ID, &r.DocumentID, &r.RawText, &r.CleanText, &r.Classification, &r.Confidence,
		&r.SourceSection, &r.SourceSubsection, &r.SourcePage, &r.SourceParagraph,
		&r.Status, &r.ValidationNotes, &r.ValidatedBy, &r.ValidatedAt,
		&history, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(history), &r.History); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", r.ID, err)
	}
	return r, nil
}

// GetRequirement returns a requirement by ID, or ErrNotFound.
func (s *Store) GetRequirement(ctx context.Context, id string) (*Requirement, error) {
	r, err := scanRequirement(s.db.QueryRowContext(ctx,
		`SELECT `+requirementCols+` FROM requirements WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("requirement %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRequirements returns a document's requirements in extraction order.
func (s *Store) ListRequirements(ctx context.Context, documentID string) ([]*Requirement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requirementCols+` FROM requirements WHERE document_id = ? ORDER BY rowid`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequirements(rows)
}

// PendingFilter controls the review queue query.
type PendingFilter struct {
	Classification string  // exact match when non-empty
	MinConfidence  float64 // inclusive lower bound
	MaxConfidence  float64 // exclusive upper bound; 0 means unbounded
	SortBy         string  // "confidence" or "recency" (default)
	Ascending      bool
	Limit          int // default 50
	Offset         int
}

// PendingRequirements lists requirements still awaiting validation
// (status ai_extracted or flagged_for_review), ordered per filter.
func (s *Store) PendingRequirements(ctx context.Context, f PendingFilter) ([]*Requirement, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	query := `SELECT ` + requirementCols + ` FROM requirements WHERE status IN (?, ?)`
	args := []any{StatusAIExtracted, StatusFlaggedForReview}

	if f.Classification != "" {
		query += ` AND classification = ?`
		args = append(args, f.Classification)
	}
	if f.MinConfidence > 0 {
		query += ` AND confidence >= ?`
		args = append(args, f.MinConfidence)
	}
	if f.MaxConfidence > 0 {
		query += ` AND confidence < ?`
		args = append(args, f.MaxConfidence)
	}

	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	switch f.SortBy {
	case "confidence":
		query += ` ORDER BY confidence ` + dir + `, rowid`
	default:
		query += ` ORDER BY created_at ` + dir + `, rowid ` + dir
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequirements(rows)
}

func collectRequirements(rows *sql.Rows) ([]*Requirement, error) {
	var reqs []*Requirement
	for rows.Next() {
		r, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// Transition runs fn against the current state of one requirement inside a
// single transaction and persists the mutated {status, clean_text,
// classification, validation metadata, history}. If fn returns an error the
// transaction rolls back and the row is untouched. Concurrent Transition
// calls on the same requirement are serialized; history entries are strictly
// ordered and no update is lost.
func (s *Store) Transition(ctx context.Context, id string, fn func(r *Requirement) error) (*Requirement, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	r, err := scanRequirement(tx.QueryRowContext(ctx,
		`SELECT `+requirementCols+` FROM requirements WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("requirement %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := fn(r); err != nil {
		return nil, err
	}

	history, err := json.Marshal(r.History)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE requirements
		 SET status = ?, clean_text = ?, classification = ?,
		     validation_notes = ?, validated_by = ?, validated_at = ?, history = ?
		 WHERE id = ?`,
		r.Status, r.CleanText, r.Classification,
		r.ValidationNotes, r.ValidatedBy, r.ValidatedAt, string(history), id,
	); err != nil {
		return nil, fmt.Errorf("update requirement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r, nil
}
