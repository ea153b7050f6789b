package store

import (
	"database/sql"
	"time"

	"github.com/tendertrace/rfpx/docpipe"
)

// Document is a document row. Status is mutated only by the ingest pipeline
// driving it uploaded → processing → completed/failed.
type Document struct {
	ID               string            `json:"id"`
	OriginalFilename string            `json:"original_filename"`
	MimeType         string            `json:"mime_type"`
	SizeBytes        int64             `json:"size_bytes"`
	Status           string            `json:"status"`
	Quality          *docpipe.Quality  `json:"quality,omitempty"`
	UploadedAt       string            `json:"uploaded_at"`
	ProcessedAt      string            `json:"processed_at,omitempty"`
}

// CreateDocument inserts a new document with status "uploaded".
func (s *Store) CreateDocument(d *Document) error {
	if d.Status == "" {
		d.Status = DocStatusUploaded
	}
	if d.UploadedAt == "" {
		d.UploadedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO documents (id, original_filename, mime_type, size_bytes, status, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.OriginalFilename, d.MimeType, d.SizeBytes, d.Status, d.UploadedAt,
	)
	return err
}

// GetDocument returns a document by ID. Returns nil, nil if not found.
func (s *Store) GetDocument(id string) (*Document, error) {
	d := &Document{}
	var processedAt sql.NullString
	var pageCount sql.NullInt64
	var charsPerPage, printable, wordlike sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT id, original_filename, mime_type, size_bytes, status,
		        page_count, chars_per_page, printable_ratio, wordlike_ratio,
		        uploaded_at, processed_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.OriginalFilename, &d.MimeType, &d.SizeBytes, &d.Status,
		&pageCount, &charsPerPage, &printable, &wordlike,
		&d.UploadedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.ProcessedAt = processedAt.String
	if pageCount.Valid {
		d.Quality = &docpipe.Quality{
			PageCount:      int(pageCount.Int64),
			CharsPerPage:   charsPerPage.Float64,
			PrintableRatio: printable.Float64,
			WordlikeRatio:  wordlike.Float64,
		}
	}
	return d, nil
}

// ListDocuments returns documents newest first. status filters when non-empty.
func (s *Store) ListDocuments(status string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, original_filename, mime_type, size_bytes, status, uploaded_at, COALESCE(processed_at, '')
	          FROM documents`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY uploaded_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OriginalFilename, &d.MimeType, &d.SizeBytes, &d.Status, &d.UploadedAt, &d.ProcessedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SetDocumentStatus updates a document's processing status.
func (s *Store) SetDocumentStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE documents SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkDocumentProcessed stamps the terminal status, processed_at and, when
// available, the PDF extraction quality metrics.
func (s *Store) MarkDocumentProcessed(id, status string, quality *docpipe.Quality) error {
	now := time.Now().UTC().Format(time.RFC3339)
	var res sql.Result
	var err error
	if quality != nil {
		res, err = s.db.Exec(
			`UPDATE documents SET status = ?, processed_at = ?,
			        page_count = ?, chars_per_page = ?, printable_ratio = ?, wordlike_ratio = ?
			 WHERE id = ?`,
			status, now, quality.PageCount, quality.CharsPerPage, quality.PrintableRatio, quality.WordlikeRatio, id,
		)
	} else {
		res, err = s.db.Exec(
			`UPDATE documents SET status = ?, processed_at = ? WHERE id = ?`,
			status, now, id,
		)
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListDocumentIDsByStatus returns document IDs in a given status, oldest
// first. Used by crash recovery at boot.
func (s *Store) ListDocumentIDsByStatus(status string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM documents WHERE status = ? ORDER BY uploaded_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
