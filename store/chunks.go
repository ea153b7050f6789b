package store

import (
	"fmt"

	"github.com/tendertrace/rfpx/extract"
)

// InsertChunks bulk-inserts a document's chunks in one transaction,
// preserving their order via chunk_index.
func (s *Store) InsertChunks(documentID string, chunks []extract.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO chunks (document_id, chunk_index, raw_text, section, subsection, page, paragraph)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.Exec(documentID, c.Index, c.Text, c.Section, c.Subsection, c.Page, c.Paragraph); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

// ListChunks returns a document's chunks in document order.
func (s *Store) ListChunks(documentID string) ([]extract.Chunk, error) {
	rows, err := s.db.Query(
		`SELECT chunk_index, raw_text, section, subsection, page, paragraph
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []extract.Chunk
	for rows.Next() {
		var c extract.Chunk
		if err := rows.Scan(&c.Index, &c.Text, &c.Section, &c.Subsection, &c.Page, &c.Paragraph); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
