package store

import (
	"database/sql"
	"time"
)

// Job tracks one background extraction run for a document. The HTTP layer
// polls it for progress.
type Job struct {
	ID             string `json:"id"`
	DocumentID     string `json:"document_id"`
	Status         string `json:"status"`
	TotalItems     int    `json:"total_items"`
	ProcessedItems int    `json:"processed_items"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
	StartedAt      string `json:"started_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// CreateJob inserts a pending extraction job for a document.
func (s *Store) CreateJob(j *Job) error {
	if j.Status == "" {
		j.Status = JobPending
	}
	if j.CreatedAt == "" {
		j.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO processing_jobs (id, document_id, status, created_at) VALUES (?, ?, ?, ?)`,
		j.ID, j.DocumentID, j.Status, j.CreatedAt,
	)
	return err
}

// StartJob marks a job running and stamps started_at.
func (s *Store) StartJob(id string) error {
	res, err := s.db.Exec(
		`UPDATE processing_jobs SET status = ?, started_at = ? WHERE id = ?`,
		JobRunning, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FinishJob marks a job completed with its item counters.
func (s *Store) FinishJob(id string, totalItems int) error {
	res, err := s.db.Exec(
		`UPDATE processing_jobs SET status = ?, total_items = ?, processed_items = ?, completed_at = ?
		 WHERE id = ?`,
		JobCompleted, totalItems, totalItems, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FailJob marks a job failed with the error message.
func (s *Store) FailJob(id, message string) error {
	res, err := s.db.Exec(
		`UPDATE processing_jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		JobFailed, message, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// LatestJob returns the most recent job for a document. Returns nil, nil if none.
func (s *Store) LatestJob(documentID string) (*Job, error) {
	j := &Job{}
	var errMsg, startedAt, completedAt sql.NullString
	err := s.db.QueryRow(
		`SELECT id, document_id, status, total_items, processed_items, error_message, created_at, started_at, completed_at
		 FROM processing_jobs WHERE document_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		documentID,
	).Scan(&j.ID, &j.DocumentID, &j.Status, &j.TotalItems, &j.ProcessedItems, &errMsg, &j.CreatedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.ErrorMessage = errMsg.String
	j.StartedAt = startedAt.String
	j.CompletedAt = completedAt.String
	return j, nil
}
