package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the original uploaded bytes on disk, keyed by document ID.
// It is the narrow slice of object storage the pipeline needs: save on
// upload, read back for processing.
type FileStore struct {
	dir string
}

// NewFileStore creates the blob directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes a document's original bytes. Write goes to a temp file first
// so a crash mid-write never leaves a truncated blob under the final name.
func (f *FileStore) Save(documentID string, data []byte) error {
	if err := validateID(documentID); err != nil {
		return err
	}
	tmp := filepath.Join(f.dir, documentID+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(f.dir, documentID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize blob: %w", err)
	}
	return nil
}

// Read returns a document's original bytes.
func (f *FileStore) Read(documentID string) ([]byte, error) {
	if err := validateID(documentID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(f.dir, documentID))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Remove deletes a document's blob. Missing blobs are not an error.
func (f *FileStore) Remove(documentID string) error {
	if err := validateID(documentID); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(f.dir, documentID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// validateID guards against path traversal: document IDs are used in file
// paths and must stay within the blob directory.
func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid document ID %q", id)
	}
	return nil
}
