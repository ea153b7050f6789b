package store

import (
	"context"
	"time"

	"github.com/tendertrace/rfpx/extract"
	"github.com/tendertrace/rfpx/idgen"
)

// CrossReference links a requirement to another document location it mentions.
type CrossReference struct {
	ID            string `json:"id"`
	RequirementID string `json:"requirement_id"`
	RefType       string `json:"ref_type"`
	RefText       string `json:"ref_text"`
	RefTarget     string `json:"ref_target"`
	CreatedAt     string `json:"created_at"`
}

// InsertCrossRefs persists detected cross-references for one requirement.
func (s *Store) InsertCrossRefs(requirementID string, refs []extract.CrossRef, newID idgen.Generator) error {
	if len(refs) == 0 {
		return nil
	}
	if newID == nil {
		newID = idgen.Default
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, ref := range refs {
		if _, err := tx.Exec(
			`INSERT INTO cross_references (id, requirement_id, ref_type, ref_text, ref_target, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			newID(), requirementID, ref.Type, ref.Text, ref.Target, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MatrixRow is one compliance matrix entry: a requirement plus the
// cross-references found in its text.
type MatrixRow struct {
	Requirement *Requirement     `json:"requirement"`
	CrossRefs   []CrossReference `json:"cross_references,omitempty"`
}

// ComplianceMatrix returns every requirement of a document ordered by
// (source_page, source_paragraph), each annotated with its cross-references.
func (s *Store) ComplianceMatrix(ctx context.Context, documentID string) ([]MatrixRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requirementCols+` FROM requirements
		 WHERE document_id = ?
		 ORDER BY source_page, source_paragraph, rowid`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs, err := collectRequirements(rows)
	if err != nil {
		return nil, err
	}

	matrix := make([]MatrixRow, 0, len(reqs))
	for _, r := range reqs {
		refs, err := s.listCrossRefs(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		matrix = append(matrix, MatrixRow{Requirement: r, CrossRefs: refs})
	}
	return matrix, nil
}

func (s *Store) listCrossRefs(ctx context.Context, requirementID string) ([]CrossReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requirement_id, ref_type, ref_text, ref_target, created_at
		 FROM cross_references WHERE requirement_id = ? ORDER BY rowid`, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []CrossReference
	for rows.Next() {
		var ref CrossReference
		if err := rows.Scan(&ref.ID, &ref.RequirementID, &ref.RefType, &ref.RefText, &ref.RefTarget, &ref.CreatedAt); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Stats summarises a document's requirements for the dashboard.
type Stats struct {
	Total       int `json:"total"`
	Performance int `json:"performance"`
	Compliance  int `json:"compliance"`
	Deliverable int `json:"deliverable"`
	Validated   int `json:"validated"`
}

// DocumentStats counts a document's requirements by classification and how
// many a human has validated.
func (s *Store) DocumentStats(ctx context.Context, documentID string) (*Stats, error) {
	st := &Stats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(classification = ?), 0),
		        COALESCE(SUM(classification = ?), 0),
		        COALESCE(SUM(classification = ?), 0),
		        COALESCE(SUM(status = ?), 0)
		 FROM requirements WHERE document_id = ?`,
		string(extract.CategoryPerformance), string(extract.CategoryCompliance),
		string(extract.CategoryDeliverable), StatusHumanValidated, documentID,
	).Scan(&st.Total, &st.Performance, &st.Compliance, &st.Deliverable, &st.Validated)
	if err != nil {
		return nil, err
	}
	return st, nil
}
