// Package review is the validation state machine: it applies human reviewer
// decisions (approve / correct / flag) to persisted requirements while
// preserving an append-only audit history.
//
// Transitions from ai_extracted (and from any human state, since reviewers
// may re-act on a flagged or validated item):
//
//	approve → human_validated
//	correct → human_corrected
//	flag    → flagged_for_review
//
// Every successful transition appends exactly one history snapshot of the
// pre-transition state before any field is overwritten. A failed transition
// leaves the requirement byte-for-byte unchanged.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tendertrace/rfpx/store"
)

// Validation actions. Anything else is rejected with ErrInvalidAction.
const (
	ActionApprove = "approve"
	ActionCorrect = "correct"
	ActionFlag    = "flag"
)

// ErrInvalidAction is returned for an action outside {approve, correct, flag}.
// The requirement is left unmutated and no history entry is appended.
var ErrInvalidAction = errors.New("review: invalid action")

// Request is one reviewer decision.
type Request struct {
	Action         string `json:"action"`
	Actor          string `json:"actor,omitempty"`
	CleanText      string `json:"clean_text,omitempty"`      // ignored for flag
	Classification string `json:"classification,omitempty"`  // ignored for flag
	Notes          string `json:"notes,omitempty"`
}

// now is swappable in tests for deterministic timestamps.
var now = time.Now

// Apply runs one validation transition on the requirement identified by id.
// It is atomic per requirement: concurrent Apply calls on the same id
// serialize through the store's transactional boundary, so history entries
// are strictly ordered and no update is lost. Returns the updated
// requirement, or ErrInvalidAction / store.ErrNotFound.
func Apply(ctx context.Context, st *store.Store, id string, req Request) (*store.Requirement, error) {
	// Reject bad actions before touching the record.
	switch req.Action {
	case ActionApprove, ActionCorrect, ActionFlag:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	actor := req.Actor
	if actor == "" {
		actor = "system"
	}

	return st.Transition(ctx, id, func(r *store.Requirement) error {
		ts := now().UTC().Format(time.RFC3339)

		// Snapshot the pre-transition state before any overwrite.
		r.History = append(r.History, store.HistoryEntry{
			Timestamp:              ts,
			Action:                 req.Action,
			Actor:                  actor,
			PreviousStatus:         r.Status,
			PreviousCleanText:      r.CleanText,
			PreviousClassification: r.Classification,
			Notes:                  req.Notes,
		})

		switch req.Action {
		case ActionApprove:
			r.Status = store.StatusHumanValidated
			applyOverwrites(r, req)
		case ActionCorrect:
			r.Status = store.StatusHumanCorrected
			applyOverwrites(r, req)
		case ActionFlag:
			// Flag never overwrites text or classification, even when supplied.
			r.Status = store.StatusFlaggedForReview
		}

		if req.Notes != "" {
			r.ValidationNotes = req.Notes
		}
		r.ValidatedBy = actor
		r.ValidatedAt = ts
		return nil
	})
}

func applyOverwrites(r *store.Requirement, req Request) {
	if req.CleanText != "" {
		r.CleanText = req.CleanText
	}
	if req.Classification != "" {
		r.Classification = req.Classification
	}
}
