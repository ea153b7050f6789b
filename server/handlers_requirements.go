package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tendertrace/rfpx/kit"
	"github.com/tendertrace/rfpx/review"
	"github.com/tendertrace/rfpx/store"
)

// Confidence tier boundaries. The core reports raw [0,1] scores; bucketing
// into low/medium/high is this layer's policy (see DESIGN.md).
const (
	tierLowMax    = 0.3 // low:    [0, 0.3)
	tierMediumMax = 0.7 // medium: [0.3, 0.7), high: [0.7, 1]
)

func tierOf(confidence float64) string {
	switch {
	case confidence < tierLowMax:
		return "low"
	case confidence < tierMediumMax:
		return "medium"
	default:
		return "high"
	}
}

// tierBounds translates a tier name into confidence bounds for filtering.
func tierBounds(tier string) (min, max float64, ok bool) {
	switch tier {
	case "low":
		return 0, tierLowMax, true
	case "medium":
		return tierLowMax, tierMediumMax, true
	case "high":
		return tierMediumMax, 0, true // 0 max = unbounded
	}
	return 0, 0, false
}

// requirementView decorates a requirement with its derived confidence tier.
type requirementView struct {
	*store.Requirement
	ConfidenceTier string `json:"confidence_tier"`
}

func tiered(reqs []*store.Requirement) []requirementView {
	views := make([]requirementView, len(reqs))
	for i, r := range reqs {
		views[i] = requirementView{Requirement: r, ConfidenceTier: tierOf(r.Confidence)}
	}
	return views
}

func (s *Server) handleDocumentRequirements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	reqs, err := s.store.ListRequirements(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"requirements": tiered(reqs)})
}

// handlePendingRequirements serves the review queue: requirements awaiting
// validation, sorted by recency or confidence, filterable by classification
// and confidence tier.
func (s *Server) handlePendingRequirements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.PendingFilter{
		Classification: q.Get("classification"),
		SortBy:         q.Get("sort"),
		Ascending:      q.Get("order") == "asc",
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	if tier := q.Get("tier"); tier != "" {
		min, max, ok := tierBounds(tier)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown tier: "+tier)
			return
		}
		f.MinConfidence, f.MaxConfidence = min, max
	}

	reqs, err := s.store.PendingRequirements(r.Context(), f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"requirements": tiered(reqs)})
}

func (s *Server) handleGetRequirement(w http.ResponseWriter, r *http.Request) {
	req, err := s.store.GetRequirement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "requirement not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, requirementView{Requirement: req, ConfidenceTier: tierOf(req.Confidence)})
}

// handleValidate applies a reviewer decision (approve / correct / flag).
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body review.Request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "decode body: "+err.Error())
		return
	}
	if body.Actor == "" {
		body.Actor = kit.GetActor(r.Context())
	}

	id := chi.URLParam(r, "id")
	updated, err := review.Apply(r.Context(), s.store, id, body)
	if err != nil {
		switch {
		case errors.Is(err, review.ErrInvalidAction):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "requirement not found")
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.logger.Info("requirement validated",
		"requirement_id", id, "action", body.Action, "actor", body.Actor)
	s.writeJSON(w, http.StatusOK, requirementView{Requirement: updated, ConfidenceTier: tierOf(updated.Confidence)})
}
