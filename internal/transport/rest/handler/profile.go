package handler

import (
	"net/http"

	"github.com/talentfold/pulse/internal/service"
)

// ProfileHandler handles aggregate-profile and narrative endpoints
type ProfileHandler struct {
	aggregateSvc *service.AggregateService
	narrativeSvc *service.NarrativeService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(aggregateSvc *service.AggregateService, narrativeSvc *service.NarrativeService) *ProfileHandler {
	return &ProfileHandler{
		aggregateSvc: aggregateSvc,
		narrativeSvc: narrativeSvc,
	}
}

// Get handles GET /v1/subjects/{subjectId}/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.aggregateSvc.Get(r.Context(), pathVar(r, "subjectId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Recompute handles POST /v1/subjects/{subjectId}/profile/recompute
func (h *ProfileHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	profile, err := h.aggregateSvc.Recompute(r.Context(), pathVar(r, "subjectId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Fingerprint handles GET /v1/subjects/{subjectId}/fingerprint
func (h *ProfileHandler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	result, err := h.narrativeSvc.Fingerprint(r.Context(), pathVar(r, "subjectId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Narrative handles GET /v1/subjects/{subjectId}/narrative
func (h *ProfileHandler) Narrative(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.narrativeSvc.GetArtifact(r.Context(), pathVar(r, "subjectId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// Regenerate handles POST /v1/subjects/{subjectId}/narrative/regenerate. It
// checks the fingerprint first, so an unchanged subject is a cheap no-op.
func (h *ProfileHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	subjectID := pathVar(r, "subjectId")
	if err := h.narrativeSvc.MaybeRegenerate(r.Context(), subjectID); err != nil {
		writeServiceError(w, err)
		return
	}

	fp, err := h.narrativeSvc.Fingerprint(r.Context(), subjectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fp)
}
