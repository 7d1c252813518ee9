package handler

import (
	"net/http"

	"github.com/talentfold/pulse/internal/service"
)

// EpisodeHandler handles observation-episode endpoints
type EpisodeHandler struct {
	episodeSvc *service.EpisodeService
}

// NewEpisodeHandler creates a new episode handler
func NewEpisodeHandler(episodeSvc *service.EpisodeService) *EpisodeHandler {
	return &EpisodeHandler{episodeSvc: episodeSvc}
}

// ScoreEpisodeRequest is the request body for scoring one occasion
type ScoreEpisodeRequest struct {
	SubjectID  string `json:"subjectId" validate:"required"`
	OccasionID string `json:"occasionId" validate:"required"`
	Transcript string `json:"transcript" validate:"required"`
}

// Score handles POST /v1/episodes
func (h *EpisodeHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreEpisodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	episode, err := h.episodeSvc.Score(r.Context(), req.SubjectID, req.OccasionID, req.Transcript)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, episode)
}

// Get handles GET /v1/episodes/{episodeId}
func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	episode, err := h.episodeSvc.Get(r.Context(), pathVar(r, "episodeId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, episode)
}

// Retry handles POST /v1/episodes/{episodeId}/retry
func (h *EpisodeHandler) Retry(w http.ResponseWriter, r *http.Request) {
	episode, err := h.episodeSvc.Retry(r.Context(), pathVar(r, "episodeId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, episode)
}

// ListBySubject handles GET /v1/subjects/{subjectId}/episodes
func (h *EpisodeHandler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	episodes, err := h.episodeSvc.ListBySubject(r.Context(), pathVar(r, "subjectId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"episodes": episodes})
}
