package handler

import (
	"net/http"

	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/service"
)

// SessionHandler handles assessment session endpoints
type SessionHandler struct {
	sessionSvc *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// StartSessionRequest is the request body for starting a session
type StartSessionRequest struct {
	GraphID   string `json:"graphId" validate:"required"`
	SubjectID string `json:"subjectId"`
	ContextID string `json:"contextId"`
}

// SubmitAnswerRequest is the request body for submitting one answer. Value is
// a string, a string list, or a number depending on the question type.
type SubmitAnswerRequest struct {
	QuestionID string      `json:"questionId" validate:"required"`
	Value      interface{} `json:"value" validate:"required"`
}

// Start handles POST /v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.sessionSvc.Start(r.Context(), req.GraphID, req.SubjectID, req.ContextID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Get handles GET /v1/sessions/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionSvc.Get(r.Context(), pathVar(r, "sessionId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Submit handles POST /v1/sessions/{sessionId}/answers
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	value, err := model.ParseValue(req.Value)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result, err := h.sessionSvc.Submit(r.Context(), pathVar(r, "sessionId"), req.QuestionID, value)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Resume handles GET /v1/sessions/{sessionId}/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessionSvc.Resume(r.Context(), pathVar(r, "sessionId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ForceComplete handles POST /v1/sessions/{sessionId}/complete
func (h *SessionHandler) ForceComplete(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionSvc.ForceComplete(r.Context(), pathVar(r, "sessionId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Sweep handles POST /v1/sessions/sweep (operator only)
func (h *SessionHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessionSvc.SweepAbandoned(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"abandoned": n})
}
