package handler

import (
	"net/http"

	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubjectToken handles POST /v1/auth/subjects/{subjectId}/token. Operator-only;
// issues a token a client can use to watch that subject's narrative stream.
func (h *AuthHandler) SubjectToken(w http.ResponseWriter, r *http.Request) {
	subjectID := pathVar(r, "subjectId")
	if subjectID == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing subject id")
		return
	}

	token, err := h.authSvc.GenerateSubjectToken(subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token, "subjectId": subjectID})
}
