package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/talentfold/pulse/internal/model"
)

// validate checks request DTO struct tags.
var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the error taxonomy onto HTTP statuses: validation
// failures are 422, missing resources 404, state conflicts 409, collaborator
// failures 502, anything else 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if errors.Is(err, model.ErrConflict) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	var eerr *model.ExternalError
	if errors.As(err, &eerr) {
		writeError(w, http.StatusBadGateway, eerr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewValidationError("body", "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return model.NewValidationError("body", err.Error())
	}
	return nil
}
