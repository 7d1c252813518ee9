package handler

import (
	"net/http"

	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/service"
)

// GraphHandler handles navigation-graph endpoints
type GraphHandler struct {
	graphSvc *service.GraphService
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(graphSvc *service.GraphService) *GraphHandler {
	return &GraphHandler{graphSvc: graphSvc}
}

// Publish handles POST /v1/graphs
func (h *GraphHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var graph model.Graph
	if err := decodeBody(r, &graph); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.graphSvc.Publish(r.Context(), &graph); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"graphId": graph.ID})
}

// Get handles GET /v1/graphs/{graphId}
func (h *GraphHandler) Get(w http.ResponseWriter, r *http.Request) {
	graph, err := h.graphSvc.Get(r.Context(), pathVar(r, "graphId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// List handles GET /v1/graphs
func (h *GraphHandler) List(w http.ResponseWriter, r *http.Request) {
	graphs, err := h.graphSvc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"graphs": graphs})
}
