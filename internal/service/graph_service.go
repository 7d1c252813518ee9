package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/repository"
)

// GraphService publishes and serves navigation graphs. Graphs are immutable:
// publishing validates the whole graph up front and a duplicate id is a
// conflict, never an overwrite.
type GraphService struct {
	graphRepo repository.GraphRepo
	log       *slog.Logger
}

// NewGraphService creates a new graph service.
func NewGraphService(graphRepo repository.GraphRepo, log *slog.Logger) *GraphService {
	return &GraphService{graphRepo: graphRepo, log: log}
}

// Publish validates and stores a graph. An empty id gets a generated one.
func (s *GraphService) Publish(ctx context.Context, graph *model.Graph) error {
	if graph.ID == "" {
		graph.ID = uuid.New().String()
	}
	if err := graph.Validate(); err != nil {
		return model.NewValidationError("graph", err.Error())
	}
	graph.CreatedAt = time.Now().UTC()

	if err := s.graphRepo.Create(ctx, graph); err != nil {
		return err
	}
	s.log.Info("graph published", "graphId", graph.ID, "questions", len(graph.Questions))
	return nil
}

// Get returns a graph by id.
func (s *GraphService) Get(ctx context.Context, id string) (*model.Graph, error) {
	graph, err := s.graphRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	if graph == nil {
		return nil, fmt.Errorf("graph %s: %w", id, model.ErrNotFound)
	}
	return graph, nil
}

// List returns all published graphs.
func (s *GraphService) List(ctx context.Context) ([]*model.Graph, error) {
	return s.graphRepo.List(ctx)
}

// ParseGraphYAML decodes a YAML graph definition. Validation happens at
// publish time, not here.
func ParseGraphYAML(data []byte) (*model.Graph, error) {
	var graph model.Graph
	if err := yaml.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("invalid graph yaml: %w", err)
	}
	return &graph, nil
}
