package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talentfold/pulse/internal/cache"
	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/repository"
	"github.com/talentfold/pulse/internal/scoring"
)

// AggregateService maintains each subject's rolling profile: the recency-
// weighted fold of their recent completed episodes, persisted wholesale and
// cached.
type AggregateService struct {
	episodeRepo  repository.EpisodeRepo
	profileRepo  repository.ProfileRepo
	profileCache cache.ProfileCache
	log          *slog.Logger
}

// NewAggregateService creates a new aggregate service.
func NewAggregateService(
	episodeRepo repository.EpisodeRepo,
	profileRepo repository.ProfileRepo,
	profileCache cache.ProfileCache,
	log *slog.Logger,
) *AggregateService {
	return &AggregateService{
		episodeRepo:  episodeRepo,
		profileRepo:  profileRepo,
		profileCache: profileCache,
		log:          log,
	}
}

// Recompute rebuilds the subject's profile from their recent completed
// episodes and replaces the stored row. Idempotent: the same episodes produce
// the same profile, so rerunning after a partial failure is safe.
func (s *AggregateService) Recompute(ctx context.Context, subjectID string) (*model.AggregateProfile, error) {
	if subjectID == "" {
		return nil, model.NewValidationError("subjectId", "must not be empty")
	}

	episodes, err := s.episodeRepo.ListCompletedBySubject(ctx, subjectID, len(scoring.DecayWeights))
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	profile := scoring.Aggregate(subjectID, episodes)
	if err := s.profileRepo.Upsert(ctx, &profile); err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	if cerr := s.profileCache.Set(ctx, &profile); cerr != nil {
		s.log.Warn("failed to cache profile", "subjectId", subjectID, "error", cerr)
	}
	return &profile, nil
}

// Get returns the subject's profile, cache first.
func (s *AggregateService) Get(ctx context.Context, subjectID string) (*model.AggregateProfile, error) {
	cached, err := s.profileCache.Get(ctx, subjectID)
	if err != nil {
		s.log.Warn("profile cache read failed", "subjectId", subjectID, "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	profile, err := s.profileRepo.GetBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile for subject %s: %w", subjectID, model.ErrNotFound)
	}

	if cerr := s.profileCache.Set(ctx, profile); cerr != nil {
		s.log.Warn("failed to cache profile", "subjectId", subjectID, "error", cerr)
	}
	return profile, nil
}
