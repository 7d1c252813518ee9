package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talentfold/pulse/internal/config"
	"github.com/talentfold/pulse/internal/genai"
	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/repository"
)

// episodeSystem is the fixed instruction for scoring one observation episode.
const episodeSystem = "You score workplace behavior transcripts. " +
	"For each dimension you can actually observe in the transcript, give an integer score from 1 (weak) to 5 (strong) " +
	"and a short evidence quote. Omit dimensions the transcript says nothing about; never guess. " +
	"Respond with a JSON object keyed by dimension name, each value {\"score\": n, \"evidence\": \"...\"}."

// EpisodeService runs periodic behavioral scoring: one episode per external
// occasion, scored across the twelve fixed dimensions by the text-generation
// collaborator.
type EpisodeService struct {
	episodeRepo repository.EpisodeRepo
	aggregate   *AggregateService
	narrative   *NarrativeService
	gen         Generator
	cfg         *config.AIConfig
	log         *slog.Logger
}

// NewEpisodeService creates a new episode service.
func NewEpisodeService(
	episodeRepo repository.EpisodeRepo,
	aggregate *AggregateService,
	gen Generator,
	cfg *config.AIConfig,
	log *slog.Logger,
) *EpisodeService {
	return &EpisodeService{
		episodeRepo: episodeRepo,
		aggregate:   aggregate,
		gen:         gen,
		cfg:         cfg,
		log:         log,
	}
}

// SetNarrativeService wires the narrative refresher (set late to avoid a
// constructor cycle).
func (s *EpisodeService) SetNarrativeService(n *NarrativeService) {
	s.narrative = n
}

// Score creates and scores an episode for one occasion. The occasion id is
// unique: a second episode for the same occasion fails with model.ErrConflict.
// A scoring failure is recorded on the episode (status failed plus the error
// message) rather than returned, so the caller always gets the episode back.
func (s *EpisodeService) Score(ctx context.Context, subjectID, occasionID, transcript string) (*model.ObservationEpisode, error) {
	if subjectID == "" {
		return nil, model.NewValidationError("subjectId", "must not be empty")
	}
	if occasionID == "" {
		return nil, model.NewValidationError("occasionId", "must not be empty")
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, model.NewValidationError("transcript", "must not be empty")
	}

	episode := &model.ObservationEpisode{
		ID:         uuid.New().String(),
		SubjectID:  subjectID,
		OccasionID: occasionID,
		Transcript: transcript,
		Status:     model.EpisodePending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.episodeRepo.Create(ctx, episode); err != nil {
		return nil, err
	}

	return s.process(ctx, episode)
}

// Retry re-scores a failed episode. The old row is deleted and the scoring
// redone from the stored transcript under a fresh episode id, so the
// one-episode-per-occasion invariant holds throughout.
func (s *EpisodeService) Retry(ctx context.Context, episodeID string) (*model.ObservationEpisode, error) {
	old, err := s.Get(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if old.Status != model.EpisodeFailed {
		return nil, fmt.Errorf("episode %s is %s, only failed episodes can be retried: %w", episodeID, old.Status, model.ErrConflict)
	}
	if err := s.episodeRepo.Delete(ctx, episodeID); err != nil {
		return nil, fmt.Errorf("failed to delete episode: %w", err)
	}
	return s.Score(ctx, old.SubjectID, old.OccasionID, old.Transcript)
}

// Get returns an episode by id.
func (s *EpisodeService) Get(ctx context.Context, id string) (*model.ObservationEpisode, error) {
	episode, err := s.episodeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	if episode == nil {
		return nil, fmt.Errorf("episode %s: %w", id, model.ErrNotFound)
	}
	return episode, nil
}

// ListBySubject returns all of a subject's episodes, newest first.
func (s *EpisodeService) ListBySubject(ctx context.Context, subjectID string) ([]model.ObservationEpisode, error) {
	return s.episodeRepo.ListBySubject(ctx, subjectID)
}

// process drives one episode through processing to completed or failed, then
// kicks the aggregate recompute and narrative refresh in the background.
func (s *EpisodeService) process(ctx context.Context, episode *model.ObservationEpisode) (*model.ObservationEpisode, error) {
	if err := s.episodeRepo.MarkProcessing(ctx, episode.ID); err != nil {
		return nil, err
	}
	episode.Status = model.EpisodeProcessing

	scores, err := s.scoreDimensions(ctx, episode.Transcript)
	now := time.Now().UTC()
	if err != nil {
		s.log.Warn("episode scoring failed", "episodeId", episode.ID, "occasionId", episode.OccasionID, "error", err)
		episode.Status = model.EpisodeFailed
		episode.Error = err.Error()
	} else {
		episode.Status = model.EpisodeCompleted
		episode.Scores = scores
		episode.CompletedAt = &now
	}

	if uerr := s.episodeRepo.Update(ctx, episode); uerr != nil {
		return nil, fmt.Errorf("failed to update episode: %w", uerr)
	}

	if episode.Status == model.EpisodeCompleted {
		s.kickDownstream(episode.SubjectID)
	}
	return episode, nil
}

// scoreDimensions asks the collaborator to score the transcript and parses the
// JSON reply. Unknown dimension names are dropped; out-of-range scores are
// clamped to 1..5.
func (s *EpisodeService) scoreDimensions(ctx context.Context, transcript string) (map[string]model.TraitScore, error) {
	resp, err := s.gen.Generate(ctx, genai.Request{
		System: episodeSystem,
		Prompt: "Transcript:\n" + transcript,
		Model:  s.cfg.Models.Episode,
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var parsed map[string]model.TraitScore
	if err := json.Unmarshal([]byte(stripFences(resp.Text)), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable episode scores: %w", err)
	}

	scores := make(map[string]model.TraitScore, len(model.Dimensions))
	for _, dim := range model.Dimensions {
		ts, ok := parsed[dim]
		if !ok || ts.Score == nil {
			continue
		}
		v := *ts.Score
		if v < 1 {
			v = 1
		}
		if v > 5 {
			v = 5
		}
		ts.Score = &v
		scores[dim] = ts
	}
	return scores, nil
}

// kickDownstream recomputes the aggregate profile and refreshes the narrative
// in the background. Both are best-effort: the episode already succeeded.
func (s *EpisodeService) kickDownstream(subjectID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("recovered from panic in episode downstream", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if s.aggregate != nil {
			if _, err := s.aggregate.Recompute(ctx, subjectID); err != nil {
				s.log.Warn("aggregate recompute failed", "subjectId", subjectID, "error", err)
			}
		}
		if s.narrative != nil {
			if err := s.narrative.MaybeRegenerate(ctx, subjectID); err != nil {
				s.log.Warn("narrative refresh failed", "subjectId", subjectID, "error", err)
			}
		}
	}()
}

// stripFences removes a Markdown code fence around a JSON payload, which the
// generation API sometimes adds despite the JSON response mime type.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
