package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/talentfold/pulse/internal/cache"
	"github.com/talentfold/pulse/internal/config"
	"github.com/talentfold/pulse/internal/genai"
	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/repository"
	"github.com/talentfold/pulse/internal/scoring"
)

// narrativeSystem is the fixed instruction for the downstream characteristic
// text.
const narrativeSystem = "You write a concise professional characteristic of a person from assessment data. " +
	"Ground every statement in the scores and evidence provided; never invent facts. " +
	"Write 2-4 paragraphs of plain prose, no headings, no lists."

// NarrativeService owns the downstream narrative artifact: it computes the
// subject's context fingerprint, decides whether the stored text is stale, and
// regenerates it at most once per change. Regeneration streams tokens to
// subscribed clients as they arrive.
type NarrativeService struct {
	sessionRepo  repository.SessionRepo
	episodeRepo  repository.EpisodeRepo
	artifactRepo repository.ArtifactRepo
	profileRepo  repository.ProfileRepo
	regenCache   cache.RegenCache
	gen          Generator
	cfg          *config.AIConfig
	broadcaster  Broadcaster
	group        singleflight.Group
	log          *slog.Logger
}

// NewNarrativeService creates a new narrative service.
func NewNarrativeService(
	sessionRepo repository.SessionRepo,
	episodeRepo repository.EpisodeRepo,
	artifactRepo repository.ArtifactRepo,
	profileRepo repository.ProfileRepo,
	regenCache cache.RegenCache,
	gen Generator,
	cfg *config.AIConfig,
	log *slog.Logger,
) *NarrativeService {
	return &NarrativeService{
		sessionRepo:  sessionRepo,
		episodeRepo:  episodeRepo,
		artifactRepo: artifactRepo,
		profileRepo:  profileRepo,
		regenCache:   regenCache,
		gen:          gen,
		cfg:          cfg,
		log:          log,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket token streaming.
func (s *NarrativeService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// FingerprintResult is the subject's current context fingerprint and how it
// compares to the stored artifact.
type FingerprintResult struct {
	SubjectID string           `json:"subjectId"`
	Digest    string           `json:"digest"`
	Activity  scoring.Activity `json:"activity"`
	Stale     bool             `json:"stale"`
}

// Fingerprint computes the subject's current digest and staleness without
// triggering regeneration.
func (s *NarrativeService) Fingerprint(ctx context.Context, subjectID string) (*FingerprintResult, error) {
	activity, err := s.activity(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	digest := scoring.Fingerprint(activity)

	artifact, err := s.artifactRepo.GetBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	result := &FingerprintResult{SubjectID: subjectID, Digest: digest, Activity: activity}
	if artifact == nil {
		result.Stale = activity.SessionCount > 0 || activity.EpisodeCount > 0
	} else {
		result.Stale = scoring.Stale(artifact.Digest, digest, &artifact.UpdatedAt, activity)
	}
	return result, nil
}

// GetArtifact returns the stored narrative for a subject.
func (s *NarrativeService) GetArtifact(ctx context.Context, subjectID string) (*model.NarrativeArtifact, error) {
	artifact, err := s.artifactRepo.GetBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	if artifact == nil {
		return nil, fmt.Errorf("narrative for subject %s: %w", subjectID, model.ErrNotFound)
	}
	return artifact, nil
}

// MaybeRegenerate regenerates the subject's narrative if the fingerprint says
// the stored one is stale. Concurrent callers for the same subject collapse to
// one generation: in-process via singleflight, across processes via an
// advisory flag in Redis. An unchanged fingerprint is a no-op.
func (s *NarrativeService) MaybeRegenerate(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}

	fp, err := s.Fingerprint(ctx, subjectID)
	if err != nil {
		return err
	}
	if !fp.Stale {
		return nil
	}
	if fp.Activity.SessionCount == 0 && fp.Activity.EpisodeCount == 0 {
		return nil // nothing to write about yet
	}

	_, err, _ = s.group.Do(subjectID, func() (interface{}, error) {
		acquired, aerr := s.regenCache.TryAcquire(ctx, subjectID)
		if aerr != nil {
			s.log.Warn("regen flag unavailable, proceeding without it", "subjectId", subjectID, "error", aerr)
		} else if !acquired {
			return nil, nil // another process is already on it
		} else {
			defer func() {
				if rerr := s.regenCache.Release(context.WithoutCancel(ctx), subjectID); rerr != nil {
					s.log.Warn("failed to release regen flag", "subjectId", subjectID, "error", rerr)
				}
			}()
		}
		return nil, s.regenerate(ctx, subjectID, fp.Digest)
	})
	return err
}

// regenerate builds the prompt from the aggregate profile, the latest session
// tally, and episode evidence, streams the generation to subscribers, and
// persists the artifact under the digest it was generated from.
func (s *NarrativeService) regenerate(ctx context.Context, subjectID, digest string) error {
	prompt, err := s.buildPrompt(ctx, subjectID)
	if err != nil {
		return err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToSubject(subjectID, "narrative_started", map[string]string{"digest": digest})
	}

	resp, err := s.gen.GenerateStream(ctx, genai.Request{
		System: narrativeSystem,
		Prompt: prompt,
		Model:  s.cfg.Models.Narrative,
	}, func(token string) {
		if s.broadcaster != nil {
			s.broadcaster.BroadcastToSubject(subjectID, "narrative_token", map[string]string{"token": token})
		}
	})
	if err != nil {
		return fmt.Errorf("narrative generation failed: %w", err)
	}

	artifact := &model.NarrativeArtifact{
		SubjectID: subjectID,
		Digest:    digest,
		Text:      resp.Text,
		Model:     resp.Model,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.artifactRepo.Upsert(ctx, artifact); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToSubject(subjectID, "narrative_ready", artifact)
	}
	s.log.Info("narrative regenerated", "subjectId", subjectID, "digest", digest, "model", resp.Model)
	return nil
}

// buildPrompt assembles the structured input: decayed dimension scores, the
// most recent trait tally, and evidence fragments from recent episodes.
func (s *NarrativeService) buildPrompt(ctx context.Context, subjectID string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", subjectID)

	profile, err := s.profileRepo.GetBySubject(ctx, subjectID)
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	if profile != nil {
		b.WriteString("\nBehavioral dimensions (1-5, recency-weighted):\n")
		for _, dim := range model.Dimensions {
			if v := profile.Dimensions[dim]; v != nil {
				fmt.Fprintf(&b, "- %s: %.1f\n", dim, *v)
			}
		}
	}

	session, err := s.sessionRepo.LatestCompletedBySubject(ctx, subjectID)
	if err != nil {
		return "", fmt.Errorf("failed to get latest session: %w", err)
	}
	if session != nil && session.Metadata != nil {
		if tally, ok := session.Metadata[model.MetaTraitTally]; ok {
			if raw, jerr := json.Marshal(tally); jerr == nil {
				b.WriteString("\nLatest questionnaire trait tally:\n")
				b.Write(raw)
				b.WriteString("\n")
			}
		}
		if inv, ok := session.Metadata[model.MetaInventory]; ok {
			if raw, jerr := json.Marshal(inv); jerr == nil {
				b.WriteString("\nLatest inventory scores:\n")
				b.Write(raw)
				b.WriteString("\n")
			}
		}
	}

	episodes, err := s.episodeRepo.ListCompletedBySubject(ctx, subjectID, len(scoring.DecayWeights))
	if err != nil {
		return "", fmt.Errorf("failed to list episodes: %w", err)
	}
	if len(episodes) > 0 {
		b.WriteString("\nObserved evidence (newest first):\n")
		for _, ep := range episodes {
			for _, dim := range model.Dimensions {
				ts, ok := ep.Scores[dim]
				if !ok || ts.Evidence == nil || *ts.Evidence == "" {
					continue
				}
				fmt.Fprintf(&b, "- %s: %s\n", dim, *ts.Evidence)
			}
		}
	}
	return b.String(), nil
}

// activity gathers the persisted completion counts and timestamps the
// fingerprint is computed from.
func (s *NarrativeService) activity(ctx context.Context, subjectID string) (scoring.Activity, error) {
	sessCount, lastSess, err := s.sessionRepo.CompletedActivity(ctx, subjectID)
	if err != nil {
		return scoring.Activity{}, fmt.Errorf("failed to read session activity: %w", err)
	}
	epCount, lastEp, err := s.episodeRepo.CompletedActivity(ctx, subjectID)
	if err != nil {
		return scoring.Activity{}, fmt.Errorf("failed to read episode activity: %w", err)
	}
	return scoring.Activity{
		SessionCount:  sessCount,
		LastSessionAt: lastSess,
		EpisodeCount:  epCount,
		LastEpisodeAt: lastEp,
	}, nil
}
