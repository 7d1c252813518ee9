package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentfold/pulse/internal/model"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

// completedEpisode seeds a fake repo with an already-scored episode.
func completedEpisode(id, subjectID string, completedAt time.Time, scores map[string]int) *model.ObservationEpisode {
	ep := &model.ObservationEpisode{
		ID:          id,
		SubjectID:   subjectID,
		OccasionID:  "occ-" + id,
		Status:      model.EpisodeCompleted,
		CreatedAt:   completedAt.Add(-time.Minute),
		CompletedAt: &completedAt,
		Scores:      make(map[string]model.TraitScore, len(scores)),
	}
	for dim, score := range scores {
		ep.Scores[dim] = model.TraitScore{Score: intPtr(score), Evidence: strPtr("observed " + dim)}
	}
	return ep
}

func TestRecomputeProfile(t *testing.T) {
	episodes := newFakeEpisodeRepo()
	profiles := newFakeProfileRepo()
	profileCache := newFakeProfileCache()
	svc := NewAggregateService(episodes, profiles, profileCache, testLogger())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, episodes.Create(ctx, completedEpisode("ep-1", "subj-1", base.Add(-48*time.Hour), map[string]int{"teamwork": 5})))
	require.NoError(t, episodes.Create(ctx, completedEpisode("ep-2", "subj-1", base, map[string]int{"teamwork": 5, "leadership": 3})))

	profile, err := svc.Recompute(ctx, "subj-1")
	require.NoError(t, err)

	assert.Equal(t, "subj-1", profile.SubjectID)
	assert.Equal(t, 2, profile.Episodes)
	require.NotNil(t, profile.Dimensions["teamwork"])
	assert.Equal(t, 5.0, *profile.Dimensions["teamwork"])
	require.NotNil(t, profile.Dimensions["leadership"])
	assert.Nil(t, profile.Dimensions["communication"], "unobserved dimensions stay nil")

	// Persisted and cached in the same pass.
	stored, _ := profiles.GetBySubject(ctx, "subj-1")
	require.NotNil(t, stored)
	cached, _ := profileCache.Get(ctx, "subj-1")
	require.NotNil(t, cached)
}

func TestRecomputeEmptySubject(t *testing.T) {
	svc := NewAggregateService(newFakeEpisodeRepo(), newFakeProfileRepo(), newFakeProfileCache(), testLogger())

	var verr *model.ValidationError
	_, err := svc.Recompute(context.Background(), "")
	assert.ErrorAs(t, err, &verr)
}

func TestGetProfileCacheFallback(t *testing.T) {
	profiles := newFakeProfileRepo()
	profileCache := newFakeProfileCache()
	svc := NewAggregateService(newFakeEpisodeRepo(), profiles, profileCache, testLogger())
	ctx := context.Background()

	require.NoError(t, profiles.Upsert(ctx, &model.AggregateProfile{SubjectID: "subj-1", Episodes: 1}))

	got, err := svc.Get(ctx, "subj-1")
	require.NoError(t, err)
	assert.Equal(t, "subj-1", got.SubjectID)

	// Miss re-populated the cache.
	cached, _ := profileCache.Get(ctx, "subj-1")
	require.NotNil(t, cached)

	_, err = svc.Get(ctx, "nobody")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
