package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentfold/pulse/internal/model"
)

func intPtr(n int) *int { return &n }

func episodeAt(age time.Duration, scores map[string]int) model.ObservationEpisode {
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(-age)
	ep := model.ObservationEpisode{
		ID:          fmt.Sprintf("ep-%d", age/time.Hour),
		SubjectID:   "subj",
		Status:      model.EpisodeCompleted,
		CompletedAt: &completed,
		Scores:      map[string]model.TraitScore{},
	}
	for dim, s := range scores {
		ep.Scores[dim] = model.TraitScore{Score: intPtr(s)}
	}
	return ep
}

func TestAggregateRenormalizesOverObservedWeights(t *testing.T) {
	// teamwork observed only in the two newest episodes:
	// (5*0.50 + 5*0.25) / (0.50 + 0.25) = 5.0
	episodes := []model.ObservationEpisode{
		episodeAt(1*time.Hour, map[string]int{"teamwork": 5}),
		episodeAt(2*time.Hour, map[string]int{"teamwork": 5}),
		episodeAt(3*time.Hour, map[string]int{"communication": 3}),
	}

	profile := Aggregate("subj", episodes)
	require.NotNil(t, profile.Dimensions["teamwork"])
	assert.Equal(t, 5.0, *profile.Dimensions["teamwork"])

	// communication only in the third-newest episode: its own weight cancels.
	require.NotNil(t, profile.Dimensions["communication"])
	assert.Equal(t, 3.0, *profile.Dimensions["communication"])
}

func TestAggregateWeighting(t *testing.T) {
	episodes := []model.ObservationEpisode{
		episodeAt(1*time.Hour, map[string]int{"leadership": 5}),
		episodeAt(2*time.Hour, map[string]int{"leadership": 1}),
	}
	profile := Aggregate("subj", episodes)
	// (5*0.50 + 1*0.25) / 0.75 = 3.666... -> 3.7
	require.NotNil(t, profile.Dimensions["leadership"])
	assert.Equal(t, 3.7, *profile.Dimensions["leadership"])
}

func TestAggregateUnobservedStaysNil(t *testing.T) {
	episodes := []model.ObservationEpisode{
		episodeAt(1*time.Hour, map[string]int{"empathy": 4}),
	}
	profile := Aggregate("subj", episodes)

	require.Contains(t, profile.Dimensions, "creativity")
	assert.Nil(t, profile.Dimensions["creativity"], "never observed must stay nil, not zero")
}

func TestAggregateWindowCap(t *testing.T) {
	var episodes []model.ObservationEpisode
	for i := 1; i <= 10; i++ {
		episodes = append(episodes, episodeAt(time.Duration(i)*time.Hour, map[string]int{"initiative": 3}))
	}
	profile := Aggregate("subj", episodes)
	assert.Equal(t, len(DecayWeights), profile.Episodes)
}

func TestAggregateIgnoresNonCompleted(t *testing.T) {
	pending := episodeAt(1*time.Hour, map[string]int{"teamwork": 1})
	pending.Status = model.EpisodePending
	failed := episodeAt(2*time.Hour, map[string]int{"teamwork": 1})
	failed.Status = model.EpisodeFailed

	profile := Aggregate("subj", []model.ObservationEpisode{
		pending, failed,
		episodeAt(3*time.Hour, map[string]int{"teamwork": 4}),
	})
	assert.Equal(t, 1, profile.Episodes)
	require.NotNil(t, profile.Dimensions["teamwork"])
	assert.Equal(t, 4.0, *profile.Dimensions["teamwork"])
}

func TestAggregateIdempotent(t *testing.T) {
	episodes := []model.ObservationEpisode{
		episodeAt(1*time.Hour, map[string]int{"teamwork": 5, "empathy": 2}),
		episodeAt(5*time.Hour, map[string]int{"teamwork": 3}),
	}
	first := Aggregate("subj", episodes)
	second := Aggregate("subj", episodes)
	assert.Equal(t, first, second, "same episodes must produce an identical profile")
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestAggregateNoEpisodes(t *testing.T) {
	profile := Aggregate("subj", nil)
	assert.Equal(t, 0, profile.Episodes)
	assert.True(t, profile.UpdatedAt.IsZero())
	for _, dim := range model.Dimensions {
		assert.Nil(t, profile.Dimensions[dim])
	}
}
