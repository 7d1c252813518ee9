package scoring

import (
	"sort"
	"time"

	"github.com/talentfold/pulse/internal/model"
)

// DecayWeights is the fixed recency weight vector, newest episode first. Its
// length is the rolling window: only the most recent len(DecayWeights)
// completed episodes are folded in.
var DecayWeights = []float64{0.50, 0.25, 0.13, 0.06, 0.03, 0.015}

// Aggregate recomputes a subject's rolling profile from completed episodes.
// For each dimension independently it sums score*weight over the episodes where
// the dimension was observed and divides by the sum of weights actually used,
// so missing data in older episodes re-normalizes instead of dragging the score
// down. A dimension never observed in the window stays nil, which is distinct
// from zero. The result replaces the stored row wholesale; recomputing with the
// same inputs yields an identical profile, UpdatedAt included, because the
// timestamp is taken from the newest episode folded in rather than the clock.
func Aggregate(subjectID string, episodes []model.ObservationEpisode) model.AggregateProfile {
	recent := make([]model.ObservationEpisode, 0, len(episodes))
	for _, ep := range episodes {
		if ep.Status == model.EpisodeCompleted {
			recent = append(recent, ep)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		return completedAt(recent[i]).After(completedAt(recent[j]))
	})
	if len(recent) > len(DecayWeights) {
		recent = recent[:len(DecayWeights)]
	}

	dims := make(map[string]*float64, len(model.Dimensions))
	for _, dim := range model.Dimensions {
		var weighted, used float64
		for i, ep := range recent {
			score, ok := ep.Scores[dim]
			if !ok || !score.Observed() {
				continue
			}
			weighted += float64(*score.Score) * DecayWeights[i]
			used += DecayWeights[i]
		}
		if used == 0 {
			dims[dim] = nil
			continue
		}
		v := Round1(weighted / used)
		dims[dim] = &v
	}

	var updated time.Time
	if len(recent) > 0 {
		updated = completedAt(recent[0])
	}
	return model.AggregateProfile{
		SubjectID:  subjectID,
		Dimensions: dims,
		Episodes:   len(recent),
		UpdatedAt:  updated,
	}
}

func completedAt(ep model.ObservationEpisode) time.Time {
	if ep.CompletedAt != nil {
		return *ep.CompletedAt
	}
	return ep.CreatedAt
}
