package scoring

import (
	"math"
	"strings"

	"github.com/talentfold/pulse/internal/model"
)

// BucketScore is the scored result of one trait bucket of a rating battery.
type BucketScore struct {
	Bucket  string  `json:"bucket"`
	Average float64 `json:"average"`
	Level   string  `json:"level"`
	Count   int     `json:"count"`
}

// ReverseScore recodes a reverse-keyed rating: score' = (scaleMax+scaleMin) - score.
func ReverseScore(scaleMin, scaleMax int, score float64) float64 {
	return float64(scaleMax+scaleMin) - score
}

// ScoreInventory scores an interval/rating trait battery. Questions are grouped
// into trait buckets by id prefix (the part before the first underscore),
// reverse-coded questions are recoded first, and each bucket's answers are
// averaged to one decimal and banded. Questions without a rating answer are
// skipped, shrinking the bucket rather than zeroing it.
func ScoreInventory(questions []model.Question, answers []model.Answer) []BucketScore {
	byQuestion := make(map[string]model.AnswerValue, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.Value
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	var order []string

	for _, q := range questions {
		if q.Type != model.QuestionRating {
			continue
		}
		value, ok := byQuestion[q.ID]
		if !ok || value.Kind != model.ValueNumber {
			continue
		}

		score := value.Number
		if q.ReverseCoded {
			score = ReverseScore(q.ScaleMin, q.ScaleMax, score)
		}

		bucket := bucketOf(q.ID)
		if _, seen := counts[bucket]; !seen {
			order = append(order, bucket)
		}
		sums[bucket] += score
		counts[bucket]++
	}

	results := make([]BucketScore, 0, len(order))
	for _, bucket := range order {
		avg := Round1(sums[bucket] / float64(counts[bucket]))
		results = append(results, BucketScore{
			Bucket:  bucket,
			Average: avg,
			Level:   averageBand(avg),
			Count:   counts[bucket],
		})
	}
	return results
}

func bucketOf(questionID string) string {
	if idx := strings.Index(questionID, "_"); idx > 0 {
		return questionID[:idx]
	}
	return questionID
}

// averageBand maps a 1-5 battery average onto the same four qualitative labels
// used for trait counts.
func averageBand(avg float64) string {
	switch {
	case avg >= 4.0:
		return LevelStrong
	case avg >= 3.0:
		return LevelModerate
	case avg >= 2.0:
		return LevelWeak
	default:
		return LevelNone
	}
}

// Round1 rounds to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
