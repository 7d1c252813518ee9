package model

import "time"

// EpisodeStatus is the lifecycle state of one behavioral scoring event.
type EpisodeStatus string

const (
	EpisodePending    EpisodeStatus = "pending"
	EpisodeProcessing EpisodeStatus = "processing"
	EpisodeCompleted  EpisodeStatus = "completed"
	EpisodeFailed     EpisodeStatus = "failed"
)

// Dimensions are the twelve fixed behavioral dimensions scored per episode and
// aggregated per subject. Order matters for deterministic output.
var Dimensions = []string{
	"communication",
	"leadership",
	"teamwork",
	"initiative",
	"adaptability",
	"problem_solving",
	"reliability",
	"empathy",
	"creativity",
	"time_management",
	"conflict_resolution",
	"strategic_thinking",
}

// TraitScore is one observed behavioral dimension: a score with an evidence
// fragment, or nothing. Nil score means "not observed", which is distinct from
// zero.
type TraitScore struct {
	Score    *int    `json:"score" bson:"score"`
	Evidence *string `json:"evidence,omitempty" bson:"evidence,omitempty"`
}

// Observed reports whether the dimension carries a score.
func (t TraitScore) Observed() bool { return t.Score != nil }

// ObservationEpisode is one periodic behavioral scoring event tied to a subject
// and an external occasion (one meeting). Unique per occasion, enforced by a
// unique index on occasionId.
type ObservationEpisode struct {
	ID         string `json:"id" bson:"_id,omitempty"`
	SubjectID  string `json:"subjectId" bson:"subjectId"`
	OccasionID string `json:"occasionId" bson:"occasionId"`

	// Transcript is the free-text observation material the scores were derived
	// from. Kept so a failed episode can be retried without re-supplying it.
	Transcript string `json:"transcript,omitempty" bson:"transcript,omitempty"`

	// Scores maps each of the twelve Dimensions to a score 1-5 with evidence,
	// or to an unobserved TraitScore.
	Scores map[string]TraitScore `json:"scores,omitempty" bson:"scores,omitempty"`

	Status EpisodeStatus `json:"status" bson:"status"`
	Error  string        `json:"error,omitempty" bson:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}
