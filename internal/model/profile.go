package model

import "time"

// AggregateProfile is the recency-weighted rolling summary of a subject across
// completed observation episodes. One row per subject, recomputed wholesale on
// every update, never patched incrementally.
type AggregateProfile struct {
	SubjectID string `json:"subjectId" bson:"_id"`

	// Dimensions maps each tracked dimension to its decayed score rounded to
	// one decimal, or nil when the dimension was never observed.
	Dimensions map[string]*float64 `json:"dimensions" bson:"dimensions"`

	// Episodes is the number of episodes folded in, capped at the decay window.
	Episodes  int       `json:"episodes" bson:"episodes"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NarrativeArtifact is the downstream narrative text for a subject, stored with
// the context fingerprint it was generated from so staleness can be detected
// without regenerating.
type NarrativeArtifact struct {
	SubjectID string    `json:"subjectId" bson:"_id"`
	Digest    string    `json:"digest" bson:"digest"`
	Text      string    `json:"text" bson:"text"`
	Model     string    `json:"model,omitempty" bson:"model,omitempty"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
