package model

import "time"

// SessionStatus is the lifecycle state of a respondent's run through a graph.
// Transitions are monotonic: started -> in_progress -> {completed | abandoned}.
type SessionStatus string

const (
	SessionStarted    SessionStatus = "started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// Metadata keys written by reconciliation.
const (
	MetaTraitTally    = "traitTally"
	MetaInventory     = "inventory"
	MetaClassifier    = "classifierLabels"
	MetaNarrative     = "narrative"
)

// Session tracks one respondent's progress through a navigation graph. The
// database row is the source of truth; concurrent submits are serialized by an
// optimistic status check on update.
type Session struct {
	ID        string `json:"id" bson:"_id,omitempty"`
	GraphID   string `json:"graphId" bson:"graphId"`
	SubjectID string `json:"subjectId,omitempty" bson:"subjectId,omitempty"`

	// ContextID links the session to an external occasion such as a meeting.
	ContextID string `json:"contextId,omitempty" bson:"contextId,omitempty"`

	Answers []Answer      `json:"answers" bson:"answers"`
	Status  SessionStatus `json:"status" bson:"status"`

	// Current is the current-question pointer. Empty iff the session is
	// completed or abandoned.
	Current string `json:"current,omitempty" bson:"current,omitempty"`

	StartedAt      time.Time  `json:"startedAt" bson:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	LastActivityAt time.Time  `json:"lastActivityAt" bson:"lastActivityAt"`

	// Metadata holds derived results: trait tallies, classifier outputs,
	// narrative text.
	Metadata map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Active reports whether the session can still accept answers.
func (s *Session) Active() bool {
	return s.Status == SessionStarted || s.Status == SessionInProgress
}

// AnswerFor returns the recorded answer for a question id, or nil.
func (s *Session) AnswerFor(questionID string) *Answer {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return &s.Answers[i]
		}
	}
	return nil
}

// PutAnswer appends the answer, or overwrites an earlier answer to the same
// question (latest wins before completion).
func (s *Session) PutAnswer(a Answer) {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == a.QuestionID {
			s.Answers[i] = a
			return
		}
	}
	s.Answers = append(s.Answers, a)
}
