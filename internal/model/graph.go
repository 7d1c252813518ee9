package model

import (
	"fmt"
	"strings"
	"time"
)

// Graph is an immutable questionnaire definition: typed questions, branch
// conditions, a start question and terminal ids. Published graphs never change;
// sessions reference them by id.
type Graph struct {
	ID        string     `json:"id" bson:"_id,omitempty" yaml:"id"`
	Title     string     `json:"title" bson:"title" yaml:"title"`
	Start     string     `json:"start" bson:"start" yaml:"start"`
	Terminals []string   `json:"terminals,omitempty" bson:"terminals,omitempty" yaml:"terminals,omitempty"`
	Questions []Question `json:"questions" bson:"questions" yaml:"questions"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt" yaml:"-"`
}

// QuestionByID returns the question with the given id, or nil.
func (g *Graph) QuestionByID(id string) *Question {
	for i := range g.Questions {
		if g.Questions[i].ID == id {
			return &g.Questions[i]
		}
	}
	return nil
}

// IsTerminal reports whether id is a declared terminal question.
func (g *Graph) IsTerminal(id string) bool {
	for _, t := range g.Terminals {
		if t == id {
			return true
		}
	}
	return false
}

// Validate rejects a malformed graph at publish time: empty question set,
// duplicate ids, missing start, dangling default/branch targets. A graph that
// fails here must never be referenced by a session.
func (g *Graph) Validate() error {
	if len(g.Questions) == 0 {
		return fmt.Errorf("graph %s has no questions", g.ID)
	}

	seen := make(map[string]bool, len(g.Questions))
	for _, q := range g.Questions {
		if q.ID == "" {
			return fmt.Errorf("graph %s contains a question with an empty id", g.ID)
		}
		if seen[q.ID] {
			return fmt.Errorf("graph %s: duplicate question id %q", g.ID, q.ID)
		}
		seen[q.ID] = true
	}

	if g.Start == "" {
		return fmt.Errorf("graph %s has no start question", g.ID)
	}
	if !seen[g.Start] {
		return fmt.Errorf("graph %s: start question %q does not exist", g.ID, g.Start)
	}

	for _, q := range g.Questions {
		if q.Next != "" && q.Next != TargetEnd && !seen[q.Next] {
			return fmt.Errorf("graph %s: question %q points at unknown next question %q", g.ID, q.ID, q.Next)
		}
		for i, rule := range q.Branches {
			if rule.Target == "" {
				return fmt.Errorf("graph %s: question %q branch %d has no target", g.ID, q.ID, i)
			}
			if rule.Target != TargetEnd && !seen[rule.Target] {
				return fmt.Errorf("graph %s: question %q branch %d points at unknown question %q", g.ID, q.ID, i, rule.Target)
			}
		}
	}

	for _, t := range g.Terminals {
		if !seen[t] {
			return fmt.Errorf("graph %s: terminal %q does not exist", g.ID, t)
		}
	}

	return nil
}

// ResolveNext applies the question's branch rules to the just-submitted value
// and returns the next question id. done is true when the session ends: a rule
// or default targeted "end", the default is absent, or the resolved target is a
// declared terminal. Rules are checked in declaration order; first match wins.
func (g *Graph) ResolveNext(q *Question, value AnswerValue) (next string, done bool) {
	target := ""
	for _, rule := range q.Branches {
		if rule.Matches(value) {
			target = rule.Target
			break
		}
	}
	if target == "" {
		target = q.Next
	}

	if target == "" || target == TargetEnd || g.IsTerminal(target) {
		return "", true
	}
	return target, false
}

// Matches evaluates the rule's predicate against a submitted value. Numeric
// operators compare against Number; eq/ne fall back to numeric comparison when
// Number is set. contains checks substring for text and membership for
// selection lists.
func (r *BranchRule) Matches(value AnswerValue) bool {
	switch r.Op {
	case OpEquals:
		if r.Number != nil {
			return value.Kind == ValueNumber && value.Number == *r.Number
		}
		return value.Kind == ValueText && value.Text == r.Value
	case OpNotEquals:
		if r.Number != nil {
			return value.Kind == ValueNumber && value.Number != *r.Number
		}
		return value.Kind == ValueText && value.Text != r.Value
	case OpGreaterThan:
		return r.Number != nil && value.Kind == ValueNumber && value.Number > *r.Number
	case OpLessThan:
		return r.Number != nil && value.Kind == ValueNumber && value.Number < *r.Number
	case OpAtLeast:
		return r.Number != nil && value.Kind == ValueNumber && value.Number >= *r.Number
	case OpAtMost:
		return r.Number != nil && value.Kind == ValueNumber && value.Number <= *r.Number
	case OpContains:
		return valueContains(value, r.Value)
	case OpNotContains:
		return !valueContains(value, r.Value)
	case OpIn:
		return valueIn(value, r.Values)
	case OpNotIn:
		return !valueIn(value, r.Values)
	default:
		return false
	}
}

func valueContains(value AnswerValue, needle string) bool {
	switch value.Kind {
	case ValueText:
		return strings.Contains(value.Text, needle)
	case ValueSelections:
		for _, sel := range value.Selections {
			if sel == needle {
				return true
			}
		}
	}
	return false
}

func valueIn(value AnswerValue, set []string) bool {
	if value.Kind != ValueText {
		return false
	}
	for _, s := range set {
		if value.Text == s {
			return true
		}
	}
	return false
}
