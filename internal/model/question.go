package model

import "regexp"

// QuestionType defines the type of question
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
	QuestionShortText      QuestionType = "short_text"
	QuestionLongText       QuestionType = "long_text"
)

// Operator is a branch-rule predicate operator
type Operator string

const (
	OpEquals      Operator = "eq"
	OpNotEquals   Operator = "ne"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpAtLeast     Operator = "gte"
	OpAtMost      Operator = "lte"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// TargetEnd is the branch/default target that terminates the session.
const TargetEnd = "end"

// TagClassify marks an open-text question whose answer is sent to the external
// trait classifier during reconciliation.
const TagClassify = "classify"

// Choice is one selectable option of a choice question. Traits carries the
// deterministic trait letters this choice contributes to the tally.
type Choice struct {
	Value  string   `json:"value" bson:"value" yaml:"value"`
	Label  string   `json:"label" bson:"label" yaml:"label"`
	Traits []string `json:"traits,omitempty" bson:"traits,omitempty" yaml:"traits,omitempty"`
}

// BranchRule routes to Target when its predicate matches the just-submitted
// value. Rules are evaluated in declaration order; the first match wins.
type BranchRule struct {
	Op     Operator `json:"op" bson:"op" yaml:"op"`
	Value  string   `json:"value,omitempty" bson:"value,omitempty" yaml:"value,omitempty"`    // eq/ne/contains/not_contains
	Values []string `json:"values,omitempty" bson:"values,omitempty" yaml:"values,omitempty"` // in/not_in
	Number *float64 `json:"number,omitempty" bson:"number,omitempty" yaml:"number,omitempty"` // gt/lt/gte/lte and numeric eq/ne
	Target string   `json:"target" bson:"target" yaml:"target"`
}

// ValidationRule bounds an answer before branch resolution.
type ValidationRule struct {
	MinLength     int    `json:"minLength,omitempty" bson:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength     int    `json:"maxLength,omitempty" bson:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	MinSelections int    `json:"minSelections,omitempty" bson:"minSelections,omitempty" yaml:"minSelections,omitempty"`
	MaxSelections int    `json:"maxSelections,omitempty" bson:"maxSelections,omitempty" yaml:"maxSelections,omitempty"`
	Pattern       string `json:"pattern,omitempty" bson:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Question is one node of a navigation graph. Immutable once the graph is
// published.
type Question struct {
	ID       string       `json:"id" bson:"id" yaml:"id"`
	Type     QuestionType `json:"type" bson:"type" yaml:"type"`
	Text     string       `json:"text" bson:"text" yaml:"text"`
	Required bool         `json:"required" bson:"required" yaml:"required"`
	Section  string       `json:"section,omitempty" bson:"section,omitempty" yaml:"section,omitempty"`

	// Tags route open-text answers to specific classifiers (see TagClassify).
	Tags []string `json:"tags,omitempty" bson:"tags,omitempty" yaml:"tags,omitempty"`

	Options []Choice `json:"options,omitempty" bson:"options,omitempty" yaml:"options,omitempty"`

	// Rating scale bounds. ReverseCoded flips the score as
	// (scaleMax+scaleMin)-score before battery scoring.
	ScaleMin     int  `json:"scaleMin,omitempty" bson:"scaleMin,omitempty" yaml:"scaleMin,omitempty"`
	ScaleMax     int  `json:"scaleMax,omitempty" bson:"scaleMax,omitempty" yaml:"scaleMax,omitempty"`
	ReverseCoded bool `json:"reverseCoded,omitempty" bson:"reverseCoded,omitempty" yaml:"reverseCoded,omitempty"`

	Validation *ValidationRule `json:"validation,omitempty" bson:"validation,omitempty" yaml:"validation,omitempty"`

	// Next is the default next-question id; empty means the session ends here
	// unless a branch rule routes elsewhere.
	Next     string       `json:"next,omitempty" bson:"next,omitempty" yaml:"next,omitempty"`
	Branches []BranchRule `json:"branches,omitempty" bson:"branches,omitempty" yaml:"branches,omitempty"`
}

// HasTag reports whether the question carries the given classifier tag.
func (q *Question) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ChoiceByValue returns the option matching value, or nil.
func (q *Question) ChoiceByValue(value string) *Choice {
	for i := range q.Options {
		if q.Options[i].Value == value {
			return &q.Options[i]
		}
	}
	return nil
}

// ValidateAnswer checks value against the question's type and validation rules.
// A non-nil result means the answer is rejected and the session must not advance.
func (q *Question) ValidateAnswer(value AnswerValue) *ValidationError {
	switch q.Type {
	case QuestionSingleChoice:
		if value.Kind != ValueText {
			return NewValidationError(q.ID, "expected a single option value")
		}
		if q.Required && value.Text == "" {
			return NewValidationError(q.ID, "answer is required")
		}
		if value.Text != "" && q.ChoiceByValue(value.Text) == nil {
			return NewValidationError(q.ID, "unknown option %q", value.Text)
		}

	case QuestionMultipleChoice:
		if value.Kind != ValueSelections {
			return NewValidationError(q.ID, "expected a list of option values")
		}
		if q.Required && len(value.Selections) == 0 {
			return NewValidationError(q.ID, "answer is required")
		}
		for _, sel := range value.Selections {
			if q.ChoiceByValue(sel) == nil {
				return NewValidationError(q.ID, "unknown option %q", sel)
			}
		}
		if v := q.Validation; v != nil {
			if v.MinSelections > 0 && len(value.Selections) < v.MinSelections {
				return NewValidationError(q.ID, "select at least %d options", v.MinSelections)
			}
			if v.MaxSelections > 0 && len(value.Selections) > v.MaxSelections {
				return NewValidationError(q.ID, "select at most %d options", v.MaxSelections)
			}
		}

	case QuestionRating:
		if value.Kind != ValueNumber {
			return NewValidationError(q.ID, "expected a numeric rating")
		}
		if q.ScaleMax > q.ScaleMin {
			if value.Number < float64(q.ScaleMin) || value.Number > float64(q.ScaleMax) {
				return NewValidationError(q.ID, "rating must be between %d and %d", q.ScaleMin, q.ScaleMax)
			}
		}

	case QuestionShortText, QuestionLongText:
		if value.Kind != ValueText {
			return NewValidationError(q.ID, "expected a text answer")
		}
		if q.Required && value.Text == "" {
			return NewValidationError(q.ID, "answer is required")
		}
		if v := q.Validation; v != nil {
			if v.MinLength > 0 && len([]rune(value.Text)) < v.MinLength {
				return NewValidationError(q.ID, "answer must be at least %d characters", v.MinLength)
			}
			if v.MaxLength > 0 && len([]rune(value.Text)) > v.MaxLength {
				return NewValidationError(q.ID, "answer must be at most %d characters", v.MaxLength)
			}
			if v.Pattern != "" {
				re, err := regexp.Compile(v.Pattern)
				if err != nil {
					return NewValidationError(q.ID, "invalid validation pattern")
				}
				if !re.MatchString(value.Text) {
					return NewValidationError(q.ID, "answer does not match required format")
				}
			}
		}

	default:
		return NewValidationError(q.ID, "unknown question type %q", q.Type)
	}
	return nil
}
