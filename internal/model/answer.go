package model

import (
	"fmt"
	"time"
)

// ValueKind discriminates the answer value union.
type ValueKind string

const (
	ValueText       ValueKind = "text"
	ValueSelections ValueKind = "selections"
	ValueNumber     ValueKind = "number"
)

// AnswerValue is the typed value of one answer: a string, a string list, or a
// number. Exactly one of the payload fields is meaningful for a given Kind.
type AnswerValue struct {
	Kind       ValueKind `json:"kind" bson:"kind"`
	Text       string    `json:"text,omitempty" bson:"text,omitempty"`
	Selections []string  `json:"selections,omitempty" bson:"selections,omitempty"`
	Number     float64   `json:"number,omitempty" bson:"number,omitempty"`
}

// TextValue builds a text answer value.
func TextValue(s string) AnswerValue {
	return AnswerValue{Kind: ValueText, Text: s}
}

// SelectionsValue builds a multi-choice answer value.
func SelectionsValue(vals ...string) AnswerValue {
	return AnswerValue{Kind: ValueSelections, Selections: vals}
}

// NumberValue builds a numeric answer value.
func NumberValue(n float64) AnswerValue {
	return AnswerValue{Kind: ValueNumber, Number: n}
}

// ParseValue coerces a decoded JSON value (string, []interface{}, or float64)
// into an AnswerValue.
func ParseValue(raw interface{}) (AnswerValue, error) {
	switch v := raw.(type) {
	case string:
		return TextValue(v), nil
	case float64:
		return NumberValue(v), nil
	case int:
		return NumberValue(float64(v)), nil
	case []interface{}:
		sels := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return AnswerValue{}, fmt.Errorf("selection list must contain only strings, got %T", item)
			}
			sels = append(sels, s)
		}
		return SelectionsValue(sels...), nil
	case []string:
		return SelectionsValue(v...), nil
	default:
		return AnswerValue{}, fmt.Errorf("unsupported answer value type %T", raw)
	}
}

// Answer is one submitted answer within a session. One answer per question id;
// resubmission before completion overwrites the previous value.
type Answer struct {
	QuestionID  string      `json:"questionId" bson:"questionId"`
	Value       AnswerValue `json:"value" bson:"value"`
	SubmittedAt time.Time   `json:"submittedAt" bson:"submittedAt"`
}
