package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentfold/pulse/internal/genai"
	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/scoring"
)

func reconcileGraph() *model.Graph {
	return &model.Graph{
		ID:    "recon-test",
		Start: "style",
		Questions: []model.Question{
			{
				ID: "style", Type: model.QuestionSingleChoice,
				Tags: []string{model.TagClassify},
				Options: []model.Choice{
					{Value: "direct", Traits: []string{"D"}},
					{Value: "warm", Traits: []string{"I"}},
				},
				Next: "conflict",
			},
			{
				ID: "conflict", Type: model.QuestionLongText,
				Tags: []string{model.TagClassify},
				Next: "comm_1",
			},
			{ID: "comm_1", Type: model.QuestionRating, ScaleMin: 1, ScaleMax: 5, Next: "comm_2"},
			{ID: "comm_2", Type: model.QuestionRating, ScaleMin: 1, ScaleMax: 5, ReverseCoded: true, Next: "notes"},
			{ID: "notes", Type: model.QuestionLongText, Next: "end"},
		},
	}
}

func completedSession(answers ...model.Answer) *model.Session {
	now := time.Now().UTC()
	return &model.Session{
		ID:          "sess-1",
		GraphID:     "recon-test",
		SubjectID:   "subj-1",
		Answers:     answers,
		Status:      model.SessionCompleted,
		CompletedAt: &now,
	}
}

func answerText(questionID, text string) model.Answer {
	return model.Answer{QuestionID: questionID, Value: model.TextValue(text)}
}

func answerNumber(questionID string, n float64) model.Answer {
	return model.Answer{QuestionID: questionID, Value: model.NumberValue(n)}
}

func TestReconcileExplicitBeatsClassifier(t *testing.T) {
	// The classifier insists on S; the selected choice carries D. Explicit wins.
	gen := &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		return &genai.Response{Text: "S", Model: "fake"}, nil
	}}
	svc := NewReconcileService(gen, testAIConfig(), testLogger())

	session := completedSession(answerText("style", "direct"))
	result := svc.Reconcile(context.Background(), reconcileGraph(), session)

	require.NotNil(t, result.Tally)
	assert.Equal(t, map[string]int{"D": 1}, result.Tally.Totals)
	require.Len(t, result.Tally.Signals, 1)
	assert.Equal(t, scoring.SourceExplicit, result.Tally.Signals[0].Source)

	// The classifier did run and its label is reported, it just lost precedence.
	assert.Equal(t, map[string]string{"style": "S"}, result.ClassifierLabels)
}

func TestReconcileClassifierLabelsTaggedText(t *testing.T) {
	gen := &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		return &genai.Response{Text: "The answer is: C", Model: "fake"}, nil
	}}
	svc := NewReconcileService(gen, testAIConfig(), testLogger())

	session := completedSession(answerText("conflict", "I double-check everything before acting"))
	result := svc.Reconcile(context.Background(), reconcileGraph(), session)

	require.NotNil(t, result.Tally)
	assert.Equal(t, map[string]int{"C": 1}, result.Tally.Totals)
	assert.Equal(t, scoring.SourceClassifier, result.Tally.Signals[0].Source)
	assert.Equal(t, map[string]string{"conflict": "C"}, result.ClassifierLabels)
}

func TestReconcileFallsBackOnClassifierError(t *testing.T) {
	gen := &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		return nil, errors.New("upstream timeout")
	}}
	svc := NewReconcileService(gen, testAIConfig(), testLogger())

	session := completedSession(answerText("conflict", "my coworkers call me a D through and through"))
	result := svc.Reconcile(context.Background(), reconcileGraph(), session)

	require.NotNil(t, result.Tally)
	assert.Equal(t, map[string]int{"D": 1}, result.Tally.Totals)
	assert.Equal(t, scoring.SourceFallback, result.Tally.Signals[0].Source)
	assert.Empty(t, result.ClassifierLabels)
}

func TestReconcileNoSignal(t *testing.T) {
	gen := &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		return &genai.Response{Text: "NONE", Model: "fake"}, nil
	}}
	svc := NewReconcileService(gen, testAIConfig(), testLogger())

	session := completedSession(answerText("conflict", "it depends on the situation"))
	result := svc.Reconcile(context.Background(), reconcileGraph(), session)

	require.NotNil(t, result.Tally)
	assert.Empty(t, result.Tally.Totals)
	assert.Equal(t, scoring.SourceNone, result.Tally.Signals[0].Source)
	assert.Empty(t, result.ClassifierLabels, "NONE is no signal, not a label")
}

func TestReconcileInventory(t *testing.T) {
	svc := NewReconcileService(&fakeGenerator{}, testAIConfig(), testLogger())

	session := completedSession(
		answerNumber("comm_1", 5),
		answerNumber("comm_2", 2), // reverse-coded: counts as 4
	)
	result := svc.Reconcile(context.Background(), reconcileGraph(), session)

	require.Len(t, result.Inventory, 1)
	assert.Equal(t, "comm", result.Inventory[0].Bucket)
	assert.Equal(t, 4.5, result.Inventory[0].Average)
	assert.Equal(t, scoring.LevelStrong, result.Inventory[0].Level)
	assert.Equal(t, 2, result.Inventory[0].Count)
}

func TestReconcileSkipsUntaggedText(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewReconcileService(gen, testAIConfig(), testLogger())

	// "notes" is plain free text: no classifier call, no tally contribution
	// even when the text happens to contain a standalone letter.
	session := completedSession(answerText("notes", "met with S last week"))
	result := svc.Reconcile(context.Background(), reconcileGraph(), session)

	assert.Nil(t, result.Tally)
	assert.Empty(t, gen.generateCalls)
}

func TestReconcileClassifierCallsSparse(t *testing.T) {
	gen := &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		return &genai.Response{Text: "I", Model: "fake"}, nil
	}}
	svc := NewReconcileService(gen, testAIConfig(), testLogger())

	// Only the answered tagged question is classified.
	session := completedSession(
		answerText("conflict", "I talk it out and keep things light"),
		answerNumber("comm_1", 3),
	)
	result := svc.Reconcile(context.Background(), reconcileGraph(), session)

	assert.Len(t, gen.generateCalls, 1)
	assert.Equal(t, map[string]string{"conflict": "I"}, result.ClassifierLabels)
}
