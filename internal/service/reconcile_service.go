package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/talentfold/pulse/internal/config"
	"github.com/talentfold/pulse/internal/genai"
	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/scoring"
)

// classifySystem is the fixed instruction for per-answer trait classification.
const classifySystem = "You label workplace self-descriptions with exactly one DISC trait letter. " +
	"Respond with a single letter: D, I, S, or C. " +
	"If the text carries no usable signal, respond with the word NONE."

// maxConcurrentClassifications bounds the fan-out of classifier calls per
// session.
const maxConcurrentClassifications = 4

// ReconcileService turns a completed session's answers into derived scores:
// the closed-form trait tally merged with per-answer classifier labels, and
// the rating-battery bucket scores.
type ReconcileService struct {
	gen Generator
	cfg *config.AIConfig
	log *slog.Logger
}

// NewReconcileService creates a new reconciliation service.
func NewReconcileService(gen Generator, cfg *config.AIConfig, log *slog.Logger) *ReconcileService {
	return &ReconcileService{gen: gen, cfg: cfg, log: log}
}

// TallyResult is the merged trait tally of one session.
type TallyResult struct {
	Totals  map[string]int           `json:"totals"`
	Levels  map[string]string        `json:"levels"`
	Hint    scoring.ProfileHint      `json:"hint"`
	Signals []scoring.QuestionSignal `json:"signals"`
}

// ReconcileResult carries everything reconciliation derived from a session.
// Fields the graph has no questions for stay empty.
type ReconcileResult struct {
	Tally            *TallyResult          `json:"tally,omitempty"`
	Inventory        []scoring.BucketScore `json:"inventory,omitempty"`
	ClassifierLabels map[string]string     `json:"classifierLabels,omitempty"`
}

// Reconcile derives the session's scores. Classifier calls run concurrently,
// one per tagged open-text answer; a failed or unparseable call contributes no
// signal and the answer falls through to letter extraction. Reconcile never
// fails outright: external errors degrade to the deterministic parts.
func (s *ReconcileService) Reconcile(ctx context.Context, graph *model.Graph, session *model.Session) *ReconcileResult {
	result := &ReconcileResult{}

	labels := s.classifyTagged(ctx, graph, session)
	if len(labels) > 0 {
		result.ClassifierLabels = labels
	}

	var signals []scoring.QuestionSignal
	for i := range graph.Questions {
		q := &graph.Questions[i]
		ans := session.AnswerFor(q.ID)
		if ans == nil || !traitBearing(q) {
			continue
		}
		signals = append(signals, scoring.ResolveTraits(q, ans, labels[q.ID]))
	}
	if len(signals) > 0 {
		totals := scoring.Tally(signals)
		result.Tally = &TallyResult{
			Totals:  totals,
			Levels:  scoring.Levels(totals),
			Hint:    scoring.Hint(totals),
			Signals: signals,
		}
	}

	result.Inventory = scoring.ScoreInventory(graph.Questions, session.Answers)
	return result
}

// classifyTagged sends every tagged open-text answer to the classifier and
// returns normalized labels keyed by question id. Questions whose call failed
// or produced no parseable letter are simply absent.
func (s *ReconcileService) classifyTagged(ctx context.Context, graph *model.Graph, session *model.Session) map[string]string {
	type target struct {
		question *model.Question
		text     string
	}
	var targets []target
	for i := range graph.Questions {
		q := &graph.Questions[i]
		if !q.HasTag(model.TagClassify) {
			continue
		}
		ans := session.AnswerFor(q.ID)
		if ans == nil || ans.Value.Kind != model.ValueText || ans.Value.Text == "" {
			continue
		}
		targets = append(targets, target{question: q, text: ans.Value.Text})
	}
	if len(targets) == 0 {
		return nil
	}

	results := make([]string, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentClassifications)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			resp, err := s.gen.Generate(gctx, genai.Request{
				System: classifySystem,
				Prompt: fmt.Sprintf("Question: %s\n\nAnswer: %s", t.question.Text, t.text),
				Model:  s.cfg.Models.Classify,
			})
			if err != nil {
				s.log.Warn("classification failed", "questionId", t.question.ID, "error", err)
				return nil
			}
			results[i] = scoring.NormalizeLabel(resp.Text)
			return nil
		})
	}
	g.Wait() // goroutines never return errors, they degrade

	labels := make(map[string]string, len(targets))
	for i, t := range targets {
		if results[i] != "" {
			labels[t.question.ID] = results[i]
		}
	}
	return labels
}

// traitBearing reports whether a question can contribute to the tally: any of
// its choices carries trait letters, or it is tagged for classification.
func traitBearing(q *model.Question) bool {
	if q.HasTag(model.TagClassify) {
		return true
	}
	for _, c := range q.Options {
		if len(c.Traits) > 0 {
			return true
		}
	}
	return false
}
