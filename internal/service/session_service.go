package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talentfold/pulse/internal/model"
	"github.com/talentfold/pulse/internal/repository"
)

// SessionService drives the session state machine: starting a run through a
// graph, validating and recording answers, advancing the pointer, and closing
// the session out. Completion triggers answer reconciliation synchronously so
// the caller gets the tally in the same response.
type SessionService struct {
	sessionRepo  repository.SessionRepo
	graphRepo    repository.GraphRepo
	reconciler   *ReconcileService
	narrative    *NarrativeService
	abandonAfter time.Duration
	log          *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(
	sessionRepo repository.SessionRepo,
	graphRepo repository.GraphRepo,
	reconciler *ReconcileService,
	abandonAfter time.Duration,
	log *slog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		graphRepo:    graphRepo,
		reconciler:   reconciler,
		abandonAfter: abandonAfter,
		log:          log,
	}
}

// SetNarrativeService wires the narrative refresher (set late to avoid a
// constructor cycle).
func (s *SessionService) SetNarrativeService(n *NarrativeService) {
	s.narrative = n
}

// StartResult is a freshly created session plus its first question.
type StartResult struct {
	Session  *model.Session  `json:"session"`
	Question *model.Question `json:"question"`
}

// SubmitResult reports what one answer submission did to the session.
type SubmitResult struct {
	Session   *model.Session  `json:"session"`
	Question  *model.Question `json:"question,omitempty"` // next question, nil when completed
	Completed bool            `json:"completed"`
}

// Progress is the best-effort position estimate returned on resume. Remaining
// follows default transitions only, so a branch taken later can change it.
type Progress struct {
	Answered  int `json:"answered"`
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// ResumeResult is the state a client needs to continue an interrupted session.
type ResumeResult struct {
	Session  *model.Session  `json:"session"`
	Question *model.Question `json:"question,omitempty"`
	Progress Progress        `json:"progress"`
}

// Start creates a session positioned at the graph's start question.
func (s *SessionService) Start(ctx context.Context, graphID, subjectID, contextID string) (*StartResult, error) {
	graph, err := s.graphRepo.GetByID(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	if graph == nil {
		return nil, fmt.Errorf("graph %s: %w", graphID, model.ErrNotFound)
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:             uuid.New().String(),
		GraphID:        graphID,
		SubjectID:      subjectID,
		ContextID:      contextID,
		Answers:        []model.Answer{},
		Status:         model.SessionStarted,
		Current:        graph.Start,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &StartResult{
		Session:  session,
		Question: graph.QuestionByID(graph.Start),
	}, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	return session, nil
}

// Submit validates one answer against the current question, records it, and
// advances the pointer. When the graph ends the session flips to completed and
// reconciliation runs before the result is returned. Concurrent submits are
// serialized by the status-conditioned update: the loser gets
// model.ErrConflict and must re-read.
func (s *SessionService) Submit(ctx context.Context, sessionID, questionID string, value model.AnswerValue) (*SubmitResult, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, model.ErrConflict)
	}
	if session.Current != questionID {
		return nil, model.NewValidationError("questionId", fmt.Sprintf("expected current question %q", session.Current))
	}

	graph, err := s.graphRepo.GetByID(ctx, session.GraphID)
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	if graph == nil {
		return nil, fmt.Errorf("graph %s: %w", session.GraphID, model.ErrNotFound)
	}
	question := graph.QuestionByID(questionID)
	if question == nil {
		return nil, fmt.Errorf("question %s not in graph %s: %w", questionID, graph.ID, model.ErrNotFound)
	}
	if verr := question.ValidateAnswer(value); verr != nil {
		return nil, verr
	}

	expected := session.Status
	now := time.Now().UTC()
	session.PutAnswer(model.Answer{QuestionID: questionID, Value: value, SubmittedAt: now})
	session.LastActivityAt = now

	next, done := graph.ResolveNext(question, value)
	result := &SubmitResult{Session: session}
	if done {
		s.complete(ctx, graph, session, now)
		result.Completed = true
	} else {
		session.Current = next
		if session.Status == model.SessionStarted {
			session.Status = model.SessionInProgress
		}
		result.Question = graph.QuestionByID(next)
	}

	if err := s.sessionRepo.UpdateIfStatus(ctx, session, expected); err != nil {
		return nil, err
	}

	if result.Completed {
		s.kickNarrative(session.SubjectID)
	}
	return result, nil
}

// Resume returns the session, the question to re-present, and a progress
// estimate. Works on any session; a finished one comes back with no question.
func (s *SessionService) Resume(ctx context.Context, sessionID string) (*ResumeResult, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &ResumeResult{Session: session}
	result.Progress.Answered = len(session.Answers)
	result.Progress.Total = result.Progress.Answered

	if !session.Active() || session.Current == "" {
		return result, nil
	}

	graph, err := s.graphRepo.GetByID(ctx, session.GraphID)
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	if graph == nil {
		return nil, fmt.Errorf("graph %s: %w", session.GraphID, model.ErrNotFound)
	}

	result.Question = graph.QuestionByID(session.Current)
	result.Progress.Remaining = defaultChainLength(graph, session.Current)
	result.Progress.Total = result.Progress.Answered + result.Progress.Remaining
	return result, nil
}

// ForceComplete closes an active session with whatever answers exist and runs
// reconciliation over the partial set.
func (s *SessionService) ForceComplete(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, model.ErrConflict)
	}

	graph, err := s.graphRepo.GetByID(ctx, session.GraphID)
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	if graph == nil {
		return nil, fmt.Errorf("graph %s: %w", session.GraphID, model.ErrNotFound)
	}

	expected := session.Status
	now := time.Now().UTC()
	session.LastActivityAt = now
	s.complete(ctx, graph, session, now)

	if err := s.sessionRepo.UpdateIfStatus(ctx, session, expected); err != nil {
		return nil, err
	}
	s.kickNarrative(session.SubjectID)
	return session, nil
}

// SweepAbandoned flips sessions idle past the configured threshold to
// abandoned. Answers survive; only status and pointer change.
func (s *SessionService) SweepAbandoned(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.abandonAfter)
	n, err := s.sessionRepo.SweepAbandoned(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if n > 0 {
		s.log.Info("swept abandoned sessions", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// complete flips the session to completed and folds the reconciliation results
// into its metadata. Reconciliation failures degrade: the session still
// completes, the derived pieces that worked are kept.
func (s *SessionService) complete(ctx context.Context, graph *model.Graph, session *model.Session, now time.Time) {
	session.Status = model.SessionCompleted
	session.Current = ""
	session.CompletedAt = &now

	if s.reconciler == nil {
		return
	}
	recon := s.reconciler.Reconcile(ctx, graph, session)
	if session.Metadata == nil {
		session.Metadata = make(map[string]interface{})
	}
	if recon.Tally != nil {
		session.Metadata[model.MetaTraitTally] = recon.Tally
	}
	if len(recon.Inventory) > 0 {
		session.Metadata[model.MetaInventory] = recon.Inventory
	}
	if len(recon.ClassifierLabels) > 0 {
		session.Metadata[model.MetaClassifier] = recon.ClassifierLabels
	}
}

// kickNarrative refreshes the subject's narrative in the background. Detached
// from the request context: completion already happened, the refresh is
// best-effort.
func (s *SessionService) kickNarrative(subjectID string) {
	if s.narrative == nil || subjectID == "" {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("recovered from panic in narrative refresh", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.narrative.MaybeRegenerate(ctx, subjectID); err != nil {
			s.log.Warn("narrative refresh failed", "subjectId", subjectID, "error", err)
		}
	}()
}

// defaultChainLength counts questions from id to the end following only
// default transitions. Bounded by the question count so a cyclic default chain
// cannot loop forever.
func defaultChainLength(g *model.Graph, id string) int {
	count := 0
	for id != "" && id != model.TargetEnd && !g.IsTerminal(id) && count < len(g.Questions) {
		q := g.QuestionByID(id)
		if q == nil {
			break
		}
		count++
		id = q.Next
	}
	return count
}
