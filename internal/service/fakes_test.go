package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/talentfold/pulse/internal/genai"
	"github.com/talentfold/pulse/internal/model"
)

// In-memory repository fakes. They mimic the MongoDB repos' contracts,
// including the nil-on-missing convention and the optimistic status check.

type fakeGraphRepo struct {
	mu     sync.Mutex
	graphs map[string]*model.Graph
}

func newFakeGraphRepo(graphs ...*model.Graph) *fakeGraphRepo {
	r := &fakeGraphRepo{graphs: make(map[string]*model.Graph)}
	for _, g := range graphs {
		r.graphs[g.ID] = g
	}
	return r
}

func (r *fakeGraphRepo) Create(ctx context.Context, graph *model.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[graph.ID]; ok {
		return model.ErrConflict
	}
	r.graphs[graph.ID] = graph
	return nil
}

func (r *fakeGraphRepo) GetByID(ctx context.Context, id string) (*model.Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graphs[id], nil
}

func (r *fakeGraphRepo) List(ctx context.Context) ([]*model.Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Graph, 0, len(r.graphs))
	for _, g := range r.graphs {
		out = append(out, g)
	}
	return out, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session

	// afterGet runs on the stored session right after a read, simulating a
	// concurrent writer.
	afterGet func(*model.Session)
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func copySession(s *model.Session) *model.Session {
	c := *s
	c.Answers = append([]model.Answer(nil), s.Answers...)
	if s.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return model.ErrConflict
	}
	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	out := copySession(stored)
	if r.afterGet != nil {
		r.afterGet(stored)
	}
	return out, nil
}

func (r *fakeSessionRepo) UpdateIfStatus(ctx context.Context, session *model.Session, expected model.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.ID]
	if !ok || stored.Status != expected {
		return model.ErrConflict
	}
	r.sessions[session.ID] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) SweepAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.Active() && s.LastActivityAt.Before(cutoff) {
			s.Status = model.SessionAbandoned
			s.Current = ""
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) CompletedActivity(ctx context.Context, subjectID string) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	var latest *time.Time
	for _, s := range r.sessions {
		if s.SubjectID != subjectID || s.Status != model.SessionCompleted {
			continue
		}
		count++
		if s.CompletedAt != nil && (latest == nil || s.CompletedAt.After(*latest)) {
			t := *s.CompletedAt
			latest = &t
		}
	}
	return count, latest, nil
}

func (r *fakeSessionRepo) LatestCompletedBySubject(ctx context.Context, subjectID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.Session
	for _, s := range r.sessions {
		if s.SubjectID != subjectID || s.Status != model.SessionCompleted {
			continue
		}
		if latest == nil || (s.CompletedAt != nil && latest.CompletedAt != nil && s.CompletedAt.After(*latest.CompletedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copySession(latest), nil
}

type fakeEpisodeRepo struct {
	mu       sync.Mutex
	episodes map[string]*model.ObservationEpisode
}

func newFakeEpisodeRepo() *fakeEpisodeRepo {
	return &fakeEpisodeRepo{episodes: make(map[string]*model.ObservationEpisode)}
}

func copyEpisode(ep *model.ObservationEpisode) *model.ObservationEpisode {
	c := *ep
	if ep.Scores != nil {
		c.Scores = make(map[string]model.TraitScore, len(ep.Scores))
		for k, v := range ep.Scores {
			c.Scores[k] = v
		}
	}
	return &c
}

func (r *fakeEpisodeRepo) Create(ctx context.Context, episode *model.ObservationEpisode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.episodes {
		if ep.OccasionID == episode.OccasionID {
			return model.ErrConflict
		}
	}
	r.episodes[episode.ID] = copyEpisode(episode)
	return nil
}

func (r *fakeEpisodeRepo) GetByID(ctx context.Context, id string) (*model.ObservationEpisode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.episodes[id]
	if !ok {
		return nil, nil
	}
	return copyEpisode(ep), nil
}

func (r *fakeEpisodeRepo) GetByOccasion(ctx context.Context, occasionID string) (*model.ObservationEpisode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range r.episodes {
		if ep.OccasionID == occasionID {
			return copyEpisode(ep), nil
		}
	}
	return nil, nil
}

func (r *fakeEpisodeRepo) MarkProcessing(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.episodes[id]
	if !ok || ep.Status != model.EpisodePending {
		return model.ErrConflict
	}
	ep.Status = model.EpisodeProcessing
	return nil
}

func (r *fakeEpisodeRepo) Update(ctx context.Context, episode *model.ObservationEpisode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.episodes[episode.ID] = copyEpisode(episode)
	return nil
}

func (r *fakeEpisodeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.episodes, id)
	return nil
}

func (r *fakeEpisodeRepo) ListCompletedBySubject(ctx context.Context, subjectID string, limit int) ([]model.ObservationEpisode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ObservationEpisode
	for _, ep := range r.episodes {
		if ep.SubjectID == subjectID && ep.Status == model.EpisodeCompleted {
			out = append(out, *copyEpisode(ep))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeEpisodeRepo) ListBySubject(ctx context.Context, subjectID string) ([]model.ObservationEpisode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ObservationEpisode
	for _, ep := range r.episodes {
		if ep.SubjectID == subjectID {
			out = append(out, *copyEpisode(ep))
		}
	}
	return out, nil
}

func (r *fakeEpisodeRepo) CompletedActivity(ctx context.Context, subjectID string) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	var latest *time.Time
	for _, ep := range r.episodes {
		if ep.SubjectID != subjectID || ep.Status != model.EpisodeCompleted {
			continue
		}
		count++
		if ep.CompletedAt != nil && (latest == nil || ep.CompletedAt.After(*latest)) {
			t := *ep.CompletedAt
			latest = &t
		}
	}
	return count, latest, nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.AggregateProfile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*model.AggregateProfile)}
}

func (r *fakeProfileRepo) Upsert(ctx context.Context, profile *model.AggregateProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *profile
	r.profiles[profile.SubjectID] = &c
	return nil
}

func (r *fakeProfileRepo) GetBySubject(ctx context.Context, subjectID string) (*model.AggregateProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[subjectID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

type fakeArtifactRepo struct {
	mu        sync.Mutex
	artifacts map[string]*model.NarrativeArtifact
}

func newFakeArtifactRepo() *fakeArtifactRepo {
	return &fakeArtifactRepo{artifacts: make(map[string]*model.NarrativeArtifact)}
}

func (r *fakeArtifactRepo) Upsert(ctx context.Context, artifact *model.NarrativeArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *artifact
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	r.artifacts[artifact.SubjectID] = &c
	return nil
}

func (r *fakeArtifactRepo) GetBySubject(ctx context.Context, subjectID string) (*model.NarrativeArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.artifacts[subjectID]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

type fakeProfileCache struct {
	mu       sync.Mutex
	profiles map[string]*model.AggregateProfile
}

func newFakeProfileCache() *fakeProfileCache {
	return &fakeProfileCache{profiles: make(map[string]*model.AggregateProfile)}
}

func (c *fakeProfileCache) Get(ctx context.Context, subjectID string) (*model.AggregateProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profiles[subjectID], nil
}

func (c *fakeProfileCache) Set(ctx context.Context, profile *model.AggregateProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[profile.SubjectID] = profile
	return nil
}

func (c *fakeProfileCache) Invalidate(ctx context.Context, subjectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.profiles, subjectID)
	return nil
}

type fakeRegenCache struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeRegenCache() *fakeRegenCache {
	return &fakeRegenCache{held: make(map[string]bool)}
}

func (c *fakeRegenCache) TryAcquire(ctx context.Context, subjectID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[subjectID] {
		return false, nil
	}
	c.held[subjectID] = true
	return true, nil
}

func (c *fakeRegenCache) Release(ctx context.Context, subjectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, subjectID)
	return nil
}

// fakeGenerator scripts the collaborator's replies.
type fakeGenerator struct {
	mu sync.Mutex

	// generate is invoked for each Generate call.
	generate func(req genai.Request) (*genai.Response, error)

	// streamText, when set, is emitted token by token on GenerateStream.
	streamText string

	generateCalls []genai.Request
	streamCalls   int
}

func (g *fakeGenerator) Generate(ctx context.Context, req genai.Request) (*genai.Response, error) {
	g.mu.Lock()
	g.generateCalls = append(g.generateCalls, req)
	fn := g.generate
	g.mu.Unlock()
	if fn == nil {
		return &genai.Response{Text: "ok", Model: "fake"}, nil
	}
	return fn(req)
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, req genai.Request, onToken func(string)) (*genai.Response, error) {
	g.mu.Lock()
	g.streamCalls++
	text := g.streamText
	g.mu.Unlock()
	if text == "" {
		text = "generated narrative"
	}
	for _, word := range []string{text} {
		onToken(word)
	}
	return &genai.Response{Text: text, Model: "fake"}, nil
}

// fakeBroadcaster records broadcast messages.
type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []broadcastCall
}

type broadcastCall struct {
	subjectID string
	msgType   string
}

func (b *fakeBroadcaster) BroadcastToSubject(subjectID string, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, broadcastCall{subjectID: subjectID, msgType: msgType})
}

func (b *fakeBroadcaster) typesFor(subjectID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.messages {
		if m.subjectID == subjectID {
			out = append(out, m.msgType)
		}
	}
	return out
}
