package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentfold/pulse/internal/genai"
	"github.com/talentfold/pulse/internal/model"
)

func newTestEpisodeService(repo *fakeEpisodeRepo, gen Generator) *EpisodeService {
	return NewEpisodeService(repo, nil, gen, testAIConfig(), testLogger())
}

func scoresJSON(text string) *fakeGenerator {
	return &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		return &genai.Response{Text: text, Model: "fake"}, nil
	}}
}

func TestScoreEpisode(t *testing.T) {
	repo := newFakeEpisodeRepo()
	gen := scoresJSON(`{
		"communication": {"score": 4, "evidence": "kept the room aligned"},
		"leadership": {"score": 7, "evidence": "ran the whole meeting"},
		"charisma": {"score": 5, "evidence": "made-up dimension"}
	}`)
	svc := newTestEpisodeService(repo, gen)

	episode, err := svc.Score(context.Background(), "subj-1", "meeting-1", "transcript of the meeting")
	require.NoError(t, err)

	assert.Equal(t, model.EpisodeCompleted, episode.Status)
	require.NotNil(t, episode.CompletedAt)

	require.Contains(t, episode.Scores, "communication")
	assert.Equal(t, 4, *episode.Scores["communication"].Score)

	// Out-of-range scores are clamped, unknown dimensions dropped, and
	// dimensions the reply omits stay unobserved.
	assert.Equal(t, 5, *episode.Scores["leadership"].Score)
	assert.NotContains(t, episode.Scores, "charisma")
	assert.NotContains(t, episode.Scores, "teamwork")

	stored, _ := repo.GetByID(context.Background(), episode.ID)
	require.NotNil(t, stored)
	assert.Equal(t, model.EpisodeCompleted, stored.Status)
}

func TestScoreEpisodeStripsFences(t *testing.T) {
	gen := scoresJSON("```json\n{\"teamwork\": {\"score\": 3}}\n```")
	svc := newTestEpisodeService(newFakeEpisodeRepo(), gen)

	episode, err := svc.Score(context.Background(), "subj-1", "meeting-2", "transcript")
	require.NoError(t, err)
	assert.Equal(t, model.EpisodeCompleted, episode.Status)
	assert.Equal(t, 3, *episode.Scores["teamwork"].Score)
}

func TestScoreEpisodeValidation(t *testing.T) {
	svc := newTestEpisodeService(newFakeEpisodeRepo(), &fakeGenerator{})
	ctx := context.Background()

	var verr *model.ValidationError
	_, err := svc.Score(ctx, "", "occ", "text")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Score(ctx, "subj", "", "text")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.Score(ctx, "subj", "occ", "   ")
	assert.ErrorAs(t, err, &verr)
}

func TestScoreEpisodeDuplicateOccasion(t *testing.T) {
	repo := newFakeEpisodeRepo()
	svc := newTestEpisodeService(repo, scoresJSON(`{"teamwork": {"score": 3}}`))
	ctx := context.Background()

	_, err := svc.Score(ctx, "subj-1", "meeting-1", "first transcript")
	require.NoError(t, err)

	_, err = svc.Score(ctx, "subj-1", "meeting-1", "second transcript")
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestScoreEpisodeFailureRecorded(t *testing.T) {
	repo := newFakeEpisodeRepo()
	gen := &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		return nil, errors.New("upstream unavailable")
	}}
	svc := newTestEpisodeService(repo, gen)

	// The scoring failure lands on the episode, not in the error return.
	episode, err := svc.Score(context.Background(), "subj-1", "meeting-1", "transcript")
	require.NoError(t, err)
	assert.Equal(t, model.EpisodeFailed, episode.Status)
	assert.Contains(t, episode.Error, "upstream unavailable")
	assert.Nil(t, episode.CompletedAt)
	assert.Empty(t, episode.Scores)
}

func TestScoreEpisodeUnparseableReply(t *testing.T) {
	svc := newTestEpisodeService(newFakeEpisodeRepo(), scoresJSON("sorry, I cannot help with that"))

	episode, err := svc.Score(context.Background(), "subj-1", "meeting-1", "transcript")
	require.NoError(t, err)
	assert.Equal(t, model.EpisodeFailed, episode.Status)
	assert.Contains(t, episode.Error, "unparseable")
}

func TestRetryFailedEpisode(t *testing.T) {
	repo := newFakeEpisodeRepo()
	calls := 0
	gen := &fakeGenerator{generate: func(req genai.Request) (*genai.Response, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient failure")
		}
		return &genai.Response{Text: `{"initiative": {"score": 2}}`, Model: "fake"}, nil
	}}
	svc := newTestEpisodeService(repo, gen)
	ctx := context.Background()

	failed, err := svc.Score(ctx, "subj-1", "meeting-1", "the original transcript")
	require.NoError(t, err)
	require.Equal(t, model.EpisodeFailed, failed.Status)

	retried, err := svc.Retry(ctx, failed.ID)
	require.NoError(t, err)

	assert.Equal(t, model.EpisodeCompleted, retried.Status)
	assert.NotEqual(t, failed.ID, retried.ID, "retry issues a fresh episode id")
	assert.Equal(t, "meeting-1", retried.OccasionID)
	assert.Equal(t, 2, *retried.Scores["initiative"].Score)

	// Old row is gone; the occasion still maps to exactly one episode.
	gone, _ := repo.GetByID(ctx, failed.ID)
	assert.Nil(t, gone)
	byOccasion, _ := repo.GetByOccasion(ctx, "meeting-1")
	require.NotNil(t, byOccasion)
	assert.Equal(t, retried.ID, byOccasion.ID)
}

func TestRetryNonFailedEpisode(t *testing.T) {
	repo := newFakeEpisodeRepo()
	svc := newTestEpisodeService(repo, scoresJSON(`{"teamwork": {"score": 4}}`))
	ctx := context.Background()

	done, err := svc.Score(ctx, "subj-1", "meeting-1", "transcript")
	require.NoError(t, err)
	require.Equal(t, model.EpisodeCompleted, done.Status)

	_, err = svc.Retry(ctx, done.ID)
	assert.ErrorIs(t, err, model.ErrConflict)

	_, err = svc.Retry(ctx, "no-such-episode")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
