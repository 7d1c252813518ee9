package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentfold/pulse/internal/model"
)

// EpisodeRepo handles MongoDB operations for observation episodes. The unique
// index on occasionId is the real guard against duplicate scoring of one
// occasion; in-process dedup is only advisory.
type EpisodeRepo interface {
	Create(ctx context.Context, episode *model.ObservationEpisode) error
	GetByID(ctx context.Context, id string) (*model.ObservationEpisode, error)
	GetByOccasion(ctx context.Context, occasionID string) (*model.ObservationEpisode, error)

	// MarkProcessing flips pending -> processing. Returns model.ErrConflict
	// when the episode is not pending anymore.
	MarkProcessing(ctx context.Context, id string) error

	Update(ctx context.Context, episode *model.ObservationEpisode) error
	Delete(ctx context.Context, id string) error

	// ListCompletedBySubject returns the subject's completed episodes, newest
	// first, at most limit.
	ListCompletedBySubject(ctx context.Context, subjectID string, limit int) ([]model.ObservationEpisode, error)

	ListBySubject(ctx context.Context, subjectID string) ([]model.ObservationEpisode, error)

	// CompletedActivity returns how many episodes the subject has completed and
	// when the most recent one finished.
	CompletedActivity(ctx context.Context, subjectID string) (int, *time.Time, error)
}

type episodeRepo struct {
	collection *mongo.Collection
}

// NewEpisodeRepo creates a new episode repository
func NewEpisodeRepo(db *mongo.Database) EpisodeRepo {
	return &episodeRepo{
		collection: db.Collection("episodes"),
	}
}

func (r *episodeRepo) Create(ctx context.Context, episode *model.ObservationEpisode) error {
	if episode.CreatedAt.IsZero() {
		episode.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, episode)
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrConflict
	}
	return err
}

func (r *episodeRepo) GetByID(ctx context.Context, id string) (*model.ObservationEpisode, error) {
	var episode model.ObservationEpisode
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&episode)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &episode, nil
}

func (r *episodeRepo) GetByOccasion(ctx context.Context, occasionID string) (*model.ObservationEpisode, error) {
	var episode model.ObservationEpisode
	err := r.collection.FindOne(ctx, bson.M{"occasionId": occasionID}).Decode(&episode)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &episode, nil
}

func (r *episodeRepo) MarkProcessing(ctx context.Context, id string) error {
	filter := bson.M{"_id": id, "status": model.EpisodePending}
	update := bson.M{"$set": bson.M{"status": model.EpisodeProcessing}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return model.ErrConflict
	}
	return nil
}

func (r *episodeRepo) Update(ctx context.Context, episode *model.ObservationEpisode) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": episode.ID}, episode)
	return err
}

func (r *episodeRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *episodeRepo) ListCompletedBySubject(ctx context.Context, subjectID string, limit int) ([]model.ObservationEpisode, error) {
	filter := bson.M{"subjectId": subjectID, "status": model.EpisodeCompleted}
	opts := options.Find().SetSort(bson.D{{Key: "completedAt", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var episodes []model.ObservationEpisode
	if err := cursor.All(ctx, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

func (r *episodeRepo) ListBySubject(ctx context.Context, subjectID string) ([]model.ObservationEpisode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"subjectId": subjectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var episodes []model.ObservationEpisode
	if err := cursor.All(ctx, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

func (r *episodeRepo) CompletedActivity(ctx context.Context, subjectID string) (int, *time.Time, error) {
	filter := bson.M{"subjectId": subjectID, "status": model.EpisodeCompleted}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "completedAt", Value: -1}})
	var latest model.ObservationEpisode
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&latest); err != nil {
		if err == mongo.ErrNoDocuments {
			return int(count), nil, nil
		}
		return 0, nil, err
	}
	return int(count), latest.CompletedAt, nil
}
