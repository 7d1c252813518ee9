package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentfold/pulse/internal/model"
)

// SessionRepo handles MongoDB operations for assessment sessions
type SessionRepo interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)

	// UpdateIfStatus replaces the session only when its stored status still
	// equals expected. Returns model.ErrConflict when the status changed
	// underneath, in which case the caller must re-read and retry.
	UpdateIfStatus(ctx context.Context, session *model.Session, expected model.SessionStatus) error

	// SweepAbandoned flips every started/in_progress session idle since before
	// cutoff to abandoned and clears its pointer. Answers are never touched, so
	// the sweep is idempotent and safe to run concurrently with submissions.
	SweepAbandoned(ctx context.Context, cutoff time.Time) (int64, error)

	// CompletedActivity returns how many sessions the subject has completed and
	// when the most recent one finished.
	CompletedActivity(ctx context.Context, subjectID string) (int, *time.Time, error)

	// LatestCompletedBySubject returns the subject's most recently completed
	// session, or nil.
	LatestCompletedBySubject(ctx context.Context, subjectID string) (*model.Session, error)
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.collection.InsertOne(ctx, session)
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrConflict
	}
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateIfStatus(ctx context.Context, session *model.Session, expected model.SessionStatus) error {
	filter := bson.M{"_id": session.ID, "status": expected}
	result, err := r.collection.ReplaceOne(ctx, filter, session)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return model.ErrConflict
	}
	return nil
}

func (r *sessionRepo) SweepAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":         bson.M{"$in": []model.SessionStatus{model.SessionStarted, model.SessionInProgress}},
		"lastActivityAt": bson.M{"$lt": cutoff},
	}
	update := bson.M{
		"$set":   bson.M{"status": model.SessionAbandoned},
		"$unset": bson.M{"current": ""},
	}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *sessionRepo) LatestCompletedBySubject(ctx context.Context, subjectID string) (*model.Session, error) {
	filter := bson.M{"subjectId": subjectID, "status": model.SessionCompleted}
	opts := options.FindOne().SetSort(bson.D{{Key: "completedAt", Value: -1}})

	var session model.Session
	err := r.collection.FindOne(ctx, filter, opts).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) CompletedActivity(ctx context.Context, subjectID string) (int, *time.Time, error) {
	filter := bson.M{"subjectId": subjectID, "status": model.SessionCompleted}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "completedAt", Value: -1}})
	var latest model.Session
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&latest); err != nil {
		if err == mongo.ErrNoDocuments {
			return int(count), nil, nil
		}
		return 0, nil, err
	}
	return int(count), latest.CompletedAt, nil
}
