package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentfold/pulse/internal/model"
)

// ProfileRepo handles MongoDB operations for aggregate profiles. The row is
// replaced wholesale on every recompute, keyed uniquely by subject.
type ProfileRepo interface {
	Upsert(ctx context.Context, profile *model.AggregateProfile) error
	GetBySubject(ctx context.Context, subjectID string) (*model.AggregateProfile, error)
}

type profileRepo struct {
	collection *mongo.Collection
}

// NewProfileRepo creates a new aggregate-profile repository
func NewProfileRepo(db *mongo.Database) ProfileRepo {
	return &profileRepo{
		collection: db.Collection("profiles"),
	}
}

func (r *profileRepo) Upsert(ctx context.Context, profile *model.AggregateProfile) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": profile.SubjectID}, profile, opts)
	return err
}

func (r *profileRepo) GetBySubject(ctx context.Context, subjectID string) (*model.AggregateProfile, error) {
	var profile model.AggregateProfile
	err := r.collection.FindOne(ctx, bson.M{"_id": subjectID}).Decode(&profile)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
