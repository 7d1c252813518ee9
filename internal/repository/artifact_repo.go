package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentfold/pulse/internal/model"
)

// ArtifactRepo handles MongoDB operations for narrative artifacts
type ArtifactRepo interface {
	Upsert(ctx context.Context, artifact *model.NarrativeArtifact) error
	GetBySubject(ctx context.Context, subjectID string) (*model.NarrativeArtifact, error)
}

type artifactRepo struct {
	collection *mongo.Collection
}

// NewArtifactRepo creates a new narrative-artifact repository
func NewArtifactRepo(db *mongo.Database) ArtifactRepo {
	return &artifactRepo{
		collection: db.Collection("artifacts"),
	}
}

func (r *artifactRepo) Upsert(ctx context.Context, artifact *model.NarrativeArtifact) error {
	artifact.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": artifact.SubjectID}, artifact, opts)
	return err
}

func (r *artifactRepo) GetBySubject(ctx context.Context, subjectID string) (*model.NarrativeArtifact, error) {
	var artifact model.NarrativeArtifact
	err := r.collection.FindOne(ctx, bson.M{"_id": subjectID}).Decode(&artifact)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}
