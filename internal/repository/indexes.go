package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the subsystem relies on. The unique index
// on episode occasionId is a correctness guarantee, not an optimization.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("episodes").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "occasionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "subjectId", Value: 1}, {Key: "status", Value: 1}, {Key: "completedAt", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("episode indexes: %w", err)
	}

	_, err = db.Collection("sessions").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "lastActivityAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "subjectId", Value: 1}, {Key: "status", Value: 1}, {Key: "completedAt", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("session indexes: %w", err)
	}

	return nil
}
