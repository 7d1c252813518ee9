package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/talentfold/pulse/internal/model"
)

// GraphRepo handles MongoDB operations for navigation graphs
type GraphRepo interface {
	Create(ctx context.Context, graph *model.Graph) error
	GetByID(ctx context.Context, id string) (*model.Graph, error)
	List(ctx context.Context) ([]*model.Graph, error)
}

type graphRepo struct {
	collection *mongo.Collection
}

// NewGraphRepo creates a new graph repository
func NewGraphRepo(db *mongo.Database) GraphRepo {
	return &graphRepo{
		collection: db.Collection("graphs"),
	}
}

func (r *graphRepo) Create(ctx context.Context, graph *model.Graph) error {
	graph.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, graph)
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrConflict
	}
	return err
}

func (r *graphRepo) GetByID(ctx context.Context, id string) (*model.Graph, error) {
	var graph model.Graph
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&graph)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &graph, nil
}

func (r *graphRepo) List(ctx context.Context) ([]*model.Graph, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var graphs []*model.Graph
	if err := cursor.All(ctx, &graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}
