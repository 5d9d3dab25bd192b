package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mongostore "github.com/nimburion/repokit/pkg/store/mongodb"
)

// Executor is the document store contract the repository runs on. FindOne
// reports a missing document with mongo.ErrNoDocuments. UpdateOne and
// DeleteOne return the number of documents matched and deleted.
type Executor interface {
	InsertOne(ctx context.Context, collection string, doc any) error
	InsertMany(ctx context.Context, collection string, docs []any) error
	FindOne(ctx context.Context, collection string, filter bson.D) (bson.Raw, error)
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.Raw, error)
	CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error)
	UpdateOne(ctx context.Context, collection string, filter, update bson.D) (int64, error)
	DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error)
}

// MongoDBExecutor runs the repository on a store/mongodb Adapter.
type MongoDBExecutor struct {
	adapter *mongostore.Adapter
}

var _ Executor = (*MongoDBExecutor)(nil)

func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

func (e *MongoDBExecutor) InsertOne(ctx context.Context, collection string, doc any) error {
	return e.adapter.InsertOne(ctx, collection, doc)
}

func (e *MongoDBExecutor) InsertMany(ctx context.Context, collection string, docs []any) error {
	return e.adapter.InsertMany(ctx, collection, docs)
}

func (e *MongoDBExecutor) FindOne(ctx context.Context, collection string, filter bson.D) (bson.Raw, error) {
	return e.adapter.FindOneRaw(ctx, collection, filter)
}

func (e *MongoDBExecutor) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.Raw, error) {
	return e.adapter.Aggregate(ctx, collection, pipeline)
}

func (e *MongoDBExecutor) CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error) {
	return e.adapter.CountDocuments(ctx, collection, filter)
}

// UpdateOne returns the matched count, so an update that changes nothing
// still counts as found.
func (e *MongoDBExecutor) UpdateOne(ctx context.Context, collection string, filter, update bson.D) (int64, error) {
	return e.adapter.UpdateOne(ctx, collection, filter, update)
}

func (e *MongoDBExecutor) DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error) {
	return e.adapter.DeleteOne(ctx, collection, filter)
}
