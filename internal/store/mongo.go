package store

import (
	"context"

	"github.com/example/assetsync/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const runsCollection = "sync_runs"

// MongoRunStore stores one document per run in the sync_runs collection.
type MongoRunStore struct {
	coll *mongo.Collection
}

// NewMongoRunStore sets up the collection with a unique index on run_id and a
// descending index on started_at for Recent.
func NewMongoRunStore(ctx context.Context, client *mongo.Client, dbName string) (*MongoRunStore, error) {
	coll := client.Database(dbName).Collection(runsCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "started_at", Value: -1}},
		},
	})
	if err != nil {
		return nil, err
	}
	return &MongoRunStore{coll: coll}, nil
}

// Save inserts the report, or replaces the stored one with the same run id.
func (s *MongoRunStore) Save(ctx context.Context, r types.SyncReport) error {
	if r.RunID == "" {
		return ErrMissingRunID
	}
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: "run_id", Value: r.RunID}},
		r,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoRunStore) Recent(ctx context.Context, limit int) ([]types.SyncReport, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	out := []types.SyncReport{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoRunStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}
