package store

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func connectTestMongo(t *testing.T) (*mongo.Client, func()) {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("skipping: cannot connect to mongo: %v", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		t.Skipf("skipping: mongo ping failed: %v", err)
	}
	return cli, func() { _ = cli.Disconnect(context.Background()) }
}

func TestMongoRunStore_SaveAndRecent(t *testing.T) {
	cli, done := connectTestMongo(t)
	defer done()
	ctx := context.Background()
	_ = cli.Database("assetsync_test").Collection(runsCollection).Drop(ctx)
	s, err := NewMongoRunStore(ctx, cli, "assetsync_test")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.Save(ctx, report("old", now)); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := s.Save(ctx, report("new", now.Add(time.Minute))); err != nil {
		t.Fatalf("save new: %v", err)
	}
	r := report("new", now.Add(time.Minute))
	r.Errors = 1
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "new" || got[0].Errors != 1 || got[1].RunID != "old" {
		t.Fatalf("recent=%+v", got)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
