package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/example/assetsync/internal/cache"
	"github.com/example/assetsync/internal/config"
	"github.com/example/assetsync/internal/freshservice"
	"github.com/example/assetsync/internal/mapping"
	"github.com/example/assetsync/internal/ninjaone"
	"github.com/example/assetsync/internal/rate"
	"github.com/example/assetsync/internal/store"
	"github.com/example/assetsync/internal/syncer"
	"github.com/example/assetsync/internal/types"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	// memoryRuns is how many reports the in-memory run store keeps.
	memoryRuns  = 100
	saveTimeout = 10 * time.Second
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitErr(code int, err error) error { return &exitError{code: code, err: err} }

// exitCodeFor maps a command error to a process exit code. Errors that did not
// come from exitErr (flag parsing, unknown commands) exit 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// sanitizePort returns a sensible default when empty and strips a leading colon.
func sanitizePort(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), ":")
	if p == "" {
		return "8080"
	}
	return p
}

func (a *app) loadConfig() (config.Config, error) {
	path := a.configPath
	if path == "" {
		path = os.Getenv("ASSETSYNC_CONFIG")
	}
	return config.LoadFile(path)
}

// newRunner wires both API clients, sharing one outbound limiter keyed by host.
// The returned func stops the limiter.
func newRunner(cfg config.Config, lg *zap.Logger) (*syncer.Runner, func()) {
	lm := rate.NewLimiterMap(cfg.RateLimitRPM, cfg.MaxConcurrency, 5*time.Minute)
	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	ninja := ninjaone.NewClient(cfg.NinjaBaseURL, cfg.NinjaAPIKey,
		ninjaone.WithHTTPClient(hc), ninjaone.WithLimiter(lm), ninjaone.WithLogger(lg))
	fresh := freshservice.NewClient(cfg.FreshBaseURL, cfg.FreshAPIKey,
		freshservice.WithHTTPClient(hc), freshservice.WithLimiter(lm), freshservice.WithLogger(lg))
	r := syncer.NewRunner(syncer.Deps{
		Fetcher:  ninja,
		Upserter: fresh,
		Cache:    cache.New(cfg.CacheTTL),
		Mapping: mapping.Options{
			DefaultLocation: cfg.AssetDefaultLocation,
			SourceTag:       cfg.AssetSourceTag,
		},
		DryRun:         cfg.DryRun,
		MaxConcurrency: cfg.MaxConcurrency,
		Timeout:        cfg.HTTPTimeout,
		Logger:         lg,
	})
	return r, lm.Stop
}

// openStore returns the Mongo run store when MONGO_URI is set, else an
// in-memory one. The returned func releases the connection.
func openStore(ctx context.Context, cfg config.Config, lg *zap.Logger) (store.RunStore, func(), error) {
	if cfg.MongoURI == "" {
		lg.Info("MONGO_URI not set; keeping run history in memory", zap.Int("max_runs", memoryRuns))
		return store.NewMemoryRunStore(memoryRuns), func() {}, nil
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	disconnect := func() { _ = client.Disconnect(context.Background()) }
	st, err := store.NewMongoRunStore(cctx, client, cfg.MongoDB)
	if err != nil {
		disconnect()
		return nil, nil, fmt.Errorf("run store init: %w", err)
	}
	return st, disconnect, nil
}

// saveReport persists rep on a context detached from ctx's cancellation, so a
// run cut short by SIGINT or its deadline is still recorded.
func saveReport(ctx context.Context, runs store.RunStore, rep types.SyncReport, lg *zap.Logger) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := runs.Save(saveCtx, rep); err != nil {
		lg.Warn("failed to save sync report", zap.String("run_id", rep.RunID), zap.Error(err))
	}
}
