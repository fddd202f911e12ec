// Package syncer runs one NinjaOne -> Freshservice asset sync.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/assetsync/internal/cache"
	"github.com/example/assetsync/internal/freshservice"
	"github.com/example/assetsync/internal/logging"
	"github.com/example/assetsync/internal/mapping"
	"github.com/example/assetsync/internal/ninjaone"
	"github.com/example/assetsync/internal/safemath"
	"github.com/example/assetsync/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Deps bundles what a Runner needs.
type Deps struct {
	Fetcher  ninjaone.AssetFetcher
	Upserter freshservice.AssetUpserter
	Cache    *cache.Cache
	Mapping  mapping.Options
	DryRun   bool
	// KeepCache carries cached upsert results into later runs. By default every
	// run starts empty, so each run pushes every asset at least once.
	KeepCache      bool
	MaxConcurrency int
	Timeout        time.Duration // per upsert
	Logger         *zap.Logger
}

type Runner struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time
}

func NewRunner(deps Deps) *Runner {
	if deps.MaxConcurrency < 1 {
		deps.MaxConcurrency = 1
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(0)
	}
	return &Runner{deps: deps, log: logging.OrNop(deps.Logger), now: time.Now}
}

// Run fetches every asset, maps it and upserts it. Only a failed fetch aborts
// the run; per-asset failures are counted in the report.
func (r *Runner) Run(ctx context.Context) (types.SyncReport, error) {
	rep := types.SyncReport{
		RunID:        uuid.NewString(),
		StartedAt:    r.now().UTC(),
		DryRun:       r.deps.DryRun,
		ErrorEntries: []types.ErrorEntry{},
	}
	log := r.log.With(zap.String("run_id", rep.RunID))
	log.Info("starting NinjaOne -> Freshservice sync", zap.Bool("dry_run", rep.DryRun))
	if r.deps.KeepCache {
		if n := r.deps.Cache.Purge(); n > 0 {
			log.Debug("purged expired cache entries", zap.Int("count", n))
		}
	} else if n := r.deps.Cache.Clear(); n > 0 {
		log.Debug("cleared cache from previous run", zap.Int("count", n))
	}

	assets, err := r.deps.Fetcher.FetchAssets(ctx)
	if err != nil {
		log.Error("error fetching assets from NinjaOne", zap.Error(err))
		return rep, fmt.Errorf("fetch assets: %w", err)
	}
	rep.Fetched = len(assets)
	log.Info("fetched assets from NinjaOne", zap.Int("count", len(assets)))

	var (
		mu        sync.Mutex
		latencies []float64
	)
	var g errgroup.Group
	g.SetLimit(r.deps.MaxConcurrency)
	for _, asset := range assets {
		g.Go(func() error {
			out, lat, err := r.syncOne(ctx, log, asset)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Errors++
				rep.ErrorEntries = append(rep.ErrorEntries, types.ErrorEntry{Asset: asset.Identifier(), Error: err.Error()})
				log.Error("failed to process asset", zap.String("asset", asset.Identifier()), zap.Error(err))
				return nil
			}
			switch out {
			case outcomeSkipped:
				rep.Skipped++
			case outcomeUnchanged:
				rep.Unchanged++
			case outcomeCreated:
				rep.Created++
				latencies = append(latencies, lat)
			case outcomeUpdated:
				rep.Updated++
				latencies = append(latencies, lat)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(rep.ErrorEntries, func(i, j int) bool { return rep.ErrorEntries[i].Asset < rep.ErrorEntries[j].Asset })
	r.summarize(&rep, latencies)
	rep.FinishedAt = r.now().UTC()

	log.Info("sync complete",
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("skipped", rep.Skipped),
		zap.Int("errors", rep.Errors),
		zap.Float64("error_rate", rep.ErrorRate),
		zap.Float64("mean_latency_ms", rep.MeanLatencyMs),
	)
	return rep, nil
}

type outcome uint8

const (
	outcomeSkipped outcome = iota
	outcomeUnchanged
	outcomeCreated
	outcomeUpdated
)

func (r *Runner) syncOne(ctx context.Context, log *zap.Logger, asset types.NinjaAsset) (outcome, float64, error) {
	payload, err := mapping.MapNinjaAsset(asset, r.deps.Mapping)
	if err != nil {
		return 0, 0, err
	}
	if r.deps.DryRun {
		log.Debug("DRY RUN: would upsert asset", zap.String("asset", payload.Name))
		return outcomeSkipped, 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	uctx := ctx
	if r.deps.Timeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, r.deps.Timeout)
		defer cancel()
	}
	var (
		lat time.Duration
		ran bool
	)
	entry, source, err := r.deps.Cache.GetOrFetch(uctx, cache.AssetKey(payload), func(ctx context.Context) (cache.Entry, error) {
		ran = true
		start := time.Now()
		res, err := r.deps.Upserter.UpsertAsset(ctx, payload)
		lat = time.Since(start)
		if err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{Result: res, StoredAt: time.Now().UTC()}, nil
	})
	if err != nil {
		return 0, 0, err
	}
	// A caller that joined another goroutine's in-flight upsert did not push anything itself.
	if source == cache.SourceCache || !ran {
		log.Debug("asset unchanged since last upsert", zap.String("asset", payload.Name))
		return outcomeUnchanged, 0, nil
	}
	log.Debug("upserted asset", zap.String("asset", payload.Name), zap.String("id", entry.Result.ID), zap.Bool("created", entry.Result.Created))
	ms := float64(lat.Microseconds()) / 1000
	if entry.Result.Created {
		return outcomeCreated, ms, nil
	}
	return outcomeUpdated, ms, nil
}

// summarize fills the derived fields. A run with nothing fetched has a zero
// error rate, and a run with no upserts has zero latencies.
func (r *Runner) summarize(rep *types.SyncReport, latencies []float64) {
	rate, err := safemath.SafeDivide(safemath.Int(int64(rep.Errors)), safemath.Int(int64(rep.Fetched)))
	switch {
	case err == nil:
		rep.ErrorRate = rate
	case errors.Is(err, safemath.ErrDivisionByZero):
		rep.ErrorRate = 0
	default:
		r.log.Warn("error rate", zap.Error(err))
	}

	mean, err := safemath.Mean(safemath.Values(latencies))
	switch {
	case err == nil:
		rep.MeanLatencyMs = mean
	case errors.Is(err, safemath.ErrEmptySequence):
		rep.MeanLatencyMs = 0
	default:
		r.log.Warn("mean latency", zap.Error(err))
	}

	if len(latencies) > 0 {
		sorted := append([]float64(nil), latencies...)
		sort.Float64s(sorted)
		rep.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
}

// ExitCode maps a finished report to the process exit status: 0 when every
// asset synced, 2 when any failed.
func ExitCode(rep types.SyncReport) int {
	if rep.Errors == 0 {
		return 0
	}
	return 2
}
