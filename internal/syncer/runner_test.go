package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/assetsync/internal/cache"
	"github.com/example/assetsync/internal/mapping"
	"github.com/example/assetsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	assets []types.NinjaAsset
	err    error
}

func (f fakeFetcher) FetchAssets(context.Context) ([]types.NinjaAsset, error) {
	return f.assets, f.err
}

type fakeUpserter struct {
	mu       sync.Mutex
	calls    []types.FreshAsset
	failFor  map[string]error
	created  map[string]bool
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeUpserter) UpsertAsset(ctx context.Context, a types.FreshAsset) (types.UpsertResult, error) {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return types.UpsertResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, a)
	f.mu.Unlock()
	if err := f.failFor[a.Name]; err != nil {
		return types.UpsertResult{}, err
	}
	return types.UpsertResult{ID: "id-" + a.Name, Created: f.created[a.Name]}, nil
}

func (f *fakeUpserter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func assets(names ...string) []types.NinjaAsset {
	out := make([]types.NinjaAsset, 0, len(names))
	for _, n := range names {
		out = append(out, types.NinjaAsset{"hostname": n})
	}
	return out
}

func TestRun_CountsCreatedUpdatedAndErrors(t *testing.T) {
	up := &fakeUpserter{
		failFor: map[string]error{"bad": errors.New("boom")},
		created: map[string]bool{"new": true},
	}
	in := append(assets("new", "old", "bad"), types.NinjaAsset{"id": "77", "serial": "x"})
	r := NewRunner(Deps{
		Fetcher:        fakeFetcher{assets: in},
		Upserter:       up,
		Cache:          cache.New(time.Minute),
		Mapping:        mapping.Options{SourceTag: "ninjaone"},
		MaxConcurrency: 2,
		Timeout:        time.Second,
	})

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 4, rep.Fetched)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 2, rep.Errors)
	assert.Equal(t, 0, rep.Skipped)
	assert.InDelta(t, 0.5, rep.ErrorRate, 1e-12)
	require.Len(t, rep.ErrorEntries, 2)
	assert.Equal(t, "77", rep.ErrorEntries[0].Asset)
	assert.Contains(t, rep.ErrorEntries[0].Error, "no hostname or name")
	assert.Equal(t, "bad", rep.ErrorEntries[1].Asset)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
	assert.GreaterOrEqual(t, rep.MeanLatencyMs, 0.0)
	assert.Equal(t, 2, ExitCode(rep))
	for _, c := range up.calls {
		assert.Equal(t, []string{"ninjaone"}, c.Tags)
	}
}

func TestRun_DryRunSkipsUpserts(t *testing.T) {
	up := &fakeUpserter{}
	r := NewRunner(Deps{Fetcher: fakeFetcher{assets: assets("a", "b")}, Upserter: up, DryRun: true})
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 2, rep.Skipped)
	assert.Zero(t, up.count())
	assert.Zero(t, rep.MeanLatencyMs)
	assert.Zero(t, rep.P95LatencyMs)
	assert.Equal(t, 0, ExitCode(rep))
}

func TestRun_FetchErrorAborts(t *testing.T) {
	r := NewRunner(Deps{Fetcher: fakeFetcher{err: errors.New("401")}, Upserter: &fakeUpserter{}})
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch assets")
}

func TestRun_EmptyFetchHasZeroRates(t *testing.T) {
	r := NewRunner(Deps{Fetcher: fakeFetcher{}, Upserter: &fakeUpserter{}})
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Fetched)
	assert.Zero(t, rep.ErrorRate)
	assert.Zero(t, rep.MeanLatencyMs)
	assert.NotNil(t, rep.ErrorEntries)
}

func TestRun_KeepCacheServesUnchangedAssets(t *testing.T) {
	up := &fakeUpserter{}
	c := cache.New(time.Minute)
	deps := Deps{Fetcher: fakeFetcher{assets: assets("a", "b")}, Upserter: up, Cache: c, KeepCache: true}

	first, err := NewRunner(deps).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Updated)

	second, err := NewRunner(deps).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, up.count())
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_RespectsMaxConcurrency(t *testing.T) {
	up := &fakeUpserter{delay: 20 * time.Millisecond}
	r := NewRunner(Deps{
		Fetcher:        fakeFetcher{assets: assets("a", "b", "c", "d", "e", "f")},
		Upserter:       up,
		MaxConcurrency: 2,
	})
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Updated)
	assert.LessOrEqual(t, up.peak.Load(), int32(2))
	assert.Greater(t, rep.P95LatencyMs, 0.0)
}

func TestRun_UpsertTimeoutCountsAsError(t *testing.T) {
	up := &fakeUpserter{delay: time.Second}
	r := NewRunner(Deps{Fetcher: fakeFetcher{assets: assets("slow")}, Upserter: up, Timeout: 20 * time.Millisecond})
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Errors)
	assert.InDelta(t, 1.0, rep.ErrorRate, 1e-12)
	assert.Equal(t, 2, ExitCode(rep))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(types.SyncReport{}))
	assert.Equal(t, 2, ExitCode(types.SyncReport{Errors: 3}))
}

func TestRun_EachRunPushesEveryAssetByDefault(t *testing.T) {
	up := &fakeUpserter{}
	r := NewRunner(Deps{Fetcher: fakeFetcher{assets: assets("a", "b")}, Upserter: up, Cache: cache.New(time.Minute)})

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, first.Updated)
	assert.Equal(t, 2, second.Updated)
	assert.Zero(t, second.Unchanged)
	assert.Equal(t, 4, up.count())
}

func TestRun_DuplicatePayloadWithinRunPushedOnce(t *testing.T) {
	up := &fakeUpserter{}
	r := NewRunner(Deps{Fetcher: fakeFetcher{assets: assets("a", "a")}, Upserter: up, Cache: cache.New(time.Minute)})
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.Unchanged)
	assert.Equal(t, 1, up.count())
}
