package apihttp_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/assetsync/internal/auth"
	"github.com/example/assetsync/internal/handlers"
	apihttp "github.com/example/assetsync/internal/http"
	"github.com/example/assetsync/internal/rate"
	"github.com/example/assetsync/internal/store"
	"github.com/example/assetsync/internal/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePing struct{ err error }

func (f fakePing) Ping(context.Context) error { return f.err }

type stubRunner struct{}

func (stubRunner) Run(context.Context) (types.SyncReport, error) {
	now := time.Now().UTC()
	return types.SyncReport{RunID: "run-1", StartedAt: now, FinishedAt: now, Fetched: 2, Updated: 2}, nil
}

func newServer(t *testing.T, rpm int, health apihttp.Pinger) *httptest.Server {
	t.Helper()
	st := store.NewMemoryRunStore(10)
	sh := handlers.NewSyncHandler(handlers.SyncDeps{Runner: stubRunner{}, Store: st, Timeout: time.Second})
	rh := handlers.NewRunsHandler(st)
	lm := rate.NewLimiterMap(rpm, rpm, time.Minute)
	t.Cleanup(lm.Stop)
	keys := auth.NewStaticKeyStore([]string{"dev-123"})
	ts := httptest.NewServer(apihttp.NewRouter(sh, rh, lm, keys, health, nil))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, key string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	cases := []struct {
		name   string
		health apihttp.Pinger
		want   int
	}{
		{"no store", nil, http.StatusOK},
		{"store ok", fakePing{}, http.StatusOK},
		{"store down", fakePing{err: errors.New("down")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, newServer(t, 1000, tc.health), http.MethodGet, "/healthz", "", nil)
			assert.Equal(t, tc.want, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	resp := do(t, newServer(t, 1000, nil), http.MethodGet, "/healthz", "", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", resp.Header.Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	ts := newServer(t, 1000, nil)
	assert.Equal(t, http.StatusUnauthorized, do(t, ts, http.MethodGet, "/api/runs", "", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, ts, http.MethodGet, "/api/runs", "bad-key", nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/api/runs", "dev-123", nil).StatusCode)
}

func TestSyncThenRuns(t *testing.T) {
	ts := newServer(t, 1000, nil)
	resp := do(t, ts, http.MethodPost, "/api/sync", "dev-123", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, ts, http.MethodGet, "/api/runs?limit=5", "dev-123", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body handlers.RunsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-1", body.Runs[0].RunID)
}

func TestRateLimit429(t *testing.T) {
	ts := newServer(t, 5, nil)
	var got429 int
	for i := 0; i < 6; i++ {
		if do(t, ts, http.MethodGet, "/healthz", "", nil).StatusCode == http.StatusTooManyRequests {
			got429++
		}
	}
	assert.Equal(t, 1, got429)
}

func TestCompression(t *testing.T) {
	ts := newServer(t, 1000, nil)

	resp := do(t, ts, http.MethodGet, "/healthz", "", map[string]string{"Accept-Encoding": "gzip"})
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	gr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	b, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(b))

	resp = do(t, ts, http.MethodGet, "/healthz", "", map[string]string{"Accept-Encoding": "zstd, gzip"})
	require.Equal(t, "zstd", resp.Header.Get("Content-Encoding"))
	zr, err := zstd.NewReader(resp.Body)
	require.NoError(t, err)
	defer zr.Close()
	b, err = io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(b))

	resp = do(t, ts, http.MethodGet, "/healthz", "", map[string]string{"Accept-Encoding": "identity"})
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}
