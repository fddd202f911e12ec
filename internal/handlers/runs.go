package handlers

import (
	"net/http"

	"github.com/example/assetsync/internal/safemath"
	"github.com/example/assetsync/internal/store"
	"github.com/example/assetsync/internal/types"
	"github.com/example/assetsync/pkg/jsonutil"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunsResponse is the JSON body of GET /api/runs.
type RunsResponse struct {
	Runs []types.SyncReport `json:"runs"`
}

// RunsHandler lists recent sync reports.
type RunsHandler struct {
	Store store.RunStore
}

func NewRunsHandler(s store.RunStore) *RunsHandler { return &RunsHandler{Store: s} }

func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonutil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "invalid limit: "+err.Error())
		return
	}
	runs, err := h.Store.Recent(r.Context(), limit)
	if err != nil {
		jsonutil.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []types.SyncReport{}
	}
	jsonutil.JSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// parseLimit clamps the limit query parameter into [1, maxRunsLimit].
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultRunsLimit, nil
	}
	n, err := safemath.Clamp(safemath.String(raw),
		safemath.Bound(safemath.Int(1)),
		safemath.Bound(safemath.Int(maxRunsLimit)))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
