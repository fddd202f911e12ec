package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/example/assetsync/internal/logging"
	"github.com/example/assetsync/internal/store"
	"github.com/example/assetsync/internal/types"
	"github.com/example/assetsync/pkg/jsonutil"
	"go.uber.org/zap"
)

// saveTimeout bounds persisting a finished report.
const saveTimeout = 10 * time.Second

// SyncRunner runs one sync. Implemented by *syncer.Runner.
type SyncRunner interface {
	Run(ctx context.Context) (types.SyncReport, error)
}

// SyncDeps bundles dependencies needed by the handler.
type SyncDeps struct {
	Runner  SyncRunner
	Store   store.RunStore
	Timeout time.Duration
	Logger  *zap.Logger
}

// SyncHandler triggers a sync on POST /api/sync. Only one run at a time.
type SyncHandler struct {
	Deps    SyncDeps
	running sync.Mutex
}

func NewSyncHandler(deps SyncDeps) *SyncHandler {
	deps.Logger = logging.OrNop(deps.Logger)
	return &SyncHandler{Deps: deps}
}

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonutil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.running.TryLock() {
		jsonutil.Error(w, http.StatusConflict, "sync already running")
		return
	}
	defer h.running.Unlock()

	ctx := r.Context()
	if h.Deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Deps.Timeout)
		defer cancel()
	}
	rep, err := h.Deps.Runner.Run(ctx)
	if err != nil {
		jsonutil.JSON(w, http.StatusBadGateway, jsonutil.ErrorBody{Error: err.Error(), RunID: rep.RunID})
		return
	}
	if h.Deps.Store != nil {
		// The run may have ended because ctx expired; the report is saved regardless.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer cancel()
		if err := h.Deps.Store.Save(saveCtx, rep); err != nil {
			h.Deps.Logger.Warn("failed to save sync report", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	jsonutil.JSON(w, http.StatusOK, rep)
}
