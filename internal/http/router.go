package apihttp

import (
	"context"
	"net/http"

	"github.com/example/assetsync/internal/auth"
	"github.com/example/assetsync/internal/handlers"
	"github.com/example/assetsync/internal/logging"
	"github.com/example/assetsync/internal/rate"
	"github.com/example/assetsync/pkg/jsonutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger reports backend health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires routes and middlewares. health may be nil.
func NewRouter(sh *handlers.SyncHandler, rh *handlers.RunsHandler, lm *rate.LimiterMap, keys auth.APIKeyStore, health Pinger, lg *zap.Logger) http.Handler {
	lg = logging.OrNop(lg)
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(lg))
	r.Use(middleware.Recoverer)
	r.Use(Compression)
	r.Use(RateLimit(lm))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.Ping(r.Context()); err != nil {
				lg.Warn("health check failed", zap.Error(err))
				jsonutil.JSON(w, http.StatusInternalServerError, map[string]string{"status": "unhealthy"})
				return
			}
		}
		jsonutil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(Auth(keys))
		api.Post("/sync", sh.ServeHTTP)
		api.Get("/runs", rh.ServeHTTP)
	})

	return r
}
