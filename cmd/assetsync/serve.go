package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/assetsync/internal/auth"
	"github.com/example/assetsync/internal/handlers"
	apihttp "github.com/example/assetsync/internal/http"
	"github.com/example/assetsync/internal/rate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serveRunTimeout bounds a sync triggered over HTTP.
const serveRunTimeout = 10 * time.Minute

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the status server",
		Long: `Serves GET /healthz, POST /api/sync and GET /api/runs.

API routes require an X-API-Key listed in SYNC_API_KEYS. Run history is kept in
MongoDB when MONGO_URI is set, in memory otherwise.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return exitErr(1, err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs, closeStore, err := openStore(ctx, cfg, a.logger)
	if err != nil {
		return exitErr(1, err)
	}
	defer closeStore()

	runner, stopLimiter := newRunner(cfg, a.logger)
	defer stopLimiter()

	keys := auth.NewStaticKeyStore(cfg.APIKeys)
	if keys.Len() == 0 {
		a.logger.Warn("SYNC_API_KEYS is empty; every /api request will be rejected")
	}
	inbound := rate.NewLimiterMap(cfg.RateLimitRPM, cfg.RateLimitRPM, 5*time.Minute)
	defer inbound.Stop()

	sh := handlers.NewSyncHandler(handlers.SyncDeps{Runner: runner, Store: runs, Timeout: serveRunTimeout, Logger: a.logger})
	rh := handlers.NewRunsHandler(runs)
	router := apihttp.NewRouter(sh, rh, inbound, keys, runs, a.logger)

	srv := &http.Server{
		Addr:         ":" + sanitizePort(cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: serveRunTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return exitErr(1, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	return srv.Shutdown(shCtx)
}
