package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/assetsync/internal/report"
	"github.com/example/assetsync/internal/syncer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and print the report",
		Long: `Fetches all NinjaOne devices, upserts them into Freshservice and prints a summary.

Exit codes:
  0  every asset synced (or skipped in dry-run mode)
  1  configuration error or the NinjaOne fetch failed
  2  the run finished but at least one asset failed`,
		Args: cobra.NoArgs,
		RunE: a.runSync,
	}
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "map assets without writing to Freshservice")
	return cmd
}

func (a *app) runSync(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return exitErr(1, err)
	}
	if a.dryRun {
		cfg.DryRun = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, stopLimiter := newRunner(cfg, a.logger)
	defer stopLimiter()

	rep, err := runner.Run(ctx)
	if err != nil {
		return exitErr(1, err)
	}

	if cfg.MongoURI != "" {
		// An interrupted run still gets recorded.
		detached := context.WithoutCancel(ctx)
		runs, closeStore, err := openStore(detached, cfg, a.logger)
		if err != nil {
			a.logger.Warn("run history unavailable", zap.Error(err))
		} else {
			saveReport(detached, runs, rep, a.logger)
			closeStore()
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render(rep))
	if code := syncer.ExitCode(rep); code != 0 {
		return exitErr(code, fmt.Errorf("%d of %d assets failed", rep.Errors, rep.Fetched))
	}
	return nil
}
