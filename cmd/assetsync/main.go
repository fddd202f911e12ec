package main

import (
	"fmt"
	"io"
	"os"

	"github.com/example/assetsync/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries the global flags and the logger built from them.
type app struct {
	verbose    bool
	configPath string
	dryRun     bool
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "assetsync",
		Short: "Sync NinjaOne devices into the Freshservice CMDB",
		Long: `assetsync reads every device from NinjaOne, maps it onto a Freshservice
configuration item and upserts it.

Run "assetsync sync" for a one-shot run, or "assetsync serve" to expose
on-demand runs and run history over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lg, err := logging.New(a.verbose)
			if err != nil {
				return err
			}
			a.logger = lg
			zap.ReplaceGlobals(lg)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (defaults to $ASSETSYNC_CONFIG)")
	root.AddCommand(a.newSyncCmd(), a.newServeCmd())
	return root
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitCodeFor(err)
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
