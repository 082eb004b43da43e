// Command advisory-etl pulls the State Department travel advisory feed into an
// append-only history and renders the latest level per country.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/travel-advisory-etl/internal/adapter/http"
	"github.com/couchcryptid/travel-advisory-etl/internal/config"
	"github.com/spf13/cobra"
)

var (
	watchMode bool
	interval  time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "advisory-etl",
		Short: "Fetch travel advisories and update the advisory history",
		Long: `advisory-etl reads the State Department travel advisory feed, normalizes
each entry to an ISO country record, appends the batch to the history store,
and renders the latest level per country.`,
		SilenceUsage: true,
		RunE:         runRoot,
	}
	rootCmd.Flags().BoolVar(&watchMode, "watch", false, "Keep running on an interval and serve /healthz, /readyz, /metrics")
	rootCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Run interval in watch mode (default RUN_INTERVAL)")

	addLatestCmd(rootCmd)
	addChangesCmd(rootCmd)
	addValidateCmd(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads configuration, wires the job, and closes it after fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	return fn(ctx, a)
}

func runRoot(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		if watchMode {
			return runWatch(ctx, a)
		}

		sum, err := a.pipeline.RunOnce(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Appended %d records (%d changed, %d published)\n", sum.Appended, sum.Changed, sum.Published)
		for _, g := range sum.Gaps {
			cmd.PrintErrf("warning: %s\n", g)
		}
		if sum.Rendered {
			fmt.Fprintf(out, "Map saved to %s\n", a.cfg.MapOutputPath)
		}
		return nil
	})
}

func runWatch(ctx context.Context, a *app) error {
	every := interval
	if every <= 0 {
		every = a.cfg.RunInterval
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.pipeline, a.pipeline, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	err := a.pipeline.Run(ctx, every)

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("http server shutdown error", "error", serr)
	}
	a.logger.Info("shutdown complete")
	return err
}
