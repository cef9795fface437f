package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long: `Run the reconciliation loop: sync every configured album, sleep for the
configured interval, repeat. SIGINT or SIGTERM stops the loop after the
current operation.

Fatal errors (bad task configuration, staging integrity failures) do not
exit the process: they are logged and the daemon idles until an operator
fixes the problem and restarts it. In a container, exiting would just
trigger an immediate restart into the same error.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon()
		},
	}
}

func runDaemon() error {
	logger := buildLogger()
	slog.SetDefault(logger)

	ctx := shutdownContext(context.Background(), logger)

	a, err := newApp(ctx, logger)
	if err != nil {
		// Startup failures halt in place for the same reason fatal cycle
		// errors do, unless we were interrupted while starting up.
		if ctx.Err() != nil {
			return nil
		}

		haltForOperator(ctx, logger, err)

		return nil
	}
	defer a.Close()

	interval := a.cfg.Settings.PollInterval()

	logger.Info("daemon started",
		slog.String("version", version),
		slog.Int("tasks", len(a.cfg.Sync)),
		slog.Duration("interval", interval),
		slog.Bool("dry_run", a.cfg.Settings.DryRun),
	)

	for {
		err := a.runCycle(ctx)

		switch {
		case err == nil:
		case ctx.Err() != nil:
			// Interrupted mid-cycle; the error just reflects the
			// cancellation.
			return nil
		case fatalCycleError(err):
			haltForOperator(ctx, logger, err)

			return nil
		default:
			logger.Error("cycle failed, retrying next interval", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			logger.Info("daemon stopped")

			return nil
		case <-time.After(interval):
		}
	}
}

// haltForOperator logs a fatal condition and blocks until the process is
// signalled. Cycling on broken state would repeat the same damage every
// interval; exiting would loop through the container restart policy.
func haltForOperator(ctx context.Context, logger *slog.Logger, err error) {
	logger.Error("fatal error, halting until operator intervention and restart",
		slog.String("error", err.Error()),
	)

	<-ctx.Done()
}
