package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single sync cycle and exit",
		Long: `Run one reconciliation cycle for every configured album, then exit.
Useful with --dry-run to preview what the daemon would do, and for
cron-style scheduling instead of the built-in loop.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runOnce()
		},
	}
}

func runOnce() error {
	logger := buildLogger()
	slog.SetDefault(logger)

	ctx := shutdownContext(context.Background(), logger)

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.runCycle(ctx)
}
