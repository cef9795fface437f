package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
	flagDryRun     bool
)

// resolvedCfg and resolvedPaths hold the effective configuration loaded
// by PersistentPreRunE, available to all subcommands afterwards.
var (
	resolvedCfg   *config.Config
	resolvedPaths config.Paths
)

// newRootCmd builds the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "meural-sync",
		Short:   "Sync a shared iCloud photo album to Meural playlists",
		Long:    "A daemon that mirrors a shared iCloud photo album onto Meural Canvas playlists:\nnew photos are uploaded and linked, removed photos are deleted, and photos with\nno remaining destination presence are parked in a review playlist.",
		Version: version,
		// Silence Cobra's default error/usage printing; errors are
		// reported through exitOnError.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default <config dir>/config.yaml)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "force JSON log output")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "log intended changes without touching Meural, the ledger, or staging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newOnceCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newPlaylistsCmd())

	return cmd
}

// loadConfig resolves paths for the current deployment mode and loads the
// effective configuration: defaults -> config file -> environment.
func loadConfig() error {
	env := config.ReadEnv()
	resolvedPaths = config.ResolvePaths(env.InContainer)

	path := flagConfigPath
	if path == "" {
		path = resolvedPaths.ConfigFile()
	}

	cfg, err := config.Resolve(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if flagDryRun {
		cfg.Settings.DryRun = true
	}

	resolvedCfg = cfg

	return nil
}

// buildLogger creates the process logger. The config-file level is the
// baseline; --verbose and --quiet override it because CLI flags always
// win. Output is human-readable text on a terminal and JSON otherwise;
// a configured log file receives the same stream with rotation.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stderr
	if resolvedCfg != nil && resolvedCfg.Logging.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   resolvedCfg.Logging.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	if flagJSON || !isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	return slog.New(slog.NewTextHandler(out, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
