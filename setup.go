package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gofrs/flock"

	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/config"
	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/icloud"
	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/meural"
	"github.com/MikeFez/MeuralCanvas-iCloudSync/internal/sync"
)

// app wires together everything a sync command needs: configuration,
// the single-instance lock, the ledger, the staging area, authenticated
// clients, and the engine.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	lock    *flock.Flock
	ledger  *sync.Ledger
	staging *sync.Staging
	engine  *sync.Engine
}

// newApp performs the full startup sequence. Every failure here is fatal:
// a daemon that cannot verify its directories, its staged files, or its
// credentials must not start cycling.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg := resolvedCfg
	paths := resolvedPaths

	if err := paths.Verify(); err != nil {
		return nil, err
	}

	lock := flock.New(paths.LockFile())

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring instance lock: %w", err)
	}

	if !locked {
		return nil, fmt.Errorf("another instance is already running (lock held on %s)", paths.LockFile())
	}

	ledger, err := sync.OpenLedger(paths.LedgerFile(), logger)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	staging := sync.NewStaging(paths.ImageDir, logger)

	// Startup integrity pass: every ledger entry's staged file must be
	// accounted for before any destination call is made.
	if err := staging.Verify(ledger); err != nil {
		lock.Unlock()
		return nil, err
	}

	meuralClient, err := newMeuralClient(ctx, cfg, logger)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	icloudClient := icloud.NewClient(icloud.DefaultBaseURL, &http.Client{
		Timeout: cfg.Settings.UploadRequestTimeout(),
	}, logger)

	engine, err := sync.NewEngine(&sync.EngineConfig{
		Source:             icloudClient,
		Destination:        meuralClient,
		Ledger:             ledger,
		Staging:            staging,
		Logger:             logger,
		QuarantinePlaylist: cfg.Settings.QuarantinePlaylist,
		Orientation:        cfg.Settings.Orientation,
		DryRun:             cfg.Settings.DryRun,
	})
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	if cfg.Settings.DryRun {
		logger.Info("dry-run mode: no changes will be made")
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		lock:    lock,
		ledger:  ledger,
		staging: staging,
		engine:  engine,
	}, nil
}

// newMeuralClient builds and authenticates the destination client.
func newMeuralClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*meural.Client, error) {
	creds := config.CredentialsFromEnv()
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("%s and %s must be set", config.EnvMeuralUsername, config.EnvMeuralPassword)
	}

	client := meural.NewClient(creds.Username, creds.Password, meural.Options{
		Timeout:       cfg.Settings.RequestTimeout(),
		UploadTimeout: cfg.Settings.UploadRequestTimeout(),
		VerifyTLS:     cfg.Settings.VerifyTLS(),
		Logger:        logger,
	})

	if err := client.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("authenticating with Meural: %w", err)
	}

	return client, nil
}

// Close releases the single-instance lock.
func (a *app) Close() {
	a.lock.Unlock()
}

// panicError marks a cycle that panicked. Treated like a fatal error:
// state may be mid-mutation, so the process idles for an operator instead
// of cycling on.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("cycle panicked: %v", e.value)
}

// runCycle runs one reconciliation cycle with panic containment.
func (a *app) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic during cycle",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			err = &panicError{value: r}
		}
	}()

	_, err = a.engine.RunCycle(ctx, a.cfg.Sync)

	return err
}

// fatalCycleError reports whether a cycle error requires halting instead
// of waiting for the next cycle.
func fatalCycleError(err error) bool {
	var panicErr *panicError

	return sync.Fatal(err) || errors.As(err, &panicErr)
}
