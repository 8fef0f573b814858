package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmunix/searchd/internal/admission"
	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/engine"
	"github.com/vmunix/searchd/internal/logging"
	"github.com/vmunix/searchd/internal/scheduler"
	"github.com/vmunix/searchd/internal/store"
)

// exitCodeError carries the process exit code a failure should produce,
// per the documented 0/1/2 contract: 0 success, 1 no instances configured,
// 2 an upstream error during a --once run.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func runScheduler(path string, once, force bool) error {
	resolvedPath, err := resolveConfigPath(path)
	if err != nil {
		return err
	}

	rc, err := config.Load(resolvedPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(rc.App.LogLevel)

	st, err := store.Open(rc.App.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	pacer := admission.NewPacer(time.Now)
	gate := admission.NewGate(st, pacer, time.Now)
	eng := engine.New(st, gate, time.Now, rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	totalInstances := len(rc.RadarrInstances) + len(rc.SonarrInstances)
	if totalInstances == 0 {
		return &exitCodeError{code: 1, err: errors.New("no Radarr or Sonarr instances configured")}
	}

	if once {
		return runOnceAndExit(eng, *rc, force, logger)
	}

	sched := scheduler.New(eng, st, *rc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Int("radarr_instances", len(rc.RadarrInstances)).Int("sonarr_instances", len(rc.SonarrInstances)).Msg("scheduler starting")

	if err := sched.Run(ctx, force); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}

	logger.Info().Msg("scheduler stopped")
	return nil
}

func runOnceAndExit(eng *engine.Engine, rc config.RuntimeConfig, force bool, logger zerolog.Logger) error {
	ctx := context.Background()
	var upstreamErr error

	runAll := func(appType string, instances []config.InstanceConfig) {
		for _, inst := range instances {
			if !inst.Enabled || !inst.Arr.Enabled {
				continue
			}
			stats, err := eng.RunInstance(ctx, rc, appType, inst, force, nil)
			if err != nil {
				logger.Error().Err(err).Str("app", appType).Int64("instance", inst.InstanceID).Msg("instance cycle failed")
				upstreamErr = err
				continue
			}
			if stats.Status != "success" && stats.Status != "quiet_hours" {
				logger.Warn().Str("app", appType).Int64("instance", inst.InstanceID).Str("status", stats.Status).Msg("instance cycle finished with non-success status")
				if upstreamErr == nil {
					upstreamErr = fmt.Errorf("%s instance %d: %s", appType, inst.InstanceID, stats.Status)
				}
			}
		}
	}

	runAll("radarr", rc.RadarrInstances)
	runAll("sonarr", rc.SonarrInstances)

	if upstreamErr != nil {
		return &exitCodeError{code: 2, err: upstreamErr}
	}
	return nil
}

// resolveConfigPath returns path unchanged if set, otherwise the standard
// discovery order; a discovery miss falls back to the XDG default path so
// config.Load can scaffold a fresh config there.
func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	discovered, err := config.Discover()
	if err != nil {
		return config.DefaultPath(), nil
	}
	return discovered, nil
}
