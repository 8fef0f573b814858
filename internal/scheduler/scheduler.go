// Package scheduler runs one independent loop per enabled Radarr/Sonarr
// instance, each sleeping until its own next_sync_time and serialized
// against every other instance through a single non-blocking run lock so
// Arr calls never overlap.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/engine"
)

// schedulerStore is the slice of *store.Store the scheduler needs, kept
// narrow for test fakes.
type schedulerStore interface {
	SetSchedulerHeartbeat() error
	GetNextSyncTime(app string, instanceID int64) (*time.Time, error)
	GetAutorunEnabled() (bool, error)
}

// cycleRunner is the engine's RunInstance, narrowed to an interface so
// scheduler loop behavior can be tested without a real Arr/store stack.
type cycleRunner interface {
	RunInstance(ctx context.Context, rc config.RuntimeConfig, appType string, inst config.InstanceConfig, force bool, progress chan<- engine.Event) (engine.CycleStats, error)
}

// Scheduler supervises one goroutine per configured instance.
type Scheduler struct {
	Engine cycleRunner
	Store  schedulerStore
	Config config.RuntimeConfig
	Logger zerolog.Logger

	// Progress, if non-nil, receives every engine.Event from every running
	// cycle; a slow or absent subscriber never blocks a cycle.
	Progress chan<- engine.Event

	Now func() time.Time

	runLock sync.Mutex

	DisabledPollInterval time.Duration
	LockRetryInterval    time.Duration
	ErrorBackoff         time.Duration
}

// New builds a Scheduler with its default polling cadence.
func New(eng cycleRunner, st schedulerStore, rc config.RuntimeConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		Engine:               eng,
		Store:                st,
		Config:               rc,
		Logger:               logger,
		Now:                  time.Now,
		DisabledPollInterval: 5 * time.Second,
		LockRetryInterval:    1 * time.Second,
		ErrorBackoff:         5 * time.Second,
	}
}

// Run starts one loop per enabled instance and blocks until ctx is
// cancelled or a loop returns a non-nil error. When force is true, every
// enabled instance runs once immediately before settling into its normal
// due-time loop.
func (s *Scheduler) Run(ctx context.Context, force bool) error {
	g, ctx := errgroup.WithContext(ctx)

	if force {
		s.forceStartupRun(ctx)
	}

	for _, inst := range s.Config.RadarrInstances {
		inst := inst
		g.Go(func() error { return s.instanceLoop(ctx, "radarr", inst) })
	}
	for _, inst := range s.Config.SonarrInstances {
		inst := inst
		g.Go(func() error { return s.instanceLoop(ctx, "sonarr", inst) })
	}

	return g.Wait()
}

func (s *Scheduler) forceStartupRun(ctx context.Context) {
	for _, inst := range s.Config.RadarrInstances {
		s.runOnce(ctx, "radarr", inst, true)
	}
	for _, inst := range s.Config.SonarrInstances {
		s.runOnce(ctx, "sonarr", inst, true)
	}
}

// instanceLoop is the per-instance supervision loop: heartbeat, due-time
// check, serialized run, repeat. It never returns except when ctx is
// cancelled.
func (s *Scheduler) instanceLoop(ctx context.Context, appType string, inst config.InstanceConfig) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := s.Store.SetSchedulerHeartbeat(); err != nil {
			s.Logger.Error().Err(err).Msg("heartbeat failed")
		}

		if !inst.Enabled || !inst.Arr.Enabled {
			if !s.sleep(ctx, s.DisabledPollInterval) {
				return nil
			}
			continue
		}

		autorun, err := s.Store.GetAutorunEnabled()
		if err == nil && !autorun {
			if !s.sleep(ctx, s.DisabledPollInterval) {
				return nil
			}
			continue
		}

		next, err := s.Store.GetNextSyncTime(appType, inst.InstanceID)
		if err == nil && next != nil && s.Now().Before(*next) {
			if !s.sleepUntil(ctx, *next) {
				return nil
			}
			continue
		}

		if !s.acquireRunLock(ctx) {
			return nil
		}
		_, runErr := s.Engine.RunInstance(ctx, s.Config, appType, inst, false, s.Progress)
		s.runLock.Unlock()

		if runErr != nil {
			s.Logger.Error().Err(runErr).Str("app", appType).Int64("instance", inst.InstanceID).Msg("instance cycle failed")
			if !s.sleep(ctx, s.ErrorBackoff) {
				return nil
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, appType string, inst config.InstanceConfig, force bool) {
	if !s.acquireRunLock(ctx) {
		return
	}
	defer s.runLock.Unlock()
	if _, err := s.Engine.RunInstance(ctx, s.Config, appType, inst, force, s.Progress); err != nil {
		s.Logger.Error().Err(err).Str("app", appType).Int64("instance", inst.InstanceID).Msg("forced startup run failed")
	}
}

// acquireRunLock retries TryLock at LockRetryInterval so every instance
// loop shares one global Arr-call lock without blocking indefinitely on a
// cancelled context. Returns false if ctx was cancelled before the lock
// was acquired.
func (s *Scheduler) acquireRunLock(ctx context.Context) bool {
	for {
		if s.runLock.TryLock() {
			return true
		}
		if !s.sleep(ctx, s.LockRetryInterval) {
			return false
		}
	}
}

// sleep waits for d or ctx cancellation, returning false if cancelled.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// sleepUntil waits until due or ctx cancellation, returning false if
// cancelled.
func (s *Scheduler) sleepUntil(ctx context.Context, due time.Time) bool {
	d := due.Sub(s.Now())
	if d <= 0 {
		return true
	}
	return s.sleep(ctx, d)
}
