// Package webui serves the HTTP API and dashboard used to operate a
// searchd instance interactively: status, manual run triggers, settings
// editing, and credential management. It is a thin operational surface
// over the same engine and store the scheduler daemon uses.
package webui

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/crypto"
	"github.com/vmunix/searchd/internal/engine"
	"github.com/vmunix/searchd/internal/store"
)

// instanceRunner is the engine's RunInstance, narrowed for test fakes.
type instanceRunner interface {
	RunInstance(ctx context.Context, rc config.RuntimeConfig, appType string, inst config.InstanceConfig, force bool, progress chan<- engine.Event) (engine.CycleStats, error)
}

// webuiStore is the slice of *store.Store the Web UI depends on.
type webuiStore interface {
	GetWebUIPasswordHash() (string, error)
	SetWebUIPasswordHash(hash string) error
	GetAutorunEnabled() (bool, error)
	SetAutorunEnabled(enabled bool) error
	HasArrAPIKey(app string, instanceID int64) (bool, error)
	ClearArrAPIKey(app string, instanceID int64) error
	SetArrAPIKey(app string, instanceID int64, apiKey string) error
	GetSyncStatuses() ([]store.SyncStatus, error)
	GetRecentRuns(limit int) ([]store.Run, error)
	GetLastInstanceRun(app string, instanceID int64) (*store.Run, error)
	GetRecentSearchActions(app string, instanceID int64, limit int) ([]store.SearchAction, error)
	CountSearchEventsSince(app string, instanceID int64, since time.Time) (int, error)
	GetSchedulerHeartbeat() (*time.Time, error)
}

// Server holds every dependency the HTTP handlers need. A Server is safe
// for concurrent use; configMu guards the live config, runMu lets only one
// Web UI-triggered run proceed at a time. runMu is not shared with the
// scheduler daemon's run lock.
type Server struct {
	Store      webuiStore
	Engine     instanceRunner
	ConfigPath string
	Logger     zerolog.Logger
	Now        func() time.Time

	configMu sync.RWMutex
	config   config.RuntimeConfig

	runMu sync.Mutex
	state *runState
}

// NewServer builds a Server bound to one already-loaded config.
func NewServer(st webuiStore, eng instanceRunner, configPath string, rc config.RuntimeConfig, logger zerolog.Logger) *Server {
	return &Server{
		Store:      st,
		Engine:     eng,
		ConfigPath: configPath,
		Logger:     logger,
		Now:        time.Now,
		config:     rc,
		state:      newRunState(),
	}
}

// BootstrapPasswordFromEnv sets the Web UI password from SEARCHD_WEBUI_PASSWORD
// on first startup only, mirroring the original's one-time env-var bootstrap
// so a container can ship a password without a manual /api/auth/bootstrap
// call. It is a no-op once a password has already been set.
func (s *Server) BootstrapPasswordFromEnv() error {
	hash, err := s.Store.GetWebUIPasswordHash()
	if err != nil {
		return err
	}
	if hash != "" {
		return nil
	}
	envPW := strings.TrimSpace(os.Getenv("SEARCHD_WEBUI_PASSWORD"))
	if envPW == "" {
		return nil
	}
	newHash, err := crypto.HashPassword(envPW)
	if err != nil {
		return err
	}
	return s.Store.SetWebUIPasswordHash(newHash)
}

func (s *Server) currentConfig() config.RuntimeConfig {
	s.configMu.RLock()
	defer s.configMu.RUnlock()
	return s.config
}

func (s *Server) reloadConfig() error {
	rc, err := config.Load(s.ConfigPath)
	if err != nil {
		return err
	}
	s.configMu.Lock()
	s.config = *rc
	s.configMu.Unlock()
	return nil
}

// instanceName looks up an instance's display name for run-state
// bookkeeping; absent a match it falls back to empty.
func (s *Server) instanceName(appType string, instanceID int64) string {
	rc := s.currentConfig()
	list := rc.RadarrInstances
	if appType == "sonarr" {
		list = rc.SonarrInstances
	}
	for _, inst := range list {
		if inst.InstanceID == instanceID {
			return inst.InstanceName
		}
	}
	return ""
}

// tryAcquireRun attempts the non-blocking run lock the way the Python
// original's run_lock.acquire(blocking=False) does: returns false
// immediately if a run is already in progress rather than queuing.
func (s *Server) tryAcquireRun() bool {
	return s.runMu.TryLock()
}

// runAsync starts runFn in its own goroutine, draining progress events
// into the shared run state until runFn returns, then releases the run
// lock. Callers must have already acquired it via tryAcquireRun.
func (s *Server) runAsync(force bool, runFn func(progress chan<- engine.Event) error) {
	now := s.Now()
	s.state.mu.Lock()
	s.state.Running = true
	s.state.Force = force
	s.state.StartedAt = &now
	s.state.Error = ""
	s.state.mu.Unlock()

	progress := make(chan engine.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress {
			s.state.applyEvent(ev, s.Now(), s.instanceName)
		}
	}()

	go func() {
		defer s.runMu.Unlock()
		defer close(progress)
		if err := runFn(progress); err != nil {
			s.Logger.Error().Err(err).Msg("run failed")
			<-done
			s.state.setError(err.Error())
			return
		}
		<-done
	}()
}

// runAllEnabled runs every enabled configured instance once, in
// declaration order, mirroring the original's single-threaded run_cycle.
func (s *Server) runAllEnabled(ctx context.Context, force bool, progress chan<- engine.Event) error {
	rc := s.currentConfig()
	var firstErr error
	for _, inst := range rc.RadarrInstances {
		if !inst.Enabled || !inst.Arr.Enabled {
			continue
		}
		if _, err := s.Engine.RunInstance(ctx, rc, "radarr", inst, force, progress); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, inst := range rc.SonarrInstances {
		if !inst.Enabled || !inst.Arr.Enabled {
			continue
		}
		if _, err := s.Engine.RunInstance(ctx, rc, "sonarr", inst, force, progress); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
