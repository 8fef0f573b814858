package scheduler

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/engine"
)

type fakeSchedulerStore struct {
	mu            sync.Mutex
	heartbeats    int
	nextSyncTimes map[string]*time.Time
	autorun       bool
}

func newFakeSchedulerStore() *fakeSchedulerStore {
	return &fakeSchedulerStore{nextSyncTimes: map[string]*time.Time{}, autorun: true}
}

func (f *fakeSchedulerStore) GetAutorunEnabled() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.autorun, nil
}

func (f *fakeSchedulerStore) SetSchedulerHeartbeat() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeSchedulerStore) GetNextSyncTime(app string, instanceID int64) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextSyncTimes[key(app, instanceID)], nil
}

func key(app string, instanceID int64) string { return app + ":" + strconv.FormatInt(instanceID, 10) }

type fakeRunner struct {
	calls int32
	delay time.Duration
}

func (f *fakeRunner) RunInstance(ctx context.Context, rc config.RuntimeConfig, appType string, inst config.InstanceConfig, force bool, progress chan<- engine.Event) (engine.CycleStats, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return engine.CycleStats{Status: "success"}, nil
}

func silentLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestInstanceLoop_SkipsDisabledInstance(t *testing.T) {
	st := newFakeSchedulerStore()
	runner := &fakeRunner{}
	s := New(runner, st, config.RuntimeConfig{}, silentLogger())
	s.DisabledPollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	inst := config.InstanceConfig{InstanceID: 1, Enabled: false}
	_ = s.instanceLoop(ctx, "radarr", inst)

	require.Equal(t, int32(0), runner.calls)
	require.Greater(t, st.heartbeats, 0)
}

func TestInstanceLoop_RunsWhenDue(t *testing.T) {
	st := newFakeSchedulerStore()
	runner := &fakeRunner{}
	s := New(runner, st, config.RuntimeConfig{}, silentLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	inst := config.InstanceConfig{InstanceID: 1, Enabled: true, Arr: config.ArrConfig{Enabled: true}}
	_ = s.instanceLoop(ctx, "radarr", inst)

	require.Greater(t, int(atomic.LoadInt32(&runner.calls)), 0)
}

func TestInstanceLoop_SleepsUntilNextSyncTime(t *testing.T) {
	st := newFakeSchedulerStore()
	future := time.Now().Add(50 * time.Millisecond)
	st.nextSyncTimes[key("radarr", 1)] = &future
	runner := &fakeRunner{}
	s := New(runner, st, config.RuntimeConfig{}, silentLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	inst := config.InstanceConfig{InstanceID: 1, Enabled: true, Arr: config.ArrConfig{Enabled: true}}
	_ = s.instanceLoop(ctx, "radarr", inst)

	require.Equal(t, int32(0), atomic.LoadInt32(&runner.calls))
}

func TestAcquireRunLock_SerializesConcurrentInstances(t *testing.T) {
	st := newFakeSchedulerStore()
	runner := &fakeRunner{delay: 10 * time.Millisecond}
	s := New(runner, st, config.RuntimeConfig{}, silentLogger())
	s.LockRetryInterval = 2 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runOnce(ctx, "radarr", config.InstanceConfig{InstanceID: 1}, true)
	}()
	go func() {
		defer wg.Done()
		s.runOnce(ctx, "sonarr", config.InstanceConfig{InstanceID: 1}, true)
	}()
	wg.Wait()

	require.Equal(t, int32(2), atomic.LoadInt32(&runner.calls))
}

func TestRun_ForceRunsEveryEnabledInstanceOnStartup(t *testing.T) {
	st := newFakeSchedulerStore()
	runner := &fakeRunner{}
	rc := config.RuntimeConfig{
		RadarrInstances: []config.InstanceConfig{{InstanceID: 1, Enabled: true, Arr: config.ArrConfig{Enabled: true}}},
		SonarrInstances: []config.InstanceConfig{{InstanceID: 2, Enabled: true, Arr: config.ArrConfig{Enabled: true}}},
	}
	s := New(runner, st, rc, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.forceStartupRun(ctx)
	cancel()

	require.Equal(t, int32(2), atomic.LoadInt32(&runner.calls))
}
