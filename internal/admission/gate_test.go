package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	cooldownItems map[string]bool
	eventCounts   map[string]int
	lastHours     float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{cooldownItems: map[string]bool{}, eventCounts: map[string]int{}}
}

func (f *fakeStore) ItemOnCooldown(app string, instanceID int64, itemKey string, hours float64) (bool, error) {
	f.lastHours = hours
	return f.cooldownItems[itemKey], nil
}

func (f *fakeStore) CountSearchEventsSince(app string, instanceID int64, since time.Time) (int, error) {
	return f.eventCounts[app], nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEvaluate_DuplicateSkipped(t *testing.T) {
	now := time.Now().UTC()
	gate := NewGate(newFakeStore(), NewPacer(fixedNow(now)), fixedNow(now))
	cycle := NewCycle(10, 10)
	cycle.MarkTriggered("movie:1", false)

	v, err := gate.Evaluate(context.Background(), cycle, Request{App: "radarr", ItemKey: "movie:1"})
	require.NoError(t, err)
	require.Equal(t, VerdictSkipDuplicate, v)
}

func TestEvaluate_ReleaseGateBlocksAndProposesWakeup(t *testing.T) {
	now := time.Now().UTC()
	released := now.Add(-1 * time.Hour)
	gate := NewGate(newFakeStore(), NewPacer(fixedNow(now)), fixedNow(now))
	cycle := NewCycle(10, 10)

	v, err := gate.Evaluate(context.Background(), cycle, Request{
		App: "radarr", ItemKey: "movie:1", ReleasedAt: &released, MinHoursAfterRelease: 5,
	})
	require.NoError(t, err)
	require.Equal(t, VerdictSkipNotReleased, v)
	require.NotNil(t, cycle.ProposedWakeup)
	require.True(t, cycle.ProposedWakeup.Equal(released.Add(5*time.Hour)))
}

func TestEvaluate_RateCapBlocks(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	store.eventCounts["radarr"] = 5
	gate := NewGate(store, NewPacer(fixedNow(now)), fixedNow(now))
	cycle := NewCycle(10, 10)

	v, err := gate.Evaluate(context.Background(), cycle, Request{
		App: "radarr", ItemKey: "movie:1", RateCap: 5, RateCapWindow: time.Hour,
	})
	require.NoError(t, err)
	require.Equal(t, VerdictSkipRateLimit, v)
}

func TestEvaluate_CooldownBlocks(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	store.cooldownItems["movie:1"] = true
	gate := NewGate(store, NewPacer(fixedNow(now)), fixedNow(now))
	cycle := NewCycle(10, 10)

	v, err := gate.Evaluate(context.Background(), cycle, Request{
		App: "radarr", ItemKey: "movie:1", RetryHours: 12,
	})
	require.NoError(t, err)
	require.Equal(t, VerdictSkipCooldown, v)
}

func TestEvaluate_RecentContentClampsCooldownTo6Hours(t *testing.T) {
	now := time.Now().UTC()
	released := now.Add(-1 * time.Hour)
	store := newFakeStore()
	gate := NewGate(store, NewPacer(fixedNow(now)), fixedNow(now))
	cycle := NewCycle(10, 10)

	// Cooldown lookup receives the clamped 6h window, not the configured 48h.
	v, err := gate.Evaluate(context.Background(), cycle, Request{
		App: "radarr", ItemKey: "movie:1", ReleasedAt: &released, RetryHours: 48,
	})
	require.NoError(t, err)
	require.Equal(t, VerdictTrigger, v)
	require.Equal(t, 6.0, store.lastHours)
}

func TestEvaluate_CapReached(t *testing.T) {
	now := time.Now().UTC()
	gate := NewGate(newFakeStore(), NewPacer(fixedNow(now)), fixedNow(now))
	cycle := NewCycle(1, 10)
	cycle.MarkTriggered("movie:other", false)

	v, err := gate.Evaluate(context.Background(), cycle, Request{App: "radarr", ItemKey: "movie:1"})
	require.NoError(t, err)
	require.Equal(t, VerdictSkipCapReached, v)
}

func TestEvaluate_TriggerAdvancesPacer(t *testing.T) {
	now := time.Now().UTC()
	pacer := NewPacer(fixedNow(now))
	var slept time.Duration
	pacer.Sleep = func(d time.Duration) { slept = d }
	gate := NewGate(newFakeStore(), pacer, fixedNow(now))
	cycle := NewCycle(10, 10)

	v, err := gate.Evaluate(context.Background(), cycle, Request{
		App: "radarr", ItemKey: "movie:1", MinSecondsBetweenActions: 30 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, VerdictTrigger, v)
	require.Zero(t, slept, "first trigger should not need to wait")

	v, err = gate.Evaluate(context.Background(), cycle, Request{
		App: "radarr", ItemKey: "movie:2", MinSecondsBetweenActions: 30 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, VerdictTrigger, v)
	require.Equal(t, 30*time.Second, slept, "second trigger within the window should wait the remaining interval")
}
