package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmunix/searchd/internal/admission"
	"github.com/vmunix/searchd/internal/arr"
	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/store"
)

const wakeupFloor = 30 * time.Second

// engineStore is the slice of *store.Store the engine depends on, narrowed
// so tests can substitute a fake.
type engineStore interface {
	GetArrAPIKey(app string, instanceID int64) (string, error)
	SetNextSyncTime(app string, instanceID int64, next time.Time) error
	UpsertSyncStatus(app string, instanceID int64, last, next time.Time) error
	StartRun() (int64, error)
	FinishRun(cycleID int64, status, statsJSON string) error
	RecordInstanceRun(cycleID int64, app string, instanceID int64, started, finished time.Time, status, statsJSON string) error
	MarkItemAction(app string, instanceID int64, itemKey, title string) error
	RecordSearchEvent(app string, instanceID int64) error
	RecordSearchAction(app string, instanceID int64, itemKey, title string) error
}

// Engine orchestrates one instance's cycle: fetch, order, admit, trigger.
type Engine struct {
	Store       engineStore
	Gate        *admission.Gate
	Now         func() time.Time
	Rand        *rand.Rand
	HTTPTimeout time.Duration
	Logger      zerolog.Logger
}

// New builds an Engine. gate's Pacer must be shared across every Engine
// instance in the process so pacing is enforced across apps and instances.
// logger is passed through to every arr.Client this Engine constructs, so
// trigger failures are logged against it.
func New(st *store.Store, gate *admission.Gate, now func() time.Time, rng *rand.Rand, logger zerolog.Logger) *Engine {
	return &Engine{Store: st, Gate: gate, Now: now, Rand: rng, HTTPTimeout: 30 * time.Second, Logger: logger}
}

// RunInstance runs exactly one cycle for one (appType, instance) pair.
func (e *Engine) RunInstance(ctx context.Context, rc config.RuntimeConfig, appType string, inst config.InstanceConfig, force bool, progress chan<- Event) (CycleStats, error) {
	stats := CycleStats{Status: "success"}
	cycleID, err := e.Store.StartRun()
	if err != nil {
		return stats, fmt.Errorf("start cycle run: %w", err)
	}
	publish(progress, Event{Kind: EventCycleStarted, App: appType, InstanceID: inst.InstanceID})
	publish(progress, Event{Kind: EventInstanceStarted, App: appType, InstanceID: inst.InstanceID})

	startedAt := e.Now()
	var runErr error

	defer func() {
		finishedAt := e.Now()
		statsJSON, _ := json.Marshal(stats)
		_ = e.Store.RecordInstanceRun(cycleID, appType, inst.InstanceID, startedAt, finishedAt, stats.Status, string(statsJSON))
		_ = e.Store.FinishRun(cycleID, stats.Status, string(statsJSON))
		publish(progress, Event{Kind: EventInstanceFinished, App: appType, InstanceID: inst.InstanceID})
		publish(progress, Event{Kind: EventCycleFinished, App: appType, InstanceID: inst.InstanceID})
	}()

	if !inst.Enabled || !inst.Arr.Enabled {
		return stats, nil
	}

	eff := rc.Resolve(inst)
	now := e.Now()

	if quietEnd := quietHoursEndUTC(now, eff.QuietHoursStart, eff.QuietHoursEnd, rc.App.QuietHoursTimezone); quietEnd != nil && !force {
		if err := e.Store.SetNextSyncTime(appType, inst.InstanceID, *quietEnd); err != nil {
			runErr = err
		}
		stats.Status = "quiet_hours"
		return stats, runErr
	}

	apiKey, _ := e.Store.GetArrAPIKey(appType, inst.InstanceID)
	if apiKey == "" {
		apiKey = inst.Arr.APIKey
	}
	client := arr.NewClient(appType, inst.Arr.URL, apiKey, e.HTTPTimeout, !rc.App.VerifySSL, e.Logger)

	cycle := admission.NewCycle(eff.MaxMissingActionsPerInstancePerSync, eff.MaxCutoffActionsPerInstancePerSync)

	var cycleErr error
	switch appType {
	case "radarr":
		cycleErr = e.runRadarrCycle(ctx, client, appType, inst, eff, now, cycle, &stats, progress)
	case "sonarr":
		cycleErr = e.runSonarrCycle(ctx, client, appType, inst, eff, now, cycle, &stats, progress)
	default:
		cycleErr = fmt.Errorf("unknown app type %q", appType)
	}
	if cycleErr != nil {
		stats.Status = "error"
		return stats, cycleErr
	}

	nextSync := now.Add(time.Duration(eff.IntervalMinutes) * time.Minute)
	if cycle.ProposedWakeup != nil {
		w := *cycle.ProposedWakeup
		if w.Before(nextSync) {
			floor := now.Add(wakeupFloor)
			if w.Before(floor) {
				w = floor
			}
			nextSync = w
		}
	}
	if err := e.Store.UpsertSyncStatus(appType, inst.InstanceID, now, nextSync); err != nil {
		runErr = err
	}

	return stats, runErr
}

// evaluateAndTrigger runs one item through the admission gate and, on a
// trigger verdict, calls doTrigger and records the outcome.
func (e *Engine) evaluateAndTrigger(
	ctx context.Context,
	cycle *admission.Cycle,
	stats *CycleStats,
	progress chan<- Event,
	appType string,
	instanceID int64,
	req admission.Request,
	title string,
	doTrigger func() error,
) error {
	verdict, err := e.Gate.Evaluate(ctx, cycle, req)
	if err != nil {
		return err
	}

	switch verdict {
	case admission.VerdictSkipCooldown:
		stats.ActionsSkippedCooldown++
		publish(progress, Event{Kind: EventItemSkippedCooldown, App: appType, InstanceID: instanceID, ItemKey: req.ItemKey, Title: title})
		return nil
	case admission.VerdictSkipRateLimit:
		stats.ActionsSkippedRate++
		publish(progress, Event{Kind: EventItemSkippedRateLimit, App: appType, InstanceID: instanceID, ItemKey: req.ItemKey, Title: title})
		return nil
	case admission.VerdictSkipNotReleased:
		stats.ActionsSkippedNotReady++
		return nil
	case admission.VerdictSkipDuplicate:
		stats.ActionsSkippedDup++
		return nil
	case admission.VerdictSkipCapReached:
		return nil
	case admission.VerdictTrigger:
		if err := doTrigger(); err != nil {
			return nil // arr.Client already logged the warning; never abort the cycle on a trigger failure
		}
		cycle.MarkTriggered(req.ItemKey, req.IsCutoff)
		stats.ActionsTriggered++
		_ = e.Store.MarkItemAction(appType, instanceID, req.ItemKey, title)
		_ = e.Store.RecordSearchEvent(appType, instanceID)
		_ = e.Store.RecordSearchAction(appType, instanceID, req.ItemKey, title)
		publish(progress, Event{Kind: EventItemTriggered, App: appType, InstanceID: instanceID, ItemKey: req.ItemKey, Title: title})
		return nil
	}
	return nil
}

func baseRequest(appType string, inst config.InstanceConfig, eff config.Effective) admission.Request {
	return admission.Request{
		App:                      appType,
		InstanceID:               inst.InstanceID,
		MinHoursAfterRelease:     float64(eff.MinHoursAfterRelease),
		RateCapWindow:            time.Duration(eff.RateWindowMinutes) * time.Minute,
		RateCap:                  eff.RateCap,
		RetryHours:               float64(eff.RetryHours),
		MinSecondsBetweenActions: time.Duration(eff.MinSecondsBetweenActions) * time.Second,
	}
}

