package webui

import (
	"sync"
	"time"

	"github.com/vmunix/searchd/internal/engine"
)

// recentAction is one entry of the Web UI's short in-memory trigger log,
// mirroring _progress_cb's "recent_actions" list in the original dashboard.
type recentAction struct {
	Timestamp    time.Time `json:"ts"`
	AppType      string    `json:"app_type"`
	InstanceName string    `json:"instance_name"`
	Title        string    `json:"title"`
}

// runState tracks the live progress of whatever cycle is currently
// running, consumed from an engine.Event channel by applyEvent. It exists
// purely for the dashboard; cycle_run/instance_run persistence is the
// store's job.
type runState struct {
	mu sync.Mutex

	Running                bool       `json:"running"`
	Force                  bool       `json:"force"`
	StartedAt              *time.Time `json:"started_at"`
	LastEvent              string     `json:"last_event"`
	ActionsTriggered       int        `json:"actions_triggered"`
	ActionsSkippedCooldown int        `json:"actions_skipped_cooldown"`
	ActionsSkippedRate     int        `json:"actions_skipped_rate_limit"`
	LastTitle              string     `json:"last_title"`
	RecentActions          []recentAction `json:"recent_actions"`
	Error                  string     `json:"error"`

	ActiveAppType      string `json:"active_app_type"`
	ActiveInstanceID   int64  `json:"active_instance_id"`
	ActiveInstanceName string `json:"active_instance_name"`
}

func newRunState() *runState {
	return &runState{}
}

func (rs *runState) snapshot() runState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	cp := *rs
	cp.RecentActions = append([]recentAction(nil), rs.RecentActions...)
	return cp
}

func (rs *runState) setError(msg string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.Running = false
	rs.Error = msg
}

// instanceName resolves an instance's display name for event bookkeeping;
// the engine.Event type itself carries no name, only an id.
type instanceNamer func(appType string, instanceID int64) string

// applyEvent folds one engine.Event into the run state, mirroring the
// original dashboard's _progress_cb state machine.
func (rs *runState) applyEvent(ev engine.Event, now time.Time, name instanceNamer) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.LastEvent = string(ev.Kind)
	switch ev.Kind {
	case engine.EventCycleStarted:
		rs.Running = true
		rs.StartedAt = &now
		rs.ActionsTriggered = 0
		rs.ActionsSkippedCooldown = 0
		rs.ActionsSkippedRate = 0
		rs.LastTitle = ""
		rs.Error = ""
		rs.ActiveAppType = ""
		rs.ActiveInstanceID = 0
		rs.ActiveInstanceName = ""
	case engine.EventInstanceStarted:
		rs.ActiveAppType = ev.App
		rs.ActiveInstanceID = ev.InstanceID
		rs.ActiveInstanceName = name(ev.App, ev.InstanceID)
	case engine.EventItemTriggered:
		rs.ActionsTriggered++
		rs.LastTitle = ev.Title
		rs.RecentActions = append(rs.RecentActions, recentAction{
			Timestamp:    now,
			AppType:      ev.App,
			InstanceName: name(ev.App, ev.InstanceID),
			Title:        ev.Title,
		})
		if len(rs.RecentActions) > 8 {
			rs.RecentActions = rs.RecentActions[len(rs.RecentActions)-8:]
		}
	case engine.EventItemSkippedCooldown:
		rs.ActionsSkippedCooldown++
	case engine.EventItemSkippedRateLimit:
		rs.ActionsSkippedRate++
	case engine.EventInstanceFinished:
		if rs.ActiveAppType == ev.App && rs.ActiveInstanceID == ev.InstanceID {
			rs.ActiveAppType = ""
			rs.ActiveInstanceID = 0
			rs.ActiveInstanceName = ""
		}
	case engine.EventCycleFinished:
		rs.Running = false
		rs.ActiveAppType = ""
		rs.ActiveInstanceID = 0
		rs.ActiveInstanceName = ""
	}
}
