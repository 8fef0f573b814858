// Package engine runs one scheduler cycle for one Radarr/Sonarr instance:
// fetch wanted items, order them, run them through admission, trigger Arr
// searches, and persist the results.
package engine

// EventKind names a progress event emitted during a cycle, for Web UI
// live updates and logging.
type EventKind string

const (
	EventCycleStarted          EventKind = "cycle_started"
	EventInstanceStarted       EventKind = "instance_started"
	EventItemTriggered         EventKind = "item_triggered"
	EventItemSkippedCooldown   EventKind = "item_skipped_cooldown"
	EventItemSkippedRateLimit  EventKind = "item_skipped_rate_limit"
	EventInstanceFinished      EventKind = "instance_finished"
	EventCycleFinished         EventKind = "cycle_finished"
)

// Event is one progress notification from a running cycle.
type Event struct {
	Kind       EventKind
	App        string
	InstanceID int64
	ItemKey    string
	Title      string
	Message    string
}

func publish(progress chan<- Event, ev Event) {
	if progress == nil {
		return
	}
	select {
	case progress <- ev:
	default:
		// A slow or absent subscriber never blocks a cycle.
	}
}
