package engine

// CycleStats aggregates one instance's cycle outcome for persistence and
// the Web UI's recent-runs view.
type CycleStats struct {
	WantedTotal            int
	ActionsTriggered       int
	ActionsSkippedCooldown int
	ActionsSkippedRate     int
	ActionsSkippedNotReady int
	ActionsSkippedDup      int
	Status                 string // "success" | "quiet_hours" | "error"
}
