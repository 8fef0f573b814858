// Package admission evaluates, per item, whether an engine cycle may
// trigger an Arr search for it: duplicate suppression, the release gate,
// the rolling rate cap, cooldown, per-cycle caps, and cross-instance
// pacing, in that fixed order.
package admission

import (
	"context"
	"time"
)

// Verdict is the outcome of evaluating one item against the admission
// gates. Exactly one of these is returned per Evaluate call.
type Verdict string

const (
	VerdictTrigger         Verdict = "trigger"
	VerdictSkipDuplicate   Verdict = "skip_duplicate"
	VerdictSkipNotReleased Verdict = "skip_not_released"
	VerdictSkipRateLimit   Verdict = "skip_rate_limit"
	VerdictSkipCooldown    Verdict = "skip_cooldown"
	VerdictSkipCapReached  Verdict = "skip_cap_reached"
)

const recentContentWindow = 48 * time.Hour
const recentRetryCapHours = 6.0

// cooldownStore and rateStore are the narrow Store slices Gate depends on,
// kept as interfaces so tests can fake them without a real database.
type cooldownStore interface {
	ItemOnCooldown(app string, instanceID int64, itemKey string, hours float64) (bool, error)
	CountSearchEventsSince(app string, instanceID int64, since time.Time) (int, error)
}

// Gate evaluates admission decisions for one engine cycle's items.
type Gate struct {
	Store cooldownStore
	Pacer *Pacer
	Now   func() time.Time
}

// NewGate builds a Gate over store, sharing pacer across every instance.
func NewGate(store cooldownStore, pacer *Pacer, now func() time.Time) *Gate {
	return &Gate{Store: store, Pacer: pacer, Now: now}
}

// Request describes one candidate item awaiting an admission decision.
type Request struct {
	App                      string
	InstanceID               int64
	ItemKey                  string
	IsCutoff                 bool
	ReleasedAt               *time.Time
	MinHoursAfterRelease     float64
	RateCapWindow            time.Duration
	RateCap                  int
	RetryHours               float64
	MinSecondsBetweenActions time.Duration
}

// Cycle accumulates the per-cycle state the gate sequence reads and
// writes: which items have already been triggered, how many of each
// bucket have fired, and the earliest proposed wake-up from the release
// gate.
type Cycle struct {
	Triggered        map[string]bool
	MissingTriggered int
	CutoffTriggered  int
	MaxMissing       int
	MaxCutoff        int
	ProposedWakeup   *time.Time
}

// NewCycle starts fresh per-cycle admission bookkeeping.
func NewCycle(maxMissing, maxCutoff int) *Cycle {
	return &Cycle{
		Triggered:  map[string]bool{},
		MaxMissing: maxMissing,
		MaxCutoff:  maxCutoff,
	}
}

// MarkTriggered records a successful trigger against the cycle's
// bookkeeping, called by the engine after the ArrClient call succeeds.
func (c *Cycle) MarkTriggered(itemKey string, isCutoff bool) {
	c.Triggered[itemKey] = true
	if isCutoff {
		c.CutoffTriggered++
	} else {
		c.MissingTriggered++
	}
}

// Evaluate runs the full gate sequence for one item. On VerdictTrigger the
// pacer wait has already completed: the caller should immediately issue
// the ArrClient trigger and then call cycle.MarkTriggered on success.
func (g *Gate) Evaluate(ctx context.Context, cycle *Cycle, req Request) (Verdict, error) {
	now := g.Now()

	if cycle.Triggered[req.ItemKey] {
		return VerdictSkipDuplicate, nil
	}

	if req.MinHoursAfterRelease > 0 && req.ReleasedAt != nil {
		required := req.ReleasedAt.Add(time.Duration(req.MinHoursAfterRelease * float64(time.Hour)))
		if now.Before(required) {
			if isWithinRecentWindow(*req.ReleasedAt, now) {
				if cycle.ProposedWakeup == nil || required.Before(*cycle.ProposedWakeup) {
					cycle.ProposedWakeup = &required
				}
			}
			return VerdictSkipNotReleased, nil
		}
	}

	if req.RateCap > 0 {
		since := now.Add(-req.RateCapWindow)
		used, err := g.Store.CountSearchEventsSince(req.App, req.InstanceID, since)
		if err != nil {
			return "", err
		}
		if used >= req.RateCap {
			return VerdictSkipRateLimit, nil
		}
	}

	effectiveHours := req.RetryHours
	if req.ReleasedAt != nil && isWithinRecentWindow(*req.ReleasedAt, now) && effectiveHours > recentRetryCapHours {
		effectiveHours = recentRetryCapHours
	}
	onCooldown, err := g.Store.ItemOnCooldown(req.App, req.InstanceID, req.ItemKey, effectiveHours)
	if err != nil {
		return "", err
	}
	if onCooldown {
		return VerdictSkipCooldown, nil
	}

	if !req.IsCutoff && cycle.MaxMissing > 0 && cycle.MissingTriggered >= cycle.MaxMissing {
		return VerdictSkipCapReached, nil
	}
	if req.IsCutoff && cycle.MaxCutoff > 0 && cycle.CutoffTriggered >= cycle.MaxCutoff {
		return VerdictSkipCapReached, nil
	}

	if g.Pacer != nil {
		if err := g.Pacer.WaitAndMark(ctx, req.MinSecondsBetweenActions); err != nil {
			return "", err
		}
	}

	return VerdictTrigger, nil
}

func isWithinRecentWindow(released, now time.Time) bool {
	return !released.Before(now.Add(-recentContentWindow)) && !released.After(now)
}

// RecentRetryCapHours is the cooldown ceiling applied whenever at least one
// item in a cooldown decision released within the recent-content window,
// exported so callers outside this package (season-pack grouping) can
// reproduce the same clamp without duplicating the threshold.
const RecentRetryCapHours = recentRetryCapHours

// IsRecentRelease reports whether released falls within the recent-content
// window ending at now, the same test Evaluate uses to decide whether a
// cooldown should be capped at RecentRetryCapHours.
func IsRecentRelease(released, now time.Time) bool {
	return isWithinRecentWindow(released, now)
}
