package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vmunix/searchd/internal/admission"
	"github.com/vmunix/searchd/internal/arr"
	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/selector"
)

// runRadarrCycle fetches Radarr's wanted lists, orders them, and processes
// missing items up to the missing cap followed by cutoff items up to the
// cutoff cap.
func (e *Engine) runRadarrCycle(
	ctx context.Context,
	client *arr.Client,
	appType string,
	inst config.InstanceConfig,
	eff config.Effective,
	now time.Time,
	cycle *admission.Cycle,
	stats *CycleStats,
	progress chan<- Event,
) error {
	wanted, err := client.FetchWantedMovies(ctx, inst.SearchMissing, inst.SearchCutoffUnmet)
	if err != nil {
		return err
	}
	stats.WantedTotal = len(wanted)

	byKey := make(map[string]arr.WantedMovie, len(wanted))
	items := make([]selector.Item, 0, len(wanted))
	for _, m := range wanted {
		byKey[m.ItemKey()] = m
		items = append(items, selector.Item{
			Key:        m.ItemKey(),
			ReleasedAt: m.ReleaseDateUTC,
			IsCutoff:   m.WantedKind == arr.WantedCutoff,
		})
	}

	calendarIDs := e.fetchMovieCalendarIDs(ctx, client, now)

	policy := selector.Order(inst.SearchOrder)
	missingItems, cutoffItems := selector.SplitByKind(items)
	missingItems = selector.OrderItems(missingItems, policy, now, e.Rand, calendarIDs)
	cutoffItems = selector.OrderItems(cutoffItems, policy, now, e.Rand, calendarIDs)

	process := func(it selector.Item) error {
		m := byKey[it.Key]
		req := baseRequest(appType, inst, eff)
		req.ItemKey = it.Key
		req.IsCutoff = it.IsCutoff
		req.ReleasedAt = m.ReleaseDateUTC
		return e.evaluateAndTrigger(ctx, cycle, stats, progress, appType, inst.InstanceID, req, m.Title, func() error {
			return client.TriggerMovieSearch(ctx, m.MovieID)
		})
	}

	for _, it := range missingItems {
		if eff.MaxMissingActionsPerInstancePerSync > 0 && cycle.MissingTriggered >= eff.MaxMissingActionsPerInstancePerSync {
			break
		}
		if err := process(it); err != nil {
			return err
		}
	}
	for _, it := range cutoffItems {
		if eff.MaxCutoffActionsPerInstancePerSync > 0 && cycle.CutoffTriggered >= eff.MaxCutoffActionsPerInstancePerSync {
			break
		}
		if err := process(it); err != nil {
			return err
		}
	}
	return nil
}

// fetchMovieCalendarIDs best-effort fetches Radarr's calendar window and
// returns the set of movie item keys it contains. A calendar failure never
// fails the cycle: it only means smart ordering loses its boost signal.
func (e *Engine) fetchMovieCalendarIDs(ctx context.Context, client *arr.Client, now time.Time) map[string]bool {
	raw, err := client.FetchCalendar(ctx, now.Add(-selector.CalendarLookback), now.Add(selector.CalendarLookahead))
	if err != nil {
		return nil
	}
	var rows []struct {
		MovieID         int64  `json:"movieId"`
		ID              int64  `json:"id"`
		DigitalRelease  string `json:"digitalRelease"`
		PhysicalRelease string `json:"physicalRelease"`
		InCinemas       string `json:"inCinemas"`
		ReleaseDate     string `json:"releaseDate"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		id := r.MovieID
		if id == 0 {
			id = r.ID
		}
		// Calendar boost only applies to already-released content near "now".
		released := arr.ParseArrTimeStr(r.DigitalRelease)
		if released == nil {
			released = arr.ParseArrTimeStr(r.PhysicalRelease)
		}
		if released == nil {
			released = arr.ParseArrTimeStr(r.InCinemas)
		}
		if released == nil {
			released = arr.ParseArrTimeStr(r.ReleaseDate)
		}
		if released == nil || released.After(now) {
			continue
		}
		out[arr.WantedMovie{MovieID: id}.ItemKey()] = true
	}
	return out
}
