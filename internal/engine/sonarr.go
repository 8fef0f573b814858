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

// specialsSeasonNumber is Sonarr's convention for the specials bucket.
const specialsSeasonNumber = 0

// Smart-mode season-pack thresholds used by actionForGroup.
const (
	seasonPackMissingFloor             = 3
	seasonPackMissingCoverageThreshold = 0.6
	seasonPackMissingCeiling           = 6
)

// runSonarrCycle fetches Sonarr's wanted episodes, drops specials when any
// non-special episode is also wanted, shapes the missing list per the
// instance's Sonarr mode, and processes missing then cutoff up to their
// caps.
func (e *Engine) runSonarrCycle(
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
	wanted, err := client.FetchWantedEpisodes(ctx, inst.SearchMissing, inst.SearchCutoffUnmet)
	if err != nil {
		return err
	}
	stats.WantedTotal = len(wanted)
	wanted = dropSpecialsIfPossible(wanted)

	series, err := client.FetchSeries(ctx)
	if err != nil {
		series = nil // best-effort: cold-start grouping just won't have library history
	}
	librarySeries := make(map[int64]bool, len(series))
	for _, s := range series {
		librarySeries[s.ID] = true
	}

	calendarIDs := e.fetchEpisodeCalendarIDs(ctx, client, now)

	var missingWanted, cutoffWanted []arr.WantedEpisode
	for _, ep := range wanted {
		if ep.WantedKind == arr.WantedCutoff {
			cutoffWanted = append(cutoffWanted, ep)
		} else {
			missingWanted = append(missingWanted, ep)
		}
	}

	mode := normalizeMode(inst.SonarrMissingMode)
	seasonInventory := map[int64]map[int]arr.SeasonCounts{}
	fetchInventory := func(seriesID int64) map[int]arr.SeasonCounts {
		if inv, ok := seasonInventory[seriesID]; ok {
			return inv
		}
		inv, err := client.FetchSeasonInventory(ctx, seriesID)
		if err != nil {
			inv = map[int]arr.SeasonCounts{}
		}
		seasonInventory[seriesID] = inv
		return inv
	}

	if err := e.processSonarrMissing(ctx, client, appType, inst, eff, now, cycle, stats, progress, missingWanted, mode, calendarIDs, librarySeries, fetchInventory); err != nil {
		return err
	}

	cutoffItems := make([]selector.Item, 0, len(cutoffWanted))
	cutoffByKey := make(map[string]arr.WantedEpisode, len(cutoffWanted))
	for _, ep := range cutoffWanted {
		cutoffByKey[ep.ItemKey()] = ep
		cutoffItems = append(cutoffItems, selector.Item{Key: ep.ItemKey(), ReleasedAt: ep.AirDateUTC, IsCutoff: true})
	}
	cutoffItems = selector.OrderItems(cutoffItems, selector.Order(inst.SearchOrder), now, e.Rand, calendarIDs)
	for _, it := range cutoffItems {
		if eff.MaxCutoffActionsPerInstancePerSync > 0 && cycle.CutoffTriggered >= eff.MaxCutoffActionsPerInstancePerSync {
			break
		}
		ep := cutoffByKey[it.Key]
		req := baseRequest(appType, inst, eff)
		req.ItemKey = it.Key
		req.IsCutoff = true
		req.ReleasedAt = ep.AirDateUTC
		if err := e.evaluateAndTrigger(ctx, cycle, stats, progress, appType, inst.InstanceID, req, episodeTitle(ep), func() error {
			return client.TriggerEpisodeSearch(ctx, ep.EpisodeID)
		}); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMode(mode string) selector.GroupMode {
	switch mode {
	case "season_packs", "smart", "shows":
		return selector.GroupMode(mode)
	default:
		return "episodes"
	}
}

// processSonarrMissing dispatches missing episodes per the instance's
// Sonarr mode: plain per-episode ordering, season-pack grouping, show-level
// grouping for cold-start priority, or the smart per-season decision.
func (e *Engine) processSonarrMissing(
	ctx context.Context,
	client *arr.Client,
	appType string,
	inst config.InstanceConfig,
	eff config.Effective,
	now time.Time,
	cycle *admission.Cycle,
	stats *CycleStats,
	progress chan<- Event,
	missing []arr.WantedEpisode,
	mode selector.GroupMode,
	calendarIDs map[string]bool,
	librarySeries map[int64]bool,
	fetchInventory func(int64) map[int]arr.SeasonCounts,
) error {
	if mode == "episodes" {
		items := make([]selector.Item, 0, len(missing))
		byKey := make(map[string]arr.WantedEpisode, len(missing))
		for _, ep := range missing {
			byKey[ep.ItemKey()] = ep
			items = append(items, selector.Item{Key: ep.ItemKey(), ReleasedAt: ep.AirDateUTC})
		}
		items = selector.OrderItems(items, selector.Order(inst.SearchOrder), now, e.Rand, calendarIDs)
		for _, it := range items {
			if eff.MaxMissingActionsPerInstancePerSync > 0 && cycle.MissingTriggered >= eff.MaxMissingActionsPerInstancePerSync {
				return nil
			}
			ep := byKey[it.Key]
			req := baseRequest(appType, inst, eff)
			req.ItemKey = it.Key
			req.ReleasedAt = ep.AirDateUTC
			if err := e.evaluateAndTrigger(ctx, cycle, stats, progress, appType, inst.InstanceID, req, episodeTitle(ep), func() error {
				return client.TriggerEpisodeSearch(ctx, ep.EpisodeID)
			}); err != nil {
				return err
			}
		}
		return nil
	}

	byKey := make(map[string]arr.WantedEpisode, len(missing))
	episodes := make([]selector.Episode, 0, len(missing))
	for _, ep := range missing {
		byKey[ep.ItemKey()] = ep
		episodes = append(episodes, selector.Episode{
			Item:          selector.Item{Key: ep.ItemKey(), ReleasedAt: ep.AirDateUTC},
			SeriesID:      ep.SeriesID,
			SeasonNumber:  ep.SeasonNumber,
			EpisodeNumber: ep.EpisodeNumber,
		})
	}

	groups := selector.GroupEpisodes(episodes, groupModeFor(mode))
	groups = selector.OrderGroups(groups, now, e.Rand, calendarIDs, librarySeries)

	seasonOnCooldown := func(g selector.Group) bool {
		hours := float64(eff.RetryHours)
		for _, ep := range g.Episodes {
			if ep.ReleasedAt != nil && admission.IsRecentRelease(*ep.ReleasedAt, now) {
				if hours > admission.RecentRetryCapHours {
					hours = admission.RecentRetryCapHours
				}
				break
			}
		}
		onCooldown, err := e.Gate.Store.ItemOnCooldown(appType, inst.InstanceID, g.Key, hours)
		return err == nil && onCooldown
	}

	for _, g := range groups {
		if eff.MaxMissingActionsPerInstancePerSync > 0 && cycle.MissingTriggered >= eff.MaxMissingActionsPerInstancePerSync {
			return nil
		}

		action := actionForGroup(mode, g, seasonOnCooldown, fetchInventory)
		switch action {
		case "skip":
			continue
		case "season_pack":
			req := baseRequest(appType, inst, eff)
			req.ItemKey = g.Key // "season:<series>:<season>"
			req.ReleasedAt = groupReleaseGateDate(g)
			seriesID, seasonNum := g.SeriesID, g.SeasonNumber
			if err := e.evaluateAndTrigger(ctx, cycle, stats, progress, appType, inst.InstanceID, req, seasonTitle(seriesID, seasonNum), func() error {
				return client.TriggerSeasonSearch(ctx, seriesID, seasonNum)
			}); err != nil {
				return err
			}
		case "bulk_episodes":
			episodeIDs := make([]int64, 0, len(g.Episodes))
			for _, ep := range g.Episodes {
				episodeIDs = append(episodeIDs, byKey[ep.Key].EpisodeID)
			}
			req := baseRequest(appType, inst, eff)
			req.ItemKey = "series:" + itoaInt64(g.SeriesID)
			req.ReleasedAt = groupReleaseGateDate(g)
			title := showBatchTitle(g, byKey)
			if err := e.evaluateAndTrigger(ctx, cycle, stats, progress, appType, inst.InstanceID, req, title, func() error {
				return client.TriggerEpisodeSearchBulk(ctx, episodeIDs)
			}); err != nil {
				return err
			}
		default: // episodes
			for _, ep := range g.Episodes {
				if eff.MaxMissingActionsPerInstancePerSync > 0 && cycle.MissingTriggered >= eff.MaxMissingActionsPerInstancePerSync {
					return nil
				}
				full := byKey[ep.Key]
				req := baseRequest(appType, inst, eff)
				req.ItemKey = ep.Key
				req.ReleasedAt = ep.ReleasedAt
				if err := e.evaluateAndTrigger(ctx, cycle, stats, progress, appType, inst.InstanceID, req, episodeTitle(full), func() error {
					return client.TriggerEpisodeSearch(ctx, full.EpisodeID)
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func groupModeFor(mode selector.GroupMode) selector.GroupMode {
	if mode == "shows" {
		return selector.GroupByShow
	}
	return selector.GroupBySeasonPack
}

// groupReleaseGateDate returns the date the admission gate's release check
// should use for a group-level trigger (season pack or show batch): the
// earliest known episode date, so the group is eligible as soon as any one
// episode is. An episode with no known date makes the whole group eligible
// regardless of the others, per the "unknown dates do not block" rule.
func groupReleaseGateDate(g selector.Group) *time.Time {
	var earliest *time.Time
	for _, ep := range g.Episodes {
		if ep.ReleasedAt == nil {
			return nil
		}
		if earliest == nil || ep.ReleasedAt.Before(*earliest) {
			earliest = ep.ReleasedAt
		}
	}
	return earliest
}

func showBatchTitle(g selector.Group, byKey map[string]arr.WantedEpisode) string {
	title := ""
	if len(g.Episodes) > 0 {
		title = byKey[g.Episodes[0].Key].SeriesTitle
	}
	return title
}

// actionForGroup decides, for one (series, season) group, whether to issue
// a single season-pack search, a bulk per-show episode search, skip the
// group entirely, or process its episodes individually. season_packs mode
// always packs; shows mode always bulk-searches the whole show; smart mode
// checks the season's cooldown first, then applies the coverage/missing-
// count decision tree against the season's aired inventory.
func actionForGroup(mode selector.GroupMode, g selector.Group, onCooldown func(selector.Group) bool, fetchInventory func(int64) map[int]arr.SeasonCounts) string {
	switch mode {
	case "season_packs":
		return "season_pack"
	case "shows":
		return "bulk_episodes"
	default: // smart
		if g.SeasonNumber < 0 {
			return "episodes"
		}
		if onCooldown(g) {
			return "skip"
		}

		inv := fetchInventory(g.SeriesID)
		counts := inv[g.SeasonNumber]
		missingCount := len(g.Episodes)

		if counts.AiredTotal > 0 && counts.AiredDownloaded == 0 {
			return "season_pack"
		}

		highestEpisode := 0
		for _, ep := range g.Episodes {
			if ep.EpisodeNumber > highestEpisode {
				highestEpisode = ep.EpisodeNumber
			}
		}
		if highestEpisode == 0 {
			if missingCount >= seasonPackMissingFloor {
				return "season_pack"
			}
			return "episodes"
		}
		coverage := float64(missingCount) / float64(highestEpisode)
		if missingCount >= seasonPackMissingFloor && coverage >= seasonPackMissingCoverageThreshold {
			return "season_pack"
		}
		if missingCount >= seasonPackMissingCeiling {
			return "season_pack"
		}
		return "episodes"
	}
}

func dropSpecialsIfPossible(wanted []arr.WantedEpisode) []arr.WantedEpisode {
	hasNonSpecial := false
	for _, ep := range wanted {
		if ep.SeasonNumber != specialsSeasonNumber {
			hasNonSpecial = true
			break
		}
	}
	if !hasNonSpecial {
		return wanted
	}
	out := make([]arr.WantedEpisode, 0, len(wanted))
	for _, ep := range wanted {
		if ep.SeasonNumber != specialsSeasonNumber {
			out = append(out, ep)
		}
	}
	return out
}

func episodeTitle(ep arr.WantedEpisode) string {
	return ep.SeriesTitle
}

func seasonTitle(seriesID int64, seasonNumber int) string {
	return "season " + itoaInt(seasonNumber) + " of series " + itoaInt64(seriesID)
}

func itoaInt(v int) string { return itoaInt64(int64(v)) }

func itoaInt64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// fetchEpisodeCalendarIDs best-effort fetches Sonarr's calendar window and
// returns the set of episode item keys it contains.
func (e *Engine) fetchEpisodeCalendarIDs(ctx context.Context, client *arr.Client, now time.Time) map[string]bool {
	raw, err := client.FetchCalendar(ctx, now.Add(-selector.CalendarLookback), now.Add(selector.CalendarLookahead))
	if err != nil {
		return nil
	}
	var rows []struct {
		ID         int64  `json:"id"`
		EpisodeID  int64  `json:"episodeId"`
		AirDateUTC string `json:"airDateUtc"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		// Calendar boost only applies to already-aired content near "now".
		aired := arr.ParseArrTimeStr(r.AirDateUTC)
		if aired == nil || aired.After(now) {
			continue
		}
		id := r.ID
		if id == 0 {
			id = r.EpisodeID
		}
		out[arr.WantedEpisode{EpisodeID: id}.ItemKey()] = true
	}
	return out
}
