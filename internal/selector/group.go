package selector

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// GroupMode selects how Sonarr episodes are grouped before ordering.
type GroupMode string

const (
	GroupBySeasonPack GroupMode = "season_packs"
	GroupByShow       GroupMode = "shows"
)

// Episode is the minimal shape the grouping functions need.
type Episode struct {
	Item
	SeriesID      int64
	SeasonNumber  int
	EpisodeNumber int
}

// Group is one (series, season) or (series) bucket of episodes, ready to
// be ordered as a single selector.Item using its newest member date.
type Group struct {
	Key          string
	SeriesID     int64
	SeasonNumber int // -1 for show-level grouping
	Episodes     []Episode
	newestDate   *time.Time
}

// GroupEpisodes buckets episodes by (series, season) or by series, per
// mode, and returns each group keyed for cooldown/admission lookups.
func GroupEpisodes(episodes []Episode, mode GroupMode) []Group {
	order := []string{}
	byKey := map[string]*Group{}

	for _, ep := range episodes {
		var key string
		season := -1
		if mode == GroupBySeasonPack {
			season = ep.SeasonNumber
			key = fmt.Sprintf("season:%d:%d", ep.SeriesID, ep.SeasonNumber)
		} else {
			key = fmt.Sprintf("series:%d", ep.SeriesID)
		}
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, SeriesID: ep.SeriesID, SeasonNumber: season}
			byKey[key] = g
			order = append(order, key)
		}
		g.Episodes = append(g.Episodes, ep)
		if ep.ReleasedAt != nil && (g.newestDate == nil || ep.ReleasedAt.After(*g.newestDate)) {
			g.newestDate = ep.ReleasedAt
		}
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// OrderGroups sorts groups by the smart algorithm applied to each group's
// newest member date, then applies cold-start prioritization: for any
// series absent from librarySeriesIDs (no existing library episodes), its
// groups are reordered by ascending season within the slots that series
// already occupies, so its earliest season comes first and every other
// series' groups keep their positions.
func OrderGroups(groups []Group, now time.Time, rng *rand.Rand, calendarIDs map[string]bool, librarySeriesIDs map[int64]bool) []Group {
	asItems := make([]Item, len(groups))
	byKey := make(map[string]Group, len(groups))
	for i, g := range groups {
		asItems[i] = Item{Key: g.Key, ReleasedAt: g.newestDate}
		byKey[g.Key] = g
	}
	ordered := orderSmart(asItems, now, rng, calendarIDs)

	result := make([]Group, 0, len(ordered))
	for _, it := range ordered {
		result = append(result, byKey[it.Key])
	}
	return coldStartPrioritize(result, librarySeriesIDs)
}

// coldStartPrioritize reorders, for each series with no existing library
// episodes, that series' groups by ascending season within the positions
// they already hold, leaving every other series' position untouched.
func coldStartPrioritize(groups []Group, librarySeriesIDs map[int64]bool) []Group {
	if librarySeriesIDs == nil {
		return groups
	}

	bySeriesPositions := map[int64][]int{}
	for i, g := range groups {
		bySeriesPositions[g.SeriesID] = append(bySeriesPositions[g.SeriesID], i)
	}

	out := append([]Group(nil), groups...)
	for seriesID, positions := range bySeriesPositions {
		if librarySeriesIDs[seriesID] || len(positions) < 2 {
			continue
		}
		own := make([]Group, len(positions))
		for i, p := range positions {
			own[i] = groups[p]
		}
		sort.SliceStable(own, func(i, j int) bool { return own[i].SeasonNumber < own[j].SeasonNumber })
		for i, p := range positions {
			out[p] = own[i]
		}
	}
	return out
}
