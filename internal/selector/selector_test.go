package selector

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(offsetHours int) *time.Time {
	t := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC).Add(time.Duration(offsetHours) * time.Hour)
	return &t
}

func TestSplitByKind_MissingWinsOverCutoff(t *testing.T) {
	items := []Item{
		{Key: "movie:1", IsCutoff: false},
		{Key: "movie:1", IsCutoff: true},
		{Key: "movie:2", IsCutoff: true},
	}
	missing, cutoff := SplitByKind(items)
	require.Len(t, missing, 1)
	require.Len(t, cutoff, 1)
	require.Equal(t, "movie:2", cutoff[0].Key)
}

func TestOrderItems_Newest(t *testing.T) {
	items := []Item{
		{Key: "a", ReleasedAt: ts(-100)},
		{Key: "b", ReleasedAt: ts(-10)},
		{Key: "c", ReleasedAt: nil},
	}
	out := OrderItems(items, OrderNewest, time.Now(), rand.New(rand.NewSource(1)), nil)
	require.Equal(t, []string{"b", "a", "c"}, keys(out))
}

func TestOrderItems_Oldest(t *testing.T) {
	items := []Item{
		{Key: "a", ReleasedAt: ts(-100)},
		{Key: "b", ReleasedAt: ts(-10)},
		{Key: "c", ReleasedAt: nil},
	}
	out := OrderItems(items, OrderOldest, time.Now(), rand.New(rand.NewSource(1)), nil)
	require.Equal(t, []string{"a", "b", "c"}, keys(out))
}

func TestOrderSmart_CalendarBoostBeforeRecent(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	items := []Item{
		{Key: "recent", ReleasedAt: timePtr(now.Add(-6 * time.Hour))},
		{Key: "calendar", ReleasedAt: timePtr(now.Add(-2 * time.Hour))},
	}
	calendarIDs := map[string]bool{"calendar": true}
	out := OrderItems(items, OrderSmart, now, rand.New(rand.NewSource(1)), calendarIDs)
	require.Equal(t, "calendar", out[0].Key)
	require.Equal(t, "recent", out[1].Key)
}

func TestOrderSmart_OldestTailIncludesAnAncientItem(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	var items []Item
	for i := 0; i < 20; i++ {
		items = append(items, Item{Key: "mid" + itoa(i), ReleasedAt: timePtr(now.Add(-time.Duration(10+i) * 24 * time.Hour))})
	}
	items = append(items, Item{Key: "ancient", ReleasedAt: timePtr(now.Add(-1000 * 24 * time.Hour))})

	out := OrderItems(items, OrderSmart, now, rand.New(rand.NewSource(1)), nil)
	require.Equal(t, "ancient", out[len(out)-2].Key, "21 dated items give a 2-item ascending oldest tail, appended after the middle; the oldest item leads it")
}

func TestGroupEpisodes_SeasonPacks(t *testing.T) {
	episodes := []Episode{
		{Item: Item{Key: "e1"}, SeriesID: 1, SeasonNumber: 1},
		{Item: Item{Key: "e2"}, SeriesID: 1, SeasonNumber: 1},
		{Item: Item{Key: "e3"}, SeriesID: 1, SeasonNumber: 2},
	}
	groups := GroupEpisodes(episodes, GroupBySeasonPack)
	require.Len(t, groups, 2)
	require.Equal(t, "season:1:1", groups[0].Key)
	require.Len(t, groups[0].Episodes, 2)
}

func TestColdStartPrioritize_MovesEarliestSeasonFirst(t *testing.T) {
	groups := []Group{
		{Key: "season:1:3", SeriesID: 1, SeasonNumber: 3},
		{Key: "season:1:1", SeriesID: 1, SeasonNumber: 1},
		{Key: "season:1:2", SeriesID: 1, SeasonNumber: 2},
	}
	out := coldStartPrioritize(groups, map[int64]bool{})
	require.Equal(t, "season:1:1", out[0].Key)
}

func TestColdStartPrioritize_SkipsSeriesWithLibraryHistory(t *testing.T) {
	groups := []Group{
		{Key: "season:1:3", SeriesID: 1, SeasonNumber: 3},
		{Key: "season:1:1", SeriesID: 1, SeasonNumber: 1},
	}
	out := coldStartPrioritize(groups, map[int64]bool{1: true})
	require.Equal(t, "season:1:3", out[0].Key)
}

func keys(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}
