// Package arr is a stateless HTTP adapter to a single Radarr or Sonarr
// instance: fetch wanted lists, calendar, series/season inventory, and
// trigger searches.
package arr

import "time"

// WantedKind distinguishes an item missing entirely from one whose grabbed
// copy fails the quality cutoff.
type WantedKind string

const (
	WantedMissing WantedKind = "missing"
	WantedCutoff  WantedKind = "cutoff"
)

// WantedMovie is one Radarr movie flagged as wanted.
type WantedMovie struct {
	MovieID        int64
	Title          string
	Year           int
	TMDBID         int64
	IMDBID         string
	ReleaseDateUTC *time.Time
	WantedKind     WantedKind
}

// ItemKey identifies this movie for cooldown/rate/admission bookkeeping.
func (m WantedMovie) ItemKey() string {
	return "movie:" + itoa(m.MovieID)
}

// WantedEpisode is one Sonarr episode flagged as wanted.
type WantedEpisode struct {
	EpisodeID     int64
	SeriesID      int64
	SeriesTitle   string
	SeriesTVDBID  int64
	SeasonNumber  int
	EpisodeNumber int
	AirDateUTC    *time.Time
	WantedKind    WantedKind
}

// ItemKey identifies this episode for cooldown/rate/admission bookkeeping.
func (e WantedEpisode) ItemKey() string {
	return "episode:" + itoa(e.EpisodeID)
}

// Series is a minimal Sonarr series record.
type Series struct {
	ID        int64
	Title     string
	TVDBID    int64
	Monitored bool
}

// Movie is a minimal Radarr movie record, used to resolve a wanted movie's
// monitored flag and release date.
type Movie struct {
	ID               int64
	Monitored        bool
	DigitalRelease   *time.Time
	PhysicalRelease  *time.Time
	InCinemas        *time.Time
}

// SeasonCounts summarizes one series' season for the Sonarr smart-mode
// decision: how many aired episodes exist and how many already have files.
type SeasonCounts struct {
	SeasonNumber   int
	AiredTotal     int
	AiredDownloaded int
	UnairedTotal   int
}

func itoa(v int64) string {
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
