package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const wantedPageSize = 250

// Client talks to a single Radarr or Sonarr instance.
type Client struct {
	App        string
	BaseURL    string
	httpClient *http.Client
	apiKey     string
	Logger     zerolog.Logger
}

// NewClient builds a Client for app ("radarr" or "sonarr") at baseURL,
// authenticating with apiKey. timeout bounds every request. Trigger
// failures are logged against logger rather than returned up silently.
func NewClient(app, baseURL, apiKey string, timeout time.Duration, insecureSkipVerify bool, logger zerolog.Logger) *Client {
	transport := http.DefaultTransport
	if insecureSkipVerify {
		transport = insecureTransport()
	}
	return &Client{
		App:     app,
		BaseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		Logger: logger,
	}
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	full := c.BaseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, newError(c.App, c.BaseURL, method, path, ErrClassTimeout,
				fmt.Sprintf("request timed out after %s", c.httpClient.Timeout),
				"increase request_timeout_seconds or check network latency")
		}
		if isConnectionRefused(err) {
			return nil, newError(c.App, c.BaseURL, method, path, ErrClassConnection,
				"cannot connect (connection refused/unreachable)",
				"check the instance URL/port and that the service is running")
		}
		return nil, newError(c.App, c.BaseURL, method, path, ErrClassConnection, err.Error(), "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		snippet := strings.ReplaceAll(strings.TrimSpace(string(raw)), "\n", " ")
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if snippet != "" {
			msg = fmt.Sprintf("%s (%s)", msg, snippet)
		}
		return nil, newError(c.App, c.BaseURL, method, path, ErrClassStatus, msg,
			"check API key permissions and that the endpoint exists for your Arr version")
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, newError(c.App, c.BaseURL, method, path, ErrClassInvalidJSON, "invalid JSON response", "")
	}
	return json.RawMessage(raw), nil
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscallECONNREFUSED) || strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host") || strings.Contains(err.Error(), "network is unreachable")
}

type pagedResponse struct {
	Records []json.RawMessage `json:"records"`
}

func (c *Client) fetchPaged(ctx context.Context, path string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	page := 1
	for {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(wantedPageSize)},
		}
		raw, err := c.request(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}

		var chunk []json.RawMessage
		var paged pagedResponse
		if err := json.Unmarshal(raw, &paged); err == nil && paged.Records != nil {
			chunk = paged.Records
		} else {
			_ = json.Unmarshal(raw, &chunk)
		}

		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
		if len(chunk) < wantedPageSize {
			break
		}
		page++
	}
	return out, nil
}

type rawMovie struct {
	ID              int64   `json:"id"`
	MovieID         int64   `json:"movieId"`
	Title           string  `json:"title"`
	Year            int     `json:"year"`
	TMDBID          int64   `json:"tmdbId"`
	IMDBID          string  `json:"imdbId"`
	Monitored       *bool   `json:"monitored"`
	DigitalRelease  *string `json:"digitalRelease"`
	PhysicalRelease *string `json:"physicalRelease"`
	InCinemas       *string `json:"inCinemas"`
	Movie           *struct {
		Monitored       *bool   `json:"monitored"`
		DigitalRelease  *string `json:"digitalRelease"`
		PhysicalRelease *string `json:"physicalRelease"`
		InCinemas       *string `json:"inCinemas"`
	} `json:"movie"`
}

// FetchSeries lists every series known to a Sonarr instance.
func (c *Client) FetchSeries(ctx context.Context) ([]Series, error) {
	raw, err := c.request(ctx, http.MethodGet, "/api/v3/series", nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID        int64 `json:"id"`
		Title     string `json:"title"`
		TVDBID    int64 `json:"tvdbId"`
		Monitored *bool `json:"monitored"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, nil
	}
	out := make([]Series, 0, len(rows))
	for _, r := range rows {
		if r.ID == 0 {
			continue
		}
		out = append(out, Series{
			ID:        r.ID,
			Title:     strings.TrimSpace(r.Title),
			TVDBID:    r.TVDBID,
			Monitored: r.Monitored == nil || *r.Monitored,
		})
	}
	return out, nil
}

// FetchMovies lists every movie known to a Radarr instance.
func (c *Client) FetchMovies(ctx context.Context) ([]Movie, error) {
	raw, err := c.request(ctx, http.MethodGet, "/api/v3/movie", nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []rawMovie
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, nil
	}
	out := make([]Movie, 0, len(rows))
	for _, r := range rows {
		if r.ID == 0 {
			continue
		}
		out = append(out, Movie{
			ID:              r.ID,
			Monitored:       r.Monitored == nil || *r.Monitored,
			DigitalRelease:  parseArrTime(r.DigitalRelease),
			PhysicalRelease: parseArrTime(r.PhysicalRelease),
			InCinemas:       parseArrTime(r.InCinemas),
		})
	}
	return out, nil
}

// FetchWantedMovies merges /wanted/missing and /wanted/cutoff for Radarr,
// with missing entries winning over cutoff entries for the same movie.
func (c *Client) FetchWantedMovies(ctx context.Context, searchMissing, searchCutoff bool) ([]WantedMovie, error) {
	movies, err := c.FetchMovies(ctx)
	if err != nil {
		movies = nil
	}
	movieByID := make(map[int64]Movie, len(movies))
	for _, m := range movies {
		movieByID[m.ID] = m
	}

	out := map[int64]WantedMovie{}
	kinds := []struct {
		kind WantedKind
		path string
		on   bool
	}{
		{WantedMissing, "/api/v3/wanted/missing", searchMissing},
		{WantedCutoff, "/api/v3/wanted/cutoff", searchCutoff},
	}
	for _, k := range kinds {
		if !k.on {
			continue
		}
		rows, err := c.fetchPaged(ctx, k.path)
		if err != nil {
			return nil, err
		}
		for _, raw := range rows {
			var rm rawMovie
			if err := json.Unmarshal(raw, &rm); err != nil {
				continue
			}
			movieID := rm.ID
			if movieID == 0 {
				movieID = rm.MovieID
			}
			if movieID == 0 {
				continue
			}
			if k.kind == WantedCutoff {
				if _, exists := out[movieID]; exists {
					continue
				}
			}

			monitored := true
			if meta, ok := movieByID[movieID]; ok {
				monitored = meta.Monitored
			} else if rm.Monitored != nil {
				monitored = *rm.Monitored
			} else if rm.Movie != nil && rm.Movie.Monitored != nil {
				monitored = *rm.Movie.Monitored
			}
			if !monitored {
				continue
			}

			release := movieByID[movieID].releaseDate()
			if release == nil {
				release = parseArrTime(rm.DigitalRelease)
				if release == nil {
					release = parseArrTime(rm.PhysicalRelease)
				}
				if release == nil {
					release = parseArrTime(rm.InCinemas)
				}
				if release == nil && rm.Movie != nil {
					release = parseArrTime(rm.Movie.DigitalRelease)
					if release == nil {
						release = parseArrTime(rm.Movie.PhysicalRelease)
					}
					if release == nil {
						release = parseArrTime(rm.Movie.InCinemas)
					}
				}
			}

			out[movieID] = WantedMovie{
				MovieID:        movieID,
				Title:          rm.Title,
				Year:           rm.Year,
				TMDBID:         rm.TMDBID,
				IMDBID:         strings.ToLower(rm.IMDBID),
				ReleaseDateUTC: release,
				WantedKind:     k.kind,
			}
		}
	}

	result := make([]WantedMovie, 0, len(out))
	for _, v := range out {
		result = append(result, v)
	}
	return result, nil
}

func (m Movie) releaseDate() *time.Time {
	if m.DigitalRelease != nil {
		return m.DigitalRelease
	}
	if m.PhysicalRelease != nil {
		return m.PhysicalRelease
	}
	return m.InCinemas
}

type rawEpisode struct {
	ID            int64  `json:"id"`
	EpisodeID     int64  `json:"episodeId"`
	SeriesID      int64  `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Monitored     *bool  `json:"monitored"`
	AirDateUTC    string `json:"airDateUtc"`
	AirDate       string `json:"airDate"`
	SeriesTitle   string `json:"seriesTitle"`
	SeriesTVDBID  int64  `json:"seriesTvdbId"`
	Series        *struct {
		ID        int64  `json:"id"`
		Title     string `json:"title"`
		TVDBID    int64  `json:"tvdbId"`
		Monitored *bool  `json:"monitored"`
	} `json:"series"`
}

// FetchWantedEpisodes merges /wanted/missing and /wanted/cutoff for Sonarr,
// with missing entries winning over cutoff entries for the same episode.
func (c *Client) FetchWantedEpisodes(ctx context.Context, searchMissing, searchCutoff bool) ([]WantedEpisode, error) {
	seriesList, err := c.FetchSeries(ctx)
	if err != nil {
		seriesList = nil
	}
	seriesByID := make(map[int64]Series, len(seriesList))
	for _, s := range seriesList {
		seriesByID[s.ID] = s
	}

	out := map[int64]WantedEpisode{}
	kinds := []struct {
		kind WantedKind
		path string
		on   bool
	}{
		{WantedMissing, "/api/v3/wanted/missing", searchMissing},
		{WantedCutoff, "/api/v3/wanted/cutoff", searchCutoff},
	}
	for _, k := range kinds {
		if !k.on {
			continue
		}
		rows, err := c.fetchPaged(ctx, k.path)
		if err != nil {
			return nil, err
		}
		for _, raw := range rows {
			var re rawEpisode
			if err := json.Unmarshal(raw, &re); err != nil {
				continue
			}
			episodeID := re.ID
			if episodeID == 0 {
				episodeID = re.EpisodeID
			}
			if episodeID == 0 {
				continue
			}
			if k.kind == WantedCutoff {
				if _, exists := out[episodeID]; exists {
					continue
				}
			}

			seriesID := re.SeriesID
			if seriesID == 0 && re.Series != nil {
				seriesID = re.Series.ID
			}
			fallback := seriesByID[seriesID]

			seriesMonitored := true
			if re.Series != nil && re.Series.Monitored != nil {
				seriesMonitored = *re.Series.Monitored
			} else if _, ok := seriesByID[seriesID]; ok {
				seriesMonitored = fallback.Monitored
			}
			if !seriesMonitored {
				continue
			}
			if re.Monitored != nil && !*re.Monitored {
				continue
			}

			title := re.SeriesTitle
			tvdbID := re.SeriesTVDBID
			if re.Series != nil {
				if re.Series.Title != "" {
					title = re.Series.Title
				}
				if re.Series.TVDBID != 0 {
					tvdbID = re.Series.TVDBID
				}
			}
			if title == "" {
				title = fallback.Title
			}
			if tvdbID == 0 {
				tvdbID = fallback.TVDBID
			}

			airDate := re.AirDateUTC
			if airDate == "" {
				airDate = re.AirDate
			}

			out[episodeID] = WantedEpisode{
				EpisodeID:     episodeID,
				SeriesID:      seriesID,
				SeriesTitle:   title,
				SeriesTVDBID:  tvdbID,
				SeasonNumber:  re.SeasonNumber,
				EpisodeNumber: re.EpisodeNumber,
				AirDateUTC:    ParseArrTimeStr(airDate),
				WantedKind:    k.kind,
			}
		}
	}

	result := make([]WantedEpisode, 0, len(out))
	for _, v := range out {
		result = append(result, v)
	}
	return result, nil
}

// FetchSeasonInventory returns per-season aired/downloaded counts for one
// Sonarr series, used by the smart missing-mode decision.
func (c *Client) FetchSeasonInventory(ctx context.Context, seriesID int64) (map[int]SeasonCounts, error) {
	query := url.Values{"seriesId": {strconv.FormatInt(seriesID, 10)}}
	raw, err := c.request(ctx, http.MethodGet, "/api/v3/episode", query, nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		SeasonNumber int    `json:"seasonNumber"`
		AirDateUTC   string `json:"airDateUtc"`
		HasFile      bool   `json:"hasFile"`
		Monitored    bool   `json:"monitored"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return map[int]SeasonCounts{}, nil
	}

	now := time.Now().UTC()
	out := map[int]SeasonCounts{}
	for _, r := range rows {
		counts := out[r.SeasonNumber]
		counts.SeasonNumber = r.SeasonNumber
		aired := false
		if t := ParseArrTimeStr(r.AirDateUTC); t != nil && !t.After(now) {
			aired = true
		}
		switch {
		case aired && r.HasFile:
			counts.AiredTotal++
			counts.AiredDownloaded++
		case aired:
			counts.AiredTotal++
		default:
			counts.UnairedTotal++
		}
		out[r.SeasonNumber] = counts
	}
	return out, nil
}

// FetchCalendar returns calendar rows in [start, end), for either app.
func (c *Client) FetchCalendar(ctx context.Context, start, end time.Time) (json.RawMessage, error) {
	query := url.Values{
		"start": {start.Format("2006-01-02")},
		"end":   {end.Format("2006-01-02")},
	}
	return c.request(ctx, http.MethodGet, "/api/v3/calendar", query, nil)
}

// TriggerMovieSearch asks Radarr to search for one movie.
func (c *Client) TriggerMovieSearch(ctx context.Context, movieID int64) error {
	_, err := c.request(ctx, http.MethodPost, "/api/v3/command", nil, map[string]any{
		"name":     "MoviesSearch",
		"movieIds": []int64{movieID},
	})
	if err != nil {
		c.Logger.Warn().Err(err).Int64("movie_id", movieID).Msg("MoviesSearch command failed")
	}
	return err
}

// TriggerEpisodeSearch asks Sonarr to search for one episode.
func (c *Client) TriggerEpisodeSearch(ctx context.Context, episodeID int64) error {
	_, err := c.request(ctx, http.MethodPost, "/api/v3/command", nil, map[string]any{
		"name":       "EpisodeSearch",
		"episodeIds": []int64{episodeID},
	})
	if err != nil {
		c.Logger.Warn().Err(err).Int64("episode_id", episodeID).Msg("EpisodeSearch command failed")
	}
	return err
}

// TriggerEpisodeSearchBulk asks Sonarr to search for several episodes in one command.
func (c *Client) TriggerEpisodeSearchBulk(ctx context.Context, episodeIDs []int64) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	_, err := c.request(ctx, http.MethodPost, "/api/v3/command", nil, map[string]any{
		"name":       "EpisodeSearch",
		"episodeIds": episodeIDs,
	})
	if err != nil {
		c.Logger.Warn().Err(err).Int("episode_count", len(episodeIDs)).Msg("EpisodeSearch bulk command failed")
	}
	return err
}

// TriggerSeasonSearch asks Sonarr to search an entire season at once.
func (c *Client) TriggerSeasonSearch(ctx context.Context, seriesID int64, seasonNumber int) error {
	_, err := c.request(ctx, http.MethodPost, "/api/v3/command", nil, map[string]any{
		"name":         "SeasonSearch",
		"seriesId":     seriesID,
		"seasonNumber": seasonNumber,
	})
	if err != nil {
		c.Logger.Warn().Err(err).Int64("series_id", seriesID).Int("season_number", seasonNumber).Msg("SeasonSearch command failed")
	}
	return err
}

var arrTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseArrTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return ParseArrTimeStr(*s)
}

// ParseArrTimeStr parses one of Radarr/Sonarr's date(time) layouts into UTC,
// returning nil for an empty or unrecognized string.
func ParseArrTimeStr(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range arrTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
