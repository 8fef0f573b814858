package arr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func silentLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestFetchWantedMovies_MissingWinsOverCutoff(t *testing.T) {
	calls := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls[r.URL.Path]++
		switch r.URL.Path {
		case "/api/v3/movie":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "monitored": true, "digitalRelease": "2026-01-01T00:00:00Z"},
			})
		case "/api/v3/wanted/missing":
			if r.URL.Query().Get("page") == "1" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"records": []map[string]any{
						{"id": 1, "title": "Movie One", "year": 2026, "tmdbId": 100, "imdbId": "TT1"},
					},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"records": []map[string]any{}})
		case "/api/v3/wanted/cutoff":
			if r.URL.Query().Get("page") == "1" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"records": []map[string]any{
						{"id": 1, "title": "Movie One Cutoff", "year": 2026},
					},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"records": []map[string]any{}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("radarr", srv.URL, "key", 5*time.Second, false, silentLogger())
	wanted, err := c.FetchWantedMovies(context.Background(), true, true)
	require.NoError(t, err)
	require.Len(t, wanted, 1)
	require.Equal(t, WantedMissing, wanted[0].WantedKind)
	require.Equal(t, "Movie One", wanted[0].Title)
	require.Equal(t, "tt1", wanted[0].IMDBID)
}

func TestFetchWantedMovies_UnmonitoredExcluded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/movie":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "monitored": false},
			})
		case "/api/v3/wanted/missing":
			if r.URL.Query().Get("page") == "1" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"records": []map[string]any{{"id": 1, "title": "Ignored"}},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"records": []map[string]any{}})
		case "/api/v3/wanted/cutoff":
			_ = json.NewEncoder(w).Encode(map[string]any{"records": []map[string]any{}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("radarr", srv.URL, "key", 5*time.Second, false, silentLogger())
	wanted, err := c.FetchWantedMovies(context.Background(), true, true)
	require.NoError(t, err)
	require.Empty(t, wanted)
}

func TestRequest_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized"))
	}))
	defer srv.Close()

	c := NewClient("radarr", srv.URL, "bad-key", 5*time.Second, false, silentLogger())
	_, err := c.FetchSeries(context.Background())
	require.Error(t, err)
	var arrErr *Error
	require.ErrorAs(t, err, &arrErr)
	require.Equal(t, ErrClassStatus, arrErr.Class)
}

func TestRequest_ConnectionRefused(t *testing.T) {
	c := NewClient("radarr", "http://127.0.0.1:1", "key", 2*time.Second, false, silentLogger())
	_, err := c.FetchSeries(context.Background())
	require.Error(t, err)
	var arrErr *Error
	require.ErrorAs(t, err, &arrErr)
	require.Equal(t, ErrClassConnection, arrErr.Class)
}

func TestFetchCalendar_EmptyBodyBecomesEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("radarr", srv.URL, "key", 5*time.Second, false, silentLogger())
	raw, err := c.FetchCalendar(context.Background(), time.Now(), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.JSONEq(t, "{}", string(raw))
}

func TestTriggerSeasonSearch(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	c := NewClient("sonarr", srv.URL, "key", 5*time.Second, false, silentLogger())
	err := c.TriggerSeasonSearch(context.Background(), 42, 3)
	require.NoError(t, err)
	require.Equal(t, "SeasonSearch", gotBody["name"])
	require.EqualValues(t, 42, gotBody["seriesId"])
	require.EqualValues(t, 3, gotBody["seasonNumber"])
}

func TestFetchSeasonInventory_CountsAiredAndDownloaded(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)
	future := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"seasonNumber": 1, "airDateUtc": past, "hasFile": true},
			{"seasonNumber": 1, "airDateUtc": past, "hasFile": false},
			{"seasonNumber": 1, "airDateUtc": future, "hasFile": false},
		})
	}))
	defer srv.Close()

	c := NewClient("sonarr", srv.URL, "key", 5*time.Second, false, silentLogger())
	inv, err := c.FetchSeasonInventory(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, inv[1].AiredTotal)
	require.Equal(t, 1, inv[1].AiredDownloaded)
	require.Equal(t, 1, inv[1].UnairedTotal)
}
