package webui

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/crypto"
	"github.com/vmunix/searchd/internal/engine"
	"github.com/vmunix/searchd/internal/store"
)

// RegisterRoutes wires every /api/* endpoint plus the dashboard, following
// the original's route-by-route split between the two auth-exempt
// bootstrap endpoints and everything else.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/", s.handleIndex)
	e.GET("/favicon.ico", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	api := e.Group("/api")
	api.GET("/auth/status", s.handleAuthStatus)
	api.POST("/auth/bootstrap", s.handleAuthBootstrap)

	protected := api.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/status", s.handleStatus)
	protected.GET("/settings", s.handleSettingsGet)
	protected.POST("/settings", s.handleSettingsSave)
	protected.POST("/run", s.handleRun)
	protected.POST("/run_instance", s.handleRunInstance)
	protected.POST("/autorun", s.handleAutorun)
	protected.POST("/credentials/clear", s.handleClearCredentials)
}

type authStatusResponse struct {
	PasswordSet bool `json:"password_set"`
}

func (s *Server) handleAuthStatus(c echo.Context) error {
	hash, err := s.Store.GetWebUIPasswordHash()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "checking web ui password")
	}
	return c.JSON(http.StatusOK, authStatusResponse{PasswordSet: hash != ""})
}

type bootstrapRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleAuthBootstrap(c echo.Context) error {
	hash, err := s.Store.GetWebUIPasswordHash()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "checking web ui password")
	}
	if hash != "" {
		return echo.NewHTTPError(http.StatusConflict, "Password already set")
	}

	var req bootstrapRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	pw := strings.TrimSpace(req.Password)
	if len(pw) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "Password must be at least 8 characters")
	}

	newHash, err := crypto.HashPassword(pw)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "hashing password")
	}
	if err := s.Store.SetWebUIPasswordHash(newHash); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "storing password")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

type rateStatusEntry struct {
	Used          int `json:"used"`
	WindowMinutes int `json:"window_minutes"`
}

func (s *Server) handleStatus(c echo.Context) error {
	rc := s.currentConfig()
	now := s.Now()

	rateStatus := map[string]rateStatusEntry{}
	instanceLastRun := map[string]*store.Run{}
	searchHistory := map[string][]store.SearchAction{}

	collect := func(app string, instances []config.InstanceConfig) {
		for _, inst := range instances {
			eff := rc.Resolve(inst)
			since := now.Add(-time.Duration(eff.RateWindowMinutes) * time.Minute)
			used, _ := s.Store.CountSearchEventsSince(app, inst.InstanceID, since)
			key := fmt.Sprintf("%s:%d", app, inst.InstanceID)
			rateStatus[key] = rateStatusEntry{Used: used, WindowMinutes: eff.RateWindowMinutes}
			lastRun, _ := s.Store.GetLastInstanceRun(app, inst.InstanceID)
			instanceLastRun[key] = lastRun
			actions, _ := s.Store.GetRecentSearchActions(app, inst.InstanceID, 50)
			searchHistory[key] = actions
		}
	}
	collect("radarr", rc.RadarrInstances)
	collect("sonarr", rc.SonarrInstances)

	syncStatuses, _ := s.Store.GetSyncStatuses()
	recentRuns, _ := s.Store.GetRecentRuns(20)
	heartbeat, _ := s.Store.GetSchedulerHeartbeat()
	autorun, _ := s.Store.GetAutorunEnabled()

	return c.JSON(http.StatusOK, map[string]any{
		"server_time_utc":     now.UTC(),
		"config":              map[string]any{"instances": buildInstanceRows(rc, s.Store)},
		"sync_status":         syncStatuses,
		"recent_runs":         recentRuns,
		"rate_status":         rateStatus,
		"instance_last_run":   instanceLastRun,
		"search_history":      searchHistory,
		"run_state":           s.state.snapshot(),
		"autorun_enabled":     autorun,
		"scheduler_heartbeat": heartbeat,
	})
}

func (s *Server) handleSettingsGet(c echo.Context) error {
	rc := s.currentConfig()
	return c.JSON(http.StatusOK, map[string]any{"instances": buildInstanceRows(rc, s.Store)})
}

type settingsPatchRow struct {
	App                                 string  `json:"app"`
	InstanceID                          int64   `json:"instance_id"`
	Enabled                             *bool   `json:"enabled"`
	SearchMissing                       *bool   `json:"search_missing"`
	SearchCutoffUnmet                   *bool   `json:"search_cutoff_unmet"`
	SearchOrder                         *string `json:"search_order"`
	QuietHoursStart                     *string `json:"quiet_hours_start"`
	QuietHoursEnd                       *string `json:"quiet_hours_end"`
	MinHoursAfterRelease                *int    `json:"min_hours_after_release"`
	MinSecondsBetweenActions            *int    `json:"min_seconds_between_actions"`
	MaxMissingActionsPerInstancePerSync *int    `json:"max_missing_actions_per_instance_per_sync"`
	MaxCutoffActionsPerInstancePerSync  *int    `json:"max_cutoff_actions_per_instance_per_sync"`
	SonarrMissingMode                   *string `json:"sonarr_missing_mode"`
	ItemRetryHours                      *int    `json:"item_retry_hours"`
	RateWindowMinutes                   *int    `json:"rate_window_minutes"`
	RateCap                             *int    `json:"rate_cap"`
	ArrURL                              *string `json:"arr_url"`
	ArrAPIKey                           *string `json:"arr_api_key"`
}

type settingsRequest struct {
	Instances []settingsPatchRow `json:"instances"`
}

// handleSettingsSave applies a per-instance patch to the YAML config in
// place, persists any supplied API key through the credential store
// rather than the file, and reloads the in-memory config on success —
// the same shape as the original's save_settings, split per (app,
// instance_id) into individual WriteInstanceSettings calls.
func (s *Server) handleSettingsSave(c echo.Context) error {
	var req settingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rc := s.currentConfig()
	findInstance := func(list []config.InstanceConfig, id int64) (config.InstanceConfig, bool) {
		for _, inst := range list {
			if inst.InstanceID == id {
				return inst, true
			}
		}
		return config.InstanceConfig{}, false
	}

	for _, row := range req.Instances {
		app := strings.ToLower(strings.TrimSpace(row.App))
		if app != "radarr" && app != "sonarr" {
			continue
		}
		list := rc.RadarrInstances
		if app == "sonarr" {
			list = rc.SonarrInstances
		}
		existing, ok := findInstance(list, row.InstanceID)
		if !ok {
			continue
		}

		patch := map[string]any{}
		if row.Enabled != nil {
			patch["enabled"] = *row.Enabled
		}
		if row.SearchMissing != nil {
			patch["search_missing"] = *row.SearchMissing
		}
		if row.SearchCutoffUnmet != nil {
			patch["search_cutoff_unmet"] = *row.SearchCutoffUnmet
		}
		if row.SearchOrder != nil {
			patch["search_order"] = strings.ToLower(strings.TrimSpace(*row.SearchOrder))
		}
		if row.QuietHoursStart != nil {
			patch["quiet_hours_start"] = strings.TrimSpace(*row.QuietHoursStart)
		}
		if row.QuietHoursEnd != nil {
			patch["quiet_hours_end"] = strings.TrimSpace(*row.QuietHoursEnd)
		}
		if row.MinHoursAfterRelease != nil {
			patch["min_hours_after_release"] = max(0, *row.MinHoursAfterRelease)
		}
		if row.MinSecondsBetweenActions != nil {
			patch["min_seconds_between_actions"] = max(0, *row.MinSecondsBetweenActions)
		}
		if row.MaxMissingActionsPerInstancePerSync != nil {
			patch["max_missing_actions_per_instance_per_sync"] = max(0, *row.MaxMissingActionsPerInstancePerSync)
		}
		if row.MaxCutoffActionsPerInstancePerSync != nil {
			patch["max_cutoff_actions_per_instance_per_sync"] = max(0, *row.MaxCutoffActionsPerInstancePerSync)
		}
		if app == "sonarr" && row.SonarrMissingMode != nil {
			patch["sonarr_missing_mode"] = strings.ToLower(strings.TrimSpace(*row.SonarrMissingMode))
		}
		if row.ItemRetryHours != nil {
			patch["item_retry_hours"] = max(1, *row.ItemRetryHours)
		}
		if row.RateWindowMinutes != nil {
			patch["rate_window_minutes"] = max(1, *row.RateWindowMinutes)
		}
		if row.RateCap != nil {
			patch["rate_cap"] = max(1, *row.RateCap)
		}

		arrBlock := map[string]any{"enabled": existing.Arr.Enabled, "url": existing.Arr.URL, "api_key": ""}
		if row.Enabled != nil {
			arrBlock["enabled"] = *row.Enabled
		}
		if row.ArrURL != nil && strings.TrimSpace(*row.ArrURL) != "" {
			arrBlock["url"] = strings.TrimSpace(*row.ArrURL)
		}
		if row.ArrAPIKey != nil && strings.TrimSpace(*row.ArrAPIKey) != "" {
			if err := s.Store.SetArrAPIKey(app, row.InstanceID, strings.TrimSpace(*row.ArrAPIKey)); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "storing credential")
			}
		}
		patch[app] = arrBlock

		if err := config.WriteInstanceSettings(s.ConfigPath, app, row.InstanceID, patch); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	if err := s.reloadConfig(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

type runRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleRun(c echo.Context) error {
	var req runRequest
	_ = c.Bind(&req)

	if !s.tryAcquireRun() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Run already in progress"})
	}
	s.runAsync(req.Force, func(progress chan<- engine.Event) error {
		return s.runAllEnabled(c.Request().Context(), req.Force, progress)
	})
	return c.JSON(http.StatusAccepted, map[string]any{"message": "Run started", "force": req.Force})
}

type runInstanceRequest struct {
	App        string `json:"app"`
	InstanceID int64  `json:"instance_id"`
	Force      bool   `json:"force"`
}

func (s *Server) handleRunInstance(c echo.Context) error {
	req := runInstanceRequest{Force: true}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	app := strings.ToLower(strings.TrimSpace(req.App))
	if (app != "radarr" && app != "sonarr") || req.InstanceID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid instance"})
	}

	rc := s.currentConfig()
	list := rc.RadarrInstances
	if app == "sonarr" {
		list = rc.SonarrInstances
	}
	var target config.InstanceConfig
	found := false
	for _, inst := range list {
		if inst.InstanceID == req.InstanceID {
			target = inst
			found = true
			break
		}
	}
	if !found {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid instance"})
	}

	if !s.tryAcquireRun() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Run already in progress"})
	}
	s.runAsync(req.Force, func(progress chan<- engine.Event) error {
		_, err := s.Engine.RunInstance(c.Request().Context(), rc, app, target, req.Force, progress)
		return err
	})
	return c.JSON(http.StatusAccepted, map[string]any{
		"message": fmt.Sprintf("Instance run started: %s:%d", app, req.InstanceID),
		"force":   req.Force,
	})
}

type autorunRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAutorun(c echo.Context) error {
	req := autorunRequest{Enabled: true}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.Store.SetAutorunEnabled(req.Enabled); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "storing autorun setting")
	}
	return c.JSON(http.StatusOK, map[string]bool{"autorun_enabled": req.Enabled})
}

type clearCredentialsRequest struct {
	App        string `json:"app"`
	InstanceID int64  `json:"instance_id"`
}

func (s *Server) handleClearCredentials(c echo.Context) error {
	var req clearCredentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	app := strings.ToLower(strings.TrimSpace(req.App))
	if (app != "radarr" && app != "sonarr") || req.InstanceID <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid instance"})
	}
	if err := s.Store.ClearArrAPIKey(app, req.InstanceID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "clearing credential")
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
