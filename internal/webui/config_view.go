package webui

import "github.com/vmunix/searchd/internal/config"

// instanceRow is one row of the /api/settings and /api/status "instances"
// view, mirroring _config_view/_instance_row: every per-instance override
// resolved against the app-level default, plus whether a credential is on
// file.
type instanceRow struct {
	App                                 string `json:"app"`
	InstanceID                          int64  `json:"instance_id"`
	InstanceName                        string `json:"instance_name"`
	Enabled                             bool   `json:"enabled"`
	IntervalMinutes                     int    `json:"interval_minutes"`
	SearchMissing                       bool   `json:"search_missing"`
	SearchCutoffUnmet                   bool   `json:"search_cutoff_unmet"`
	SearchOrder                         string `json:"search_order"`
	QuietHoursStart                     string `json:"quiet_hours_start"`
	QuietHoursEnd                       string `json:"quiet_hours_end"`
	MinHoursAfterRelease                int    `json:"min_hours_after_release"`
	MinSecondsBetweenActions            int    `json:"min_seconds_between_actions"`
	MaxMissingActionsPerInstancePerSync int    `json:"max_missing_actions_per_instance_per_sync"`
	MaxCutoffActionsPerInstancePerSync  int    `json:"max_cutoff_actions_per_instance_per_sync"`
	SonarrMissingMode                   string `json:"sonarr_missing_mode"`
	ItemRetryHours                      int    `json:"item_retry_hours"`
	RateWindowMinutes                   int    `json:"rate_window_minutes"`
	RateCap                             int    `json:"rate_cap"`
	ArrEnabled                          bool   `json:"arr_enabled"`
	ArrURL                              string `json:"arr_url"`
	APIKeySet                           bool   `json:"api_key_set"`
}

// buildInstanceRows resolves every configured instance's view row. Errors
// from HasArrAPIKey are swallowed to "not set" rather than failing the
// whole settings view over one bad lookup.
func buildInstanceRows(rc config.RuntimeConfig, st webuiStore) []instanceRow {
	row := func(app string, inst config.InstanceConfig) instanceRow {
		eff := rc.Resolve(inst)
		sonarrMode := inst.SonarrMissingMode
		if sonarrMode == "" {
			sonarrMode = "season_packs"
		}
		hasKey, _ := st.HasArrAPIKey(app, inst.InstanceID)
		return instanceRow{
			App:                                 app,
			InstanceID:                          inst.InstanceID,
			InstanceName:                        inst.InstanceName,
			Enabled:                             inst.Enabled,
			IntervalMinutes:                     eff.IntervalMinutes,
			SearchMissing:                       inst.SearchMissing,
			SearchCutoffUnmet:                   inst.SearchCutoffUnmet,
			SearchOrder:                         defaultString(inst.SearchOrder, "smart"),
			QuietHoursStart:                     eff.QuietHoursStart,
			QuietHoursEnd:                       eff.QuietHoursEnd,
			MinHoursAfterRelease:                eff.MinHoursAfterRelease,
			MinSecondsBetweenActions:            eff.MinSecondsBetweenActions,
			MaxMissingActionsPerInstancePerSync: eff.MaxMissingActionsPerInstancePerSync,
			MaxCutoffActionsPerInstancePerSync:  eff.MaxCutoffActionsPerInstancePerSync,
			SonarrMissingMode:                   sonarrMode,
			ItemRetryHours:                      eff.RetryHours,
			RateWindowMinutes:                   eff.RateWindowMinutes,
			RateCap:                             eff.RateCap,
			ArrEnabled:                          inst.Enabled && inst.Arr.Enabled,
			ArrURL:                              inst.Arr.URL,
			APIKeySet:                           hasKey || inst.Arr.APIKey != "",
		}
	}

	rows := make([]instanceRow, 0, len(rc.RadarrInstances)+len(rc.SonarrInstances))
	for _, inst := range rc.RadarrInstances {
		rows = append(rows, row("radarr", inst))
	}
	for _, inst := range rc.SonarrInstances {
		rows = append(rows, row("sonarr", inst))
	}
	return rows
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
