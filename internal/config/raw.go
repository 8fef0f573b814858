package config

type rawDocument struct {
	App       rawApp     `yaml:"app"`
	Radarr    rawSection `yaml:"radarr"`
	Sonarr    rawSection `yaml:"sonarr"`
	MovieHunt rawSection `yaml:"movie_hunt"`
	TVHunt    rawSection `yaml:"tv_hunt"`
}

type rawApp struct {
	DBPath                              string `yaml:"db_path"`
	ItemRetryHours                      *int   `yaml:"item_retry_hours"`
	MinHoursAfterRelease                *int   `yaml:"min_hours_after_release"`
	QuietHoursStart                     string `yaml:"quiet_hours_start"`
	QuietHoursEnd                       string `yaml:"quiet_hours_end"`
	QuietHoursTimezone                  string `yaml:"quiet_hours_timezone"`
	MaxMissingActionsPerInstancePerSync *int   `yaml:"max_missing_actions_per_instance_per_sync"`
	MaxCutoffActionsPerInstancePerSync  *int   `yaml:"max_cutoff_actions_per_instance_per_sync"`
	MinSecondsBetweenActions            *int   `yaml:"min_seconds_between_actions"`
	RateWindowMinutes                   *int   `yaml:"rate_window_minutes"`
	RateCapPerInstance                  *int   `yaml:"rate_cap_per_instance"`
	RequestTimeoutSeconds               *int   `yaml:"request_timeout_seconds"`
	VerifySSL                           *bool  `yaml:"verify_ssl"`
	LogLevel                            string `yaml:"log_level"`
	WebUIListenAddr                     string `yaml:"webui_listen_addr"`
}

type rawSection struct {
	Enabled   *bool          `yaml:"enabled"`
	URL       string         `yaml:"url"`
	APIKey    string         `yaml:"api_key"`
	Instances []rawInstance  `yaml:"instances"`
}

type rawArrBlock struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type rawInstance struct {
	InstanceID                          *int64       `yaml:"instance_id"`
	InstanceName                        string       `yaml:"instance_name"`
	Enabled                             *bool        `yaml:"enabled"`
	IntervalMinutes                     *int         `yaml:"interval_minutes"`
	SearchMissing                       *bool        `yaml:"search_missing"`
	SearchCutoffUnmet                   *bool        `yaml:"search_cutoff_unmet"`
	SearchOrder                         string       `yaml:"search_order"`
	QuietHoursStart                     *string      `yaml:"quiet_hours_start"`
	QuietHoursEnd                       *string      `yaml:"quiet_hours_end"`
	MinHoursAfterRelease                *int         `yaml:"min_hours_after_release"`
	MinSecondsBetweenActions            *int         `yaml:"min_seconds_between_actions"`
	MaxMissingActionsPerInstancePerSync *int         `yaml:"max_missing_actions_per_instance_per_sync"`
	MaxCutoffActionsPerInstancePerSync  *int         `yaml:"max_cutoff_actions_per_instance_per_sync"`
	SonarrMissingMode                   string       `yaml:"sonarr_missing_mode"`
	ItemRetryHours                      *int         `yaml:"item_retry_hours"`
	StateManagementHours                *int         `yaml:"state_management_hours"` // legacy alias
	RateWindowMinutes                   *int         `yaml:"rate_window_minutes"`
	RateCap                             *int         `yaml:"rate_cap"`
	HourlyCap                           *int         `yaml:"hourly_cap"` // legacy alias
	Radarr                              *rawArrBlock `yaml:"radarr"`
	Sonarr                              *rawArrBlock `yaml:"sonarr"`
}
