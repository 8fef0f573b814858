// Package config loads and validates searchd's YAML configuration: app-wide
// defaults plus a list of Radarr and Sonarr instances, each able to
// override any app default.
package config

// AppConfig holds process-wide defaults that every instance falls back to.
type AppConfig struct {
	DBPath                              string
	ItemRetryHours                      int
	MinHoursAfterRelease                int
	QuietHoursStart                     string
	QuietHoursEnd                       string
	QuietHoursTimezone                  string
	MaxMissingActionsPerInstancePerSync int
	MaxCutoffActionsPerInstancePerSync  int
	MinSecondsBetweenActions            int
	RateWindowMinutes                   int
	RateCapPerInstance                  int
	RequestTimeoutSeconds               int
	VerifySSL                           bool
	LogLevel                            string
	WebUIListenAddr                     string
}

// ArrConfig is the connection info for one Radarr/Sonarr backend.
type ArrConfig struct {
	Enabled bool
	URL     string
	APIKey  string
}

// InstanceConfig is one Radarr or Sonarr instance entry. Pointer fields are
// per-instance overrides: nil means "use the app default".
type InstanceConfig struct {
	InstanceID                          int64
	InstanceName                        string
	Enabled                             bool
	IntervalMinutes                     int
	SearchMissing                       bool
	SearchCutoffUnmet                   bool
	SearchOrder                         string
	QuietHoursStart                     *string
	QuietHoursEnd                       *string
	MinHoursAfterRelease                *int
	MinSecondsBetweenActions            *int
	MaxMissingActionsPerInstancePerSync *int
	MaxCutoffActionsPerInstancePerSync  *int
	SonarrMissingMode                   string
	ItemRetryHours                      *int
	RateWindowMinutes                   *int
	RateCap                             *int
	Arr                                 ArrConfig
}

// RuntimeConfig is the fully resolved configuration for one process.
type RuntimeConfig struct {
	App             AppConfig
	RadarrInstances []InstanceConfig
	SonarrInstances []InstanceConfig
}

// Effective resolves an instance's per-instance overrides against app, the
// way the engine needs them: every knob an instance doesn't set falls back
// to app's.
type Effective struct {
	IntervalMinutes                     int
	RetryHours                          int
	MinHoursAfterRelease                int
	MinSecondsBetweenActions            int
	RateWindowMinutes                   int
	RateCap                             int
	MaxMissingActionsPerInstancePerSync int
	MaxCutoffActionsPerInstancePerSync  int
	QuietHoursStart                     string
	QuietHoursEnd                       string
}

// Resolve applies app-level fallbacks for every override the instance
// leaves unset, clamping interval_minutes to [15,60] as the original does.
func (rc RuntimeConfig) Resolve(inst InstanceConfig) Effective {
	interval := inst.IntervalMinutes
	if interval < 15 {
		interval = 15
	}
	if interval > 60 {
		interval = 60
	}

	e := Effective{
		IntervalMinutes:                     interval,
		RetryHours:                          rc.App.ItemRetryHours,
		MinHoursAfterRelease:                rc.App.MinHoursAfterRelease,
		MinSecondsBetweenActions:            rc.App.MinSecondsBetweenActions,
		RateWindowMinutes:                   rc.App.RateWindowMinutes,
		RateCap:                             rc.App.RateCapPerInstance,
		MaxMissingActionsPerInstancePerSync: rc.App.MaxMissingActionsPerInstancePerSync,
		MaxCutoffActionsPerInstancePerSync:  rc.App.MaxCutoffActionsPerInstancePerSync,
		QuietHoursStart:                     rc.App.QuietHoursStart,
		QuietHoursEnd:                       rc.App.QuietHoursEnd,
	}
	if inst.ItemRetryHours != nil {
		e.RetryHours = *inst.ItemRetryHours
	}
	if inst.MinHoursAfterRelease != nil {
		e.MinHoursAfterRelease = *inst.MinHoursAfterRelease
	}
	if inst.MinSecondsBetweenActions != nil {
		e.MinSecondsBetweenActions = *inst.MinSecondsBetweenActions
	}
	if inst.RateWindowMinutes != nil {
		e.RateWindowMinutes = *inst.RateWindowMinutes
	}
	if inst.RateCap != nil {
		e.RateCap = *inst.RateCap
	}
	if inst.MaxMissingActionsPerInstancePerSync != nil {
		e.MaxMissingActionsPerInstancePerSync = *inst.MaxMissingActionsPerInstancePerSync
	}
	if inst.MaxCutoffActionsPerInstancePerSync != nil {
		e.MaxCutoffActionsPerInstancePerSync = *inst.MaxCutoffActionsPerInstancePerSync
	}
	if inst.QuietHoursStart != nil {
		e.QuietHoursStart = *inst.QuietHoursStart
	}
	if inst.QuietHoursEnd != nil {
		e.QuietHoursEnd = *inst.QuietHoursEnd
	}
	return e
}
