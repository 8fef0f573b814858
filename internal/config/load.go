package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func loadDotenvIfPresent(configPath string) {
	candidates := []string{
		filepath.Join(filepath.Dir(configPath), ".env"),
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// Load reads, scaffolds-if-missing, dotenv-augments, env-substitutes, and
// parses the configuration at path into a resolved RuntimeConfig.
func Load(path string) (*RuntimeConfig, error) {
	if err := ensureConfigExists(path); err != nil {
		return nil, err
	}
	loadDotenvIfPresent(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	expanded := expandEnv(string(data))

	var doc rawDocument
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	app := buildAppConfig(doc.App)

	radarrInstances := parseInstances(doc.Radarr, "radarr")
	sonarrInstances := parseInstances(doc.Sonarr, "sonarr")

	if len(radarrInstances) == 0 {
		radarrInstances = parseInstances(doc.MovieHunt, "radarr")
	}
	if len(sonarrInstances) == 0 {
		sonarrInstances = parseInstances(doc.TVHunt, "sonarr")
	}

	if len(radarrInstances) == 0 && len(sonarrInstances) == 0 {
		if inst, ok := singleInstanceFallback(doc.Radarr, "Radarr Default"); ok {
			radarrInstances = append(radarrInstances, inst)
		}
		if inst, ok := singleInstanceFallback(doc.Sonarr, "Sonarr Default"); ok {
			sonarrInstances = append(sonarrInstances, inst)
		}
	}

	return &RuntimeConfig{App: app, RadarrInstances: radarrInstances, SonarrInstances: sonarrInstances}, nil
}

func buildAppConfig(raw rawApp) AppConfig {
	app := AppConfig{
		DBPath:                              strOr(raw.DBPath, "./state/searchd.db"),
		ItemRetryHours:                       clampMin(intOr(raw.ItemRetryHours, 12), 1),
		MinHoursAfterRelease:                 clampMin(intOr(raw.MinHoursAfterRelease, 8), 0),
		QuietHoursStart:                      strOr(raw.QuietHoursStart, "23:00"),
		QuietHoursEnd:                        strOr(raw.QuietHoursEnd, "06:00"),
		QuietHoursTimezone:                   raw.QuietHoursTimezone,
		MaxMissingActionsPerInstancePerSync:  clampMin(intOr(raw.MaxMissingActionsPerInstancePerSync, 5), 0),
		MaxCutoffActionsPerInstancePerSync:   clampMin(intOr(raw.MaxCutoffActionsPerInstancePerSync, 1), 0),
		MinSecondsBetweenActions:             clampMin(intOr(raw.MinSecondsBetweenActions, 2), 0),
		RateWindowMinutes:                    clampMin(intOr(raw.RateWindowMinutes, 30), 1),
		RateCapPerInstance:                   clampMin(intOr(raw.RateCapPerInstance, 10), 1),
		RequestTimeoutSeconds:                clampMin(intOr(raw.RequestTimeoutSeconds, 30), 5),
		VerifySSL:                            boolOr(raw.VerifySSL, true),
		LogLevel:                             strings.ToUpper(strOr(raw.LogLevel, "INFO")),
		WebUIListenAddr:                      strOr(raw.WebUIListenAddr, ":8787"),
	}
	return app
}

func parseInstances(section rawSection, arrKey string) []InstanceConfig {
	out := make([]InstanceConfig, 0, len(section.Instances))
	for _, row := range section.Instances {
		enabled := boolOr(row.Enabled, true)

		var arrBlock *rawArrBlock
		if arrKey == "radarr" {
			arrBlock = row.Radarr
		} else {
			arrBlock = row.Sonarr
		}
		arrURL, arrKeyVal := "", ""
		if arrBlock != nil {
			arrURL, arrKeyVal = arrBlock.URL, arrBlock.APIKey
		}

		itemRetryHours := row.ItemRetryHours
		if itemRetryHours == nil {
			itemRetryHours = row.StateManagementHours
		}
		rateWindowMinutes := row.RateWindowMinutes
		rateCap := row.RateCap
		if rateWindowMinutes == nil && row.HourlyCap != nil {
			sixty := 60
			rateWindowMinutes = &sixty
		}
		if rateCap == nil && row.HourlyCap != nil {
			rateCap = row.HourlyCap
		}

		instanceID := int64(1)
		if row.InstanceID != nil && *row.InstanceID > 0 {
			instanceID = *row.InstanceID
		}

		out = append(out, InstanceConfig{
			InstanceID:                          instanceID,
			InstanceName:                        strOr(row.InstanceName, titleCase(arrKey)+" Default"),
			Enabled:                             enabled,
			IntervalMinutes:                     clampInterval(intOr(row.IntervalMinutes, 15)),
			SearchMissing:                       boolOr(row.SearchMissing, true),
			SearchCutoffUnmet:                   boolOr(row.SearchCutoffUnmet, true),
			SearchOrder:                         normalizeSearchOrder(row.SearchOrder),
			QuietHoursStart:                     row.QuietHoursStart,
			QuietHoursEnd:                       row.QuietHoursEnd,
			MinHoursAfterRelease:                row.MinHoursAfterRelease,
			MinSecondsBetweenActions:            row.MinSecondsBetweenActions,
			MaxMissingActionsPerInstancePerSync: row.MaxMissingActionsPerInstancePerSync,
			MaxCutoffActionsPerInstancePerSync:  row.MaxCutoffActionsPerInstancePerSync,
			SonarrMissingMode:                   normalizeSonarrMode(row.SonarrMissingMode),
			ItemRetryHours:                      itemRetryHours,
			RateWindowMinutes:                   rateWindowMinutes,
			RateCap:                             rateCap,
			Arr: ArrConfig{
				Enabled: enabled,
				URL:     arrURL,
				APIKey:  arrKeyVal,
			},
		})
	}
	return out
}

func singleInstanceFallback(section rawSection, name string) (InstanceConfig, bool) {
	if !boolOr(section.Enabled, true) {
		return InstanceConfig{}, false
	}
	return InstanceConfig{
		InstanceID:        1,
		InstanceName:      name,
		Enabled:           true,
		IntervalMinutes:   15,
		SearchMissing:     true,
		SearchCutoffUnmet: true,
		SearchOrder:       "smart",
		SonarrMissingMode: "smart",
		Arr: ArrConfig{
			Enabled: boolOr(section.Enabled, true),
			URL:     section.URL,
			APIKey:  section.APIKey,
		},
	}, true
}

func normalizeSonarrMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "seasons_packs", "seasonpacks", "seasons", "season":
		return "season_packs"
	case "hybrid", "auto":
		return "smart"
	case "":
		return "smart"
	}
	return mode
}

func normalizeSearchOrder(order string) string {
	order = strings.ToLower(strings.TrimSpace(order))
	switch order {
	case "smart", "newest", "oldest", "random":
		return order
	default:
		return "smart"
	}
}

func clampInterval(v int) int {
	if v < 15 {
		return 15
	}
	if v > 60 {
		return 60
	}
	return v
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func strOr(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
