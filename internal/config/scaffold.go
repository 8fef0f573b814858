package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultConfigTemplate = `app:
  db_path: ./state/searchd.db
  request_timeout_seconds: 30
  verify_ssl: true
  log_level: INFO
  quiet_hours_timezone: ""
radarr:
  instances:
    - instance_id: 1
      instance_name: Radarr Main
      enabled: true
      interval_minutes: 15
      search_missing: true
      search_cutoff_unmet: true
      search_order: smart
      quiet_hours_start: "23:00"
      quiet_hours_end: "06:00"
      min_hours_after_release: 8
      min_seconds_between_actions: 2
      max_missing_actions_per_instance_per_sync: 5
      max_cutoff_actions_per_instance_per_sync: 1
      item_retry_hours: 72
      rate_window_minutes: 60
      rate_cap: 25
      radarr:
        url: ""
        api_key: ""
sonarr:
  instances:
    - instance_id: 1
      instance_name: Sonarr Main
      enabled: true
      interval_minutes: 15
      search_missing: true
      search_cutoff_unmet: true
      search_order: smart
      quiet_hours_start: "23:00"
      quiet_hours_end: "06:00"
      min_hours_after_release: 8
      min_seconds_between_actions: 2
      max_missing_actions_per_instance_per_sync: 5
      max_cutoff_actions_per_instance_per_sync: 1
      sonarr_missing_mode: smart
      item_retry_hours: 72
      rate_window_minutes: 60
      rate_cap: 25
      sonarr:
        url: ""
        api_key: ""
`

// ensureConfigExists writes a usable default configuration file when path
// does not already exist, mirroring the Docker-vs-bare-metal db_path
// heuristic: /data paths get /data/searchd.db, everything else gets
// ./state/searchd.db.
func ensureConfigExists(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %q: %w (if running in a container, ensure the data volume is writable)", dir, err)
	}

	content := defaultConfigTemplate
	if isDockerDataPath(path) {
		content = strings.Replace(content, "./state/searchd.db", "/data/searchd.db", 1)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config %q: %w (if running in a container, ensure the data volume is writable)", path, err)
	}
	return nil
}

func isDockerDataPath(path string) bool {
	clean := filepath.ToSlash(path)
	return strings.HasPrefix(clean, "/data/") || strings.HasSuffix(clean, "/data/config.yaml")
}

// Validate returns a list of human-readable problems with the config that
// should block startup; an empty slice means the config is usable.
func (rc RuntimeConfig) Validate() []string {
	var problems []string

	if rc.App.DBPath == "" {
		problems = append(problems, "app.db_path must not be empty")
	}
	if len(rc.RadarrInstances) == 0 && len(rc.SonarrInstances) == 0 {
		problems = append(problems, "no Radarr or Sonarr instances configured")
	}

	validate := func(kind string, instances []InstanceConfig) {
		seen := map[int64]bool{}
		for _, inst := range instances {
			if seen[inst.InstanceID] {
				problems = append(problems, fmt.Sprintf("%s: duplicate instance_id %d", kind, inst.InstanceID))
			}
			seen[inst.InstanceID] = true
			if inst.Enabled && inst.Arr.URL == "" {
				problems = append(problems, fmt.Sprintf("%s instance %d (%s): enabled but arr.url is empty", kind, inst.InstanceID, inst.InstanceName))
			}
			if inst.Enabled && inst.Arr.APIKey == "" {
				problems = append(problems, fmt.Sprintf("%s instance %d (%s): enabled but arr.api_key is empty", kind, inst.InstanceID, inst.InstanceName))
			}
		}
	}
	validate("radarr", rc.RadarrInstances)
	validate("sonarr", rc.SonarrInstances)

	return problems
}

// WriteInstanceSettings persists an in-place edit of one instance's
// overrides back to the YAML document at path, preserving every other
// key. Used by the Web UI's settings endpoint.
func WriteInstanceSettings(path, section string, instanceID int64, patch map[string]any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return fmt.Errorf("config %q is empty", path)
	}

	root := doc.Content[0]
	sectionNode := mapGet(root, section)
	if sectionNode == nil {
		return fmt.Errorf("section %q not found in config", section)
	}
	instancesNode := mapGet(sectionNode, "instances")
	if instancesNode == nil || instancesNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("section %q has no instances list", section)
	}
	for _, inst := range instancesNode.Content {
		idNode := mapGet(inst, "instance_id")
		if idNode == nil || idNode.Value != fmt.Sprintf("%d", instanceID) {
			continue
		}
		for key, value := range patch {
			setScalar(inst, key, value)
		}
		out, err := yaml.Marshal(&doc)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return os.WriteFile(path, out, 0o644)
	}
	return fmt.Errorf("instance_id %d not found in section %q", instanceID, section)
}

func mapGet(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func setScalar(mapNode *yaml.Node, key string, value any) {
	if mapNode.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value == key {
			_ = mapNode.Content[i+1].Encode(value)
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	valNode := &yaml.Node{}
	_ = valNode.Encode(value)
	mapNode.Content = append(mapNode.Content, keyNode, valNode)
}
