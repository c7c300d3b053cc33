package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Zero values leave base untouched;
// booleans are only applied when the key is present in the file.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if strings.TrimSpace(override.API.BaseURL) != "" {
		base.API.BaseURL = strings.TrimSpace(override.API.BaseURL)
	}
	if strings.TrimSpace(override.API.UserAgent) != "" {
		base.API.UserAgent = strings.TrimSpace(override.API.UserAgent)
	}

	if override.Storage.Backend != "" {
		base.Storage.Backend = strings.ToLower(strings.TrimSpace(override.Storage.Backend))
	}
	if override.Storage.DataDir != "" {
		base.Storage.DataDir = override.Storage.DataDir
	}
	if override.Storage.TokenPath != "" {
		base.Storage.TokenPath = override.Storage.TokenPath
	}
	if override.Storage.DBPath != "" {
		base.Storage.DBPath = override.Storage.DBPath
	}

	if override.Callback.Listen != "" {
		base.Callback.Listen = override.Callback.Listen
	}
	if boolFieldSet(raw, "callback", "open_browser") {
		base.Callback.OpenBrowser = override.Callback.OpenBrowser
	}
	if override.Callback.TimeoutSeconds != 0 {
		base.Callback.TimeoutSeconds = override.Callback.TimeoutSeconds
	}

	if fieldSet(raw, "network", "rate_limit") {
		base.Network.RateLimit = override.Network.RateLimit
	}
	if override.Network.Burst != 0 {
		base.Network.Burst = override.Network.Burst
	}
	if override.Network.TimeoutSeconds != 0 {
		base.Network.TimeoutSeconds = override.Network.TimeoutSeconds
	}

	if boolFieldSet(raw, "logging", "enabled") {
		base.Logging.Enabled = override.Logging.Enabled
	}
	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if boolFieldSet(raw, "telemetry", "trace") {
		base.Telemetry.Trace = override.Telemetry.Trace
	}
	if override.Telemetry.NATSURL != "" {
		base.Telemetry.NATSURL = override.Telemetry.NATSURL
	}
	if override.Telemetry.NATSSubject != "" {
		base.Telemetry.NATSSubject = override.Telemetry.NATSSubject
	}

	if override.Analysis.MaxTokens != 0 {
		base.Analysis.MaxTokens = override.Analysis.MaxTokens
	}
	if override.Analysis.ScanConcurrency != 0 {
		base.Analysis.ScanConcurrency = override.Analysis.ScanConcurrency
	}

	if boolFieldSet(raw, "ui", "no_color") {
		base.UI.NoColor = override.UI.NoColor
	}
	if override.UI.Width != 0 {
		base.UI.Width = override.UI.Width
	}
}

func boolFieldSet(raw map[string]any, path ...string) bool {
	return fieldSet(raw, path...)
}

func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
