package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses a Config from YAML bytes and validates it.
// This is used for APIs where the config is provided as payload
// (not via filesystem).
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ParseYAMLString parses a Config from a YAML string and validates it.
func ParseYAMLString(yamlText string) (*Config, error) {
	return ParseYAML([]byte(yamlText))
}

// applyDefaults fills omitted optional fields with their documented defaults
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Database.Component == "" {
		cfg.Database.Component = "geomean"
	}
	if cfg.Selection.Trials == 0 {
		cfg.Selection.Trials = 20
	}
	if cfg.Selection.Loops == 0 {
		cfg.Selection.Loops = 2
	}
	if cfg.Selection.MaxScale == 0 {
		cfg.Selection.MaxScale = 4
	}
	if cfg.Selection.TolerancePct == 0 {
		cfg.Selection.TolerancePct = 10
	}
	if cfg.Selection.Workers == 0 {
		cfg.Selection.Workers = 1
	}

	// Omitted scenario weights default to a uniform hazard contribution.
	allZero := true
	for _, s := range cfg.Target.Scenarios {
		if s.Weight != 0 {
			allZero = false
			break
		}
	}
	if allZero && len(cfg.Target.Scenarios) > 0 {
		w := 1.0 / float64(len(cfg.Target.Scenarios))
		for i := range cfg.Target.Scenarios {
			cfg.Target.Scenarios[i].Weight = w
		}
	}
}
