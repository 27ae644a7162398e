package config

import (
	"fmt"
	"math"
	"os"
)

// weightSumTolerance bounds the acceptable deviation of the scenario hazard
// weights from 1.
const weightSumTolerance = 1e-6

// Load loads and parses a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// validate performs validation on the configuration
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.Model == "" {
		return fmt.Errorf("model name cannot be empty")
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := validateTarget(&cfg.Target); err != nil {
		return fmt.Errorf("target validation failed: %w", err)
	}
	if err := validateSelection(&cfg.Selection); err != nil {
		return fmt.Errorf("selection validation failed: %w", err)
	}
	if cfg.Output != nil && cfg.Output.Dir == "" {
		return fmt.Errorf("output dir cannot be empty when output is configured")
	}

	return nil
}

// validateDatabase validates the record-database section
func validateDatabase(db *DatabaseConfig) error {
	if db.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	switch db.Component {
	case "single", "geomean", "rotd50":
		if db.Percentile != 0 {
			return fmt.Errorf("percentile is only valid with component 'rotd'")
		}
	case "rotd":
		if db.Percentile <= 0 || db.Percentile >= 100 {
			return fmt.Errorf("rotd percentile must be in (0, 100), got %g", db.Percentile)
		}
	default:
		return fmt.Errorf("invalid component %q (must be single, geomean, rotd50, or rotd)", db.Component)
	}

	for name, r := range map[string][]float64{
		"magnitude_range": db.MagnitudeRange,
		"distance_range":  db.DistanceRange,
		"vs30_range":      db.Vs30Range,
	} {
		if len(r) == 0 {
			continue
		}
		if len(r) != 2 {
			return fmt.Errorf("%s must have exactly two values", name)
		}
		if r[0] >= r[1] {
			return fmt.Errorf("%s lower bound must be below upper bound", name)
		}
	}

	return nil
}

// validateTarget validates the target-spectrum section
func validateTarget(t *TargetConfig) error {
	if len(t.PeriodRange) != 2 {
		return fmt.Errorf("period_range must have exactly two values")
	}
	if t.PeriodRange[0] <= 0 || t.PeriodRange[0] >= t.PeriodRange[1] {
		return fmt.Errorf("period_range must be positive and strictly increasing")
	}

	if t.Disaggregation != nil {
		if len(t.Scenarios) != 0 {
			return fmt.Errorf("scenarios and disaggregation are mutually exclusive")
		}
		d := t.Disaggregation
		if d.Path == "" {
			return fmt.Errorf("disaggregation path cannot be empty")
		}
		if d.Vs30 <= 0 {
			return fmt.Errorf("disaggregation vs30 must be positive")
		}
		if d.TopN < 0 {
			return fmt.Errorf("disaggregation top_n cannot be negative, got %d", d.TopN)
		}
	} else {
		if len(t.Scenarios) == 0 {
			return fmt.Errorf("at least one scenario must be defined")
		}
		sum := 0.0
		for i, s := range t.Scenarios {
			if s.Weight < 0 || s.Weight > 1 {
				return fmt.Errorf("scenario %d: weight must be within [0, 1], got %g", i, s.Weight)
			}
			if s.Magnitude <= 0 {
				return fmt.Errorf("scenario %d: magnitude must be positive", i)
			}
			if s.DistanceKm < 0 {
				return fmt.Errorf("scenario %d: distance_km cannot be negative", i)
			}
			if s.Vs30 <= 0 {
				return fmt.Errorf("scenario %d: vs30 must be positive", i)
			}
			sum += s.Weight
		}
		if math.Abs(sum-1) > weightSumTolerance {
			return fmt.Errorf("scenario weights must sum to 1, got %g", sum)
		}
	}

	if t.Conditioning != nil {
		c := t.Conditioning
		if len(c.Periods) == 0 || len(c.Periods) > 2 {
			return fmt.Errorf("conditioning periods must hold one period or a [lower, upper] range")
		}
		for _, p := range c.Periods {
			if p <= 0 {
				return fmt.Errorf("conditioning periods must be positive")
			}
		}
		if len(c.Periods) == 2 && c.Periods[0] >= c.Periods[1] {
			return fmt.Errorf("conditioning period range must be strictly increasing")
		}
		// An explicit IM level is required unless every scenario carries an
		// epsilon to use in its place. Disaggregation contributors never
		// carry epsilons.
		if c.IMLevel <= 0 {
			if t.Disaggregation != nil {
				return fmt.Errorf("conditioning with disaggregation requires im_level")
			}
			for i, s := range t.Scenarios {
				if s.Epsilon == nil {
					return fmt.Errorf("conditioning requires im_level or an epsilon on every scenario (missing on scenario %d)", i)
				}
			}
		}
	}

	if t.CrossComponentModel != "" && t.CrossComponentModel != "fixed" && t.CrossComponentModel != "period" {
		return fmt.Errorf("invalid cross_component_model %q (must be fixed or period)", t.CrossComponentModel)
	}
	if t.CrossComponentRho != nil && (*t.CrossComponentRho <= 0 || *t.CrossComponentRho > 1) {
		return fmt.Errorf("cross_component_rho must be in (0, 1], got %g", *t.CrossComponentRho)
	}

	return nil
}

// validateSelection validates the selection section
func validateSelection(s *SelectionConfig) error {
	if s.Records <= 0 {
		return fmt.Errorf("records must be positive, got %d", s.Records)
	}
	if s.Trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", s.Trials)
	}
	if s.Loops <= 0 {
		return fmt.Errorf("loops must be positive, got %d", s.Loops)
	}
	if s.MaxScale <= 0 {
		return fmt.Errorf("max_scale must be positive, got %g", s.MaxScale)
	}
	if s.TolerancePct <= 0 {
		return fmt.Errorf("tolerance_pct must be positive, got %g", s.TolerancePct)
	}
	if s.Penalty < 0 {
		return fmt.Errorf("penalty cannot be negative, got %g", s.Penalty)
	}
	if len(s.Weights) != 0 && len(s.Weights) != 3 {
		return fmt.Errorf("weights must hold exactly three values (mean, std, skewness)")
	}
	for i, w := range s.Weights {
		if w < 0 {
			return fmt.Errorf("weights[%d] cannot be negative", i)
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", s.Workers)
	}
	return nil
}
