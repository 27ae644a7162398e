package config

// Config is the full configuration of one record-selection run
type Config struct {
	LogLevel  string          `yaml:"log_level,omitempty"`
	Model     string          `yaml:"model"`
	Database  DatabaseConfig  `yaml:"database"`
	Target    TargetConfig    `yaml:"target"`
	Selection SelectionConfig `yaml:"selection"`
	Output    *OutputConfig   `yaml:"output,omitempty"`
}

// DatabaseConfig selects the ground-motion record database and the
// pre-filtering bounds applied before the optimizer sees the candidate pool.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// Component is the spectral definition to select with:
	// "single", "geomean", "rotd50" or "rotd" (with Percentile set).
	Component  string  `yaml:"component"`
	Percentile float64 `yaml:"percentile,omitempty"`
	// SeriesDir is the base directory of the acceleration history files
	// named by the records; required only when records are written out.
	SeriesDir string `yaml:"series_dir,omitempty"`

	MagnitudeRange []float64 `yaml:"magnitude_range,omitempty"`
	DistanceRange  []float64 `yaml:"distance_range,omitempty"`
	Vs30Range      []float64 `yaml:"vs30_range,omitempty"`
	Mechanism      *int      `yaml:"mechanism,omitempty"`
}

// ScenarioConfig is one hazard contributor
type ScenarioConfig struct {
	Weight     float64  `yaml:"weight,omitempty"`
	Magnitude  float64  `yaml:"magnitude"`
	DistanceKm float64  `yaml:"distance_km"`
	Vs30       float64  `yaml:"vs30"`
	Rake       float64  `yaml:"rake,omitempty"`
	Epsilon    *float64 `yaml:"epsilon,omitempty"`
}

// DisaggConfig sources the hazard scenarios from a disaggregation file of
// "magnitude distance_km weight" lines instead of an inline scenario list.
type DisaggConfig struct {
	Path string `yaml:"path"`
	// TopN keeps only the n largest contributors; zero keeps all.
	TopN int     `yaml:"top_n,omitempty"`
	Vs30 float64 `yaml:"vs30"`
	Rake float64 `yaml:"rake,omitempty"`
}

// ConditioningConfig fixes the conditioning mode of the target spectrum.
// Periods holds either a single conditioning period or the [lower, upper]
// bounds of an average-IM period range.
type ConditioningConfig struct {
	Periods []float64 `yaml:"periods"`
	IMLevel float64   `yaml:"im_level,omitempty"`
}

// TargetConfig describes the target spectrum model
type TargetConfig struct {
	PeriodRange []float64 `yaml:"period_range"`
	// Scenarios and Disaggregation are mutually exclusive ways to define the
	// hazard contributors.
	Scenarios      []ScenarioConfig    `yaml:"scenarios,omitempty"`
	Disaggregation *DisaggConfig       `yaml:"disaggregation,omitempty"`
	Conditioning   *ConditioningConfig `yaml:"conditioning,omitempty"`
	UseVariance  *bool               `yaml:"use_variance,omitempty"`
	// CrossComponentRho is the cross-component correlation policy of the
	// average-IM aggregator: a fixed value, or period-dependent when
	// CrossComponentModel is "period".
	CrossComponentRho   *float64 `yaml:"cross_component_rho,omitempty"`
	CrossComponentModel string   `yaml:"cross_component_model,omitempty"`
}

// SelectionConfig holds the simulation and greedy-optimization parameters
type SelectionConfig struct {
	Records      int       `yaml:"records"`
	Trials       int       `yaml:"trials,omitempty"`
	Loops        int       `yaml:"loops,omitempty"`
	MaxScale     float64   `yaml:"max_scale,omitempty"`
	Scaled       *bool     `yaml:"scaled,omitempty"`
	TolerancePct float64   `yaml:"tolerance_pct,omitempty"`
	Penalty      float64   `yaml:"penalty,omitempty"`
	Weights      []float64 `yaml:"weights,omitempty"`
	Seed         int64     `yaml:"seed,omitempty"`
	Workers      int       `yaml:"workers,omitempty"`
}

// OutputConfig controls optional writing of the selected, scaled records
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	WriteRecords bool   `yaml:"write_records,omitempty"`
}

// UseVarianceOrDefault returns the use_variance flag, defaulting to true
func (t *TargetConfig) UseVarianceOrDefault() bool {
	if t.UseVariance == nil {
		return true
	}
	return *t.UseVariance
}

// ScaledOrDefault returns the scaled flag, defaulting to true
func (s *SelectionConfig) ScaledOrDefault() bool {
	if s.Scaled == nil {
		return true
	}
	return *s.Scaled
}

// WeightsOrDefault returns the [mean, std, skewness] error weights,
// defaulting to the conventional {1, 2, 0.3}.
func (s *SelectionConfig) WeightsOrDefault() [3]float64 {
	if len(s.Weights) == 3 {
		return [3]float64{s.Weights[0], s.Weights[1], s.Weights[2]}
	}
	return [3]float64{1, 2, 0.3}
}
