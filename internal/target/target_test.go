package target

import (
	"errors"
	"math"
	"testing"

	"github.com/gmselect/selection-core/internal/correlation"
	"github.com/gmselect/selection-core/internal/gmm"
)

func testGrid() []float64 {
	return []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1.0, 1.5, 2.0, 3.0, 4.0}
}

func testScenario() gmm.Scenario {
	return gmm.Scenario{Weight: 1, Magnitude: 7.0, DistanceKm: 20, Vs30: 520}
}

func TestBuildUnconditional(t *testing.T) {
	model := &gmm.ReferenceModel{}
	scn := testScenario()

	m, err := Build(Params{
		Model:       model,
		Scenarios:   []gmm.Scenario{scn},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
		UseVariance: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if m.Conditional {
		t.Fatalf("expected unconditional model")
	}
	if len(m.Periods) != len(testGrid()) {
		t.Fatalf("expected full grid, got %d periods", len(m.Periods))
	}

	for i, period := range m.Periods {
		mu, sigma, evalErr := model.Evaluate(scn, period)
		if evalErr != nil {
			t.Fatalf("Evaluate failed: %v", evalErr)
		}
		if math.Abs(m.MuLn[i]-mu) > 1e-12 {
			t.Fatalf("period %g: mean %g differs from model %g", period, m.MuLn[i], mu)
		}
		if math.Abs(m.Cov.At(i, i)-sigma*sigma) > 1e-12 {
			t.Fatalf("period %g: variance %g differs from sigma^2 %g", period, m.Cov.At(i, i), sigma*sigma)
		}
		if math.Abs(m.SigmaLn[i]-sigma) > 1e-12 {
			t.Fatalf("period %g: sigma %g differs from model %g", period, m.SigmaLn[i], sigma)
		}
	}

	// Off-diagonals follow the correlation model.
	i, j := 2, 7
	want := correlation.Coefficient(m.Periods[i], m.Periods[j]) * m.SigmaLn[i] * m.SigmaLn[j]
	if math.Abs(m.Cov.At(i, j)-want) > 1e-12 {
		t.Fatalf("covariance (%d,%d) = %g, want %g", i, j, m.Cov.At(i, j), want)
	}
	if m.Cov.At(i, j) != m.Cov.At(j, i) {
		t.Fatalf("covariance not symmetric")
	}
}

func TestBuildConditionalSinglePeriod(t *testing.T) {
	imLevel := 0.4
	condPeriod := 1.0

	m, err := Build(Params{
		Model:       &gmm.ReferenceModel{},
		Scenarios:   []gmm.Scenario{testScenario()},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
		Conditioning: &Conditioning{
			Periods: []float64{condPeriod},
			IMLevel: imLevel,
		},
		UseVariance: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !m.Conditional {
		t.Fatalf("expected conditional model")
	}
	if len(m.CondIndices) != 1 {
		t.Fatalf("expected one conditioning index, got %d", len(m.CondIndices))
	}
	idx := m.CondIndices[0]
	if m.Periods[idx] != condPeriod {
		t.Fatalf("conditioning index points at period %g, want %g", m.Periods[idx], condPeriod)
	}

	// The conditional mean passes through the IM level at the conditioning
	// period, and the variance there collapses to the floor.
	if math.Abs(m.MuLn[idx]-math.Log(imLevel)) > 1e-9 {
		t.Fatalf("mean at conditioning period %g, want ln(%g) = %g", m.MuLn[idx], imLevel, math.Log(imLevel))
	}
	if m.Cov.At(idx, idx) > 1e-9 {
		t.Fatalf("variance at conditioning period %g, want collapsed", m.Cov.At(idx, idx))
	}
	if m.IMLevel != imLevel {
		t.Fatalf("IMLevel = %g, want %g", m.IMLevel, imLevel)
	}

	// Away from the conditioning period the variance is reduced but not
	// eliminated.
	far := 0
	if m.Cov.At(far, far) <= 1e-6 {
		t.Fatalf("variance far from conditioning period collapsed: %g", m.Cov.At(far, far))
	}
}

func TestBuildConditionalRange(t *testing.T) {
	m, err := Build(Params{
		Model:       &gmm.ReferenceModel{},
		Scenarios:   []gmm.Scenario{testScenario()},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
		Conditioning: &Conditioning{
			Periods: []float64{0.5, 1.5},
			IMLevel: 0.3,
		},
		UseVariance: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Averaging range 0.5 to 1.5 covers grid entries 0.5, 0.75, 1.0, 1.5.
	if len(m.CondPeriods) != 4 {
		t.Fatalf("expected 4 conditioning periods, got %d (%v)", len(m.CondPeriods), m.CondPeriods)
	}
	for k, idx := range m.CondIndices {
		if m.Periods[idx] != m.CondPeriods[k] {
			t.Fatalf("conditioning index %d mismatches period", k)
		}
	}

	// Conditioning on an average IM does not pin any single period, so every
	// variance stays above the floor.
	for i := range m.Periods {
		if m.Cov.At(i, i) <= 1e-10 {
			t.Fatalf("variance at period %g collapsed", m.Periods[i])
		}
	}
}

func TestBuildEpsilonSupplied(t *testing.T) {
	eps := 1.5
	scn := testScenario()
	scn.Epsilon = &eps

	m, err := Build(Params{
		Model:       &gmm.ReferenceModel{},
		Scenarios:   []gmm.Scenario{scn},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
		Conditioning: &Conditioning{
			Periods: []float64{1.0},
		},
		UseVariance: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if m.Epsilons[0] != eps {
		t.Fatalf("epsilon = %g, want %g", m.Epsilons[0], eps)
	}
	// With supplied epsilons the IM level is implied by the spectrum.
	idx := m.CondIndices[0]
	want := math.Exp(m.MuLn[idx])
	if math.Abs(m.IMLevel-want) > 1e-12 {
		t.Fatalf("IMLevel = %g, want %g", m.IMLevel, want)
	}
}

func TestBuildMixture(t *testing.T) {
	a := testScenario()
	a.Weight = 0.6
	b := gmm.Scenario{Weight: 0.4, Magnitude: 6.0, DistanceKm: 8, Vs30: 520}

	single, err := Build(Params{
		Model:       &gmm.ReferenceModel{},
		Scenarios:   []gmm.Scenario{{Weight: 1, Magnitude: a.Magnitude, DistanceKm: a.DistanceKm, Vs30: a.Vs30}},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
		UseVariance: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	mixed, err := Build(Params{
		Model:       &gmm.ReferenceModel{},
		Scenarios:   []gmm.Scenario{a, b},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
		UseVariance: true,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// The mixture diagonal carries the between-scenario mean scatter on top
	// of the shared within-scenario variance.
	for i := range mixed.Periods {
		if mixed.Cov.At(i, i) < single.Cov.At(i, i)-1e-12 {
			t.Fatalf("period %g: mixture variance %g below single-scenario %g",
				mixed.Periods[i], mixed.Cov.At(i, i), single.Cov.At(i, i))
		}
	}
}

func TestBuildNoVariance(t *testing.T) {
	m, err := Build(Params{
		Model:       &gmm.ReferenceModel{},
		Scenarios:   []gmm.Scenario{testScenario()},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
		UseVariance: false,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// A single scenario without variance leaves only the sampling floor.
	for i := range m.Periods {
		for j := range m.Periods {
			if m.Cov.At(i, j) != 1e-10 {
				t.Fatalf("covariance (%d,%d) = %g, want floor", i, j, m.Cov.At(i, j))
			}
		}
	}
}

func TestBuildConfigurationErrors(t *testing.T) {
	valid := Params{
		Model:       &gmm.ReferenceModel{},
		Scenarios:   []gmm.Scenario{testScenario()},
		PeriodGrid:  testGrid(),
		PeriodRange: [2]float64{0.05, 4.0},
	}

	noModel := valid
	noModel.Model = nil
	if _, err := Build(noModel); err == nil {
		t.Fatalf("expected error without model")
	}

	noScenarios := valid
	noScenarios.Scenarios = nil
	if _, err := Build(noScenarios); err == nil {
		t.Fatalf("expected error without scenarios")
	}

	noGrid := valid
	noGrid.PeriodGrid = nil
	if _, err := Build(noGrid); err == nil {
		t.Fatalf("expected error without period grid")
	}

	noIM := valid
	noIM.Conditioning = &Conditioning{Periods: []float64{1.0}}
	if _, err := Build(noIM); err == nil {
		t.Fatalf("expected error when conditioning lacks IM level and epsilons")
	}

	offGrid := valid
	offGrid.Conditioning = &Conditioning{Periods: []float64{0.9}, IMLevel: 0.3}
	_, err := Build(offGrid)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for off-grid conditioning period, got %v", err)
	}

	// A loose tolerance snaps to the nearest grid period instead.
	offGrid.GridTolerance = 0.2
	if _, err := Build(offGrid); err != nil {
		t.Fatalf("loose tolerance should snap to the grid: %v", err)
	}
}
