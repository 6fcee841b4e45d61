package risk

import (
	"math"
	"testing"
)

func flatReturns(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestVaRRejectsShortSeries(t *testing.T) {
	_, err := VaR(flatReturns(5, 0.01), 1000, 0.95, 1, VaRHistorical, nil)
	if err == nil {
		t.Fatal("expected InsufficientDataError for a short series")
	}
}

func TestVaRParametricZeroStdevWarns(t *testing.T) {
	result, err := VaR(flatReturns(40, 0.01), 1000, 0.95, 1, VaRParametric, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ZeroStdevWarn {
		t.Fatal("expected ZeroStdevWarn for a constant return series")
	}
}

func TestVaRMonteCarloDeterministicGivenSeed(t *testing.T) {
	returns := make([]float64, 60)
	for i := range returns {
		if i%2 == 0 {
			returns[i] = 0.01
		} else {
			returns[i] = -0.008
		}
	}
	r1, err := VaR(returns, 1000, 0.95, 1, VaRMonteCarlo, NewSeededRNG(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := VaR(returns, 1000, 0.95, 1, VaRMonteCarlo, NewSeededRNG(42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r1.VaR != r2.VaR || r1.CVaR != r2.CVaR {
		t.Fatalf("expected identical VaR given an identical seed, got %+v vs %+v", r1, r2)
	}
}

func TestComputeGreeksCallDeltaInUnitRange(t *testing.T) {
	g := ComputeGreeks(100, 100, 0.02, 0.3, 1.0, true)
	if g.Delta <= 0 || g.Delta >= 1 {
		t.Fatalf("expected call delta in (0,1), got %f", g.Delta)
	}
	if g.Gamma <= 0 {
		t.Fatalf("expected positive gamma, got %f", g.Gamma)
	}
}

func TestComputeGreeksPutDeltaIsNegative(t *testing.T) {
	g := ComputeGreeks(100, 100, 0.02, 0.3, 1.0, false)
	if g.Delta >= 0 {
		t.Fatalf("expected put delta to be negative, got %f", g.Delta)
	}
}

func TestCorrelationOfIdenticalSeriesIsOne(t *testing.T) {
	series := map[string][]float64{
		"a": {0.01, 0.02, -0.01, 0.03, -0.02},
		"b": {0.01, 0.02, -0.01, 0.03, -0.02},
	}
	corr := Correlation(series)
	if math.Abs(corr["a"]["b"]-1) > 1e-9 {
		t.Fatalf("expected correlation 1 for identical series, got %f", corr["a"]["b"])
	}
}

func TestBuiltinStressScenariosHasFiveNamedScenarios(t *testing.T) {
	scenarios := BuiltinStressScenarios()
	if len(scenarios) != 5 {
		t.Fatalf("expected 5 builtin scenarios, got %d", len(scenarios))
	}
	names := map[string]bool{}
	for _, s := range scenarios {
		names[s.Name] = true
	}
	for _, want := range []string{"2008_crisis", "2020_covid", "2022_inflation_shock", "flash_crash", "mild_correction"} {
		if !names[want] {
			t.Fatalf("missing expected scenario %q", want)
		}
	}
}

func TestRunStressTestsWorstIsMostNegative(t *testing.T) {
	positions := map[string]float64{"m1": 10000}
	report := RunStressTests(positions, BuiltinStressScenarios())
	if report.WorstScenario != "2008_crisis" {
		t.Fatalf("expected the deepest shock scenario to be worst, got %q", report.WorstScenario)
	}
	if report.WorstImpact >= 0 {
		t.Fatalf("expected a negative worst-case impact, got %f", report.WorstImpact)
	}
}

func TestComputePerformanceMetricsSharpePositiveForUptrend(t *testing.T) {
	returns := flatReturns(100, 0.001)
	equity := make([]float64, 101)
	equity[0] = 1000
	for i, r := range returns {
		equity[i+1] = equity[i] * (1 + r)
	}
	metrics := ComputePerformanceMetrics(returns, equity, 0, 252, nil)
	if metrics.Sharpe <= 0 {
		t.Fatalf("expected positive Sharpe for a steady uptrend, got %f", metrics.Sharpe)
	}
	if metrics.MaxDrawdown != 0 {
		t.Fatalf("expected zero drawdown for a monotonic uptrend, got %f", metrics.MaxDrawdown)
	}
}
