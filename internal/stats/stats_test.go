package stats

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	if m := Mean(nil); m != 0.0 {
		t.Errorf("expected 0 for empty input, got %f", m)
	}
	if m := Mean([]float64{0.5}); m != 0.5 {
		t.Errorf("expected 0.5, got %f", m)
	}
	if m := Mean([]float64{1, 2, 3, 4}); m != 2.5 {
		t.Errorf("expected 2.5, got %f", m)
	}
}

func TestStdDev(t *testing.T) {
	if s := StdDev(nil); s != 0.0 {
		t.Errorf("expected 0 for empty input, got %f", s)
	}
	if s := StdDev([]float64{0.7}); s != 0.0 {
		t.Errorf("expected 0 for single value, got %f", s)
	}
	if s := StdDev([]float64{0.5, 0.5, 0.5}); s != 0.0 {
		t.Errorf("expected 0 for identical values, got %f", s)
	}

	// Population stddev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	s := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(s-2.0) > 1e-9 {
		t.Errorf("expected 2.0, got %f", s)
	}
}

func TestBootstrapCI_EmptyValues(t *testing.T) {
	ci := BootstrapCI(nil, 0.95)
	if ci.Mean != 0.0 || ci.Lower != 0.0 || ci.Upper != 0.0 {
		t.Errorf("expected zero CI for empty input, got %+v", ci)
	}
	if ci.NumBootstraps != 0 {
		t.Errorf("expected 0 bootstraps for empty input, got %d", ci.NumBootstraps)
	}
}

func TestBootstrapCI_SingleValue(t *testing.T) {
	ci := BootstrapCI([]float64{0.75}, 0.95)
	if ci.Mean != 0.75 || ci.Lower != 0.75 || ci.Upper != 0.75 {
		t.Errorf("expected degenerate CI for single value, got %+v", ci)
	}
}

func TestBootstrapCI_IdenticalValues(t *testing.T) {
	ci := BootstrapCIWithSeed([]float64{0.5, 0.5, 0.5, 0.5}, 0.95, 42)
	if math.Abs(ci.Lower-0.5) > 1e-9 || math.Abs(ci.Upper-0.5) > 1e-9 {
		t.Errorf("expected CI [0.5, 0.5] for identical values, got [%f, %f]", ci.Lower, ci.Upper)
	}
}

func TestBootstrapCI_KnownDistribution(t *testing.T) {
	// 10 values with known mean 0.55
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	ci := BootstrapCIWithSeed(values, 0.95, 42)

	if ci.Mean < 0.54 || ci.Mean > 0.56 {
		t.Errorf("expected mean ~0.55, got %f", ci.Mean)
	}
	if ci.Lower >= ci.Mean {
		t.Errorf("lower bound %f should be < mean %f", ci.Lower, ci.Mean)
	}
	if ci.Upper <= ci.Mean {
		t.Errorf("upper bound %f should be > mean %f", ci.Upper, ci.Mean)
	}
	if ci.NumBootstraps != DefaultBootstrapIterations {
		t.Errorf("expected %d bootstraps, got %d", DefaultBootstrapIterations, ci.NumBootstraps)
	}
	if ci.ConfidenceLevel != 0.95 {
		t.Errorf("expected confidence level 0.95, got %f", ci.ConfidenceLevel)
	}
}

func TestBootstrapCI_Deterministic(t *testing.T) {
	values := []float64{0.2, 0.4, 0.6, 0.8}
	ci1 := BootstrapCIWithSeed(values, 0.95, 99)
	ci2 := BootstrapCIWithSeed(values, 0.95, 99)

	if ci1.Lower != ci2.Lower || ci1.Upper != ci2.Upper {
		t.Errorf("same seed should produce identical CIs: %+v vs %+v", ci1, ci2)
	}
}

func TestBootstrapCI_NarrowerAtHigherN(t *testing.T) {
	small := []float64{0.3, 0.5, 0.7}
	large := []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.3, 0.4, 0.5, 0.6, 0.7,
		0.3, 0.4, 0.5, 0.6, 0.7, 0.3, 0.4, 0.5, 0.6, 0.7}

	ciSmall := BootstrapCIWithSeed(small, 0.95, 42)
	ciLarge := BootstrapCIWithSeed(large, 0.95, 42)

	widthSmall := ciSmall.Upper - ciSmall.Lower
	widthLarge := ciLarge.Upper - ciLarge.Lower

	if widthLarge >= widthSmall {
		t.Errorf("larger sample should yield narrower CI: small=%f, large=%f", widthSmall, widthLarge)
	}
}

func TestBootstrapCI_DifferentConfidenceLevels(t *testing.T) {
	values := []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.2, 0.4, 0.6, 0.8, 1.0}
	ci90 := BootstrapCIWithSeed(values, 0.90, 42)
	ci99 := BootstrapCIWithSeed(values, 0.99, 42)

	width90 := ci90.Upper - ci90.Lower
	width99 := ci99.Upper - ci99.Lower

	if width99 <= width90 {
		t.Errorf("99%% CI should be wider than 90%%: 90%%=%f, 99%%=%f", width90, width99)
	}
}
