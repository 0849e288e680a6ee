package rapid

import (
	"math"
	"testing"
)

func TestActuationDefaultPoint(t *testing.T) {
	a := NewActuation(DefaultActuationConfig())

	tests := []struct {
		name     string
		pressure float64
		want     bool
	}{
		{"well past the point", 0.9, true},
		{"exactly at the point", 0.5, true},
		{"under the point", 0.3, false},
		{"barely touched", 0.05, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Reset()
			if got := a.ShouldActuate("a", true, tt.pressure); got != tt.want {
				t.Errorf("ShouldActuate(%f) = %v, want %v", tt.pressure, got, tt.want)
			}
		})
	}
}

func TestActuationReleaseAlwaysRegisters(t *testing.T) {
	a := NewActuation(DefaultActuationConfig())

	if !a.ShouldActuate("a", false, 0.0) {
		t.Error("a release must always register")
	}
}

func TestActuationDisabled(t *testing.T) {
	cfg := DefaultActuationConfig()
	cfg.Enabled = false
	a := NewActuation(cfg)

	if !a.ShouldActuate("a", true, 0.0) {
		t.Error("disabled emulation must pass everything through")
	}
}

func TestActuationHysteresis(t *testing.T) {
	a := NewActuation(DefaultActuationConfig())

	if !a.ShouldActuate("a", true, 0.6) {
		t.Fatal("0.6 should actuate at a 0.5 point")
	}
	// Once actuated, readings down to point-hysteresis keep the key.
	if !a.ShouldActuate("a", true, 0.45) {
		t.Error("0.45 should hold an actuated key with 0.1 hysteresis")
	}
	if a.ShouldActuate("a", true, 0.3) {
		t.Error("0.3 should drop the key")
	}
	// The allowance is gone once the key dropped out.
	if a.ShouldActuate("a", true, 0.45) {
		t.Error("0.45 should not re-actuate a dropped key")
	}
}

// curveConfig enables per-key curve interpolation.
func curveConfig() ActuationConfig {
	cfg := DefaultActuationConfig()
	cfg.LinearCurve = false
	return cfg
}

func TestActuationLinearModeIgnoresCurves(t *testing.T) {
	a := NewActuation(DefaultActuationConfig())
	a.SetCurve("a", []CurvePoint{{Pressure: 0.5, Point: 0.9}})

	// Linear mode keeps the constant point for every key.
	if got := a.ActuationPoint("a", 0.5); got != 0.5 {
		t.Errorf("linear-mode point = %f, want the constant 0.5", got)
	}
}

func TestActuationCustomCurve(t *testing.T) {
	a := NewActuation(curveConfig())
	a.SetCurve("a", []CurvePoint{
		{Pressure: 0.0, Point: 0.3},
		{Pressure: 1.0, Point: 0.7},
	})

	tests := []struct {
		pressure float64
		want     float64
	}{
		{0.0, 0.3},
		{0.5, 0.5},
		{0.75, 0.6},
		{1.0, 0.7},
	}

	for _, tt := range tests {
		got := a.ActuationPoint("a", tt.pressure)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ActuationPoint(%f) = %f, want %f", tt.pressure, got, tt.want)
		}
	}

	// Keys without a curve keep the configured default.
	if got := a.ActuationPoint("b", 0.5); got != 0.5 {
		t.Errorf("default point = %f, want 0.5", got)
	}
}

func TestActuationCurveClamping(t *testing.T) {
	a := NewActuation(curveConfig())
	a.SetCurve("a", []CurvePoint{
		{Pressure: 0.2, Point: 0.4},
		{Pressure: 0.8, Point: 0.6},
	})

	if got := a.ActuationPoint("a", 0.0); got != 0.4 {
		t.Errorf("below first point = %f, want 0.4", got)
	}
	if got := a.ActuationPoint("a", 1.0); got != 0.6 {
		t.Errorf("above last point = %f, want 0.6", got)
	}
}

func TestActuationCurveSortsPoints(t *testing.T) {
	a := NewActuation(curveConfig())
	a.SetCurve("a", []CurvePoint{
		{Pressure: 1.0, Point: 0.7},
		{Pressure: 0.0, Point: 0.3},
	})

	if got := a.ActuationPoint("a", 0.5); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("midpoint = %f, want 0.5 from sorted curve", got)
	}
}

func TestActuationCurveRemoval(t *testing.T) {
	a := NewActuation(curveConfig())
	a.SetCurve("a", []CurvePoint{{Pressure: 0.5, Point: 0.9}})

	if _, ok := a.Curve("a"); !ok {
		t.Fatal("curve should be retrievable after SetCurve")
	}

	a.SetCurve("a", nil)
	if _, ok := a.Curve("a"); ok {
		t.Error("empty SetCurve should remove the override")
	}
	if got := a.ActuationPoint("a", 0.5); got != 0.5 {
		t.Errorf("point after removal = %f, want the default", got)
	}
}

func TestActuationReset(t *testing.T) {
	a := NewActuation(curveConfig())
	a.SetCurve("a", []CurvePoint{{Pressure: 0.5, Point: 0.9}})
	a.ShouldActuate("a", true, 0.95)

	a.Reset()
	if _, ok := a.Curve("a"); ok {
		t.Error("curves should be gone after Reset")
	}
	// Actuated state is gone too, so hysteresis does not apply.
	if a.ShouldActuate("a", true, 0.45) {
		t.Error("0.45 should not actuate after Reset")
	}
}
