package rapid

import (
	"sort"
	"sync"
)

// ActuationConfig configures actuation-point emulation.
type ActuationConfig struct {
	// Enabled turns the algorithm on.
	Enabled bool

	// ActuationPoint is the default normalized pressure (0..1) at which
	// a press registers.
	ActuationPoint float64

	// LinearCurve uses the constant ActuationPoint for every key. When
	// false, keys with custom curves interpolate their point from the
	// pressure reading.
	LinearCurve bool

	// Hysteresis reserves headroom below the actuation point so a key
	// hovering at the boundary does not chatter.
	Hysteresis float64
}

// DefaultActuationConfig returns the stock actuation tuning.
func DefaultActuationConfig() ActuationConfig {
	return ActuationConfig{
		Enabled:        true,
		ActuationPoint: 0.5,
		LinearCurve:    true,
		Hysteresis:     0.1,
	}
}

// CurvePoint maps a pressure reading to the actuation point in effect
// at that pressure. A curve is a piecewise-linear function over these
// points, sorted by pressure.
type CurvePoint struct {
	Pressure float64
	Point    float64
}

// Actuation decides, per key, whether an analog pressure reading has
// crossed the key's actuation point. Releases always register so a key
// can never be held hostage by its curve.
type Actuation struct {
	mu       sync.RWMutex
	cfg      ActuationConfig
	curves   map[string][]CurvePoint
	actuated map[string]struct{}
}

// NewActuation creates an actuation emulator.
func NewActuation(cfg ActuationConfig) *Actuation {
	return &Actuation{
		cfg:      cfg,
		curves:   make(map[string][]CurvePoint),
		actuated: make(map[string]struct{}),
	}
}

// ShouldActuate reports whether a transition registers at the given
// pressure. Releases and disabled emulation always actuate. A key that
// already actuated gets the hysteresis allowance, so a reading that
// dips just under the point does not drop the key.
func (a *Actuation) ShouldActuate(name string, pressed bool, pressure float64) bool {
	if !a.cfg.Enabled {
		return true
	}

	if !pressed {
		a.mu.Lock()
		delete(a.actuated, name)
		a.mu.Unlock()
		return true
	}

	point := a.ActuationPoint(name, pressure)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, held := a.actuated[name]; held {
		point -= a.cfg.Hysteresis
	}
	if pressure >= point {
		a.actuated[name] = struct{}{}
		return true
	}
	delete(a.actuated, name)
	return false
}

// ActuationPoint returns the point in effect for a key at a pressure:
// the configured constant in linear mode, the key's interpolated curve
// otherwise. Keys without a curve always use the constant.
func (a *Actuation) ActuationPoint(name string, pressure float64) float64 {
	if a.cfg.LinearCurve {
		return a.cfg.ActuationPoint
	}

	a.mu.RLock()
	curve, ok := a.curves[name]
	a.mu.RUnlock()

	if !ok || len(curve) == 0 {
		return a.cfg.ActuationPoint
	}
	return evalCurve(curve, pressure)
}

// SetCurve installs a custom response curve for a key. Points are
// copied and sorted by pressure; an empty curve removes the override.
func (a *Actuation) SetCurve(name string, points []CurvePoint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(points) == 0 {
		delete(a.curves, name)
		return
	}

	curve := make([]CurvePoint, len(points))
	copy(curve, points)
	sort.Slice(curve, func(i, j int) bool { return curve[i].Pressure < curve[j].Pressure })
	a.curves[name] = curve
}

// Curve returns a copy of the key's custom curve, if any.
func (a *Actuation) Curve(name string) ([]CurvePoint, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	curve, ok := a.curves[name]
	if !ok {
		return nil, false
	}
	out := make([]CurvePoint, len(curve))
	copy(out, curve)
	return out, true
}

// Reset removes all custom curves and actuated state.
func (a *Actuation) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.curves = make(map[string][]CurvePoint)
	a.actuated = make(map[string]struct{})
}

// evalCurve interpolates the actuation point for a pressure reading.
// Below the first point or above the last it clamps to the endpoint.
func evalCurve(curve []CurvePoint, pressure float64) float64 {
	if pressure <= curve[0].Pressure {
		return curve[0].Point
	}
	last := curve[len(curve)-1]
	if pressure >= last.Pressure {
		return last.Point
	}

	for i := 1; i < len(curve); i++ {
		if pressure > curve[i].Pressure {
			continue
		}
		lo, hi := curve[i-1], curve[i]
		span := hi.Pressure - lo.Pressure
		if span <= 0 {
			return hi.Point
		}
		frac := (pressure - lo.Pressure) / span
		return lo.Point + frac*(hi.Point-lo.Point)
	}
	return last.Point
}
