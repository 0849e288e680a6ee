package rapid

import (
	"math"
	"sync"
	"time"

	"github.com/dshills/keyrush/internal/logging"
)

// engineSamples bounds the processing-time ring buffer.
const engineSamples = 100

// Config bundles the tuning for every rapid-action algorithm.
type Config struct {
	Trigger   TriggerConfig
	SnapTap   SnapTapConfig
	Turbo     TurboConfig
	Adaptive  AdaptiveConfig
	Actuation ActuationConfig
}

// DefaultConfig returns the stock tuning for all algorithms.
func DefaultConfig() Config {
	return Config{
		Trigger:   DefaultTriggerConfig(),
		SnapTap:   DefaultSnapTapConfig(),
		Turbo:     DefaultTurboConfig(),
		Adaptive:  DefaultAdaptiveConfig(),
		Actuation: DefaultActuationConfig(),
	}
}

// Decision is the merged verdict for one key event.
type Decision struct {
	// ShouldProcess is false when the event must be suppressed. Only
	// actuation emulation suppresses; every other algorithm annotates.
	ShouldProcess bool

	// ResetDelay is the deferred reset rapid trigger requested.
	// ResetDelaySet distinguishes an explicit zero from "not set".
	ResetDelay    time.Duration
	ResetDelaySet bool

	// OppositeRelease names a key the caller must synthesize a release
	// for. Empty when snap tap made no conversion.
	OppositeRelease string

	// ResponseMultiplier is the adaptive-response scale, 1.0 neutral.
	ResponseMultiplier float64

	// ShouldActuate reports the actuation verdict for the raw pressure.
	ShouldActuate bool

	// Per-algorithm activity flags for this event.
	RapidTriggerActive bool
	SnapTapActive      bool
	TurboActive        bool
	AdaptiveActive     bool
	ActuationActive    bool
}

// safeDecision is what a faulting pipeline degrades to: pass the event
// through untouched.
func safeDecision() Decision {
	return Decision{
		ShouldProcess:      true,
		ResponseMultiplier: 1.0,
		ShouldActuate:      true,
	}
}

// EngineStats aggregates per-algorithm activity.
type EngineStats struct {
	EventsProcessed    uint64
	TriggerActivations uint64
	SnapTapConversions uint64
	TurboRepeats       uint64
	Adaptations        uint64
	ActuationBlocks    uint64
	StageFaults        uint64
	AvgProcessingTime  time.Duration
}

// Engine runs every rapid-action algorithm over each key event and
// merges their verdicts. Algorithms are fault-isolated: a panic in one
// stage is logged and skipped, and the event passes through with that
// stage's contribution defaulted.
type Engine struct {
	trigger   *Trigger
	snapTap   *SnapTap
	turbo     *Turbo
	adaptive  *Adaptive
	actuation *Actuation

	mu      sync.Mutex
	stats   EngineStats
	samples []time.Duration

	log *logging.Logger
}

// NewEngine creates a rapid-action engine.
func NewEngine(cfg Config, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	e := &Engine{
		trigger:   NewTrigger(cfg.Trigger),
		snapTap:   NewSnapTap(cfg.SnapTap),
		turbo:     NewTurbo(cfg.Turbo),
		adaptive:  NewAdaptive(cfg.Adaptive),
		actuation: NewActuation(cfg.Actuation),
		samples:   make([]time.Duration, 0, engineSamples),
		log:       log.WithComponent("rapid"),
	}
	e.turbo.AddRepeatListener(func(string, int) {
		e.mu.Lock()
		e.stats.TurboRepeats++
		e.mu.Unlock()
	})
	return e
}

// ProcessKeyEvent feeds one transition through the pipeline in order:
// rapid trigger, snap tap, adaptive response, actuation emulation,
// then turbo scheduling. It never panics; a total failure degrades to
// the pass-through decision.
func (e *Engine) ProcessKeyEvent(name string, pressed bool, pressure float64, ts time.Time) (decision Decision) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("rapid pipeline fault: key=%s panic=%v", name, r)
			e.recordFault()
			decision = safeDecision()
		}
		e.recordProcessing(time.Since(start))
	}()

	decision = safeDecision()

	e.runStage("trigger", name, func() {
		delay, active := e.trigger.ProcessKeyEvent(name, pressed, ts)
		if active {
			decision.ResetDelay = delay
			decision.ResetDelaySet = true
			decision.RapidTriggerActive = true
			e.countTrigger()
		}
	})

	e.runStage("snaptap", name, func() {
		opposite, converted := e.snapTap.ProcessKeyEvent(name, pressed, ts)
		if converted {
			decision.OppositeRelease = opposite
			decision.SnapTapActive = true
			e.countSnapTap()
		}
	})

	e.runStage("adaptive", name, func() {
		mult := e.adaptive.ProcessKeyEvent(name, pressed, ts)
		decision.ResponseMultiplier = mult
		if math.Abs(mult-1.0) > 0.01 {
			decision.AdaptiveActive = true
			e.countAdaptation()
		}
	})

	e.runStage("actuation", name, func() {
		ok := e.actuation.ShouldActuate(name, pressed, pressure)
		decision.ShouldActuate = ok
		if !ok {
			decision.ShouldProcess = false
			decision.ActuationActive = true
			e.countActuationBlock()
		}
	})

	e.runStage("turbo", name, func() {
		if pressed {
			if decision.ShouldProcess {
				e.turbo.StartTurbo(name, ts)
			}
		} else {
			e.turbo.StopTurbo(name)
		}
		decision.TurboActive = e.turbo.IsActive(name)
	})

	e.mu.Lock()
	e.stats.EventsProcessed++
	e.mu.Unlock()

	return decision
}

// runStage executes one algorithm with panic isolation.
func (e *Engine) runStage(stage, key string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("algorithm fault: stage=%s key=%s panic=%v", stage, key, r)
			e.recordFault()
		}
	}()
	fn()
}

func (e *Engine) countTrigger() {
	e.mu.Lock()
	e.stats.TriggerActivations++
	e.mu.Unlock()
}

func (e *Engine) countSnapTap() {
	e.mu.Lock()
	e.stats.SnapTapConversions++
	e.mu.Unlock()
}

func (e *Engine) countAdaptation() {
	e.mu.Lock()
	e.stats.Adaptations++
	e.mu.Unlock()
}

func (e *Engine) countActuationBlock() {
	e.mu.Lock()
	e.stats.ActuationBlocks++
	e.mu.Unlock()
}

func (e *Engine) recordFault() {
	e.mu.Lock()
	e.stats.StageFaults++
	e.mu.Unlock()
}

func (e *Engine) recordProcessing(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples = append(e.samples, d)
	if len(e.samples) > engineSamples {
		e.samples = e.samples[len(e.samples)-engineSamples:]
	}
}

// Stats returns a snapshot of engine activity.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := e.stats
	if len(e.samples) > 0 {
		var total time.Duration
		for _, d := range e.samples {
			total += d
		}
		stats.AvgProcessingTime = total / time.Duration(len(e.samples))
	}
	return stats
}

// ResetStats zeroes the counters and timing samples.
func (e *Engine) ResetStats() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = EngineStats{}
	e.samples = e.samples[:0]
}

// Velocity exposes rapid trigger's velocity summary for a key.
func (e *Engine) Velocity(name string) (VelocitySummary, bool) {
	return e.trigger.Velocity(name)
}

// ActiveKeys returns the keys snap tap considers engaged.
func (e *Engine) ActiveKeys() []string {
	return e.snapTap.ActiveKeys()
}

// IsTurboActive reports whether a key is auto-repeating.
func (e *Engine) IsTurboActive(name string) bool {
	return e.turbo.IsActive(name)
}

// TurboStats exposes turbo progress for a key.
func (e *Engine) TurboStats(name string) (TurboStats, bool) {
	return e.turbo.Stats(name)
}

// AddTurboListener subscribes to turbo repeat events.
func (e *Engine) AddTurboListener(fn func(name string, count int)) {
	e.turbo.AddRepeatListener(fn)
}

// ResponseMultiplier exposes the adaptive multiplier for a key.
func (e *Engine) ResponseMultiplier(name string) float64 {
	return e.adaptive.Multiplier(name)
}

// AdaptationStats exposes the adaptive learning state for a key.
func (e *Engine) AdaptationStats(name string) (AdaptationStats, bool) {
	return e.adaptive.Stats(name)
}

// ActuationPoint exposes the effective actuation point for a key.
func (e *Engine) ActuationPoint(name string, pressure float64) float64 {
	return e.actuation.ActuationPoint(name, pressure)
}

// SetActuationCurve installs a per-key actuation curve.
func (e *Engine) SetActuationCurve(name string, points []CurvePoint) {
	e.actuation.SetCurve(name, points)
}

// ResetKeyState clears rapid trigger bookkeeping for a key, used when
// a scheduled reset fires.
func (e *Engine) ResetKeyState(name string) {
	e.trigger.ResetKeyState(name)
}

// Reset clears every algorithm's state and stops all turbo repeats.
func (e *Engine) Reset() {
	e.turbo.StopAll()
	e.trigger.Reset()
	e.snapTap.Reset()
	e.adaptive.Reset()
	e.actuation.Reset()
}
