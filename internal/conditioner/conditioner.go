// Package conditioner wires the anti-ghosting and rapid-action engines
// into a single input conditioning pipeline. Raw key transitions go in,
// per-event decisions come out, and observers see every verdict.
package conditioner

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/keyrush/internal/event/dispatch"
	"github.com/dshills/keyrush/internal/ghosting"
	"github.com/dshills/keyrush/internal/input/key"
	"github.com/dshills/keyrush/internal/logging"
	"github.com/dshills/keyrush/internal/rapid"
	"github.com/google/uuid"
)

// Event is one raw key transition entering the pipeline.
type Event struct {
	Key       string
	Pressed   bool
	Timestamp time.Time

	// Pressure is the normalized analog reading (0..1). Zero on a
	// press means the source has no analog channel and is treated as a
	// full press.
	Pressure float64
}

// Decision is the pipeline's verdict for one event.
type Decision struct {
	// Key is the normalized key name the verdict applies to.
	Key     string
	Pressed bool

	// Admitted is false when the event must be dropped, either by
	// rollover/ghosting rejection or actuation suppression.
	Admitted bool

	// GhostBlocked is set when the anti-ghosting stage rejected the
	// press; the rapid stage never saw the event.
	GhostBlocked bool

	// Rapid carries the rapid-action annotations for admitted events.
	Rapid rapid.Decision
}

// Conditioned pairs an event with its decision for observers.
type Conditioned struct {
	Event    Event
	Decision Decision
}

// Observer receives every conditioned event.
type Observer interface {
	EventConditioned(Conditioned)
}

// Rule post-processes a rapid decision. Script-backed rules implement
// this; a failing rule leaves the decision untouched.
type Rule interface {
	Apply(name string, pressed bool, d *rapid.Decision) error
}

// Config bundles both engines' tuning.
type Config struct {
	Ghosting ghosting.Config
	Rapid    rapid.Config
}

// DefaultConfig returns the stock pipeline tuning.
func DefaultConfig() Config {
	return Config{
		Ghosting: ghosting.DefaultConfig(),
		Rapid:    rapid.DefaultConfig(),
	}
}

// Conditioner is the full input conditioning pipeline.
type Conditioner struct {
	ghosting *ghosting.Engine
	rapid    *rapid.Engine

	observers *dispatch.Registry
	metrics   *Metrics

	ruleMu sync.RWMutex
	rule   Rule

	log *logging.Logger
}

// New creates a conditioning pipeline.
func New(cfg Config, log *logging.Logger) *Conditioner {
	if log == nil {
		log = logging.Nop()
	}
	return &Conditioner{
		ghosting:  ghosting.NewEngine(cfg.Ghosting, log),
		rapid:     rapid.NewEngine(cfg.Rapid, log),
		observers: dispatch.NewRegistry(),
		metrics:   NewMetrics(),
		log:       log.WithComponent("conditioner"),
	}
}

// SetRule installs a decision rule applied after the rapid stage. A nil
// rule removes the current one.
func (c *Conditioner) SetRule(rule Rule) {
	c.ruleMu.Lock()
	defer c.ruleMu.Unlock()
	c.rule = rule
}

// Process runs one event through the pipeline: anti-ghosting admission
// first, then the rapid-action algorithms for admitted events.
func (c *Conditioner) Process(ev Event) Decision {
	timer := c.metrics.StartEventTimer()

	name := key.Normalize(ev.Key)
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	pressure := ev.Pressure
	if ev.Pressed && pressure == 0 {
		pressure = 1.0
	}

	decision := Decision{Key: name, Pressed: ev.Pressed}

	admitted := c.ghosting.ProcessKeyEvent(name, ev.Pressed, ts)
	if !admitted {
		decision.GhostBlocked = true
		timer.Stop(ev.Pressed, false)
		c.notify(ev, decision)
		return decision
	}

	decision.Rapid = c.rapid.ProcessKeyEvent(name, ev.Pressed, pressure, ts)
	c.applyRule(name, ev.Pressed, &decision.Rapid)
	decision.Admitted = decision.Rapid.ShouldProcess

	// Keep the admission state consistent with snap tap's view: a
	// converted release takes the opposite key out of the matrix and
	// rollover set.
	if opposite := decision.Rapid.OppositeRelease; opposite != "" {
		c.ghosting.ProcessKeyEvent(opposite, false, ts)
	}

	// A rapid-trigger reset re-arms the key after the shortened delay.
	if decision.Rapid.ResetDelaySet {
		resetKey := name
		time.AfterFunc(decision.Rapid.ResetDelay, func() {
			c.rapid.ResetKeyState(resetKey)
		})
	}

	timer.Stop(ev.Pressed, decision.Admitted)
	c.notify(ev, decision)
	return decision
}

// applyRule runs the installed rule, if any. Rule faults are logged and
// the decision stands as the engines produced it.
func (c *Conditioner) applyRule(name string, pressed bool, d *rapid.Decision) {
	c.ruleMu.RLock()
	rule := c.rule
	c.ruleMu.RUnlock()
	if rule == nil {
		return
	}
	saved := *d
	if err := rule.Apply(name, pressed, d); err != nil {
		c.log.Warn("decision rule failed: key=%s err=%v", name, err)
		*d = saved
	}
}

// notify fans the conditioned event out to observers. Observer panics
// are isolated by the registry.
func (c *Conditioner) notify(ev Event, d Decision) {
	if c.observers.Len() == 0 {
		return
	}
	c.observers.Dispatch(context.Background(), Conditioned{Event: ev, Decision: d})
}

// AddObserver subscribes an observer to conditioned events.
func (c *Conditioner) AddObserver(obs Observer) uuid.UUID {
	return c.observers.Subscribe(dispatch.HandlerFunc(func(_ context.Context, event any) error {
		obs.EventConditioned(event.(Conditioned))
		return nil
	}))
}

// RemoveObserver unsubscribes an observer.
func (c *Conditioner) RemoveObserver(id uuid.UUID) {
	c.observers.Unsubscribe(id)
}

// EmergencyReset clears every engine's state: all tracked keys, snap
// tap engagement, learned patterns, and running turbo repeats.
func (c *Conditioner) EmergencyReset() {
	c.ghosting.ClearAllKeys()
	c.rapid.Reset()
	c.metrics.RecordEmergencyReset()
	c.log.Info("emergency reset")
}

// Ghosting exposes the anti-ghosting engine.
func (c *Conditioner) Ghosting() *ghosting.Engine {
	return c.ghosting
}

// Rapid exposes the rapid-action engine.
func (c *Conditioner) Rapid() *rapid.Engine {
	return c.rapid
}

// Metrics exposes the pipeline metrics tracker.
func (c *Conditioner) Metrics() *Metrics {
	return c.metrics
}

// ActiveKeys returns the keys the anti-ghosting engine tracks as held.
func (c *Conditioner) ActiveKeys() []string {
	return c.ghosting.ActiveKeys()
}

// HealthCheck evaluates the pipeline against a latency budget.
func (c *Conditioner) HealthCheck(latencyThreshold time.Duration) HealthStatus {
	return c.metrics.HealthCheck(latencyThreshold)
}
