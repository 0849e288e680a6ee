package ghosting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/keyrush/internal/event/dispatch"
	"github.com/dshills/keyrush/internal/input/key"
	"github.com/dshills/keyrush/internal/logging"
	"github.com/google/uuid"
)

// Config configures the anti-ghosting engine.
type Config struct {
	// EnableNKRO enables the rollover simulator. When false the engine
	// only dispatches state changes without per-key tracking.
	EnableNKRO bool

	// MaxKeys caps simultaneous presses. Zero means unlimited.
	MaxKeys int

	// Rows and Cols size the simulated matrix.
	Rows int
	Cols int

	// GhostingPrevention rejects presses that would ghost.
	GhostingPrevention bool

	// CombinationDetection enables gaming combo detection.
	CombinationDetection bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		EnableNKRO:           true,
		MaxKeys:              0,
		Rows:                 DefaultRows,
		Cols:                 DefaultCols,
		GhostingPrevention:   true,
		CombinationDetection: true,
	}
}

// Engine coordinates the key matrix and the NKRO simulator: every
// event updates the matrix first, ghosting-prone presses are rejected,
// and admitted events flow into the simulator (or straight to the
// observers when NKRO is disabled).
type Engine struct {
	mu sync.Mutex

	matrix *Matrix
	sim    *Simulator // nil when NKRO is disabled

	// Toggles are read per event so flips apply on the next call.
	ghostPrevention atomic.Bool
	comboDetection  atomic.Bool

	// basicObservers receives state changes when NKRO is disabled.
	basicObservers *dispatch.Registry

	// ghostBlocked counts presses rejected without a simulator.
	ghostBlocked atomic.Uint64

	log *logging.Logger
}

// NewEngine creates an anti-ghosting engine.
func NewEngine(cfg Config, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}

	e := &Engine{
		matrix:         NewMatrix(cfg.Rows, cfg.Cols),
		basicObservers: dispatch.NewRegistry(),
		log:            log.WithComponent("ghosting"),
	}
	if cfg.EnableNKRO {
		e.sim = NewSimulator(cfg.MaxKeys)
	}
	e.ghostPrevention.Store(cfg.GhostingPrevention)
	e.comboDetection.Store(cfg.CombinationDetection)
	if e.sim != nil {
		e.sim.SetCombinationDetection(cfg.CombinationDetection)
	}
	return e
}

// Matrix exposes the underlying key matrix.
func (e *Engine) Matrix() *Matrix {
	return e.matrix
}

// Simulator exposes the NKRO simulator, or nil when disabled.
func (e *Engine) Simulator() *Simulator {
	return e.sim
}

// ProcessKeyEvent runs one transition through the engine. It returns
// false when the press was rejected by ghosting prevention or the NKRO
// limit; rejections are ordinary outcomes, not errors.
func (e *Engine) ProcessKeyEvent(name string, pressed bool, ts time.Time) bool {
	e.mu.Lock()

	// The matrix is updated before any admission decision.
	mapped := e.matrix.SetKeyState(name, pressed)

	if pressed && mapped && e.ghostPrevention.Load() {
		if e.wouldGhost(name) {
			// Roll the cell back so it only reflects admitted presses.
			e.matrix.SetKeyState(name, false)
			e.mu.Unlock()

			e.recordGhostBlocked(name)
			e.log.Debug("press rejected by ghosting prevention: %s", name)
			return false
		}
	}

	sim := e.sim
	e.mu.Unlock()

	if sim != nil {
		admitted := sim.ProcessKeyEvent(name, pressed, ts)
		if pressed && !admitted {
			// NKRO rejection: matrix cell must not stay latched.
			e.matrix.SetKeyState(name, false)
			e.log.Debug("press rejected by rollover limit: %s", name)
		}
		return admitted
	}

	// Minimal bookkeeping without NKRO: dispatch only.
	state := key.StateReleased
	if pressed {
		state = key.StatePressed
	}
	e.basicObservers.Dispatch(context.Background(), StateChange{Key: name, State: state})
	return true
}

// wouldGhost reports whether admitting the press would create a
// ghosting rectangle among the active keys. Unmapped keys never ghost.
func (e *Engine) wouldGhost(name string) bool {
	var active map[string]struct{}
	if e.sim != nil {
		active = e.sim.activeSet()
	} else {
		active = make(map[string]struct{})
	}
	active[name] = struct{}{}

	if len(active) < 3 {
		return false
	}
	return len(e.matrix.DetectGhosting(active)) > 0
}

func (e *Engine) recordGhostBlocked(name string) {
	if e.sim != nil {
		e.sim.recordGhostBlocked(name)
		return
	}
	e.ghostBlocked.Add(1)
}

// EnableGhostingPrevention toggles ghost rejection. Takes effect on the
// very next event.
func (e *Engine) EnableGhostingPrevention(enabled bool) {
	e.ghostPrevention.Store(enabled)
}

// EnableCombinationDetection toggles combo detection. Takes effect on
// the very next event.
func (e *Engine) EnableCombinationDetection(enabled bool) {
	e.comboDetection.Store(enabled)
	if e.sim != nil {
		e.sim.SetCombinationDetection(enabled)
	}
}

// AddKeyObserver subscribes to key state changes regardless of whether
// NKRO is enabled.
func (e *Engine) AddKeyObserver(o KeyObserver) uuid.UUID {
	if e.sim != nil {
		return e.sim.AddKeyObserver(o)
	}
	return e.basicObservers.Subscribe(dispatch.HandlerFunc(func(_ context.Context, event any) error {
		change := event.(StateChange)
		o.KeyStateChanged(change.Key, change.State)
		return nil
	}))
}

// RemoveKeyObserver unsubscribes a key observer.
func (e *Engine) RemoveKeyObserver(id uuid.UUID) {
	if e.sim != nil {
		e.sim.RemoveKeyObserver(id)
		return
	}
	e.basicObservers.Unsubscribe(id)
}

// ActiveKeys returns the currently active keys, or nil without NKRO.
func (e *Engine) ActiveKeys() []string {
	if e.sim == nil {
		return nil
	}
	return e.sim.ActiveKeys()
}

// KeyInfo returns tracked info for a key.
func (e *Engine) KeyInfo(name string) (KeyInfo, bool) {
	if e.sim == nil {
		return KeyInfo{}, false
	}
	return e.sim.KeyInfo(name)
}

// ActiveCombinations returns the currently satisfied combinations.
func (e *Engine) ActiveCombinations() []Combination {
	if e.sim == nil {
		return nil
	}
	return e.sim.ActiveCombinations()
}

// Stats returns engine statistics.
func (e *Engine) Stats() Stats {
	if e.sim == nil {
		return Stats{GhostingEventsPrevented: e.ghostBlocked.Load()}
	}
	return e.sim.Stats()
}

// ResetStats zeroes all counters.
func (e *Engine) ResetStats() {
	e.ghostBlocked.Store(0)
	if e.sim != nil {
		e.sim.ResetStats()
	}
}

// ClearAllKeys is the emergency reset. It never fails and leaves the
// matrix and simulator as if no keys were held.
func (e *Engine) ClearAllKeys() {
	e.mu.Lock()
	e.matrix.Clear()
	e.mu.Unlock()

	if e.sim != nil {
		e.sim.ClearAllKeys()
	}
}
