package rapid

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dshills/keyrush/internal/event/dispatch"
	"github.com/google/uuid"
)

// turboPollInterval is the repeat loop's scheduling resolution.
const turboPollInterval = time.Millisecond

// TurboConfig configures turbo mode.
type TurboConfig struct {
	// Enabled turns the algorithm on.
	Enabled bool

	// RepeatRate is the base interval between repeats.
	RepeatRate time.Duration

	// InitialDelay is the wait before the first repeat.
	InitialDelay time.Duration

	// MaxRepeats caps repeats per hold. Zero means unlimited.
	MaxRepeats int

	// Acceleration divides the interval by acceleration^count, so
	// values above 1 make repeats progressively faster.
	Acceleration float64
}

// DefaultTurboConfig returns the stock turbo tuning.
func DefaultTurboConfig() TurboConfig {
	return TurboConfig{
		Enabled:      true,
		RepeatRate:   50 * time.Millisecond,
		InitialDelay: 500 * time.Millisecond,
		MaxRepeats:   0,
		Acceleration: 1.0,
	}
}

// TurboStats describes one key's turbo progress.
type TurboStats struct {
	StartTime   time.Time
	RepeatCount int
	LastRepeat  time.Time
	NextRepeat  time.Time
}

// Repeat is the event delivered for every turbo repeat.
type Repeat struct {
	Key   string
	Count int
	At    time.Time
}

// turboState is the per-key schedule while turbo is active.
type turboState struct {
	start      time.Time
	lastRepeat time.Time
	nextRepeat time.Time
	repeats    int
}

// Turbo auto-repeats held keys on a single shared background loop. The
// loop runs only while at least one key is turbo-active; it is started
// lazily on the first key and stopped when the set drains.
type Turbo struct {
	mu sync.Mutex

	cfg     TurboConfig
	keys    map[string]*turboState
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	observers *dispatch.Registry
}

// NewTurbo creates a turbo-mode manager.
func NewTurbo(cfg TurboConfig) *Turbo {
	if cfg.Acceleration <= 0 {
		cfg.Acceleration = 1.0
	}
	return &Turbo{
		cfg:       cfg,
		keys:      make(map[string]*turboState),
		observers: dispatch.NewRegistry(),
	}
}

// AddRepeatListener subscribes a function to repeat events. Listener
// panics are recovered and never stop the loop.
func (t *Turbo) AddRepeatListener(fn func(name string, count int)) uuid.UUID {
	return t.observers.Subscribe(dispatch.HandlerFunc(func(_ context.Context, event any) error {
		r := event.(Repeat)
		fn(r.Key, r.Count)
		return nil
	}))
}

// RemoveRepeatListener unsubscribes a listener.
func (t *Turbo) RemoveRepeatListener(id uuid.UUID) {
	t.observers.Unsubscribe(id)
}

// StartTurbo begins auto-repeat for a key. It returns false when the
// key is already in turbo or turbo is disabled.
func (t *Turbo) StartTurbo(name string, ts time.Time) bool {
	if !t.cfg.Enabled {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[name]; ok {
		return false
	}

	t.keys[name] = &turboState{
		start:      ts,
		nextRepeat: ts.Add(t.cfg.InitialDelay),
	}

	if !t.running {
		t.running = true
		t.stopCh = make(chan struct{})
		t.wg.Add(1)
		go t.loop(t.stopCh)
	}
	return true
}

// StopTurbo ends auto-repeat for a key. The shared loop shuts down
// when no keys remain. Returns false if the key was not in turbo.
func (t *Turbo) StopTurbo(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[name]; !ok {
		return false
	}
	delete(t.keys, name)
	t.stopLoopIfIdleLocked()
	return true
}

// StopAll removes every turbo key and stops the loop. Used by the
// emergency reset; it never fails.
func (t *Turbo) StopAll() {
	t.mu.Lock()
	t.keys = make(map[string]*turboState)
	t.stopLoopIfIdleLocked()
	t.mu.Unlock()

	t.wg.Wait()
}

// stopLoopIfIdleLocked signals the loop to exit when no keys remain.
// Callers must hold the mutex.
func (t *Turbo) stopLoopIfIdleLocked() {
	if len(t.keys) == 0 && t.running {
		t.running = false
		close(t.stopCh)
	}
}

// loop polls at ~1ms resolution and fires due repeats.
func (t *Turbo) loop(stop <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(turboPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			for _, repeat := range t.collectDue(now) {
				t.observers.Dispatch(context.Background(), repeat)
			}
		}
	}
}

// collectDue advances the schedule for every key whose repeat time has
// elapsed and returns the repeats to deliver.
func (t *Turbo) collectDue(now time.Time) []Repeat {
	t.mu.Lock()
	defer t.mu.Unlock()

	var due []Repeat
	for name, st := range t.keys {
		if now.Before(st.nextRepeat) {
			continue
		}

		st.repeats++
		st.lastRepeat = now
		due = append(due, Repeat{Key: name, Count: st.repeats, At: now})

		if t.cfg.MaxRepeats > 0 && st.repeats >= t.cfg.MaxRepeats {
			delete(t.keys, name)
			continue
		}

		interval := float64(t.cfg.RepeatRate) / math.Pow(t.cfg.Acceleration, float64(st.repeats))
		st.nextRepeat = now.Add(time.Duration(interval))
	}

	t.stopLoopIfIdleLocked()
	return due
}

// IsActive reports whether a key is in turbo.
func (t *Turbo) IsActive(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[name]
	return ok
}

// ActiveKeys returns the keys currently in turbo.
func (t *Turbo) ActiveKeys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.keys))
	for name := range t.keys {
		keys = append(keys, name)
	}
	return keys
}

// Stats returns turbo progress for a key.
func (t *Turbo) Stats(name string) (TurboStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.keys[name]
	if !ok {
		return TurboStats{}, false
	}
	return TurboStats{
		StartTime:   st.start,
		RepeatCount: st.repeats,
		LastRepeat:  st.lastRepeat,
		NextRepeat:  st.nextRepeat,
	}, true
}
