// Package rapid implements the rapid-action subsystem: rapid trigger,
// snap tap, turbo mode, adaptive response, and actuation emulation,
// plus the coordinating engine that merges their verdicts into one
// decision per key event.
package rapid

import (
	"sync"
	"time"
)

// velocityHistorySize bounds the per-key velocity sample queue.
const velocityHistorySize = 10

// TriggerConfig configures rapid trigger.
type TriggerConfig struct {
	// Enabled turns the algorithm on.
	Enabled bool

	// Threshold is the press-interval at which the trigger activates:
	// a key must be re-pressed within this window of its last release.
	Threshold time.Duration

	// ResetDelay is the base delay before the key's logical state is
	// reset; higher velocity shortens it.
	ResetDelay time.Duration

	// MinPressDuration and MaxPressDuration clamp the computed delay.
	MinPressDuration time.Duration
	MaxPressDuration time.Duration

	// VelocitySmoothing blends each new delay with the previous one.
	// Zero disables smoothing; values approach 1 for heavy smoothing.
	VelocitySmoothing float64
}

// DefaultTriggerConfig returns the stock rapid-trigger tuning.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Enabled:           true,
		Threshold:         10 * time.Millisecond,
		ResetDelay:        5 * time.Millisecond,
		MinPressDuration:  time.Millisecond,
		MaxPressDuration:  100 * time.Millisecond,
		VelocitySmoothing: 0.1,
	}
}

// VelocitySummary describes a key's recent press/release velocity in
// presses per second.
type VelocitySummary struct {
	Press   float64 // most recent sample
	Release float64 // second most recent sample
	Average float64
	Max     float64
	Min     float64
	Trend   float64 // newest minus oldest; positive means speeding up
}

// triggerState is the per-key bookkeeping for rapid trigger.
type triggerState struct {
	lastPress     time.Time
	lastRelease   time.Time
	pressCount    int
	velocities    []float64
	smoothedDelay time.Duration
}

// appendVelocity pushes a sample onto the bounded history.
func (st *triggerState) appendVelocity(v float64) {
	st.velocities = append(st.velocities, v)
	if len(st.velocities) > velocityHistorySize {
		st.velocities = st.velocities[len(st.velocities)-velocityHistorySize:]
	}
}

// Trigger shortens a key's reset delay as its press/release frequency
// climbs, letting fast taps re-arm the key sooner than the hardware
// debounce would.
type Trigger struct {
	mu   sync.Mutex
	cfg  TriggerConfig
	keys map[string]*triggerState
}

// NewTrigger creates a rapid trigger.
func NewTrigger(cfg TriggerConfig) *Trigger {
	return &Trigger{
		cfg:  cfg,
		keys: make(map[string]*triggerState),
	}
}

// ProcessKeyEvent feeds one transition through the trigger. When the
// trigger activates it returns the reset delay and true; the caller is
// responsible for scheduling the deferred reset. Events are never
// suppressed by this algorithm.
func (t *Trigger) ProcessKeyEvent(name string, pressed bool, ts time.Time) (time.Duration, bool) {
	if !t.cfg.Enabled {
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if pressed {
		return t.handlePress(name, ts)
	}
	t.handleRelease(name, ts)
	return 0, false
}

func (t *Trigger) handlePress(name string, ts time.Time) (time.Duration, bool) {
	st, ok := t.keys[name]
	if !ok {
		st = &triggerState{}
		t.keys[name] = st
	}

	velocity, haveVelocity := t.pressVelocity(st, ts)
	st.lastPress = ts
	st.pressCount++
	if haveVelocity {
		st.appendVelocity(velocity)
	}

	if !haveVelocity || !t.shouldActivate(st, velocity) {
		return 0, false
	}

	delay := t.resetDelay(st, velocity)
	st.smoothedDelay = delay
	return delay, true
}

func (t *Trigger) handleRelease(name string, ts time.Time) {
	st, ok := t.keys[name]
	if !ok {
		return
	}
	if !st.lastPress.IsZero() {
		if hold := ts.Sub(st.lastPress); hold > 0 {
			st.appendVelocity(1.0 / hold.Seconds())
		}
	}
	st.lastRelease = ts
}

// pressVelocity computes presses/sec from the gap since the last
// release. No prior release means no velocity yet.
func (t *Trigger) pressVelocity(st *triggerState, ts time.Time) (float64, bool) {
	if st.lastRelease.IsZero() {
		return 0, false
	}
	gap := ts.Sub(st.lastRelease)
	if gap <= 0 {
		return 0, false
	}
	return 1.0 / gap.Seconds(), true
}

// thresholdVelocity is the presses/sec equivalent of the configured
// re-press window.
func (t *Trigger) thresholdVelocity() float64 {
	if t.cfg.Threshold <= 0 {
		return 0
	}
	return 1.0 / t.cfg.Threshold.Seconds()
}

// shouldActivate requires the velocity to clear the threshold and the
// last three samples to be non-decreasing on average.
func (t *Trigger) shouldActivate(st *triggerState, velocity float64) bool {
	if velocity < t.thresholdVelocity() {
		return false
	}
	if len(st.velocities) < 3 {
		return false
	}

	recent := st.velocities[len(st.velocities)-3:]
	trend := (recent[2] - recent[0]) / 3.0
	return trend >= 0
}

// resetDelay scales the base delay down by the velocity factor (capped
// at 2x), smooths against the previous delay, and clamps.
func (t *Trigger) resetDelay(st *triggerState, velocity float64) time.Duration {
	factor := velocity / t.thresholdVelocity()
	if factor > 2.0 {
		factor = 2.0
	}
	adjusted := float64(t.cfg.ResetDelay) / factor

	if st.smoothedDelay > 0 && t.cfg.VelocitySmoothing > 0 {
		s := t.cfg.VelocitySmoothing
		adjusted = (1-s)*adjusted + s*float64(st.smoothedDelay)
	}

	delay := time.Duration(adjusted)
	if delay < t.cfg.MinPressDuration {
		delay = t.cfg.MinPressDuration
	}
	if delay > t.cfg.MaxPressDuration {
		delay = t.cfg.MaxPressDuration
	}
	return delay
}

// Velocity returns the velocity summary for a key.
func (t *Trigger) Velocity(name string) (VelocitySummary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.keys[name]
	if !ok || len(st.velocities) == 0 {
		return VelocitySummary{}, false
	}

	v := st.velocities
	sum := VelocitySummary{
		Press: v[len(v)-1],
		Max:   v[0],
		Min:   v[0],
	}
	if len(v) > 1 {
		sum.Release = v[len(v)-2]
		sum.Trend = v[len(v)-1] - v[0]
	}
	var total float64
	for _, s := range v {
		total += s
		if s > sum.Max {
			sum.Max = s
		}
		if s < sum.Min {
			sum.Min = s
		}
	}
	sum.Average = total / float64(len(v))
	return sum, true
}

// ResetKeyState clears press/release bookkeeping for a key. Called when
// a scheduled reset fires.
func (t *Trigger) ResetKeyState(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.keys[name]; ok {
		st.lastPress = time.Time{}
		st.lastRelease = time.Time{}
	}
}

// Reset drops all per-key state.
func (t *Trigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = make(map[string]*triggerState)
}
