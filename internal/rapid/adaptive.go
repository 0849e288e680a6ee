package rapid

import (
	"math"
	"sync"
	"time"
)

// adaptiveMinSamples is the history size below which no adaptation
// happens; too few intervals make the averages meaningless.
const adaptiveMinSamples = 5

// AdaptiveConfig configures adaptive response.
type AdaptiveConfig struct {
	// Enabled turns the algorithm on.
	Enabled bool

	// LearningRate scales each adjustment step.
	LearningRate float64

	// HistorySize bounds the per-key event history.
	HistorySize int

	// AdaptationThreshold is the minimum multiplier change that is
	// actually committed; smaller drifts are ignored.
	AdaptationThreshold float64

	// MinMultiplier and MaxMultiplier clamp the response multiplier.
	MinMultiplier float64
	MaxMultiplier float64
}

// DefaultAdaptiveConfig returns the stock adaptive-response tuning.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Enabled:             true,
		LearningRate:        0.1,
		HistorySize:         100,
		AdaptationThreshold: 0.1,
		MinMultiplier:       0.5,
		MaxMultiplier:       2.0,
	}
}

// AdaptationStats describes one key's learned state.
type AdaptationStats struct {
	Multiplier  float64
	SampleCount int
	AvgInterval time.Duration
	AvgHold     time.Duration
	Adaptations int
	LastAdapted time.Time
}

// adaptiveSample is one recorded transition.
type adaptiveSample struct {
	pressed bool
	at      time.Time
}

// adaptiveState is the per-key learning state.
type adaptiveState struct {
	history     []adaptiveSample
	multiplier  float64
	adaptations int
	lastAdapted time.Time
}

// Adaptive learns each key's typing rhythm and derives a response
// multiplier: fast tappers get a boosted response, slow deliberate
// holds get damped, and everything in between relaxes toward neutral.
type Adaptive struct {
	mu   sync.Mutex
	cfg  AdaptiveConfig
	keys map[string]*adaptiveState
}

// NewAdaptive creates an adaptive-response learner.
func NewAdaptive(cfg AdaptiveConfig) *Adaptive {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultAdaptiveConfig().HistorySize
	}
	return &Adaptive{
		cfg:  cfg,
		keys: make(map[string]*adaptiveState),
	}
}

// ProcessKeyEvent records one transition and returns the key's current
// response multiplier. Disabled, it always returns 1.0.
func (a *Adaptive) ProcessKeyEvent(name string, pressed bool, ts time.Time) float64 {
	if !a.cfg.Enabled {
		return 1.0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.keys[name]
	if !ok {
		st = &adaptiveState{multiplier: 1.0}
		a.keys[name] = st
	}

	st.history = append(st.history, adaptiveSample{pressed: pressed, at: ts})
	if len(st.history) > a.cfg.HistorySize {
		st.history = st.history[len(st.history)-a.cfg.HistorySize:]
	}

	if len(st.history) >= adaptiveMinSamples {
		a.adapt(st, ts)
	}
	return st.multiplier
}

// adapt recomputes the multiplier from the averaged press interval and
// hold duration. Changes smaller than the threshold are discarded.
func (a *Adaptive) adapt(st *adaptiveState, now time.Time) {
	interval, hold := patternAverages(st.history)

	target := st.multiplier
	switch {
	case interval > 0 && interval < 100*time.Millisecond:
		target = st.multiplier * (1.0 + a.cfg.LearningRate)
	case interval > 500*time.Millisecond:
		target = st.multiplier * (1.0 - a.cfg.LearningRate)
	case hold > 0 && hold < 50*time.Millisecond:
		target = st.multiplier * (1.0 + a.cfg.LearningRate/2)
	case hold > time.Second:
		target = st.multiplier * (1.0 - a.cfg.LearningRate/2)
	default:
		// No strong pattern: relax toward neutral.
		target = st.multiplier + a.cfg.LearningRate*(1.0-st.multiplier)
	}

	if target < a.cfg.MinMultiplier {
		target = a.cfg.MinMultiplier
	}
	if target > a.cfg.MaxMultiplier {
		target = a.cfg.MaxMultiplier
	}

	if math.Abs(target-st.multiplier) > a.cfg.AdaptationThreshold {
		st.multiplier = target
		st.adaptations++
		st.lastAdapted = now
	}
}

// patternAverages derives the mean press-to-press interval and the mean
// press-to-release hold from the recorded history.
func patternAverages(history []adaptiveSample) (interval, hold time.Duration) {
	var (
		intervalSum, holdSum     time.Duration
		intervalCount, holdCount int
		lastPress                time.Time
		pendingPress             time.Time
	)

	for _, s := range history {
		if s.pressed {
			if !lastPress.IsZero() {
				if gap := s.at.Sub(lastPress); gap > 0 {
					intervalSum += gap
					intervalCount++
				}
			}
			lastPress = s.at
			pendingPress = s.at
			continue
		}
		if !pendingPress.IsZero() {
			if d := s.at.Sub(pendingPress); d > 0 {
				holdSum += d
				holdCount++
			}
			pendingPress = time.Time{}
		}
	}

	if intervalCount > 0 {
		interval = intervalSum / time.Duration(intervalCount)
	}
	if holdCount > 0 {
		hold = holdSum / time.Duration(holdCount)
	}
	return interval, hold
}

// Multiplier returns the current response multiplier for a key.
// Unknown keys are neutral.
func (a *Adaptive) Multiplier(name string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.keys[name]
	if !ok {
		return 1.0
	}
	return st.multiplier
}

// Stats returns the learned state for a key.
func (a *Adaptive) Stats(name string) (AdaptationStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.keys[name]
	if !ok {
		return AdaptationStats{}, false
	}
	interval, hold := patternAverages(st.history)
	return AdaptationStats{
		Multiplier:  st.multiplier,
		SampleCount: len(st.history),
		AvgInterval: interval,
		AvgHold:     hold,
		Adaptations: st.adaptations,
		LastAdapted: st.lastAdapted,
	}, true
}

// Reset drops all learned state.
func (a *Adaptive) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = make(map[string]*adaptiveState)
}
