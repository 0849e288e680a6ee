package rapid

import (
	"sync"
	"time"

	"github.com/dshills/keyrush/internal/input/key"
)

// SnapTapConfig configures snap tap.
type SnapTapConfig struct {
	// Enabled turns the algorithm on.
	Enabled bool

	// OppositePairs maps each key to its opposite. The map must be
	// symmetric; Validate via config package enforces it.
	OppositePairs map[string]string

	// NeutralPrevention is how long after both keys of a pair go down
	// that a release is converted into "release the opposite first".
	NeutralPrevention time.Duration

	// OverlapTolerance is the accepted overlap between opposite
	// presses before prevention engages.
	OverlapTolerance time.Duration
}

// DefaultSnapTapConfig returns the stock snap-tap tuning with the
// standard movement pairs.
func DefaultSnapTapConfig() SnapTapConfig {
	return SnapTapConfig{
		Enabled:           true,
		OppositePairs:     key.DefaultOppositePairs(),
		NeutralPrevention: 50 * time.Millisecond,
		OverlapTolerance:  10 * time.Millisecond,
	}
}

// SnapTap keeps opposite-direction pairs from producing a neutral
// no-input state: when both keys of a pair are held and one is
// released inside the prevention window, the opposite key is released
// instead and the released key stays engaged.
type SnapTap struct {
	mu sync.Mutex

	cfg       SnapTapConfig
	opposites map[string]string
	active    map[string]struct{}
	pressedAt map[string]time.Time

	// prevention holds per-key deadlines; a release before its
	// deadline triggers the opposite-release conversion.
	prevention map[string]time.Time
}

// NewSnapTap creates a snap-tap manager.
func NewSnapTap(cfg SnapTapConfig) *SnapTap {
	opposites := cfg.OppositePairs
	if opposites == nil {
		opposites = key.DefaultOppositePairs()
	}
	return &SnapTap{
		cfg:        cfg,
		opposites:  opposites,
		active:     make(map[string]struct{}),
		pressedAt:  make(map[string]time.Time),
		prevention: make(map[string]time.Time),
	}
}

// ProcessKeyEvent feeds one transition through snap tap. When a release
// is converted it returns the opposite key the caller must synthesize a
// release for, and true. Events are never suppressed.
func (s *SnapTap) ProcessKeyEvent(name string, pressed bool, ts time.Time) (string, bool) {
	if !s.cfg.Enabled {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pressed {
		s.handlePress(name, ts)
		return "", false
	}
	return s.handleRelease(name, ts)
}

func (s *SnapTap) handlePress(name string, ts time.Time) {
	s.active[name] = struct{}{}
	s.pressedAt[name] = ts

	opposite, ok := s.opposites[name]
	if !ok {
		return
	}
	if _, held := s.active[opposite]; held {
		deadline := ts.Add(s.cfg.NeutralPrevention)
		s.prevention[name] = deadline
		s.prevention[opposite] = deadline
	}
}

func (s *SnapTap) handleRelease(name string, ts time.Time) (string, bool) {
	if _, held := s.active[name]; !held {
		return "", false
	}

	if deadline, windowed := s.prevention[name]; windowed && ts.Before(deadline) {
		opposite, ok := s.opposites[name]
		if ok {
			if _, oppositeHeld := s.active[opposite]; oppositeHeld {
				// Release the opposite first; the released key stays
				// logically engaged so the pair never reads neutral.
				delete(s.active, opposite)
				delete(s.prevention, opposite)
				return opposite, true
			}
		}
	}

	delete(s.active, name)
	delete(s.prevention, name)
	return "", false
}

// ActiveKeys returns the keys snap tap currently considers engaged.
func (s *SnapTap) ActiveKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.active))
	for name := range s.active {
		keys = append(keys, name)
	}
	return keys
}

// IsActive reports whether a key is engaged.
func (s *SnapTap) IsActive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[name]
	return ok
}

// NeutralPreventionActive reports whether a key is inside its
// prevention window at the given time.
func (s *SnapTap) NeutralPreventionActive(name string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.prevention[name]
	return ok && now.Before(deadline)
}

// Reset clears all engaged keys and prevention windows.
func (s *SnapTap) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = make(map[string]struct{})
	s.pressedAt = make(map[string]time.Time)
	s.prevention = make(map[string]time.Time)
}
