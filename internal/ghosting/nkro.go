package ghosting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dshills/keyrush/internal/event/dispatch"
	"github.com/dshills/keyrush/internal/input/key"
	"github.com/google/uuid"
)

// processingSamples bounds the rolling processing-time window.
const processingSamples = 100

// KeyInfo tracks the observed lifecycle of a single key. An entry is
// created on the first press and mutated on every later transition;
// entries are only bulk-cleared by an emergency reset.
type KeyInfo struct {
	Name         string
	State        key.State
	PressTime    time.Time
	ReleaseTime  time.Time // zero until the first release
	HoldDuration time.Duration
	PressCount   int
	Ghosted      bool
	LastActivity time.Time
}

// Combination is a configured set of keys detected while all of its
// members are simultaneously active.
type Combination struct {
	// Keys are the member key names.
	Keys []string

	// Name labels the combination.
	Name string

	// Priority orders combinations for consumers.
	Priority int

	// Gaming marks combinations that matter for game input.
	Gaming bool

	// MaxKeys optionally caps simultaneous keys for this combination.
	// Zero means unlimited (full NKRO).
	MaxKeys int
}

// matches reports whether every member key is in the active set.
func (c Combination) matches(active map[string]struct{}) bool {
	if len(c.Keys) == 0 {
		return false
	}
	for _, k := range c.Keys {
		if _, ok := active[k]; !ok {
			return false
		}
	}
	return true
}

// DefaultGamingCombinations returns the built-in gaming combination
// table: FPS diagonals, MOBA ability rows, and common control chords.
func DefaultGamingCombinations() []Combination {
	return []Combination{
		{Keys: []string{"w", "a"}, Name: "Move Forward+Left", Priority: 1, Gaming: true},
		{Keys: []string{"w", "d"}, Name: "Move Forward+Right", Priority: 1, Gaming: true},
		{Keys: []string{"s", "a"}, Name: "Move Backward+Left", Priority: 1, Gaming: true},
		{Keys: []string{"s", "d"}, Name: "Move Backward+Right", Priority: 1, Gaming: true},
		{Keys: []string{"w", "shift"}, Name: "Sprint Forward", Priority: 2, Gaming: true},
		{Keys: []string{"space", "ctrl"}, Name: "Jump+Crouch", Priority: 2, Gaming: true},
		{Keys: []string{"q", "w", "e"}, Name: "QWE Combo", Priority: 3, Gaming: true},
		{Keys: []string{"a", "s", "d"}, Name: "ASD Combo", Priority: 3, Gaming: true},
		{Keys: []string{"1", "2", "3"}, Name: "Item Combo", Priority: 2, Gaming: true},
		{Keys: []string{"ctrl", "a"}, Name: "Select All", Priority: 1, Gaming: true},
		{Keys: []string{"ctrl", "c"}, Name: "Copy", Priority: 1, Gaming: true},
		{Keys: []string{"ctrl", "v"}, Name: "Paste", Priority: 1, Gaming: true},
		{Keys: []string{"ctrl", "z"}, Name: "Undo", Priority: 1, Gaming: true},
	}
}

// Stats is a snapshot of simulator counters.
type Stats struct {
	TotalKeysTracked        int
	SimultaneousKeysMax     int
	GhostingEventsPrevented uint64
	EventsProcessed         uint64
	CombinationsDetected    uint64
	BlockedKeys             uint64
	AvgProcessingTime       time.Duration
	LastUpdate              time.Time
}

// StateChange is the event delivered to key observers.
type StateChange struct {
	Key   string
	State key.State
}

// KeyObserver receives key state transitions.
type KeyObserver interface {
	KeyStateChanged(name string, state key.State)
}

// ComboObserver receives newly satisfied combinations.
type ComboObserver interface {
	CombinationDetected(combo Combination)
}

// Simulator tracks per-key state and enforces an optional limit on
// simultaneously pressed keys, emulating N-key rollover for hardware
// that cannot deliver it.
type Simulator struct {
	mu sync.Mutex

	maxKeys int
	active  map[string]struct{}
	states  map[string]*KeyInfo
	combos  []Combination

	// comboActive tracks which combinations are currently satisfied so
	// observers fire on the rising edge only.
	comboActive map[string]bool

	detectCombos bool

	keyObservers   *dispatch.Registry
	comboObservers *dispatch.Registry

	stats       Stats
	procTimes   []time.Duration
	procTimeIdx int
	procTimeLen int
}

// NewSimulator creates a simulator. maxKeys of zero means unlimited.
func NewSimulator(maxKeys int) *Simulator {
	return &Simulator{
		maxKeys:        maxKeys,
		active:         make(map[string]struct{}),
		states:         make(map[string]*KeyInfo),
		combos:         DefaultGamingCombinations(),
		comboActive:    make(map[string]bool),
		detectCombos:   true,
		keyObservers:   dispatch.NewRegistry(),
		comboObservers: dispatch.NewRegistry(),
		procTimes:      make([]time.Duration, processingSamples),
	}
}

// SetCombinations replaces the configured combination table.
func (s *Simulator) SetCombinations(combos []Combination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combos = append([]Combination(nil), combos...)
	s.comboActive = make(map[string]bool)
}

// AddCombination registers one more combination.
func (s *Simulator) AddCombination(combo Combination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combos = append(s.combos, combo)
}

// SetCombinationDetection toggles combo detection. The flag is read on
// the next event, never cached by callers.
func (s *Simulator) SetCombinationDetection(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectCombos = enabled
}

// AddKeyObserver subscribes an observer to key state transitions.
func (s *Simulator) AddKeyObserver(o KeyObserver) uuid.UUID {
	return s.keyObservers.Subscribe(dispatch.HandlerFunc(func(_ context.Context, event any) error {
		change := event.(StateChange)
		o.KeyStateChanged(change.Key, change.State)
		return nil
	}))
}

// RemoveKeyObserver unsubscribes a key observer.
func (s *Simulator) RemoveKeyObserver(id uuid.UUID) {
	s.keyObservers.Unsubscribe(id)
}

// AddComboObserver subscribes an observer to combination detections.
func (s *Simulator) AddComboObserver(o ComboObserver) uuid.UUID {
	return s.comboObservers.Subscribe(dispatch.HandlerFunc(func(_ context.Context, event any) error {
		o.CombinationDetected(event.(Combination))
		return nil
	}))
}

// RemoveComboObserver unsubscribes a combo observer.
func (s *Simulator) RemoveComboObserver(id uuid.UUID) {
	s.comboObservers.Unsubscribe(id)
}

// ProcessKeyEvent applies one key transition. A press is rejected
// (returns false) when the simultaneous-key limit is reached and the
// key is not already active; this is the sole NKRO admission point.
// A release of an untracked key returns false.
func (s *Simulator) ProcessKeyEvent(name string, pressed bool, ts time.Time) bool {
	start := time.Now()

	s.mu.Lock()

	var (
		admitted bool
		notify   []StateChange
		combos   []Combination
	)

	if pressed {
		if !s.canPress(name) {
			s.stats.BlockedKeys++
			s.mu.Unlock()
			return false
		}
		admitted = true
		notify = append(notify, s.handlePress(name, ts))
		if s.detectCombos {
			combos = s.detectNewCombos()
		}
	} else {
		change, ok := s.handleRelease(name, ts)
		admitted = ok
		if ok {
			notify = append(notify, change)
		}
		s.refreshComboEdges()
	}

	s.recordProcessing(time.Since(start), ts)
	s.mu.Unlock()

	// Observers run outside the lock so they may query the simulator.
	for _, change := range notify {
		s.keyObservers.Dispatch(context.Background(), change)
	}
	for _, combo := range combos {
		s.comboObservers.Dispatch(context.Background(), combo)
	}

	return admitted
}

// canPress checks the NKRO limit. Re-pressing an active key is allowed.
func (s *Simulator) canPress(name string) bool {
	if _, ok := s.active[name]; ok {
		return true
	}
	return s.maxKeys <= 0 || len(s.active) < s.maxKeys
}

func (s *Simulator) handlePress(name string, ts time.Time) StateChange {
	info, ok := s.states[name]
	if !ok {
		info = &KeyInfo{Name: name}
		s.states[name] = info
	}
	info.State = key.StatePressed
	info.PressTime = ts
	info.PressCount++
	info.LastActivity = ts

	s.active[name] = struct{}{}

	s.stats.TotalKeysTracked = len(s.states)
	if n := len(s.active); n > s.stats.SimultaneousKeysMax {
		s.stats.SimultaneousKeysMax = n
	}
	s.stats.EventsProcessed++

	return StateChange{Key: name, State: key.StatePressed}
}

func (s *Simulator) handleRelease(name string, ts time.Time) (StateChange, bool) {
	info, ok := s.states[name]
	if !ok {
		return StateChange{}, false
	}

	info.State = key.StateReleased
	info.ReleaseTime = ts
	info.HoldDuration = ts.Sub(info.PressTime)
	info.LastActivity = ts

	delete(s.active, name)
	s.stats.EventsProcessed++

	return StateChange{Key: name, State: key.StateReleased}, true
}

// detectNewCombos returns combinations that just became satisfied and
// bumps the detection counter for every satisfied combination.
func (s *Simulator) detectNewCombos() []Combination {
	if len(s.active) < 2 {
		return nil
	}

	var fresh []Combination
	for _, combo := range s.combos {
		if combo.matches(s.active) {
			s.stats.CombinationsDetected++
			if !s.comboActive[combo.Name] {
				s.comboActive[combo.Name] = true
				fresh = append(fresh, combo)
			}
		}
	}
	return fresh
}

// refreshComboEdges clears edge state for combinations no longer held.
func (s *Simulator) refreshComboEdges() {
	for _, combo := range s.combos {
		if s.comboActive[combo.Name] && !combo.matches(s.active) {
			s.comboActive[combo.Name] = false
		}
	}
}

func (s *Simulator) recordProcessing(d time.Duration, ts time.Time) {
	s.procTimes[s.procTimeIdx] = d
	s.procTimeIdx = (s.procTimeIdx + 1) % processingSamples
	if s.procTimeLen < processingSamples {
		s.procTimeLen++
	}
	s.stats.LastUpdate = ts
}

// recordGhostBlocked counts a press rejected by ghosting prevention and
// marks the key's info, if tracked, as ghosted.
func (s *Simulator) recordGhostBlocked(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.GhostingEventsPrevented++
	s.stats.BlockedKeys++
	if info, ok := s.states[name]; ok {
		info.Ghosted = true
		info.State = key.StateBlocked
	}
}

// ActiveKeys returns the currently pressed keys in sorted order.
func (s *Simulator) ActiveKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.active))
	for name := range s.active {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// activeSet copies the active-key set.
func (s *Simulator) activeSet() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]struct{}, len(s.active))
	for name := range s.active {
		set[name] = struct{}{}
	}
	return set
}

// KeyInfo returns a copy of the tracked info for a key.
func (s *Simulator) KeyInfo(name string) (KeyInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.states[name]
	if !ok {
		return KeyInfo{}, false
	}
	return *info, true
}

// ActiveCombinations returns the combinations currently satisfied by
// the active-key set.
func (s *Simulator) ActiveCombinations() []Combination {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Combination
	for _, combo := range s.combos {
		if combo.matches(s.active) {
			out = append(out, combo)
		}
	}
	return out
}

// Stats returns a snapshot of the simulator counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.stats
	if s.procTimeLen > 0 {
		var sum time.Duration
		for i := 0; i < s.procTimeLen; i++ {
			sum += s.procTimes[i]
		}
		snap.AvgProcessingTime = sum / time.Duration(s.procTimeLen)
	}
	return snap
}

// ResetStats zeroes all counters.
func (s *Simulator) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats = Stats{}
	s.procTimes = make([]time.Duration, processingSamples)
	s.procTimeIdx = 0
	s.procTimeLen = 0
}

// ClearAllKeys is the emergency reset: it empties the active set and
// marks every tracked key released as of now. It never fails.
func (s *Simulator) ClearAllKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.active = make(map[string]struct{})
	s.comboActive = make(map[string]bool)
	for _, info := range s.states {
		info.State = key.StateReleased
		info.ReleaseTime = now
	}
}
