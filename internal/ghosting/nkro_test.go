package ghosting

import (
	"testing"
	"time"

	"github.com/dshills/keyrush/internal/input/key"
)

type recordingObserver struct {
	changes []StateChange
}

func (r *recordingObserver) KeyStateChanged(name string, state key.State) {
	r.changes = append(r.changes, StateChange{Key: name, State: state})
}

type recordingComboObserver struct {
	combos []Combination
}

func (r *recordingComboObserver) CombinationDetected(c Combination) {
	r.combos = append(r.combos, c)
}

func TestNKROUnlimited(t *testing.T) {
	sim := NewSimulator(0)
	now := time.Now()

	for i, name := range []string{"a", "s", "d", "f", "g", "h", "j", "k", "l"} {
		if !sim.ProcessKeyEvent(name, true, now.Add(time.Duration(i)*time.Millisecond)) {
			t.Errorf("press %s rejected with unlimited rollover", name)
		}
	}
	if got := len(sim.ActiveKeys()); got != 9 {
		t.Errorf("active keys = %d, want 9", got)
	}
}

func TestNKROBound(t *testing.T) {
	// With maxKeys = N, the active set never exceeds N for any sequence.
	sim := NewSimulator(2)
	now := time.Now()

	keys := []string{"a", "b", "c", "d", "a", "e"}
	for i, name := range keys {
		sim.ProcessKeyEvent(name, true, now.Add(time.Duration(i)*time.Millisecond))
		if got := len(sim.ActiveKeys()); got > 2 {
			t.Fatalf("active keys = %d after pressing %s, want <= 2", got, name)
		}
	}
}

func TestNKRORepressActiveKeyAllowed(t *testing.T) {
	sim := NewSimulator(1)
	now := time.Now()

	if !sim.ProcessKeyEvent("a", true, now) {
		t.Fatal("first press rejected")
	}
	if !sim.ProcessKeyEvent("a", true, now.Add(time.Millisecond)) {
		t.Error("re-press of an active key must be admitted at the limit")
	}
	if sim.ProcessKeyEvent("b", true, now.Add(2*time.Millisecond)) {
		t.Error("press past the limit must be rejected")
	}
}

func TestKeyInfoLifecycle(t *testing.T) {
	sim := NewSimulator(0)
	pressAt := time.Now()
	releaseAt := pressAt.Add(120 * time.Millisecond)

	sim.ProcessKeyEvent("w", true, pressAt)

	info, ok := sim.KeyInfo("w")
	if !ok {
		t.Fatal("KeyInfo missing after press")
	}
	if info.State != key.StatePressed || info.PressCount != 1 {
		t.Errorf("after press: state=%v count=%d, want pressed/1", info.State, info.PressCount)
	}
	if !info.ReleaseTime.IsZero() {
		t.Error("release time should be unset before the first release")
	}

	sim.ProcessKeyEvent("w", false, releaseAt)

	info, _ = sim.KeyInfo("w")
	if info.State != key.StateReleased {
		t.Errorf("after release: state=%v, want released", info.State)
	}
	if info.HoldDuration != 120*time.Millisecond {
		t.Errorf("hold duration = %v, want 120ms", info.HoldDuration)
	}

	// Second press updates the same entry.
	sim.ProcessKeyEvent("w", true, releaseAt.Add(time.Millisecond))
	info, _ = sim.KeyInfo("w")
	if info.PressCount != 2 {
		t.Errorf("press count = %d, want 2", info.PressCount)
	}
}

func TestReleaseUntrackedKey(t *testing.T) {
	sim := NewSimulator(0)
	if sim.ProcessKeyEvent("x", false, time.Now()) {
		t.Error("release of an untracked key should report false")
	}
}

func TestComboDetectionEdgeTriggered(t *testing.T) {
	sim := NewSimulator(0)
	obs := &recordingComboObserver{}
	sim.AddComboObserver(obs)
	now := time.Now()

	sim.ProcessKeyEvent("q", true, now)
	sim.ProcessKeyEvent("w", true, now.Add(time.Millisecond))
	sim.ProcessKeyEvent("e", true, now.Add(2*time.Millisecond))

	var qwe int
	for _, c := range obs.combos {
		if c.Name == "QWE Combo" {
			qwe++
		}
	}
	if qwe != 1 {
		t.Errorf("QWE Combo observed %d times, want 1", qwe)
	}

	// Releasing and re-pressing a member fires the combo again.
	sim.ProcessKeyEvent("e", false, now.Add(3*time.Millisecond))
	sim.ProcessKeyEvent("e", true, now.Add(4*time.Millisecond))

	qwe = 0
	for _, c := range obs.combos {
		if c.Name == "QWE Combo" {
			qwe++
		}
	}
	if qwe != 2 {
		t.Errorf("QWE Combo observed %d times after re-press, want 2", qwe)
	}
}

func TestActiveCombinations(t *testing.T) {
	sim := NewSimulator(0)
	now := time.Now()

	sim.ProcessKeyEvent("w", true, now)
	sim.ProcessKeyEvent("a", true, now.Add(time.Millisecond))

	found := false
	for _, c := range sim.ActiveCombinations() {
		if c.Name == "Move Forward+Left" {
			found = true
		}
	}
	if !found {
		t.Error("w+a should satisfy Move Forward+Left")
	}
}

func TestKeyObserverNotified(t *testing.T) {
	sim := NewSimulator(0)
	obs := &recordingObserver{}
	id := sim.AddKeyObserver(obs)
	now := time.Now()

	sim.ProcessKeyEvent("a", true, now)
	sim.ProcessKeyEvent("a", false, now.Add(time.Millisecond))

	if len(obs.changes) != 2 {
		t.Fatalf("observer saw %d changes, want 2", len(obs.changes))
	}
	if obs.changes[0].State != key.StatePressed || obs.changes[1].State != key.StateReleased {
		t.Errorf("observed states = %v", obs.changes)
	}

	sim.RemoveKeyObserver(id)
	sim.ProcessKeyEvent("a", true, now.Add(2*time.Millisecond))
	if len(obs.changes) != 2 {
		t.Error("observer notified after removal")
	}
}

type panickyObserver struct{}

func (panickyObserver) KeyStateChanged(string, key.State) {
	panic("observer bug")
}

func TestObserverPanicIsolated(t *testing.T) {
	sim := NewSimulator(0)
	sim.AddKeyObserver(panickyObserver{})
	healthy := &recordingObserver{}
	sim.AddKeyObserver(healthy)

	if !sim.ProcessKeyEvent("a", true, time.Now()) {
		t.Error("event processing must survive an observer panic")
	}
	if len(healthy.changes) != 1 {
		t.Error("later observers must still run after a panic")
	}
}

func TestClearAllKeys(t *testing.T) {
	sim := NewSimulator(0)
	now := time.Now()

	sim.ProcessKeyEvent("a", true, now)
	sim.ProcessKeyEvent("s", true, now.Add(time.Millisecond))

	sim.ClearAllKeys()

	if got := len(sim.ActiveKeys()); got != 0 {
		t.Errorf("active keys after reset = %d, want 0", got)
	}
	info, ok := sim.KeyInfo("a")
	if !ok {
		t.Fatal("tracked info should survive a reset")
	}
	if info.State != key.StateReleased || info.ReleaseTime.IsZero() {
		t.Errorf("after reset: state=%v releaseSet=%v, want released with release time", info.State, !info.ReleaseTime.IsZero())
	}
}

func TestStatsSnapshot(t *testing.T) {
	sim := NewSimulator(0)
	now := time.Now()

	sim.ProcessKeyEvent("a", true, now)
	sim.ProcessKeyEvent("s", true, now.Add(time.Millisecond))
	sim.ProcessKeyEvent("a", false, now.Add(2*time.Millisecond))

	stats := sim.Stats()
	if stats.EventsProcessed != 3 {
		t.Errorf("events processed = %d, want 3", stats.EventsProcessed)
	}
	if stats.SimultaneousKeysMax != 2 {
		t.Errorf("simultaneous max = %d, want 2", stats.SimultaneousKeysMax)
	}
	if stats.TotalKeysTracked != 2 {
		t.Errorf("tracked = %d, want 2", stats.TotalKeysTracked)
	}

	sim.ResetStats()
	if sim.Stats().EventsProcessed != 0 {
		t.Error("stats should zero after reset")
	}
}
