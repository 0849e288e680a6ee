package rapid

import (
	"testing"
	"time"
)

func TestSnapTapOppositeReleaseConversion(t *testing.T) {
	st := NewSnapTap(DefaultSnapTapConfig())
	now := time.Now()

	st.ProcessKeyEvent("a", true, now)
	st.ProcessKeyEvent("d", true, now.Add(time.Millisecond))

	// Releasing a inside the prevention window releases d instead and
	// keeps a engaged.
	opposite, converted := st.ProcessKeyEvent("a", false, now.Add(5*time.Millisecond))
	if !converted || opposite != "d" {
		t.Fatalf("conversion = (%q, %v), want (d, true)", opposite, converted)
	}
	if !st.IsActive("a") {
		t.Error("released key must stay engaged after conversion")
	}
	if st.IsActive("d") {
		t.Error("opposite key must be disengaged after conversion")
	}
}

func TestSnapTapNoConversionOutsideWindow(t *testing.T) {
	st := NewSnapTap(DefaultSnapTapConfig())
	now := time.Now()

	st.ProcessKeyEvent("a", true, now)
	st.ProcessKeyEvent("d", true, now.Add(time.Millisecond))

	// 100ms is past the 50ms prevention deadline.
	opposite, converted := st.ProcessKeyEvent("a", false, now.Add(100*time.Millisecond))
	if converted {
		t.Fatalf("late release converted to %q, want plain release", opposite)
	}
	if st.IsActive("a") {
		t.Error("a should be disengaged by a plain release")
	}
	if !st.IsActive("d") {
		t.Error("d should remain engaged")
	}
}

func TestSnapTapSingleKeyNoConversion(t *testing.T) {
	st := NewSnapTap(DefaultSnapTapConfig())
	now := time.Now()

	st.ProcessKeyEvent("a", true, now)
	if _, converted := st.ProcessKeyEvent("a", false, now.Add(time.Millisecond)); converted {
		t.Error("release with no opposite held must not convert")
	}
	if st.IsActive("a") {
		t.Error("a should be disengaged")
	}
}

func TestSnapTapUnpairedKey(t *testing.T) {
	st := NewSnapTap(DefaultSnapTapConfig())
	now := time.Now()

	st.ProcessKeyEvent("q", true, now)
	if _, converted := st.ProcessKeyEvent("q", false, now.Add(time.Millisecond)); converted {
		t.Error("key without an opposite must release normally")
	}
}

func TestSnapTapReleaseUntracked(t *testing.T) {
	st := NewSnapTap(DefaultSnapTapConfig())
	if _, converted := st.ProcessKeyEvent("a", false, time.Now()); converted {
		t.Error("release of an unheld key must not convert")
	}
}

func TestSnapTapNeutralPreventionWindow(t *testing.T) {
	st := NewSnapTap(DefaultSnapTapConfig())
	now := time.Now()

	st.ProcessKeyEvent("w", true, now)
	if st.NeutralPreventionActive("w", now.Add(time.Millisecond)) {
		t.Error("single key must not open a prevention window")
	}

	st.ProcessKeyEvent("s", true, now.Add(2*time.Millisecond))
	if !st.NeutralPreventionActive("w", now.Add(10*time.Millisecond)) {
		t.Error("both keys of a pair held should open the window")
	}
	if st.NeutralPreventionActive("w", now.Add(time.Second)) {
		t.Error("window must expire")
	}
}

func TestSnapTapExclusivityProperty(t *testing.T) {
	// For any press/release interleaving of an opposite pair inside the
	// window, the pair never reads as fully neutral while one physical
	// key is still down.
	st := NewSnapTap(DefaultSnapTapConfig())
	now := time.Now()

	events := []struct {
		key     string
		pressed bool
	}{
		{"a", true}, {"d", true}, {"a", false}, {"a", true}, {"d", true}, {"d", false},
	}

	held := map[string]bool{}
	for i, ev := range events {
		st.ProcessKeyEvent(ev.key, ev.pressed, now.Add(time.Duration(i)*time.Millisecond))
		held[ev.key] = ev.pressed

		if held["a"] || held["d"] {
			if !st.IsActive("a") && !st.IsActive("d") {
				t.Fatalf("after event %d the pair reads neutral with a key down", i)
			}
		}
	}
}

func TestSnapTapDisabled(t *testing.T) {
	cfg := DefaultSnapTapConfig()
	cfg.Enabled = false
	st := NewSnapTap(cfg)
	now := time.Now()

	st.ProcessKeyEvent("a", true, now)
	if st.IsActive("a") {
		t.Error("disabled snap tap must not track keys")
	}
}

func TestSnapTapReset(t *testing.T) {
	st := NewSnapTap(DefaultSnapTapConfig())
	now := time.Now()

	st.ProcessKeyEvent("a", true, now)
	st.ProcessKeyEvent("d", true, now.Add(time.Millisecond))
	st.Reset()

	if len(st.ActiveKeys()) != 0 {
		t.Error("ActiveKeys should be empty after Reset")
	}
	if st.NeutralPreventionActive("a", now.Add(2*time.Millisecond)) {
		t.Error("prevention windows should be cleared by Reset")
	}
}
