package key

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A", "a"},
		{"  W ", "w"},
		{"Esc", "escape"},
		{"Return", "enter"},
		{"Control", "ctrl"},
		{" ", "space"},
		{"ArrowLeft", "left"},
		{"PgDn", "pagedown"},
		{"f5", "f5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateReleased, "released"},
		{StatePressed, "pressed"},
		{StateHeld, "held"},
		{StateBlocked, "blocked"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommonHasNoDuplicates(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range Common() {
		if seen[k] {
			t.Errorf("duplicate key %q in Common()", k)
		}
		seen[k] = true
	}
}

func TestDefaultOppositePairsSymmetric(t *testing.T) {
	pairs := DefaultOppositePairs()
	for k, opp := range pairs {
		if pairs[opp] != k {
			t.Errorf("pair %q -> %q is not symmetric", k, opp)
		}
	}
}

func TestIsModifier(t *testing.T) {
	if !IsModifier("Shift") {
		t.Error("IsModifier(Shift) = false, want true")
	}
	if IsModifier("a") {
		t.Error("IsModifier(a) = true, want false")
	}
}
