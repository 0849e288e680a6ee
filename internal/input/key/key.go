// Package key defines the canonical key identifiers used throughout the
// conditioning pipeline.
//
// Keys are identified by short lowercase names ("a", "space", "ctrl",
// "f1"). The input hook layer is expected to normalize whatever the
// platform delivers into these names before handing events to the core.
package key

import "strings"

// State describes the logical state of a key.
type State int

const (
	// StateReleased means the key is up.
	StateReleased State = iota
	// StatePressed means the key is down.
	StatePressed
	// StateHeld means the key has been down long enough to auto-repeat.
	StateHeld
	// StateBlocked means the key was suppressed by ghosting prevention.
	StateBlocked
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReleased:
		return "released"
	case StatePressed:
		return "pressed"
	case StateHeld:
		return "held"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// aliases maps alternate spellings onto canonical names.
var aliases = map[string]string{
	"spacebar":   "space",
	"esc":        "escape",
	"return":     "enter",
	"control":    "ctrl",
	"pgup":       "pageup",
	"pgdn":       "pagedown",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
}

// Normalize lowercases a key name and resolves known aliases.
func Normalize(name string) string {
	// A bare space is a real key name, not padding.
	if name == " " {
		return "space"
	}
	n := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	return n
}

// Common returns the keys that receive a default matrix mapping, in
// mapping order. The order matters: matrix coordinates are assigned
// row-major from this list.
func Common() []string {
	return []string{
		"a", "s", "d", "f", "g", "h", "j", "k", "l",
		"q", "w", "e", "r", "t", "y", "u", "i", "o", "p",
		"z", "x", "c", "v", "b", "n", "m",
		"space", "shift", "ctrl", "alt", "tab", "enter",
		"1", "2", "3", "4", "5", "6", "7", "8", "9", "0",
		"f1", "f2", "f3", "f4", "f5", "f6",
		"f7", "f8", "f9", "f10", "f11", "f12",
	}
}

// DefaultOppositePairs returns the symmetric opposite-direction pairs
// used by snap tap when no custom pairs are configured.
func DefaultOppositePairs() map[string]string {
	return map[string]string{
		"a": "d", "d": "a",
		"w": "s", "s": "w",
		"left": "right", "right": "left",
		"up": "down", "down": "up",
	}
}

// IsModifier reports whether the key is a modifier.
func IsModifier(name string) bool {
	switch Normalize(name) {
	case "shift", "ctrl", "alt", "meta":
		return true
	}
	return false
}
