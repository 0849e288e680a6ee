package config

import (
	"fmt"
	"sort"
)

// Preset returns a named genre tuning. Presets start from the default
// profile and shift the knobs the genre cares about.
func Preset(name string) (*Profile, error) {
	switch name {
	case "default", "custom":
		return DefaultProfile(), nil
	case "fps":
		return fpsPreset(), nil
	case "moba":
		return mobaPreset(), nil
	case "rts":
		return rtsPreset(), nil
	case "mmo":
		return mmoPreset(), nil
	case "fighting":
		return fightingPreset(), nil
	default:
		return nil, fmt.Errorf("unknown preset %q (have %v)", name, PresetNames())
	}
}

// PresetNames lists the available presets, sorted.
func PresetNames() []string {
	names := []string{"default", "fps", "moba", "rts", "mmo", "fighting", "custom"}
	sort.Strings(names)
	return names
}

// fpsPreset favors instant counter-strafing: aggressive rapid trigger,
// snap tap on, no turbo.
func fpsPreset() *Profile {
	p := DefaultProfile()
	p.Name = "fps"
	p.Description = "Shooters: fast re-triggers and strafe exclusivity"

	p.RapidTrigger.ThresholdMs = 8
	p.RapidTrigger.ResetDelayMs = 3
	p.SnapTap.Enabled = true
	p.SnapTap.NeutralPreventionMs = 60
	p.Turbo.Enabled = false
	p.Actuation.ActuationPoint = 0.4
	return p
}

// mobaPreset keeps presses deliberate: no snap tap, moderate turbo for
// repeated ability casts.
func mobaPreset() *Profile {
	p := DefaultProfile()
	p.Name = "moba"
	p.Description = "MOBAs: deliberate casts with ability repeat"

	p.SnapTap.Enabled = false
	p.Turbo.Enabled = true
	p.Turbo.RepeatRateMs = 100
	p.Turbo.InitialDelayMs = 400
	p.Adaptive.LearningRate = 0.05
	return p
}

// rtsPreset maximizes rollover and combination awareness for control
// group spam.
func rtsPreset() *Profile {
	p := DefaultProfile()
	p.Name = "rts"
	p.Description = "RTS: unlimited rollover and hotkey combinations"

	p.Ghosting.MaxKeys = 0
	p.Ghosting.CombinationDetection = true
	p.RapidTrigger.ThresholdMs = 15
	p.SnapTap.Enabled = false
	p.Turbo.Enabled = false
	return p
}

// fightingPreset tunes for combo execution: the fastest re-triggers,
// sensitive actuation, and pattern learning turned up.
func fightingPreset() *Profile {
	p := DefaultProfile()
	p.Name = "fighting"
	p.Description = "Fighting games: instant re-triggers for combo strings"

	p.RapidTrigger.ThresholdMs = 6
	p.RapidTrigger.ResetDelayMs = 2
	p.SnapTap.Enabled = false
	p.Turbo.Enabled = false
	p.Adaptive.LearningRate = 0.15
	p.Actuation.ActuationPoint = 0.35
	return p
}

// mmoPreset leans on turbo for rotation keys and damps twitch response.
func mmoPreset() *Profile {
	p := DefaultProfile()
	p.Name = "mmo"
	p.Description = "MMOs: rotation auto-repeat with relaxed timings"

	p.Turbo.Enabled = true
	p.Turbo.RepeatRateMs = 150
	p.Turbo.InitialDelayMs = 600
	p.RapidTrigger.Enabled = false
	p.Actuation.ActuationPoint = 0.6
	return p
}
