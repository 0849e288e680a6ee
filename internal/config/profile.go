// Package config defines tuning profiles for the conditioning pipeline,
// TOML persistence for them, and live reload via file watching.
//
// Durations are stored in milliseconds so profiles stay readable and
// hand-editable; Conditioner() converts to the engines' native types.
package config

import (
	"fmt"
	"time"

	"github.com/dshills/keyrush/internal/conditioner"
	"github.com/dshills/keyrush/internal/ghosting"
	"github.com/dshills/keyrush/internal/input/key"
	"github.com/dshills/keyrush/internal/rapid"
)

// Profile is one named, serializable pipeline tuning.
type Profile struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`

	Ghosting     GhostingSection     `toml:"ghosting"`
	RapidTrigger RapidTriggerSection `toml:"rapid_trigger"`
	SnapTap      SnapTapSection      `toml:"snap_tap"`
	Turbo        TurboSection        `toml:"turbo"`
	Adaptive     AdaptiveSection     `toml:"adaptive"`
	Actuation    ActuationSection    `toml:"actuation"`
}

// GhostingSection tunes the anti-ghosting engine.
type GhostingSection struct {
	EnableNKRO           bool `toml:"enable_nkro"`
	MaxKeys              int  `toml:"max_keys"`
	Rows                 int  `toml:"rows"`
	Cols                 int  `toml:"cols"`
	GhostingPrevention   bool `toml:"ghosting_prevention"`
	CombinationDetection bool `toml:"combination_detection"`
}

// RapidTriggerSection tunes rapid trigger.
type RapidTriggerSection struct {
	Enabled            bool    `toml:"enabled"`
	ThresholdMs        int64   `toml:"threshold_ms"`
	ResetDelayMs       int64   `toml:"reset_delay_ms"`
	MinPressDurationMs int64   `toml:"min_press_duration_ms"`
	MaxPressDurationMs int64   `toml:"max_press_duration_ms"`
	VelocitySmoothing  float64 `toml:"velocity_smoothing"`
}

// SnapTapSection tunes snap tap.
type SnapTapSection struct {
	Enabled             bool              `toml:"enabled"`
	OppositePairs       map[string]string `toml:"opposite_pairs"`
	NeutralPreventionMs int64             `toml:"neutral_prevention_ms"`
	OverlapToleranceMs  int64             `toml:"overlap_tolerance_ms"`
}

// TurboSection tunes turbo mode.
type TurboSection struct {
	Enabled        bool    `toml:"enabled"`
	RepeatRateMs   int64   `toml:"repeat_rate_ms"`
	InitialDelayMs int64   `toml:"initial_delay_ms"`
	MaxRepeats     int     `toml:"max_repeats"`
	Acceleration   float64 `toml:"acceleration"`
}

// AdaptiveSection tunes adaptive response.
type AdaptiveSection struct {
	Enabled             bool    `toml:"enabled"`
	LearningRate        float64 `toml:"learning_rate"`
	HistorySize         int     `toml:"history_size"`
	AdaptationThreshold float64 `toml:"adaptation_threshold"`
	MinMultiplier       float64 `toml:"min_multiplier"`
	MaxMultiplier       float64 `toml:"max_multiplier"`
}

// ActuationSection tunes actuation emulation.
type ActuationSection struct {
	Enabled        bool    `toml:"enabled"`
	ActuationPoint float64 `toml:"actuation_point"`
	LinearCurve    bool    `toml:"linear_curve"`
	Hysteresis     float64 `toml:"hysteresis"`
}

// DefaultProfile returns the stock tuning as a profile.
func DefaultProfile() *Profile {
	g := ghosting.DefaultConfig()
	r := rapid.DefaultConfig()

	return &Profile{
		Name:        "default",
		Description: "Balanced defaults for general use",
		Ghosting: GhostingSection{
			EnableNKRO:           g.EnableNKRO,
			MaxKeys:              g.MaxKeys,
			Rows:                 g.Rows,
			Cols:                 g.Cols,
			GhostingPrevention:   g.GhostingPrevention,
			CombinationDetection: g.CombinationDetection,
		},
		RapidTrigger: RapidTriggerSection{
			Enabled:            r.Trigger.Enabled,
			ThresholdMs:        r.Trigger.Threshold.Milliseconds(),
			ResetDelayMs:       r.Trigger.ResetDelay.Milliseconds(),
			MinPressDurationMs: r.Trigger.MinPressDuration.Milliseconds(),
			MaxPressDurationMs: r.Trigger.MaxPressDuration.Milliseconds(),
			VelocitySmoothing:  r.Trigger.VelocitySmoothing,
		},
		SnapTap: SnapTapSection{
			Enabled:             r.SnapTap.Enabled,
			OppositePairs:       key.DefaultOppositePairs(),
			NeutralPreventionMs: r.SnapTap.NeutralPrevention.Milliseconds(),
			OverlapToleranceMs:  r.SnapTap.OverlapTolerance.Milliseconds(),
		},
		Turbo: TurboSection{
			Enabled:        r.Turbo.Enabled,
			RepeatRateMs:   r.Turbo.RepeatRate.Milliseconds(),
			InitialDelayMs: r.Turbo.InitialDelay.Milliseconds(),
			MaxRepeats:     r.Turbo.MaxRepeats,
			Acceleration:   r.Turbo.Acceleration,
		},
		Adaptive: AdaptiveSection{
			Enabled:             r.Adaptive.Enabled,
			LearningRate:        r.Adaptive.LearningRate,
			HistorySize:         r.Adaptive.HistorySize,
			AdaptationThreshold: r.Adaptive.AdaptationThreshold,
			MinMultiplier:       r.Adaptive.MinMultiplier,
			MaxMultiplier:       r.Adaptive.MaxMultiplier,
		},
		Actuation: ActuationSection{
			Enabled:        r.Actuation.Enabled,
			ActuationPoint: r.Actuation.ActuationPoint,
			LinearCurve:    r.Actuation.LinearCurve,
			Hysteresis:     r.Actuation.Hysteresis,
		},
	}
}

// Validate checks the profile for values the engines cannot accept.
func (p *Profile) Validate() error {
	if p.Ghosting.MaxKeys < 0 {
		return fmt.Errorf("ghosting.max_keys must be >= 0, got %d", p.Ghosting.MaxKeys)
	}
	if p.Ghosting.Rows < 0 || p.Ghosting.Cols < 0 {
		return fmt.Errorf("ghosting matrix %dx%d must not be negative", p.Ghosting.Rows, p.Ghosting.Cols)
	}

	if p.RapidTrigger.ThresholdMs < 0 || p.RapidTrigger.ResetDelayMs < 0 {
		return fmt.Errorf("rapid_trigger timings must not be negative")
	}
	if p.RapidTrigger.MinPressDurationMs > p.RapidTrigger.MaxPressDurationMs {
		return fmt.Errorf("rapid_trigger.min_press_duration_ms %d exceeds max %d",
			p.RapidTrigger.MinPressDurationMs, p.RapidTrigger.MaxPressDurationMs)
	}
	if s := p.RapidTrigger.VelocitySmoothing; s < 0 || s >= 1 {
		return fmt.Errorf("rapid_trigger.velocity_smoothing must be in [0, 1), got %f", s)
	}

	for a, b := range p.SnapTap.OppositePairs {
		if p.SnapTap.OppositePairs[b] != a {
			return fmt.Errorf("snap_tap.opposite_pairs: %q -> %q is not symmetric", a, b)
		}
	}
	if p.SnapTap.NeutralPreventionMs < 0 {
		return fmt.Errorf("snap_tap.neutral_prevention_ms must not be negative")
	}

	if p.Turbo.RepeatRateMs <= 0 {
		return fmt.Errorf("turbo.repeat_rate_ms must be positive, got %d", p.Turbo.RepeatRateMs)
	}
	if p.Turbo.InitialDelayMs < 0 || p.Turbo.MaxRepeats < 0 {
		return fmt.Errorf("turbo delay and repeat cap must not be negative")
	}
	if p.Turbo.Acceleration <= 0 {
		return fmt.Errorf("turbo.acceleration must be positive, got %f", p.Turbo.Acceleration)
	}

	if lr := p.Adaptive.LearningRate; lr < 0 || lr > 1 {
		return fmt.Errorf("adaptive.learning_rate must be in [0, 1], got %f", lr)
	}
	if p.Adaptive.HistorySize <= 0 {
		return fmt.Errorf("adaptive.history_size must be positive, got %d", p.Adaptive.HistorySize)
	}
	if p.Adaptive.MinMultiplier <= 0 || p.Adaptive.MinMultiplier > p.Adaptive.MaxMultiplier {
		return fmt.Errorf("adaptive multiplier bounds [%f, %f] are invalid",
			p.Adaptive.MinMultiplier, p.Adaptive.MaxMultiplier)
	}

	if ap := p.Actuation.ActuationPoint; ap < 0 || ap > 1 {
		return fmt.Errorf("actuation.actuation_point must be in [0, 1], got %f", ap)
	}
	if h := p.Actuation.Hysteresis; h < 0 || h > 1 {
		return fmt.Errorf("actuation.hysteresis must be in [0, 1], got %f", h)
	}

	return nil
}

// Conditioner converts the profile to the pipeline's native config.
func (p *Profile) Conditioner() conditioner.Config {
	return conditioner.Config{
		Ghosting: ghosting.Config{
			EnableNKRO:           p.Ghosting.EnableNKRO,
			MaxKeys:              p.Ghosting.MaxKeys,
			Rows:                 p.Ghosting.Rows,
			Cols:                 p.Ghosting.Cols,
			GhostingPrevention:   p.Ghosting.GhostingPrevention,
			CombinationDetection: p.Ghosting.CombinationDetection,
		},
		Rapid: rapid.Config{
			Trigger: rapid.TriggerConfig{
				Enabled:           p.RapidTrigger.Enabled,
				Threshold:         time.Duration(p.RapidTrigger.ThresholdMs) * time.Millisecond,
				ResetDelay:        time.Duration(p.RapidTrigger.ResetDelayMs) * time.Millisecond,
				MinPressDuration:  time.Duration(p.RapidTrigger.MinPressDurationMs) * time.Millisecond,
				MaxPressDuration:  time.Duration(p.RapidTrigger.MaxPressDurationMs) * time.Millisecond,
				VelocitySmoothing: p.RapidTrigger.VelocitySmoothing,
			},
			SnapTap: rapid.SnapTapConfig{
				Enabled:           p.SnapTap.Enabled,
				OppositePairs:     p.SnapTap.OppositePairs,
				NeutralPrevention: time.Duration(p.SnapTap.NeutralPreventionMs) * time.Millisecond,
				OverlapTolerance:  time.Duration(p.SnapTap.OverlapToleranceMs) * time.Millisecond,
			},
			Turbo: rapid.TurboConfig{
				Enabled:      p.Turbo.Enabled,
				RepeatRate:   time.Duration(p.Turbo.RepeatRateMs) * time.Millisecond,
				InitialDelay: time.Duration(p.Turbo.InitialDelayMs) * time.Millisecond,
				MaxRepeats:   p.Turbo.MaxRepeats,
				Acceleration: p.Turbo.Acceleration,
			},
			Adaptive: rapid.AdaptiveConfig{
				Enabled:             p.Adaptive.Enabled,
				LearningRate:        p.Adaptive.LearningRate,
				HistorySize:         p.Adaptive.HistorySize,
				AdaptationThreshold: p.Adaptive.AdaptationThreshold,
				MinMultiplier:       p.Adaptive.MinMultiplier,
				MaxMultiplier:       p.Adaptive.MaxMultiplier,
			},
			Actuation: rapid.ActuationConfig{
				Enabled:        p.Actuation.Enabled,
				ActuationPoint: p.Actuation.ActuationPoint,
				LinearCurve:    p.Actuation.LinearCurve,
				Hysteresis:     p.Actuation.Hysteresis,
			},
		},
	}
}
