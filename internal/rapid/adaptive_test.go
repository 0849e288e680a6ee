package rapid

import (
	"testing"
	"time"
)

// feedPattern plays press/release pairs with the given press-to-press
// interval and hold duration, returning the last multiplier seen.
func feedPattern(a *Adaptive, name string, start time.Time, interval, hold time.Duration, pairs int) float64 {
	var mult float64 = 1.0
	ts := start
	for i := 0; i < pairs; i++ {
		mult = a.ProcessKeyEvent(name, true, ts)
		mult = a.ProcessKeyEvent(name, false, ts.Add(hold))
		ts = ts.Add(interval)
	}
	return mult
}

func testAdaptiveConfig() AdaptiveConfig {
	cfg := DefaultAdaptiveConfig()
	// A bigger step keeps adjustments clear of the commit threshold.
	cfg.LearningRate = 0.2
	return cfg
}

func TestAdaptiveDisabled(t *testing.T) {
	cfg := testAdaptiveConfig()
	cfg.Enabled = false
	a := NewAdaptive(cfg)

	if got := feedPattern(a, "a", time.Now(), 20*time.Millisecond, 5*time.Millisecond, 20); got != 1.0 {
		t.Errorf("disabled multiplier = %f, want 1.0", got)
	}
}

func TestAdaptiveRapidTappingBoostsResponse(t *testing.T) {
	a := NewAdaptive(testAdaptiveConfig())

	// 20ms between presses is inside the fast-tapping band.
	mult := feedPattern(a, "a", time.Now(), 20*time.Millisecond, 5*time.Millisecond, 30)
	if mult <= 1.0 {
		t.Errorf("multiplier = %f after rapid tapping, want > 1.0", mult)
	}
}

func TestAdaptiveSlowPressesDampResponse(t *testing.T) {
	a := NewAdaptive(testAdaptiveConfig())

	// 700ms between presses is inside the deliberate band.
	mult := feedPattern(a, "a", time.Now(), 700*time.Millisecond, 100*time.Millisecond, 30)
	if mult >= 1.0 {
		t.Errorf("multiplier = %f after slow presses, want < 1.0", mult)
	}
}

func TestAdaptiveMultiplierBounds(t *testing.T) {
	cfg := testAdaptiveConfig()
	a := NewAdaptive(cfg)
	now := time.Now()

	fast := feedPattern(a, "fast", now, 10*time.Millisecond, 2*time.Millisecond, 200)
	if fast > cfg.MaxMultiplier {
		t.Errorf("multiplier = %f exceeds max %f", fast, cfg.MaxMultiplier)
	}

	slow := feedPattern(a, "slow", now, time.Second, 100*time.Millisecond, 200)
	if slow < cfg.MinMultiplier {
		t.Errorf("multiplier = %f below min %f", slow, cfg.MinMultiplier)
	}
}

func TestAdaptiveTooFewSamplesNeutral(t *testing.T) {
	a := NewAdaptive(testAdaptiveConfig())
	now := time.Now()

	// Two events are below the learning minimum.
	a.ProcessKeyEvent("a", true, now)
	mult := a.ProcessKeyEvent("a", false, now.Add(5*time.Millisecond))
	if mult != 1.0 {
		t.Errorf("multiplier = %f with too few samples, want 1.0", mult)
	}
}

func TestAdaptiveHistoryBounded(t *testing.T) {
	cfg := testAdaptiveConfig()
	cfg.HistorySize = 40
	a := NewAdaptive(cfg)

	feedPattern(a, "a", time.Now(), 20*time.Millisecond, 5*time.Millisecond, 100)

	stats, ok := a.Stats("a")
	if !ok {
		t.Fatal("stats missing for tracked key")
	}
	if stats.SampleCount > 40 {
		t.Errorf("history size = %d, want <= 40", stats.SampleCount)
	}
}

func TestAdaptiveStats(t *testing.T) {
	a := NewAdaptive(testAdaptiveConfig())

	if _, ok := a.Stats("a"); ok {
		t.Error("unknown key should have no stats")
	}

	feedPattern(a, "a", time.Now(), 20*time.Millisecond, 5*time.Millisecond, 30)

	stats, ok := a.Stats("a")
	if !ok {
		t.Fatal("stats missing after events")
	}
	if stats.Adaptations == 0 {
		t.Error("a clear pattern should have committed adaptations")
	}
	if stats.AvgInterval <= 0 || stats.AvgHold <= 0 {
		t.Errorf("averages = (%v, %v), want positive", stats.AvgInterval, stats.AvgHold)
	}
	if stats.LastAdapted.IsZero() {
		t.Error("last adaptation time should be set")
	}
}

func TestAdaptiveMultiplierGetter(t *testing.T) {
	a := NewAdaptive(testAdaptiveConfig())

	if got := a.Multiplier("unknown"); got != 1.0 {
		t.Errorf("unknown key multiplier = %f, want 1.0", got)
	}

	feedPattern(a, "a", time.Now(), 20*time.Millisecond, 5*time.Millisecond, 30)
	if got := a.Multiplier("a"); got <= 1.0 {
		t.Errorf("multiplier = %f, want boosted", got)
	}
}

func TestAdaptiveReset(t *testing.T) {
	a := NewAdaptive(testAdaptiveConfig())
	feedPattern(a, "a", time.Now(), 20*time.Millisecond, 5*time.Millisecond, 30)

	a.Reset()
	if got := a.Multiplier("a"); got != 1.0 {
		t.Errorf("multiplier after Reset = %f, want 1.0", got)
	}
}
