package conditioner

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks conditioning pipeline performance.
type Metrics struct {
	// Event counters
	eventsTotal     atomic.Uint64
	pressesTotal    atomic.Uint64
	releasesTotal   atomic.Uint64
	blockedTotal    atomic.Uint64
	emergencyResets atomic.Uint64

	// Latency tracking
	mu                sync.RWMutex
	latencies         []time.Duration
	maxLatencySamples int
	latencyIdx        int

	// Peak latency (all time)
	peakLatency atomic.Int64

	startTime time.Time

	enabled atomic.Bool
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		latencies:         make([]time.Duration, 1000),
		maxLatencySamples: 1000,
		startTime:         time.Now(),
	}
	m.enabled.Store(true)
	return m
}

// SetEnabled enables or disables metrics collection.
func (m *Metrics) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// IsEnabled returns whether metrics collection is enabled.
func (m *Metrics) IsEnabled() bool {
	return m.enabled.Load()
}

// RecordEvent records one conditioned event with its processing time
// and outcome.
func (m *Metrics) RecordEvent(pressed, admitted bool, latency time.Duration) {
	if !m.enabled.Load() {
		return
	}

	m.eventsTotal.Add(1)
	if pressed {
		m.pressesTotal.Add(1)
	} else {
		m.releasesTotal.Add(1)
	}
	if !admitted {
		m.blockedTotal.Add(1)
	}

	latencyNs := latency.Nanoseconds()
	for {
		current := m.peakLatency.Load()
		if latencyNs <= current {
			break
		}
		if m.peakLatency.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	m.mu.Lock()
	m.latencies[m.latencyIdx] = latency
	m.latencyIdx = (m.latencyIdx + 1) % m.maxLatencySamples
	m.mu.Unlock()
}

// RecordEmergencyReset records one emergency reset.
func (m *Metrics) RecordEmergencyReset() {
	if !m.enabled.Load() {
		return
	}
	m.emergencyResets.Add(1)
}

// MetricsSnapshot holds a point-in-time view of metrics.
type MetricsSnapshot struct {
	EventsTotal     uint64
	PressesTotal    uint64
	ReleasesTotal   uint64
	BlockedTotal    uint64
	EmergencyResets uint64

	AvgLatency  time.Duration
	MaxLatency  time.Duration
	P99Latency  time.Duration
	PeakLatency time.Duration

	EventsPerSecond float64

	Uptime time.Duration
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	m.mu.RUnlock()

	count := m.eventsTotal.Load()
	uptime := time.Since(m.startTime)

	snap := MetricsSnapshot{
		EventsTotal:     count,
		PressesTotal:    m.pressesTotal.Load(),
		ReleasesTotal:   m.releasesTotal.Load(),
		BlockedTotal:    m.blockedTotal.Load(),
		EmergencyResets: m.emergencyResets.Load(),
		PeakLatency:     time.Duration(m.peakLatency.Load()),
		Uptime:          uptime,
	}

	if uptime > 0 {
		snap.EventsPerSecond = float64(count) / uptime.Seconds()
	}

	snap.AvgLatency, snap.MaxLatency, snap.P99Latency = latencyStats(latencies)
	return snap
}

// latencyStats computes average, max, and p99 over the non-zero samples.
func latencyStats(latencies []time.Duration) (avg, maxLat, p99 time.Duration) {
	valid := make([]time.Duration, 0, len(latencies))
	for _, l := range latencies {
		if l > 0 {
			valid = append(valid, l)
		}
	}
	if len(valid) == 0 {
		return 0, 0, 0
	}

	var sum time.Duration
	for _, l := range valid {
		sum += l
		if l > maxLat {
			maxLat = l
		}
	}
	avg = sum / time.Duration(len(valid))

	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })
	idx := int(float64(len(valid)) * 0.99)
	if idx >= len(valid) {
		idx = len(valid) - 1
	}
	p99 = valid[idx]

	return avg, maxLat, p99
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.eventsTotal.Store(0)
	m.pressesTotal.Store(0)
	m.releasesTotal.Store(0)
	m.blockedTotal.Store(0)
	m.emergencyResets.Store(0)
	m.peakLatency.Store(0)

	m.mu.Lock()
	m.latencies = make([]time.Duration, m.maxLatencySamples)
	m.latencyIdx = 0
	m.startTime = time.Now()
	m.mu.Unlock()
}

// EventsTotal returns the total number of events conditioned.
func (m *Metrics) EventsTotal() uint64 {
	return m.eventsTotal.Load()
}

// BlockedTotal returns the total number of suppressed events.
func (m *Metrics) BlockedTotal() uint64 {
	return m.blockedTotal.Load()
}

// HealthStatus represents the pipeline's current health.
type HealthStatus struct {
	Healthy          bool
	BlockedRatio     float64
	PeakLatency      time.Duration
	LatencyThreshold time.Duration
	Message          string
}

// HealthCheck evaluates the pipeline against a latency budget. A high
// blocked ratio usually means a misconfigured matrix or rollover limit.
func (m *Metrics) HealthCheck(latencyThreshold time.Duration) HealthStatus {
	status := HealthStatus{
		Healthy:          true,
		PeakLatency:      time.Duration(m.peakLatency.Load()),
		LatencyThreshold: latencyThreshold,
	}

	total := m.eventsTotal.Load()
	if total > 0 {
		status.BlockedRatio = float64(m.blockedTotal.Load()) / float64(total)
	}

	switch {
	case status.PeakLatency > latencyThreshold:
		status.Healthy = false
		status.Message = "latency threshold exceeded"
	case total >= 100 && status.BlockedRatio > 0.5:
		status.Healthy = false
		status.Message = "excessive event suppression"
	default:
		status.Message = "healthy"
	}

	return status
}

// Timer helps measure event conditioning duration.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// StartEventTimer starts a timer for one event.
func (m *Metrics) StartEventTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// Stop stops the timer and records the event.
func (t *Timer) Stop(pressed, admitted bool) time.Duration {
	elapsed := time.Since(t.start)
	t.metrics.RecordEvent(pressed, admitted, elapsed)
	return elapsed
}
