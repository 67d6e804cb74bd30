package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Stats collects render loop counters.
//
// Counters are updated lock-free from the loop goroutine and may be read
// from any goroutine through Snapshot.
type Stats struct {
	ticks          atomic.Int64
	published      atomic.Int64
	skipped        atomic.Int64
	backpressure   atomic.Int64
	notReady       atomic.Int64
	filterFaults   atomic.Int64
	classifyFaults atomic.Int64
	staleResults   atomic.Int64
	modeChanges    atomic.Int64

	detailedLogging atomic.Bool

	metricsLock sync.RWMutex
	avgTickTime time.Duration
	peakTick    time.Duration
}

// Metrics is a point-in-time copy of Stats.
type Metrics struct {
	Ticks          int64         `json:"ticks"`
	Published      int64         `json:"published"`
	Skipped        int64         `json:"skipped"`
	Backpressure   int64         `json:"backpressure"`
	NotReady       int64         `json:"not_ready"`
	FilterFaults   int64         `json:"filter_faults"`
	ClassifyFaults int64         `json:"classify_faults"`
	StaleResults   int64         `json:"stale_results"`
	ModeChanges    int64         `json:"mode_changes"`
	AvgTickTime    time.Duration `json:"avg_tick_ns"`
	PeakTickTime   time.Duration `json:"peak_tick_ns"`

	// CompositeFallbacks is filled in by Loop.Metrics.
	CompositeFallbacks uint64 `json:"composite_fallbacks"`
}

// NewStats creates a zeroed stats collector.
func NewStats() *Stats {
	return &Stats{}
}

// EnableDetailedLogging toggles per-tick trace logging.
func (s *Stats) EnableDetailedLogging(enabled bool) {
	s.detailedLogging.Store(enabled)

	logrus.WithFields(logrus.Fields{
		"function": "EnableDetailedLogging",
		"enabled":  enabled,
	}).Info("Detailed logging configuration updated")
}

// IsDetailedLoggingEnabled returns true if detailed logging is enabled.
func (s *Stats) IsDetailedLoggingEnabled() bool {
	return s.detailedLogging.Load()
}

// observeTick records the duration of one tick.
func (s *Stats) observeTick(d time.Duration) {
	s.ticks.Add(1)

	s.metricsLock.Lock()
	defer s.metricsLock.Unlock()

	// EMA with alpha = 0.1
	if s.avgTickTime == 0 {
		s.avgTickTime = d
	} else {
		s.avgTickTime = time.Duration(float64(s.avgTickTime)*0.9 + float64(d)*0.1)
	}
	if d > s.peakTick {
		s.peakTick = d
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Metrics {
	s.metricsLock.RLock()
	defer s.metricsLock.RUnlock()

	return Metrics{
		Ticks:          s.ticks.Load(),
		Published:      s.published.Load(),
		Skipped:        s.skipped.Load(),
		Backpressure:   s.backpressure.Load(),
		NotReady:       s.notReady.Load(),
		FilterFaults:   s.filterFaults.Load(),
		ClassifyFaults: s.classifyFaults.Load(),
		StaleResults:   s.staleResults.Load(),
		ModeChanges:    s.modeChanges.Load(),
		AvgTickTime:    s.avgTickTime,
		PeakTickTime:   s.peakTick,
	}
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	for _, c := range []*atomic.Int64{
		&s.ticks, &s.published, &s.skipped, &s.backpressure, &s.notReady,
		&s.filterFaults, &s.classifyFaults, &s.staleResults, &s.modeChanges,
	} {
		c.Store(0)
	}

	s.metricsLock.Lock()
	s.avgTickTime = 0
	s.peakTick = 0
	s.metricsLock.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Stats.Reset",
	}).Debug("Pipeline metrics reset")
}
