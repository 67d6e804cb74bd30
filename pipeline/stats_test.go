package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsTickAverage(t *testing.T) {
	s := NewStats()
	s.observeTick(10 * time.Millisecond)
	m := s.Snapshot()
	assert.Equal(t, int64(1), m.Ticks)
	assert.Equal(t, 10*time.Millisecond, m.AvgTickTime)

	s.observeTick(20 * time.Millisecond)
	m = s.Snapshot()
	assert.Equal(t, 11*time.Millisecond, m.AvgTickTime)
	assert.Equal(t, 20*time.Millisecond, m.PeakTickTime)

	s.published.Add(3)
	s.Reset()
	assert.Equal(t, Metrics{}, s.Snapshot())
}

func TestStatsDetailedLogging(t *testing.T) {
	s := NewStats()
	assert.False(t, s.IsDetailedLoggingEnabled())
	s.EnableDetailedLogging(true)
	assert.True(t, s.IsDetailedLoggingEnabled())
}
