package neighbor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeriesTracker_FirstSampleDownCountsAsOutage(t *testing.T) {
	var s seriesTracker
	base := time.Now()
	s.update(false, base)

	status := s.finalize(base.Add(time.Second))
	assert.Equal(t, 1, status.DownCount)
	assert.Equal(t, time.Second, status.TotalDown)
}

func TestSeriesTracker_FirstSampleUpRecordsNoOutage(t *testing.T) {
	var s seriesTracker
	base := time.Now()
	s.update(true, base)

	status := s.finalize(base.Add(time.Second))
	assert.Equal(t, 0, status.DownCount)
	assert.Equal(t, time.Duration(0), status.TotalDown)
}

func TestSeriesTracker_CountsEachDownTransitionOnce(t *testing.T) {
	var s seriesTracker
	base := time.Now()
	s.update(true, base)
	s.update(true, base.Add(time.Millisecond))
	s.update(false, base.Add(2*time.Millisecond))
	s.update(false, base.Add(3*time.Millisecond))
	s.update(true, base.Add(13*time.Millisecond))
	s.update(false, base.Add(20*time.Millisecond))

	status := s.finalize(base.Add(25 * time.Millisecond))
	assert.Equal(t, 2, status.DownCount)
	assert.Equal(t, 16*time.Millisecond, status.TotalDown)
}

func TestSeriesTracker_FinalizeWhileStillDownAccruesOpenInterval(t *testing.T) {
	var s seriesTracker
	base := time.Now()
	s.update(true, base)
	s.update(false, base.Add(time.Millisecond))

	status := s.finalize(base.Add(11 * time.Millisecond))
	assert.Equal(t, 1, status.DownCount)
	assert.Equal(t, 10*time.Millisecond, status.TotalDown)
}
