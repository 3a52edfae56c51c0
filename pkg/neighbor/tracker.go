package neighbor

import "time"

// seriesTracker accumulates down-count and total-downtime for one sampled
// boolean series (LACP bundled, BGPv4 established, BGPv6 established).
type seriesTracker struct {
	started    bool
	up         bool
	lastChange time.Time
	downCount  int
	totalDown  time.Duration
}

func (t *seriesTracker) update(isUp bool, now time.Time) {
	if !t.started {
		t.started = true
		t.up = isUp
		t.lastChange = now
		if !isUp {
			t.downCount++
		}
		return
	}
	if isUp == t.up {
		return
	}
	if !t.up {
		t.totalDown += now.Sub(t.lastChange)
	}
	if !isUp {
		t.downCount++
	}
	t.up = isUp
	t.lastChange = now
}

func (t *seriesTracker) finalize(now time.Time) SeriesStatus {
	total := t.totalDown
	if t.started && !t.up {
		total += now.Sub(t.lastChange)
	}
	return SeriesStatus{DownCount: t.downCount, TotalDown: total}
}
