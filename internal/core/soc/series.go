package soc

import "math"

// PowerSample is one battery power reading.
// Positive values charge the battery, negative values discharge it.
type PowerSample struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// MergeSeries builds the power series for [from, to] out of the live buffer and
// the historical set. Both inputs must be sorted by time.
//
// Historical samples are only used before the first live sample inside the
// window, so an instant is never described by both sources. The second return
// value is false when the merge has to be deferred, either because from is
// unknown or because the historical set is not loaded yet.
func MergeSeries(from *int64, to int64, live, historical []PowerSample, historicalLoaded bool) ([]PowerSample, bool) {
	if from == nil || !historicalLoaded {
		return nil, false
	}
	start := *from

	liveFrom, liveTo := windowBounds(live, start, to)
	firstLive := int64(math.MaxInt64)
	if liveFrom < liveTo {
		firstLive = live[liveFrom].Time
	}

	merged := make([]PowerSample, 0, liveTo-liveFrom)
	for _, s := range historical {
		if s.Time > to || s.Time >= firstLive {
			break
		}
		if s.Time < start {
			continue
		}
		merged = append(merged, s)
	}
	merged = append(merged, live[liveFrom:liveTo]...)
	return merged, true
}

// windowBounds returns the index range of samples with start <= time <= to.
func windowBounds(samples []PowerSample, start, to int64) (int, int) {
	first := len(samples)
	for i, s := range samples {
		if s.Time > to {
			if first > i {
				first = i
			}
			return first, i
		}
		if s.Time >= start && first == len(samples) {
			first = i
		}
	}
	return first, len(samples)
}
