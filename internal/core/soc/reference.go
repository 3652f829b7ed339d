package soc

// Thresholds decide when the battery counts as full or empty. Volts and amps.
type Thresholds struct {
	FullVoltage              float64
	StopChargingBelowCurrent float64
	EmptyVoltage             float64
}

// ReferencePoint combines the in-process observation of a battery extreme with
// the one recovered from history. Neither side ever moves backward.
type ReferencePoint struct {
	observed  *int64
	persisted *int64
}

func (r *ReferencePoint) Observe(t int64) {
	r.observed = later(r.observed, &t)
}

func (r *ReferencePoint) SetPersisted(t *int64) {
	r.persisted = later(r.persisted, t)
}

// Effective is the most recent of both sides, or nil if neither is known.
func (r ReferencePoint) Effective() *int64 {
	return later(r.observed, r.persisted)
}

func later(a, b *int64) *int64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		v := *b
		return &v
	case b == nil || *a >= *b:
		v := *a
		return &v
	default:
		v := *b
		return &v
	}
}

// ReferenceTracker latches the last full and last empty timestamps.
type ReferenceTracker struct {
	thresholds Thresholds
	full       ReferencePoint
	empty      ReferencePoint
}

func NewReferenceTracker(thresholds Thresholds) *ReferenceTracker {
	return &ReferenceTracker{thresholds: thresholds}
}

// Observe feeds one battery reading. Readings that are neither full nor empty
// leave both reference points unchanged.
func (t *ReferenceTracker) Observe(voltage, current float64, time int64) {
	if voltage >= t.thresholds.FullVoltage && current < t.thresholds.StopChargingBelowCurrent {
		t.full.Observe(time)
	}
	if voltage <= t.thresholds.EmptyVoltage {
		t.empty.Observe(time)
	}
}

func (t *ReferenceTracker) SetPersistedFull(time *int64) {
	t.full.SetPersisted(time)
}

func (t *ReferenceTracker) SetPersistedEmpty(time *int64) {
	t.empty.SetPersisted(time)
}

func (t *ReferenceTracker) LastFull() *int64 {
	return t.full.Effective()
}

func (t *ReferenceTracker) LastEmpty() *int64 {
	return t.empty.Effective()
}
