package search

// Partition splits r into at most workers contiguous, non-overlapping slices that
// together cover r exactly. Slices are ceil(len/workers) wide, the last one may
// be shorter, and empty slices are never returned.
func Partition(r Range, workers int) []Range {
	n := r.Len()
	if n == 0 || workers < 1 {
		return nil
	}
	chunk := (n + workers - 1) / workers
	parts := make([]Range, 0, workers)
	for start := r.Start; start <= r.End; start += chunk {
		parts = append(parts, Range{Start: start, End: min(start+chunk-1, r.End)})
	}
	return parts
}
