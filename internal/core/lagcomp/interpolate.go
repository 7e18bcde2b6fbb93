package lagcomp

// Interpolate blends linearly between two samples for a render time inside
// their span. A zero-length span yields the newer value.
func Interpolate[V Value[V]](from, to Sample[V], renderTime float64) V {
	span := to.Timestamp - from.Timestamp
	if span == 0 {
		return to.Value
	}

	factor := (renderTime - from.Timestamp) / span
	return from.Value.Add(to.Value.Sub(from.Value).Scale(factor))
}
