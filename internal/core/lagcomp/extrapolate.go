package lagcomp

// Extrapolate projects past the newest sample. The factor is measured against
// the whole [from, to] span and applied twice: once to build the projected
// target and once to blend toward it, so the result is
// to + (to - from) * factor². A zero-length span yields the newer value.
func Extrapolate[V Value[V]](from, to Sample[V], renderTime float64) V {
	span := to.Timestamp - from.Timestamp
	if span == 0 {
		return to.Value
	}

	factor := (renderTime - from.Timestamp) / span
	delta := to.Value.Sub(from.Value)
	projected := to.Value.Add(delta.Scale(factor))

	return to.Value.Add(projected.Sub(to.Value).Scale(factor))
}
