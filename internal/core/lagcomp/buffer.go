package lagcomp

import "sort"

// Sample is one timestamped value. Timestamps are milliseconds on the
// authoritative timeline.
type Sample[V Value[V]] struct {
	Timestamp float64
	Value     V
}

// Buffer keeps samples ordered by strictly increasing timestamp.
// It is not safe for concurrent use; the owning tick goroutine is its only writer.
type Buffer[V Value[V]] struct {
	samples []Sample[V]
}

// NewBuffer creates an empty buffer.
func NewBuffer[V Value[V]]() *Buffer[V] {
	return &Buffer[V]{samples: make([]Sample[V], 0, 4)}
}

// Insert places the sample at its sorted position. A sample with an already
// present timestamp replaces the stored one.
func (b *Buffer[V]) Insert(timestamp float64, value V) {
	i := sort.Search(len(b.samples), func(i int) bool {
		return b.samples[i].Timestamp >= timestamp
	})

	if i < len(b.samples) && b.samples[i].Timestamp == timestamp {
		b.samples[i].Value = value
		return
	}

	b.samples = append(b.samples, Sample[V]{})
	copy(b.samples[i+1:], b.samples[i:])
	b.samples[i] = Sample[V]{Timestamp: timestamp, Value: value}
}

// EvictBefore drops the oldest sample while more than two remain and the
// second oldest is not newer than renderTime. Returns the number of dropped samples.
func (b *Buffer[V]) EvictBefore(renderTime float64) int {
	n := 0
	for len(b.samples)-n > 2 && b.samples[n+1].Timestamp <= renderTime {
		n++
	}
	if n == 0 {
		return 0
	}

	remaining := copy(b.samples, b.samples[n:])
	clear(b.samples[remaining:])
	b.samples = b.samples[:remaining]
	return n
}

// KeepNewest drops everything but the newest n samples.
func (b *Buffer[V]) KeepNewest(n int) {
	drop := len(b.samples) - n
	if n < 0 || drop <= 0 {
		return
	}
	remaining := copy(b.samples, b.samples[drop:])
	clear(b.samples[remaining:])
	b.samples = b.samples[:remaining]
}

// Len returns the number of buffered samples.
func (b *Buffer[V]) Len() int {
	return len(b.samples)
}

// Oldest returns the first sample.
func (b *Buffer[V]) Oldest() (Sample[V], bool) {
	if len(b.samples) == 0 {
		return Sample[V]{}, false
	}
	return b.samples[0], true
}

// Newest returns the last sample.
func (b *Buffer[V]) Newest() (Sample[V], bool) {
	if len(b.samples) == 0 {
		return Sample[V]{}, false
	}
	return b.samples[len(b.samples)-1], true
}

// Bracket returns the two oldest samples, the pair used for blending after eviction.
func (b *Buffer[V]) Bracket() (from, to Sample[V], ok bool) {
	if len(b.samples) < 2 {
		return Sample[V]{}, Sample[V]{}, false
	}
	return b.samples[0], b.samples[1], true
}

// Samples returns a copy of the buffered samples.
func (b *Buffer[V]) Samples() []Sample[V] {
	out := make([]Sample[V], len(b.samples))
	copy(out, b.samples)
	return out
}

// Clear drops every sample.
func (b *Buffer[V]) Clear() {
	clear(b.samples)
	b.samples = b.samples[:0]
}
