package lagcomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timestamps[V Value[V]](b *Buffer[V]) []float64 {
	var out []float64
	for _, s := range b.Samples() {
		out = append(out, s.Timestamp)
	}
	return out
}

func TestBufferInsertKeepsOrder(t *testing.T) {
	b := NewBuffer[Scalar]()
	for _, ts := range []float64{30, 10, 20, 50, 40} {
		b.Insert(ts, Scalar(ts))
	}
	assert.Equal(t, []float64{10, 20, 30, 40, 50}, timestamps(b))
}

func TestBufferInsertOverwritesEqualTimestamp(t *testing.T) {
	b := NewBuffer[Scalar]()
	b.Insert(50, 5)
	b.Insert(50, 7)

	require.Equal(t, 1, b.Len())
	newest, ok := b.Newest()
	require.True(t, ok)
	assert.Equal(t, Sample[Scalar]{Timestamp: 50, Value: 7}, newest)
}

func TestBufferEvictBeforeKeepsBracket(t *testing.T) {
	b := NewBuffer[Scalar]()
	for _, ts := range []float64{0, 100, 200, 300} {
		b.Insert(ts, Scalar(ts))
	}

	assert.Equal(t, 0, b.EvictBefore(50))
	assert.Equal(t, 1, b.EvictBefore(100))
	assert.Equal(t, []float64{100, 200, 300}, timestamps(b))

	// never below two samples, however late the render time
	assert.Equal(t, 1, b.EvictBefore(10_000))
	assert.Equal(t, []float64{200, 300}, timestamps(b))
	assert.Equal(t, 0, b.EvictBefore(10_000))
}

func TestBufferKeepNewest(t *testing.T) {
	b := NewBuffer[Scalar]()
	for ts := 0.0; ts < 10; ts++ {
		b.Insert(ts, Scalar(ts))
	}
	b.KeepNewest(2)
	assert.Equal(t, []float64{8, 9}, timestamps(b))

	b.KeepNewest(5)
	assert.Equal(t, 2, b.Len())
}

func TestBufferAccessorsOnEmpty(t *testing.T) {
	b := NewBuffer[Vec2]()

	_, ok := b.Oldest()
	assert.False(t, ok)
	_, ok = b.Newest()
	assert.False(t, ok)
	_, _, ok = b.Bracket()
	assert.False(t, ok)
	assert.Equal(t, 0, b.EvictBefore(100))
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer[Scalar]()
	b.Insert(1, 1)
	b.Insert(2, 2)
	b.Clear()

	assert.Equal(t, 0, b.Len())
	b.Insert(3, 3)
	assert.Equal(t, []float64{3}, timestamps(b))
}

func TestBufferSamplesIsACopy(t *testing.T) {
	b := NewBuffer[Scalar]()
	b.Insert(1, 1)

	samples := b.Samples()
	samples[0].Value = 99

	oldest, _ := b.Oldest()
	assert.Equal(t, Scalar(1), oldest.Value)
}
