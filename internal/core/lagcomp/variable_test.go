package lagcomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/multinet/internal/core/clock"
)

type fakeTime struct {
	role   clock.Role
	server float64
	client float64
}

func (f *fakeTime) Role() clock.Role     { return f.role }
func (f *fakeTime) ServerTime() float64 { return f.server }
func (f *fakeTime) ClientTime() float64 { return f.client }

func follower(clientTime float64) *fakeTime {
	return &fakeTime{role: clock.RoleFollower, client: clientTime}
}

func TestVariableDefaultWhenEmpty(t *testing.T) {
	v := NewVariable[Scalar](follower(500), 3)

	value, mode := v.ValueWithMode()
	assert.Equal(t, Scalar(3), value)
	assert.Equal(t, ModeDefault, mode)
	assert.Equal(t, StateUninitialized, v.State())
}

func TestVariableInterpolatesAtRenderTime(t *testing.T) {
	ft := follower(80)
	v := NewVariable[Scalar](ft, 0)
	v.Update(0, 10)
	v.Update(100, 20)

	// render time 80 - 30
	assert.InDelta(t, 50.0, v.RenderTime(), 1e-12)
	value, mode := v.ValueWithMode()
	assert.Equal(t, ModeInterpolate, mode)
	assert.InDelta(t, 15.0, float64(value), 1e-12)
}

func TestVariableExtrapolatesPastNewest(t *testing.T) {
	ft := follower(150)
	v := NewVariable[Scalar](ft, 0, WithInterpolationOffset(0))
	v.Update(0, 10)
	v.Update(100, 20)

	value, mode := v.ValueWithMode()
	assert.Equal(t, ModeExtrapolate, mode)
	assert.InDelta(t, 42.5, float64(value), 1e-12)
}

func TestVariableClampsBeforeOldest(t *testing.T) {
	ft := follower(10)
	v := NewVariable[Scalar](ft, 0, WithInterpolationOffset(0))
	v.Update(100, 4)
	v.Update(200, 8)

	value, mode := v.ValueWithMode()
	assert.Equal(t, ModeClamp, mode)
	assert.Equal(t, Scalar(4), value)
}

func TestVariableHoldsSingleSample(t *testing.T) {
	ft := follower(0)
	v := NewVariable[Scalar](ft, 0, WithInterpolationOffset(0))
	v.Update(50, 5)
	v.Update(50, 7)

	require.Equal(t, []Sample[Scalar]{{Timestamp: 50, Value: 7}}, v.Samples())
	for _, clientTime := range []float64{0, 50, 1_000} {
		ft.client = clientTime
		value, mode := v.ValueWithMode()
		assert.Equal(t, ModeHold, mode)
		assert.Equal(t, Scalar(7), value)
	}
}

func TestVariableBufferStaysBounded(t *testing.T) {
	ft := follower(0)
	v := NewVariable[Scalar](ft, 0)

	// one sample every 50ms, one read every 10ms
	for step := 0; step < 10_000; step++ {
		ft.client += 10
		if step%5 == 0 {
			v.Update(ft.client, Scalar(step))
		}
		v.Value()
		require.LessOrEqual(t, v.Len(), 6, "step %d", step)
	}
}

func TestVariableAuthoritativeReturnsNewestRaw(t *testing.T) {
	ft := &fakeTime{role: clock.RoleAuthoritative}
	v := NewVariable[Scalar](ft, 0)

	for ts := 1.0; ts <= 20; ts++ {
		ft.server = ts * 10
		v.Set(Scalar(ts))
	}

	value, mode := v.ValueWithMode()
	assert.Equal(t, ModeRaw, mode)
	assert.Equal(t, Scalar(20), value)
	assert.LessOrEqual(t, v.Len(), 2)
}

func TestVariableTakePendingOnce(t *testing.T) {
	ft := &fakeTime{role: clock.RoleAuthoritative, server: 250}
	v := NewVariable[Vec2](ft, Vec2{})

	_, _, _, ok := v.TakePending()
	assert.False(t, ok)

	v.Set(Vec2{X: 1, Y: 2})
	ft.server = 260
	v.Set(Vec2{X: 3, Y: 4})

	timestamp, kind, components, ok := v.TakePending()
	require.True(t, ok)
	assert.Equal(t, 260.0, timestamp)
	assert.Equal(t, KindVec2, kind)
	assert.Equal(t, []float64{3, 4}, components)

	_, _, _, ok = v.TakePending()
	assert.False(t, ok)
}

func TestVariableFollowerHasNoPending(t *testing.T) {
	v := NewVariable[Scalar](follower(0), 0)
	v.Update(10, 1)

	_, _, _, ok := v.TakePending()
	assert.False(t, ok)
}

func TestVariableClearBuffer(t *testing.T) {
	ft := follower(100)
	v := NewVariable[Vec3](ft, Vec3{X: 9})
	v.Update(10, Vec3{X: 1})
	v.Update(20, Vec3{X: 2})
	require.Equal(t, StateBuffered, v.State())

	v.ClearBuffer()
	assert.Equal(t, StateUninitialized, v.State())
	value, mode := v.ValueWithMode()
	assert.Equal(t, ModeDefault, mode)
	assert.Equal(t, Vec3{X: 9}, value)
}

func TestVariableApplyComponents(t *testing.T) {
	v := NewVariable[Vec2](follower(0), Vec2{})

	require.NoError(t, v.ApplyComponents(10, KindVec2, []float64{1, 2}))
	assert.ErrorIs(t, v.ApplyComponents(20, KindVec3, []float64{1, 2, 3}), ErrKindMismatch)
	assert.ErrorIs(t, v.ApplyComponents(20, KindVec2, []float64{1}), ErrComponentCount)
	assert.Equal(t, 1, v.Len())
}

func TestVariableReadObserver(t *testing.T) {
	var modes []Mode
	v := NewVariable[Scalar](follower(0), 0, WithReadObserver(func(m Mode) {
		modes = append(modes, m)
	}))

	v.Value()
	v.Update(5, 1)
	v.Value()

	assert.Equal(t, []Mode{ModeDefault, ModeHold}, modes)
	assert.Equal(t, "hold", ModeHold.String())
}

func TestVariableVec3Interpolation(t *testing.T) {
	ft := follower(15)
	v := NewVariable[Vec3](ft, Vec3{}, WithInterpolationOffset(0))
	v.Update(10, Vec3{X: 0, Y: 10, Z: 2})
	v.Update(20, Vec3{X: 10, Y: 0, Z: 2})

	value := v.Value()
	assert.InDelta(t, 5.0, value.X, 1e-12)
	assert.InDelta(t, 5.0, value.Y, 1e-12)
	assert.InDelta(t, 2.0, value.Z, 1e-12)
}
