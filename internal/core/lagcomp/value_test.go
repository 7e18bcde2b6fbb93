package lagcomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentsRoundTrip(t *testing.T) {
	s, err := Scalar(0).FromComponents(Scalar(4.5).Components())
	require.NoError(t, err)
	assert.Equal(t, Scalar(4.5), s)

	v2, err := Vec2{}.FromComponents(Vec2{X: 1, Y: 2}.Components())
	require.NoError(t, err)
	assert.Equal(t, Vec2{X: 1, Y: 2}, v2)

	v3, err := Vec3{}.FromComponents(Vec3{X: 1, Y: 2, Z: 3}.Components())
	require.NoError(t, err)
	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, v3)
}

func TestFromComponentsRejectsWrongCount(t *testing.T) {
	_, err := Vec2{}.FromComponents([]float64{1})
	assert.ErrorIs(t, err, ErrComponentCount)

	_, err = Scalar(0).FromComponents(nil)
	assert.ErrorIs(t, err, ErrComponentCount)

	_, err = Vec3{}.FromComponents([]float64{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrComponentCount)
}

func TestKindDimensions(t *testing.T) {
	assert.Equal(t, 1, KindScalar.Dimensions())
	assert.Equal(t, 2, KindVec2.Dimensions())
	assert.Equal(t, 3, KindVec3.Dimensions())
	assert.Equal(t, 0, Kind(0).Dimensions())
	assert.Equal(t, "vec3", Vec3{}.Kind().String())
}

func TestVectorArithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: 5, Z: 6}

	assert.Equal(t, Vec3{X: 5, Y: 7, Z: 9}, a.Add(b))
	assert.Equal(t, Vec3{X: 3, Y: 3, Z: 3}, b.Sub(a))
	assert.Equal(t, Vec3{X: 2, Y: 4, Z: 6}, a.Scale(2))
}
