package lagcomp

import "fmt"

// Kind identifies one of the supported value shapes on the wire.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindVec2
	KindVec3
)

// Dimensions returns the number of float components of the kind.
func (k Kind) Dimensions() int {
	switch k {
	case KindScalar:
		return 1
	case KindVec2:
		return 2
	case KindVec3:
		return 3
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVec2:
		return "vec2"
	case KindVec3:
		return "vec3"
	default:
		return "unknown"
	}
}

// Value is the closed set of replicable value types. The union keeps the set
// fixed at compile time, the methods give the linear algebra the blending math needs.
type Value[V any] interface {
	Scalar | Vec2 | Vec3

	Add(V) V
	Sub(V) V
	Scale(float64) V

	Kind() Kind
	Components() []float64
	FromComponents([]float64) (V, error)
}

// Scalar is a single replicated float (health, rotation angle, ...).
type Scalar float64

func (s Scalar) Add(o Scalar) Scalar { return s + o }
func (s Scalar) Sub(o Scalar) Scalar { return s - o }
func (s Scalar) Scale(f float64) Scalar { return Scalar(float64(s) * f) }
func (Scalar) Kind() Kind { return KindScalar }
func (s Scalar) Components() []float64 { return []float64{float64(s)} }
func (Scalar) FromComponents(c []float64) (Scalar, error) {
	if err := checkComponents(KindScalar, c); err != nil {
		return 0, err
	}
	return Scalar(c[0]), nil
}

// Vec2 is a two component vector.
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(f float64) Vec2 { return Vec2{v.X * f, v.Y * f} }
func (Vec2) Kind() Kind { return KindVec2 }
func (v Vec2) Components() []float64 { return []float64{v.X, v.Y} }
func (Vec2) FromComponents(c []float64) (Vec2, error) {
	if err := checkComponents(KindVec2, c); err != nil {
		return Vec2{}, err
	}
	return Vec2{c[0], c[1]}, nil
}

// Vec3 is a three component vector.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (Vec3) Kind() Kind { return KindVec3 }
func (v Vec3) Components() []float64 { return []float64{v.X, v.Y, v.Z} }
func (Vec3) FromComponents(c []float64) (Vec3, error) {
	if err := checkComponents(KindVec3, c); err != nil {
		return Vec3{}, err
	}
	return Vec3{c[0], c[1], c[2]}, nil
}

func checkComponents(kind Kind, c []float64) error {
	if len(c) != kind.Dimensions() {
		return fmt.Errorf("%w: %s expects %d components, got %d",
			ErrComponentCount, kind, kind.Dimensions(), len(c))
	}
	return nil
}
