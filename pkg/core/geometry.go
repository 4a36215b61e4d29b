// pkg/core/geometry.go
package core

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Vector3 is a world-space position or direction.
type Vector3 = r3.Vector

// ScreenPoint is a position in screen space. The origin is the bottom-left
// corner of the viewport and y grows upward.
type ScreenPoint = r2.Point

// ScreenSize holds the viewport dimensions in pixels.
type ScreenSize struct {
	Width  float64
	Height float64
}

// Quaternion is a unit rotation.
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

// IdentityRotation is the zero rotation.
var IdentityRotation = Quaternion{W: 1}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// FromEuler builds a rotation from Euler angles in degrees, applied in
// Z, X, Y order around the fixed axes.
func FromEuler(x, y, z float64) Quaternion {
	half := func(deg float64) (float64, float64) {
		rad := deg * math.Pi / 180 / 2
		return math.Sin(rad), math.Cos(rad)
	}
	sx, cx := half(x)
	sy, cy := half(y)
	sz, cz := half(z)

	qx := quat.Number{Real: cx, Imag: sx}
	qy := quat.Number{Real: cy, Jmag: sy}
	qz := quat.Number{Real: cz, Kmag: sz}
	return fromNumber(quat.Mul(quat.Mul(qy, qx), qz))
}

// Rotate applies the rotation to v.
func (q Quaternion) Rotate(v Vector3) Vector3 {
	n := q.number()
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(n, p), quat.Conj(n))
	return Vector3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Transform is a position plus orientation.
type Transform struct {
	Position Vector3
	Rotation Quaternion
}

// Apply maps a point from local space into world space.
func (t Transform) Apply(local Vector3) Vector3 {
	return t.Rotation.Rotate(local).Add(t.Position)
}

// BoundingBox2D is an axis-aligned screen-space rectangle.
type BoundingBox2D struct {
	Min ScreenPoint
	Max ScreenPoint
}

// Width returns the horizontal extent of the box.
func (b BoundingBox2D) Width() float64 { return b.Max.X - b.Min.X }

// Height returns the vertical extent of the box.
func (b BoundingBox2D) Height() float64 { return b.Max.Y - b.Min.Y }
