// Package geometry projects the target into screen space and answers
// visibility questions about the result.
package geometry

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/peterstace/simplefeatures/geom"
)

// ErrEmptyGeometry is returned when there is nothing to project.
var ErrEmptyGeometry = errors.New("no vertices to project")

// Projector maps world points to screen space.
type Projector interface {
	Project(world core.Vector3) core.ScreenPoint
}

// ProjectAndBound projects every vertex and returns the tight screen-space
// box around them. No clipping is applied, so the box may extend past the
// viewport.
func ProjectAndBound(vertices []core.Vector3, p Projector) (core.BoundingBox2D, error) {
	if len(vertices) == 0 {
		return core.BoundingBox2D{}, ErrEmptyGeometry
	}

	points := make([]r2.Point, len(vertices))
	for i, v := range vertices {
		points[i] = p.Project(v)
	}
	rect := r2.RectFromPoints(points...)
	return core.BoundingBox2D{Min: rect.Lo(), Max: rect.Hi()}, nil
}

// InBoundsX reports whether the box overlaps [0, width] on the x axis.
// Partial overlap counts.
func InBoundsX(b core.BoundingBox2D, width float64) bool {
	return b.Max.X >= 0 && b.Min.X <= width
}

// InBoundsY reports whether the box overlaps [0, height] on the y axis.
func InBoundsY(b core.BoundingBox2D, height float64) bool {
	return b.Max.Y >= 0 && b.Min.Y <= height
}

// VisibleFraction is the share of the box's area that overlaps the viewport.
// A degenerate box counts as fully visible when it lies inside the viewport.
func VisibleFraction(b core.BoundingBox2D, screen core.ScreenSize) float64 {
	if b.Width() <= 0 || b.Height() <= 0 {
		if InBoundsX(b, screen.Width) && InBoundsY(b, screen.Height) {
			return 1
		}
		return 0
	}

	box, err := Polygon(b)
	if err != nil {
		return 0
	}
	view, err := Polygon(core.BoundingBox2D{Max: core.ScreenPoint{X: screen.Width, Y: screen.Height}})
	if err != nil {
		return 0
	}

	overlap, err := geom.Intersection(box.AsGeometry(), view.AsGeometry())
	if err != nil {
		return 0
	}
	return overlap.Area() / box.Area()
}

// Polygon converts the box into a closed counter-clockwise ring. A box with
// no area or non-finite corners is rejected by the polygon validation.
func Polygon(b core.BoundingBox2D) (geom.Polygon, error) {
	coords := []float64{
		b.Min.X, b.Min.Y,
		b.Max.X, b.Min.Y,
		b.Max.X, b.Max.Y,
		b.Min.X, b.Max.Y,
		b.Min.X, b.Min.Y,
	}
	ring, err := geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("bbox ring: %w", err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("bbox polygon: %w", err)
	}
	return poly, nil
}
