// Package geometry provides basic geometric types used throughout the pipeline.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
// X grows to the right and Y grows downward, matching raster convention.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// RectInt is a pixel bounding box. Width and Height are the span between the
// extreme pixel coordinates, so a single pixel has Width == Height == 0.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Corners returns the box corners ordered top-left, top-right, bottom-right, bottom-left.
func (r RectInt) Corners() Quad {
	x0, y0 := float64(r.X), float64(r.Y)
	x1, y1 := float64(r.X+r.Width), float64(r.Y+r.Height)
	return Quad{
		TopLeft:     Point2D{X: x0, Y: y0},
		TopRight:    Point2D{X: x1, Y: y0},
		BottomRight: Point2D{X: x1, Y: y1},
		BottomLeft:  Point2D{X: x0, Y: y1},
	}
}

// Size represents integer pixel dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Quad is a quadrilateral with corners ordered top-left, top-right,
// bottom-right, bottom-left. Convexity is not enforced.
type Quad struct {
	TopLeft     Point2D `json:"top_left"`
	TopRight    Point2D `json:"top_right"`
	BottomRight Point2D `json:"bottom_right"`
	BottomLeft  Point2D `json:"bottom_left"`
}

// QuadFromPoints builds a Quad from four points already in TL, TR, BR, BL order.
func QuadFromPoints(pts [4]Point2D) Quad {
	return Quad{TopLeft: pts[0], TopRight: pts[1], BottomRight: pts[2], BottomLeft: pts[3]}
}

// Points returns the corners in TL, TR, BR, BL order.
func (q Quad) Points() [4]Point2D {
	return [4]Point2D{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Area returns the absolute shoelace area of the quadrilateral.
func (q Quad) Area() float64 {
	pts := q.Points()
	return PolygonArea(pts[:])
}

// AspectRatio returns the longer horizontal edge over the longer vertical edge.
// A quad with no vertical extent reports 0.
func (q Quad) AspectRatio() float64 {
	width := math.Max(q.TopLeft.Distance(q.TopRight), q.BottomLeft.Distance(q.BottomRight))
	height := math.Max(q.TopLeft.Distance(q.BottomLeft), q.TopRight.Distance(q.BottomRight))
	if height == 0 {
		return 0
	}
	return width / height
}

// IsConvex reports whether the corners form a convex polygon.
func (q Quad) IsConvex() bool {
	pts := q.Points()
	return IsConvex(pts[:])
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}
