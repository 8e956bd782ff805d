package imaging

import (
	"image"
	"math"
)

// Point represents a 2D pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts the point to floating-point coordinates.
func (p Point) ToFloat() PointF {
	return PointF{X: float64(p.X), Y: float64(p.Y)}
}

// PointF represents a 2D point with sub-pixel coordinates.
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p PointF) Distance(other PointF) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Contour is the ordered boundary of one connected foreground region.
type Contour []Point

// BoundingBox returns the axis-aligned box enclosing the contour.
//
// Min is inclusive and Max is exclusive, matching image.Rectangle. An empty
// contour yields the zero rectangle.
func BoundingBox(contour Contour) image.Rectangle {
	if len(contour) == 0 {
		return image.Rectangle{}
	}

	minX, minY := contour[0].X, contour[0].Y
	maxX, maxY := minX, minY
	for _, p := range contour[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}
