package detection

import (
	"math"

	"github.com/ironsheep/board-locator-mcp/internal/imaging"
)

// Default classifier thresholds.
const (
	// DefaultCenterThreshold is the fraction of the radius a contour point may
	// deviate from the circle before it counts as an outlier.
	DefaultCenterThreshold = 0.1

	// DefaultSingleThreshold is the fraction of outlier points tolerated
	// before a contour is rejected.
	DefaultSingleThreshold = 0.2
)

// CircleEstimate describes a contour fitted as a circle.
//
// The estimate is derived from the contour's axis-extremal points rather than
// a least-squares fit, so it costs two linear scans and tolerates moderate
// noise on the boundary.
type CircleEstimate struct {
	// Center is the midpoint of the contour's bounding extremes.
	Center imaging.PointF `json:"center"`

	// Radius is the mean of the horizontal and vertical half-extents:
	// ((right.x - left.x) + (bottom.y - top.y)) / 4.
	Radius float64 `json:"radius"`

	// Confidence is 1 - mean(|distance(p, center) - radius|) / radius over
	// all contour points. 1.0 is a perfect circle; the value may drop below
	// zero for contours that are far from circular.
	Confidence float64 `json:"confidence"`
}

// Classify decides whether a contour approximates a circle.
//
// Parameters:
//   - contour: Ordered boundary pixels of one region.
//   - centerThreshold: A point is an outlier when its distance from the
//     center differs from the radius by more than centerThreshold * radius.
//   - singleThreshold: The contour is circular when fewer than
//     singleThreshold * len(contour) points are outliers.
//
// Returns whether the contour is circular along with the estimate. The
// estimate is filled in for non-circular contours too, except for the
// degenerate cases below.
//
// # Degenerate Contours
//
// An empty contour, or one whose extremes give a zero radius (a single
// pixel, or a run of pixels along one axis), is reported as not-a-circle
// with a zero estimate. No division by zero is attempted.
//
// # Extremal Points
//
// Left and right are the first points with the minimum and maximum X; top
// and bottom the first with the minimum and maximum Y. Only their
// coordinates along the relevant axis enter the estimate.
func Classify(contour imaging.Contour, centerThreshold, singleThreshold float64) (bool, CircleEstimate) {
	if len(contour) == 0 {
		return false, CircleEstimate{}
	}

	left, right, top, bottom := contour[0], contour[0], contour[0], contour[0]
	for _, p := range contour {
		if p.X < left.X {
			left = p
		}
		if p.X > right.X {
			right = p
		}
		if p.Y < top.Y {
			top = p
		}
		if p.Y > bottom.Y {
			bottom = p
		}
	}

	center := imaging.PointF{
		X: float64(left.X+right.X) / 2,
		Y: float64(top.Y+bottom.Y) / 2,
	}
	radius := float64((right.X-left.X)+(bottom.Y-top.Y)) / 4
	if radius <= 0 {
		return false, CircleEstimate{}
	}

	outliers := 0
	var deviation float64
	for _, p := range contour {
		d := math.Abs(p.ToFloat().Distance(center) - radius)
		if d > radius*centerThreshold {
			outliers++
		}
		deviation += d
	}

	estimate := CircleEstimate{
		Center:     center,
		Radius:     radius,
		Confidence: 1 - deviation/(radius*float64(len(contour))),
	}
	return float64(outliers) < float64(len(contour))*singleThreshold, estimate
}

// ClassifyDefault classifies a contour with DefaultCenterThreshold and
// DefaultSingleThreshold.
func ClassifyDefault(contour imaging.Contour) (bool, CircleEstimate) {
	return Classify(contour, DefaultCenterThreshold, DefaultSingleThreshold)
}

// FindCircles classifies every contour and returns the estimates of those
// accepted as circles, in contour order.
func FindCircles(contours []imaging.Contour, centerThreshold, singleThreshold float64) []CircleEstimate {
	circles := make([]CircleEstimate, 0, len(contours))
	for _, c := range contours {
		if ok, est := Classify(c, centerThreshold, singleThreshold); ok {
			circles = append(circles, est)
		}
	}
	return circles
}
