package calibration

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/board-locator-mcp/internal/imaging"
)

// ErrTooFewCorners is returned by SelectCorners when the points cannot fill
// four distinct corner roles.
var ErrTooFewCorners = errors.New("at least 4 distinct points are required")

// CornerSet holds the four board corners in image coordinates.
type CornerSet struct {
	TopLeft     imaging.PointF `json:"top_left"`
	TopRight    imaging.PointF `json:"top_right"`
	BottomRight imaging.PointF `json:"bottom_right"`
	BottomLeft  imaging.PointF `json:"bottom_left"`
}

// Points returns the corners clockwise from the top-left.
func (cs CornerSet) Points() [4]imaging.PointF {
	return [4]imaging.PointF{cs.TopLeft, cs.TopRight, cs.BottomRight, cs.BottomLeft}
}

// SelectCorners picks the four board corners out of an unordered set of
// fiducial centers.
//
// The heuristic assumes the board is roughly upright in the image:
//
//  1. TopLeft is the point nearest the image origin, BottomRight the farthest.
//  2. A reference point is formed from BottomRight's X and TopLeft's Y, which
//     approximates where the top-right corner should be.
//  3. Among the remaining points, TopRight is the one nearest the reference
//     and BottomLeft the one farthest from it.
//
// Boards rotated close to 45 degrees defeat step 1; the result is then
// undefined but still deterministic.
//
// Distances are compared strictly. Equal distances are resolved by the
// smaller point (X first, then Y), so the result does not depend on the
// order of points.
func SelectCorners(points []imaging.PointF) (CornerSet, error) {
	if len(points) < 4 {
		return CornerSet{}, fmt.Errorf("got %d points: %w", len(points), ErrTooFewCorners)
	}

	var origin imaging.PointF
	cs := CornerSet{TopLeft: points[0], BottomRight: points[0]}
	for _, p := range points[1:] {
		d := p.Distance(origin)
		if dtl := cs.TopLeft.Distance(origin); d < dtl || (d == dtl && lessPoint(p, cs.TopLeft)) {
			cs.TopLeft = p
		}
		if dbr := cs.BottomRight.Distance(origin); d > dbr || (d == dbr && lessPoint(p, cs.BottomRight)) {
			cs.BottomRight = p
		}
	}

	ref := imaging.PointF{X: cs.BottomRight.X, Y: cs.TopLeft.Y}
	found := false
	for _, p := range points {
		if p == cs.TopLeft || p == cs.BottomRight {
			continue
		}
		if !found {
			cs.TopRight, cs.BottomLeft = p, p
			found = true
			continue
		}
		d := p.Distance(ref)
		if dtr := cs.TopRight.Distance(ref); d < dtr || (d == dtr && lessPoint(p, cs.TopRight)) {
			cs.TopRight = p
		}
		if dbl := cs.BottomLeft.Distance(ref); d > dbl || (d == dbl && lessPoint(p, cs.BottomLeft)) {
			cs.BottomLeft = p
		}
	}

	if !found || cs.TopLeft == cs.BottomRight || cs.TopRight == cs.BottomLeft {
		return CornerSet{}, fmt.Errorf("points do not span four corners: %w", ErrTooFewCorners)
	}
	return cs, nil
}

func lessPoint(a, b imaging.PointF) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// RectifyTo warps img so that the src corners land on the dst corners in an
// output image of the given size.
func RectifyTo(img image.Image, src, dst CornerSet, size image.Point) (*image.NRGBA, imaging.Homography, error) {
	h, err := imaging.ComputePerspectiveTransform(src.Points(), dst.Points())
	if err != nil {
		return nil, imaging.Homography{}, fmt.Errorf("compute transform: %w", err)
	}

	out, err := imaging.WarpPerspective(img, h, size)
	if err != nil {
		return nil, imaging.Homography{}, fmt.Errorf("warp: %w", err)
	}
	return out, h, nil
}
