package imaging

import (
	"image"
)

// neighbors8 lists the 8-connected offsets in clockwise order (y grows
// downward), starting from west.
var neighbors8 = [8]Point{
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
}

// binaryGrid is a padded foreground map of a mask. The one-pixel border of
// background around the image keeps boundary tracing free of bounds checks.
type binaryGrid struct {
	width, height int // padded dimensions
	offset        image.Point
	fg            []bool
}

func newBinaryGrid(mask *image.Gray) *binaryGrid {
	bounds := mask.Bounds()
	g := &binaryGrid{
		width:  bounds.Dx() + 2,
		height: bounds.Dy() + 2,
		offset: bounds.Min,
	}
	g.fg = make([]bool, g.width*g.height)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := mask.Pix[mask.PixOffset(bounds.Min.X, y):]
		for x := 0; x < bounds.Dx(); x++ {
			if row[x] != 0 {
				g.fg[(y-bounds.Min.Y+1)*g.width+x+1] = true
			}
		}
	}
	return g
}

func (g *binaryGrid) at(x, y int) bool {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return false
	}
	return g.fg[y*g.width+x]
}

// FindExternalContours traces the outer boundary of every 8-connected
// foreground region in a binary mask (any non-zero pixel is foreground).
//
// Regions that lie inside a hole of another region are discarded, so only
// the outermost contours are returned. Holes are not traced. Each contour is
// ordered clockwise starting at the region's top-most, then left-most,
// pixel. Contours are returned in raster order of their start pixels.
//
// A nil or empty mask yields no contours.
func FindExternalContours(mask *image.Gray) []Contour {
	contours := make([]Contour, 0)
	if mask == nil || mask.Bounds().Empty() {
		return contours
	}

	g := newBinaryGrid(mask)
	outside := g.outerBackground()
	labels := make([]int, len(g.fg))
	label := 0

	for y := 1; y < g.height-1; y++ {
		for x := 1; x < g.width-1; x++ {
			idx := y*g.width + x
			if !g.fg[idx] || labels[idx] != 0 {
				continue
			}

			label++
			external := g.labelRegion(labels, outside, x, y, label)
			if !external {
				continue
			}

			contour := g.traceBoundary(Point{X: x, Y: y})
			for i := range contour {
				contour[i].X += g.offset.X - 1
				contour[i].Y += g.offset.Y - 1
			}
			contours = append(contours, contour)
		}
	}

	return contours
}

// outerBackground flood-fills the background reachable from the padded
// border using 4-connectivity, the dual of 8-connected foreground.
func (g *binaryGrid) outerBackground() []bool {
	outside := make([]bool, len(g.fg))
	stack := []Point{{X: 0, Y: 0}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= g.width || p.Y < 0 || p.Y >= g.height {
			continue
		}
		idx := p.Y*g.width + p.X
		if outside[idx] || g.fg[idx] {
			continue
		}
		outside[idx] = true

		stack = append(stack,
			Point{X: p.X + 1, Y: p.Y},
			Point{X: p.X - 1, Y: p.Y},
			Point{X: p.X, Y: p.Y + 1},
			Point{X: p.X, Y: p.Y - 1},
		)
	}
	return outside
}

// labelRegion marks the 8-connected region containing (startX, startY) and
// reports whether any of its pixels touches the outer background.
func (g *binaryGrid) labelRegion(labels []int, outside []bool, startX, startY, label int) bool {
	external := false
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx := p.Y*g.width + p.X
		if !g.fg[idx] || labels[idx] != 0 {
			continue
		}
		labels[idx] = label

		if outside[idx-1] || outside[idx+1] || outside[idx-g.width] || outside[idx+g.width] {
			external = true
		}

		// the padding guarantees every neighbor index is valid
		for _, d := range neighbors8 {
			stack = append(stack, Point{X: p.X + d.X, Y: p.Y + d.Y})
		}
	}
	return external
}

// traceBoundary follows the outer boundary of the region whose top-most,
// left-most pixel is start, using Moore-neighbour tracing.
func (g *binaryGrid) traceBoundary(start Point) Contour {
	contour := Contour{start}

	// The west neighbor of the raster-first pixel is always background.
	cur := start
	back := 0
	var first Point
	haveFirst := false
	limit := 4*len(g.fg) + 8

	for step := 0; step < limit; step++ {
		next, nextBack, ok := g.nextBoundaryPixel(cur, back)
		if !ok {
			// isolated pixel
			break
		}
		if cur == start {
			if haveFirst && next == first {
				break
			}
			if !haveFirst {
				first = next
				haveFirst = true
			}
		}
		if next != start {
			contour = append(contour, next)
		}
		cur, back = next, nextBack
	}

	return contour
}

// nextBoundaryPixel scans the neighbors of cur clockwise, starting after the
// backtrack direction, and returns the first foreground pixel along with the
// direction from that pixel back to the last background neighbor examined.
func (g *binaryGrid) nextBoundaryPixel(cur Point, back int) (Point, int, bool) {
	for i := 1; i <= 8; i++ {
		d := (back + i) % 8
		n := Point{X: cur.X + neighbors8[d].X, Y: cur.Y + neighbors8[d].Y}
		if !g.at(n.X, n.Y) {
			continue
		}
		prevDir := (d + 7) % 8
		prev := Point{X: cur.X + neighbors8[prevDir].X, Y: cur.Y + neighbors8[prevDir].Y}
		return n, directionTo(n, prev), true
	}
	return Point{}, 0, false
}

// directionTo returns the neighbors8 index of the offset from a to b.
func directionTo(a, b Point) int {
	dx, dy := b.X-a.X, b.Y-a.Y
	for i, d := range neighbors8 {
		if d.X == dx && d.Y == dy {
			return i
		}
	}
	return 0
}
