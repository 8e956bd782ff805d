package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularTransform is returned when four correspondences do not define a
// projective transform, typically because three of the points are collinear.
var ErrSingularTransform = errors.New("perspective transform is singular")

// Homography is a 3x3 projective transform in row-major order.
//
//	| H[0] H[1] H[2] |   | x |
//	| H[3] H[4] H[5] | * | y |
//	| H[6] H[7] H[8] |   | 1 |
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Apply maps a point through the transform.
func (h Homography) Apply(p PointF) PointF {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return PointF{X: math.Inf(1), Y: math.Inf(1)}
	}
	return PointF{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Inverse returns the transform mapping destination points back to source.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingularTransform, err)
	}

	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	if out[8] != 0 {
		for i := range out {
			out[i] /= out[8]
		}
	}
	return out, nil
}

// ComputePerspectiveTransform solves for the projective transform mapping
// each src point onto the dst point at the same index.
//
// With H[8] fixed to 1 every correspondence contributes two linear equations:
//
//	x' = (h0*x + h1*y + h2) / (h6*x + h7*y + 1)
//	y' = (h3*x + h4*y + h5) / (h6*x + h7*y + 1)
//
// The resulting 8x8 system is solved directly.
func ComputePerspectiveTransform(src, dst [4]PointF) (Homography, error) {
	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -x*xp)
		A.Set(i*2, 7, -y*xp)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -x*yp)
		A.Set(i*2+1, 7, -y*yp)
		B.SetVec(i*2+1, yp)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingularTransform, err)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = params.AtVec(i)
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return Homography{}, ErrSingularTransform
		}
	}
	h[8] = 1
	return h, nil
}

// WarpPerspective resamples img through h into a new image of the given size.
//
// Every output pixel (x, y) is mapped back into the source with the inverse
// transform and sampled bilinearly. Source samples outside the image read as
// black, so regions of the output not covered by the source are black.
func WarpPerspective(img image.Image, h Homography, size image.Point) (*image.NRGBA, error) {
	if err := CheckImage(img); err != nil {
		return nil, err
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", size.X, size.Y)
	}

	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}

	src := imaging.Clone(img)
	dst := imaging.New(size.X, size.Y, color.NRGBA{0, 0, 0, 255})

	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			p := inv.Apply(PointF{X: float64(x), Y: float64(y)})
			if math.IsInf(p.X, 0) || math.IsNaN(p.X) || math.IsNaN(p.Y) {
				continue
			}
			r, g, b, ok := sampleBilinear(src, p.X, p.Y)
			if !ok {
				continue
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = r
			dst.Pix[i+1] = g
			dst.Pix[i+2] = b
			dst.Pix[i+3] = 255
		}
	}

	return dst, nil
}

// sampleBilinear interpolates the color at (fx, fy) in src coordinates
// relative to src's origin. Neighbors outside the image contribute black.
// ok is false when the sample lies entirely outside the image.
func sampleBilinear(src *image.NRGBA, fx, fy float64) (r, g, b uint8, ok bool) {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if fx <= -1 || fy <= -1 || fx >= float64(w) || fy >= float64(h) {
		return 0, 0, 0, false
	}

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	ax := fx - float64(x0)
	ay := fy - float64(y0)

	var acc [3]float64
	weights := [4]float64{(1 - ax) * (1 - ay), ax * (1 - ay), (1 - ax) * ay, ax * ay}
	corners := [4]image.Point{{x0, y0}, {x0 + 1, y0}, {x0, y0 + 1}, {x0 + 1, y0 + 1}}

	for i, c := range corners {
		if c.X < 0 || c.Y < 0 || c.X >= w || c.Y >= h || weights[i] == 0 {
			continue
		}
		// Clone returns an image anchored at (0, 0)
		off := c.Y*src.Stride + c.X*4
		acc[0] += weights[i] * float64(src.Pix[off])
		acc[1] += weights[i] * float64(src.Pix[off+1])
		acc[2] += weights[i] * float64(src.Pix[off+2])
	}

	return clampByte(acc[0]), clampByte(acc[1]), clampByte(acc[2]), true
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
