package calibration

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/board-locator-mcp/internal/detection"
	"github.com/ironsheep/board-locator-mcp/internal/imaging"
	"github.com/ironsheep/board-locator-mcp/internal/logger"
)

// ErrInvalidMagnification is returned when the pixels-per-board-unit factor
// is not positive or would rectify the board beyond MaxRectifiedPixels.
var ErrInvalidMagnification = errors.New("magnification out of range")

// MaxRectifiedPixels bounds the area of a rectified board.
const MaxRectifiedPixels = 4096 * 4096

// MaxMagnification is the largest magnification the tool and HTTP surfaces
// accept. The nine-point board stays within MaxRectifiedPixels up to 63.
const MaxMagnification = 60

// StrictMarkerCount is the number of fiducials printed on the nine-point
// board. Use it as Options.RequiredMarkers to demand a full detection.
const StrictMarkerCount = 9

// Layout describes the physical board in board units.
type Layout struct {
	// Side is the length of the square board.
	Side float64 `json:"side"`

	// Inset is the distance from each board edge to the center of the
	// nearest corner fiducial.
	Inset float64 `json:"inset"`
}

// NinePointBoard is the 65x65 board with a 3x3 grid of fiducials whose
// corner centers sit 12.5 units in from each edge.
var NinePointBoard = Layout{Side: 65, Inset: 12.5}

// fits reports whether the board rectified at mp stays within
// MaxRectifiedPixels. The area is computed in floating point so huge mp
// values cannot overflow.
func (l Layout) fits(mp int) bool {
	side := l.Side * float64(mp)
	return side*side <= MaxRectifiedPixels
}

// Size returns the pixel size of the rectified board at magnification mp.
func (l Layout) Size(mp int) image.Point {
	s := int(math.Round(l.Side * float64(mp)))
	return image.Point{X: s, Y: s}
}

// Targets returns where the corner fiducials belong in the rectified image.
func (l Layout) Targets(mp int) CornerSet {
	near := l.Inset * float64(mp)
	far := (l.Side - l.Inset) * float64(mp)
	return CornerSet{
		TopLeft:     imaging.PointF{X: near, Y: near},
		TopRight:    imaging.PointF{X: far, Y: near},
		BottomRight: imaging.PointF{X: far, Y: far},
		BottomLeft:  imaging.PointF{X: near, Y: far},
	}
}

// Options tunes board segmentation and fiducial classification.
type Options struct {
	// BlurSize is the box-blur kernel side in pixels. It should be close to
	// the fiducial diameter as it appears in the photo.
	BlurSize int `json:"blur_size"`

	// GrayThreshold binarizes the blurred grayscale image. Fiducials are
	// light circles on a dark board.
	GrayThreshold uint8 `json:"gray_threshold"`

	// MorphKernel is the structuring element side for close then open.
	MorphKernel int `json:"morph_kernel"`

	CenterThreshold float64 `json:"center_threshold"`
	SingleThreshold float64 `json:"single_threshold"`

	// RequiredMarkers is the minimum number of circular candidates needed
	// to rectify. Fewer and the image is passed through untouched.
	RequiredMarkers int `json:"required_markers"`

	Layout Layout `json:"layout"`
}

// DefaultOptions returns the settings tuned for photos of the nine-point
// board taken at a typical desk distance.
func DefaultOptions() Options {
	return Options{
		BlurSize:        30,
		GrayThreshold:   140,
		MorphKernel:     3,
		CenterThreshold: 0.2,
		SingleThreshold: 0.2,
		RequiredMarkers: 4,
		Layout:          NinePointBoard,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BlurSize == 0 {
		o.BlurSize = d.BlurSize
	}
	if o.GrayThreshold == 0 {
		o.GrayThreshold = d.GrayThreshold
	}
	if o.MorphKernel == 0 {
		o.MorphKernel = d.MorphKernel
	}
	if o.CenterThreshold == 0 {
		o.CenterThreshold = d.CenterThreshold
	}
	if o.SingleThreshold == 0 {
		o.SingleThreshold = d.SingleThreshold
	}
	if o.RequiredMarkers < 4 {
		o.RequiredMarkers = d.RequiredMarkers
	}
	if o.Layout.Side <= 0 {
		o.Layout = d.Layout
	}
	return o
}

// Calibrator finds the board in a photo and rectifies it. It holds only its
// options, so one Calibrator may serve concurrent calls.
type Calibrator struct {
	opts Options
}

// New creates a Calibrator. Zero-valued options take their defaults and
// RequiredMarkers is raised to at least 4.
func New(opts Options) *Calibrator {
	return &Calibrator{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (c *Calibrator) Options() Options {
	return c.opts
}

// Result is the outcome of one calibration call.
type Result struct {
	// Image is the rectified board, or the input image when Rectified is
	// false.
	Image image.Image `json:"-"`

	Rectified bool `json:"rectified"`

	// Candidates are the fiducials accepted by the circle test, in the order
	// their contours were found.
	Candidates []detection.CircleEstimate `json:"candidates"`

	// Corners is nil when no rectification took place.
	Corners *CornerSet `json:"corners,omitempty"`

	// Transform maps input pixels to rectified pixels. It is the identity
	// when no rectification took place.
	Transform imaging.Homography `json:"transform"`
}

// Segment binarizes a board photo so the fiducials become foreground:
// grayscale, box blur, threshold, then close and open.
func (c *Calibrator) Segment(img image.Image) (*image.Gray, error) {
	if err := imaging.CheckImage(img); err != nil {
		return nil, err
	}
	gray := imaging.ToGrayscale(img)
	blurred := imaging.Blur(gray, c.opts.BlurSize)
	binary := imaging.Threshold(blurred, c.opts.GrayThreshold)
	return imaging.CleanMask(binary, c.opts.MorphKernel), nil
}

// DetectFiducials segments img and returns the contours accepted as circles.
func (c *Calibrator) DetectFiducials(img image.Image) ([]detection.CircleEstimate, error) {
	mask, err := c.Segment(img)
	if err != nil {
		return nil, err
	}
	contours := imaging.FindExternalContours(mask)
	circles := detection.FindCircles(contours, c.opts.CenterThreshold, c.opts.SingleThreshold)

	logger.WithFields(logrus.Fields{
		"contours": len(contours),
		"circles":  len(circles),
	}).Debug("Segmented board")

	return circles, nil
}

// Calibrate detects the fiducials in img and, when enough are found, warps
// the board onto a square of Layout.Side*mp pixels with the corner fiducials
// at their canonical positions.
//
// Too few fiducials is not an error: the result carries the input image
// with Rectified false. The same holds when the fiducials found do not span
// a usable quadrilateral. Only a nil or empty image and an mp that is not
// positive or exceeds MaxRectifiedPixels are errors.
func (c *Calibrator) Calibrate(img image.Image, mp int) (*Result, error) {
	if err := imaging.CheckImage(img); err != nil {
		return nil, err
	}
	if mp <= 0 || !c.opts.Layout.fits(mp) {
		return nil, fmt.Errorf("got %d: %w", mp, ErrInvalidMagnification)
	}

	circles, err := c.DetectFiducials(img)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Image:      img,
		Candidates: circles,
		Transform:  imaging.Identity(),
	}

	if len(circles) < c.opts.RequiredMarkers {
		logger.WithFields(logrus.Fields{
			"found":    len(circles),
			"required": c.opts.RequiredMarkers,
		}).Debug("Too few fiducials, passing image through")
		return result, nil
	}

	centers := make([]imaging.PointF, len(circles))
	for i, circle := range circles {
		centers[i] = circle.Center
	}
	corners, err := SelectCorners(centers)
	if err != nil {
		logger.WithError(err).WithField("found", len(circles)).
			Debug("Fiducials do not span four corners, passing image through")
		return result, nil
	}

	rectified, h, err := RectifyTo(img, corners, c.opts.Layout.Targets(mp), c.opts.Layout.Size(mp))
	if errors.Is(err, imaging.ErrSingularTransform) {
		logger.WithError(err).WithField("found", len(circles)).
			Debug("Corner fiducials are degenerate, passing image through")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Image = rectified
	result.Rectified = true
	result.Corners = &corners
	result.Transform = h
	return result, nil
}

// Rectify is Calibrate without the diagnostics.
func (c *Calibrator) Rectify(img image.Image, mp int) (image.Image, error) {
	result, err := c.Calibrate(img, mp)
	if err != nil {
		return nil, err
	}
	return result.Image, nil
}
