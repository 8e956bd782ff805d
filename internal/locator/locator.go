package locator

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/board-locator-mcp/internal/calibration"
	"github.com/ironsheep/board-locator-mcp/internal/detection"
	"github.com/ironsheep/board-locator-mcp/internal/imaging"
	"github.com/ironsheep/board-locator-mcp/internal/logger"
)

// DefaultMagnification is the rectified pixels per board unit used by
// GetMarkerPositions.
const DefaultMagnification = 6

// MaxMagnification is the largest magnification the servers accept.
const MaxMagnification = calibration.MaxMagnification

// ErrInvalidMagnification is returned for a magnification of zero or less,
// or one that would rectify the board beyond calibration.MaxRectifiedPixels.
var ErrInvalidMagnification = calibration.ErrInvalidMagnification

// Mode selects how marker pixels are separated from the board.
type Mode string

const (
	// SegmentColorRange keeps pixels inside Options.ColorRange.
	SegmentColorRange Mode = "color_range"

	// SegmentRedDominance keeps pixels whose R - G - B reaches
	// Options.RedThreshold. It tolerates lighting that shifts the marker
	// out of a fixed color range.
	SegmentRedDominance Mode = "red_dominance"
)

// Position is a marker location in whole board units, origin at the board's
// top-left corner.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Options configures marker segmentation and the calibration step that
// precedes it.
type Options struct {
	Mode       Mode               `json:"mode"`
	ColorRange imaging.ColorRange `json:"-"`

	// RedThreshold is the minimum R - G - B for SegmentRedDominance.
	RedThreshold uint8 `json:"red_threshold"`

	// BlurSize is the box-blur kernel side applied to the marker mask. It
	// should be close to the marker diameter in rectified pixels.
	BlurSize int `json:"blur_size"`

	MorphKernel int `json:"morph_kernel"`

	Calibration calibration.Options `json:"calibration"`
}

// DefaultOptions returns settings for the red marker ball.
func DefaultOptions() Options {
	return Options{
		Mode:         SegmentColorRange,
		ColorRange:   imaging.DefaultMarkerRange(),
		RedThreshold: 2,
		BlurSize:     8,
		MorphKernel:  3,
		Calibration:  calibration.DefaultOptions(),
	}
}

// Locator finds markers on a board photo.
type Locator struct {
	opts       Options
	calibrator *calibration.Calibrator
}

// New creates a Locator. Zero-valued fields take their defaults.
func New(opts Options) *Locator {
	d := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = d.Mode
	}
	if opts.ColorRange == (imaging.ColorRange{}) {
		opts.ColorRange = d.ColorRange
	}
	if opts.RedThreshold == 0 {
		opts.RedThreshold = d.RedThreshold
	}
	if opts.BlurSize == 0 {
		opts.BlurSize = d.BlurSize
	}
	if opts.MorphKernel == 0 {
		opts.MorphKernel = d.MorphKernel
	}
	return &Locator{
		opts:       opts,
		calibrator: calibration.New(opts.Calibration),
	}
}

// Options returns the effective options.
func (l *Locator) Options() Options {
	o := l.opts
	o.Calibration = l.calibrator.Options()
	return o
}

// Detection is the full outcome of one Detect call.
type Detection struct {
	Positions   []Position          `json:"positions"`
	Blobs       []detection.Blob    `json:"blobs"`
	Calibration *calibration.Result `json:"calibration"`
}

// Detect rectifies img and finds the markers on the result. Blob centers
// stay in rectified pixels; Positions are in board units.
func (l *Locator) Detect(img image.Image, magnification int) (*Detection, error) {
	if err := imaging.CheckImage(img); err != nil {
		return nil, err
	}
	if magnification <= 0 {
		return nil, fmt.Errorf("got %d: %w", magnification, ErrInvalidMagnification)
	}

	cal, err := l.calibrator.Calibrate(img, magnification)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}

	blobs := detection.DetectBlobs(l.Segment(cal.Image))
	positions := make([]Position, len(blobs))
	for i, b := range blobs {
		positions[i] = Position{
			X: b.Center.X / magnification,
			Y: b.Center.Y / magnification,
		}
	}

	logger.WithFields(logrus.Fields{
		"rectified": cal.Rectified,
		"markers":   len(positions),
		"mode":      l.opts.Mode,
	}).Debug("Located markers")

	return &Detection{
		Positions:   positions,
		Blobs:       blobs,
		Calibration: cal,
	}, nil
}

// Locate returns the markers on a board photo in board units. An image
// without markers yields an empty slice. Markers are reported in the order
// their regions are first met scanning the rectified image row by row.
func (l *Locator) Locate(img image.Image, magnification int) ([]Position, error) {
	d, err := l.Detect(img, magnification)
	if err != nil {
		return nil, err
	}
	return d.Positions, nil
}

// Segment builds the marker mask of an already rectified image. The mask is
// blurred to merge the marker's fragments, and every pixel the blur touched
// stays foreground.
func (l *Locator) Segment(img image.Image) *image.Gray {
	var raw *image.Gray
	switch l.opts.Mode {
	case SegmentRedDominance:
		raw = imaging.RedDominanceMask(img, l.opts.RedThreshold)
	default:
		raw = imaging.InRangeMask(img, l.opts.ColorRange)
	}

	blurred := imaging.Nonzero(imaging.Blur(raw, l.opts.BlurSize))
	return imaging.CleanMask(blurred, l.opts.MorphKernel)
}

// GetMarkerPositions locates markers with the default options. A
// magnification of zero selects DefaultMagnification.
func GetMarkerPositions(img image.Image, magnification int) ([]Position, error) {
	if magnification == 0 {
		magnification = DefaultMagnification
	}
	return New(DefaultOptions()).Locate(img, magnification)
}
