package calibration

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/ironsheep/board-locator-mcp/internal/imaging"
)

// testOptions shrinks the blur to suit the small synthetic boards.
func testOptions() Options {
	opts := DefaultOptions()
	opts.BlurSize = 5
	return opts
}

// fillDisk paints a filled disk onto img.
func fillDisk(img *image.RGBA, cx, cy, radius int, c color.Color) {
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				img.Set(x, y, c)
			}
		}
	}
}

// drawBoard renders the nine-point board at magnification mp: white
// fiducials of the given pixel radius on black. Only the first count
// fiducials, in row-major order, are drawn.
func drawBoard(mp, radius, count int) *image.RGBA {
	size := NinePointBoard.Size(mp)
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	fillRect(img, img.Bounds(), color.Black)

	drawn := 0
	for _, y := range []float64{12.5, 32.5, 52.5} {
		for _, x := range []float64{12.5, 32.5, 52.5} {
			if drawn == count {
				return img
			}
			fillDisk(img, int(x*float64(mp)), int(y*float64(mp)), radius, color.White)
			drawn++
		}
	}
	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.BlurSize != 30 || opts.GrayThreshold != 140 || opts.MorphKernel != 3 {
		t.Errorf("segmentation defaults: got %+v", opts)
	}
	if opts.CenterThreshold != 0.2 || opts.SingleThreshold != 0.2 {
		t.Errorf("classifier defaults: got %+v", opts)
	}
	if opts.RequiredMarkers != 4 {
		t.Errorf("RequiredMarkers: got %d, want 4", opts.RequiredMarkers)
	}
	if opts.Layout != NinePointBoard {
		t.Errorf("Layout: got %+v", opts.Layout)
	}
}

func TestNew_FillsZeroOptions(t *testing.T) {
	c := New(Options{BlurSize: 7, RequiredMarkers: 2})
	opts := c.Options()

	if opts.BlurSize != 7 {
		t.Errorf("explicit BlurSize lost: got %d", opts.BlurSize)
	}
	if opts.GrayThreshold != 140 {
		t.Errorf("GrayThreshold should default, got %d", opts.GrayThreshold)
	}
	if opts.RequiredMarkers != 4 {
		t.Errorf("RequiredMarkers below 4 should be raised, got %d", opts.RequiredMarkers)
	}
}

func TestLayout(t *testing.T) {
	if got := NinePointBoard.Size(8); got != image.Pt(520, 520) {
		t.Errorf("Size(8): got %v, want (520,520)", got)
	}

	targets := NinePointBoard.Targets(8)
	want := CornerSet{
		TopLeft:     imaging.PointF{X: 100, Y: 100},
		TopRight:    imaging.PointF{X: 420, Y: 100},
		BottomRight: imaging.PointF{X: 420, Y: 420},
		BottomLeft:  imaging.PointF{X: 100, Y: 420},
	}
	if targets != want {
		t.Errorf("Targets(8): got %+v, want %+v", targets, want)
	}
}

func TestDetectFiducials_UprightBoard(t *testing.T) {
	c := New(testOptions())

	circles, err := c.DetectFiducials(drawBoard(4, 12, 9))
	if err != nil {
		t.Fatalf("DetectFiducials failed: %v", err)
	}
	if len(circles) != 9 {
		t.Fatalf("expected 9 fiducials, got %d", len(circles))
	}
	for _, circle := range circles {
		if math.Abs(circle.Radius-12) > 2 {
			t.Errorf("radius: got %.1f, want ~12", circle.Radius)
		}
	}
}

func TestDetectFiducials_IgnoresSquares(t *testing.T) {
	img := drawBoard(4, 12, 9)
	fillRect(img, image.Rect(75, 75, 105, 105), color.White)

	circles, err := New(testOptions()).DetectFiducials(img)
	if err != nil {
		t.Fatalf("DetectFiducials failed: %v", err)
	}
	if len(circles) != 9 {
		t.Errorf("square should be rejected: got %d circles", len(circles))
	}
}

func TestCalibrate_UprightBoard(t *testing.T) {
	img := drawBoard(4, 12, 9)

	result, err := New(testOptions()).Calibrate(img, 4)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if !result.Rectified {
		t.Fatal("expected rectification")
	}
	if result.Corners == nil {
		t.Fatal("expected corners")
	}

	want := NinePointBoard.Targets(4).Points()
	for i, p := range result.Corners.Points() {
		if p.Distance(want[i]) > 1 {
			t.Errorf("corner %d: got %v, want %v", i, p, want[i])
		}
	}
	if got := result.Image.Bounds().Size(); got != image.Pt(260, 260) {
		t.Errorf("rectified size: got %v, want (260,260)", got)
	}
}

func TestCalibrate_PerspectiveRoundTrip(t *testing.T) {
	board := drawBoard(4, 12, 9)

	// photograph the board from an oblique angle
	square := [4]imaging.PointF{{X: 0, Y: 0}, {X: 260, Y: 0}, {X: 260, Y: 260}, {X: 0, Y: 260}}
	camera := [4]imaging.PointF{{X: 20, Y: 10}, {X: 290, Y: 30}, {X: 275, Y: 295}, {X: 10, Y: 280}}
	h, err := imaging.ComputePerspectiveTransform(square, camera)
	if err != nil {
		t.Fatalf("ComputePerspectiveTransform failed: %v", err)
	}
	photo, err := imaging.WarpPerspective(board, h, image.Pt(310, 310))
	if err != nil {
		t.Fatalf("WarpPerspective failed: %v", err)
	}

	c := New(testOptions())
	result, err := c.Calibrate(photo, 4)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if !result.Rectified {
		t.Fatalf("expected rectification, found %d candidates", len(result.Candidates))
	}

	circles, err := c.DetectFiducials(result.Image)
	if err != nil {
		t.Fatalf("DetectFiducials on rectified image failed: %v", err)
	}
	if len(circles) != 9 {
		t.Fatalf("expected 9 fiducials after rectification, got %d", len(circles))
	}

	for _, want := range NinePointBoard.Targets(4).Points() {
		best := math.Inf(1)
		for _, circle := range circles {
			best = math.Min(best, circle.Center.Distance(want))
		}
		if best > 3 {
			t.Errorf("no fiducial within 3px of %v (nearest %.1f px)", want, best)
		}
	}
}

func TestCalibrate_TooFewFiducialsPassesThrough(t *testing.T) {
	img := drawBoard(4, 12, 3)

	result, err := New(testOptions()).Calibrate(img, 4)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if result.Rectified {
		t.Error("3 fiducials must not trigger rectification")
	}
	if result.Image != image.Image(img) {
		t.Error("passthrough must return the input image unchanged")
	}
	if result.Corners != nil {
		t.Errorf("passthrough should carry no corners, got %+v", result.Corners)
	}
	if result.Transform != imaging.Identity() {
		t.Errorf("passthrough transform should be the identity, got %v", result.Transform)
	}
	if len(result.Candidates) != 3 {
		t.Errorf("candidates: got %d, want 3", len(result.Candidates))
	}
}

func TestCalibrate_DegenerateCornersPassThrough(t *testing.T) {
	// the top row plus one fiducial below it: the selected top-left,
	// top-right and bottom-right corners are collinear
	img := drawBoard(4, 12, 4)

	result, err := New(testOptions()).Calibrate(img, 4)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if result.Rectified {
		t.Error("collinear corners must not trigger rectification")
	}
	if result.Image != image.Image(img) {
		t.Error("passthrough must return the input image unchanged")
	}
	if result.Corners != nil {
		t.Errorf("passthrough should carry no corners, got %+v", result.Corners)
	}
	if len(result.Candidates) != 4 {
		t.Errorf("candidates: got %d, want 4", len(result.Candidates))
	}
}

func TestCalibrate_SingleRowPassesThrough(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 60))
	fillRect(img, img.Bounds(), color.Black)
	for _, x := range []int{30, 80, 130, 180} {
		fillDisk(img, x, 30, 12, color.White)
	}

	result, err := New(testOptions()).Calibrate(img, 4)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if result.Rectified {
		t.Error("a single row of fiducials must not trigger rectification")
	}
}

func TestCalibrate_MagnificationBudget(t *testing.T) {
	c := New(testOptions())
	img := drawBoard(1, 3, 0)

	for _, mp := range []int{64, 1000, 10000000} {
		if _, err := c.Calibrate(img, mp); !errors.Is(err, ErrInvalidMagnification) {
			t.Errorf("mp %d: expected ErrInvalidMagnification, got %v", mp, err)
		}
	}
	if !NinePointBoard.fits(MaxMagnification) || !NinePointBoard.fits(63) {
		t.Error("MaxMagnification should fit the pixel budget")
	}
}

func TestCalibrate_StrictMarkerCount(t *testing.T) {
	img := drawBoard(4, 12, 8)

	strict := testOptions()
	strict.RequiredMarkers = StrictMarkerCount
	result, err := New(strict).Calibrate(img, 4)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if result.Rectified {
		t.Error("8 fiducials should not satisfy the strict count")
	}

	result, err = New(testOptions()).Calibrate(img, 4)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if !result.Rectified {
		t.Error("8 fiducials should satisfy the default count")
	}
}

func TestCalibrate_Errors(t *testing.T) {
	c := New(testOptions())

	if _, err := c.Calibrate(nil, 4); !errors.Is(err, imaging.ErrEmptyImage) {
		t.Errorf("nil image: expected ErrEmptyImage, got %v", err)
	}
	if _, err := c.Calibrate(image.NewRGBA(image.Rect(0, 0, 0, 0)), 4); !errors.Is(err, imaging.ErrEmptyImage) {
		t.Errorf("empty image: expected ErrEmptyImage, got %v", err)
	}
	if _, err := c.Calibrate(drawBoard(4, 12, 9), 0); !errors.Is(err, ErrInvalidMagnification) {
		t.Errorf("zero magnification: expected ErrInvalidMagnification, got %v", err)
	}
}

func TestRectify(t *testing.T) {
	out, err := New(testOptions()).Rectify(drawBoard(4, 12, 9), 2)
	if err != nil {
		t.Fatalf("Rectify failed: %v", err)
	}
	if got := out.Bounds().Size(); got != image.Pt(130, 130) {
		t.Errorf("size: got %v, want (130,130)", got)
	}
}
