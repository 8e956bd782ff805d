package locator

import (
	"errors"
	"image"
	"image/color"
	"reflect"
	"testing"

	"github.com/ironsheep/board-locator-mcp/internal/calibration"
	"github.com/ironsheep/board-locator-mcp/internal/imaging"
)

var markerRed = color.RGBA{230, 30, 30, 255}

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

func blackImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

// drawScene renders the nine-point board at magnification 6 with
// fiducials of radius 18 and a marker of radius 12 at each pixel center.
func drawScene(markers ...image.Point) *image.RGBA {
	img := blackImage(390, 390)
	for _, y := range []int{75, 195, 315} {
		for _, x := range []int{75, 195, 315} {
			fillDisk(img, x, y, 18, color.White)
		}
	}
	for _, m := range markers {
		fillDisk(img, m.X, m.Y, 12, markerRed)
	}
	return img
}

// fastOptions suits the synthetic scenes, whose fiducials are small.
func fastOptions() Options {
	opts := DefaultOptions()
	opts.Calibration.BlurSize = 5
	return opts
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Mode != SegmentColorRange {
		t.Errorf("Mode: got %q", opts.Mode)
	}
	if opts.BlurSize != 8 || opts.MorphKernel != 3 {
		t.Errorf("blob settings: got blur %d, kernel %d", opts.BlurSize, opts.MorphKernel)
	}
	if opts.ColorRange.String() != "#b20000-#ff9694" {
		t.Errorf("ColorRange: got %s", opts.ColorRange)
	}
	if opts.Calibration.RequiredMarkers != 4 {
		t.Errorf("RequiredMarkers: got %d", opts.Calibration.RequiredMarkers)
	}
}

func TestNew_FillsZeroOptions(t *testing.T) {
	l := New(Options{})
	opts := l.Options()

	if opts.Mode != SegmentColorRange || opts.BlurSize != 8 || opts.RedThreshold != 2 {
		t.Errorf("zero options should take defaults, got %+v", opts)
	}
	if opts.Calibration.BlurSize != 30 {
		t.Errorf("calibration defaults: got blur %d", opts.Calibration.BlurSize)
	}
}

func TestGetMarkerPositions_SingleMarker(t *testing.T) {
	positions, err := GetMarkerPositions(drawScene(image.Pt(60, 60)), DefaultMagnification)
	if err != nil {
		t.Fatalf("GetMarkerPositions failed: %v", err)
	}

	want := []Position{{X: 10, Y: 10}}
	if !reflect.DeepEqual(positions, want) {
		t.Errorf("got %v, want %v", positions, want)
	}
}

func TestGetMarkerPositions_ZeroMagnificationUsesDefault(t *testing.T) {
	positions, err := GetMarkerPositions(drawScene(image.Pt(60, 60)), 0)
	if err != nil {
		t.Fatalf("GetMarkerPositions failed: %v", err)
	}
	if len(positions) != 1 || positions[0] != (Position{X: 10, Y: 10}) {
		t.Errorf("got %v, want [{10 10}]", positions)
	}
}

func TestLocate_PerspectivePhoto(t *testing.T) {
	scene := drawScene(image.Pt(60, 60), image.Pt(200, 150))

	square := [4]imaging.PointF{{X: 0, Y: 0}, {X: 390, Y: 0}, {X: 390, Y: 390}, {X: 0, Y: 390}}
	camera := [4]imaging.PointF{{X: 25, Y: 15}, {X: 430, Y: 35}, {X: 415, Y: 445}, {X: 12, Y: 420}}
	h, err := imaging.ComputePerspectiveTransform(square, camera)
	if err != nil {
		t.Fatalf("ComputePerspectiveTransform failed: %v", err)
	}
	photo, err := imaging.WarpPerspective(scene, h, image.Pt(460, 460))
	if err != nil {
		t.Fatalf("WarpPerspective failed: %v", err)
	}

	d, err := New(fastOptions()).Detect(photo, 6)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !d.Calibration.Rectified {
		t.Fatalf("expected rectification, found %d fiducials", len(d.Calibration.Candidates))
	}

	want := []Position{{X: 10, Y: 10}, {X: 33, Y: 25}}
	if !reflect.DeepEqual(d.Positions, want) {
		t.Errorf("got %v, want %v", d.Positions, want)
	}
	if len(d.Blobs) != len(d.Positions) {
		t.Errorf("blobs: got %d, want %d", len(d.Blobs), len(d.Positions))
	}
}

func TestLocate_NoMarkers(t *testing.T) {
	positions, err := New(fastOptions()).Locate(drawScene(), 6)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if positions == nil || len(positions) != 0 {
		t.Errorf("expected empty, non-nil result, got %v", positions)
	}
}

func TestLocate_WithoutBoardUsesRawImage(t *testing.T) {
	img := blackImage(120, 120)
	fillDisk(img, 60, 60, 12, markerRed)

	d, err := New(fastOptions()).Detect(img, 6)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if d.Calibration.Rectified {
		t.Error("an image without fiducials must pass through")
	}
	if !reflect.DeepEqual(d.Positions, []Position{{X: 10, Y: 10}}) {
		t.Errorf("got %v, want [{10 10}]", d.Positions)
	}
}

func TestLocate_DegenerateCornersUseRawImage(t *testing.T) {
	// top row plus one fiducial below its left end
	img := blackImage(390, 390)
	for _, c := range []image.Point{{75, 75}, {195, 75}, {315, 75}, {75, 195}} {
		fillDisk(img, c.X, c.Y, 18, color.White)
	}
	fillDisk(img, 120, 300, 12, markerRed)

	d, err := New(fastOptions()).Detect(img, 6)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if d.Calibration.Rectified {
		t.Error("collinear corners must pass through")
	}
	if !reflect.DeepEqual(d.Positions, []Position{{X: 20, Y: 50}}) {
		t.Errorf("got %v, want [{20 50}]", d.Positions)
	}
}

func TestLocate_RedDominanceMode(t *testing.T) {
	// dark red sits below the color range but is still red-dominant
	img := blackImage(120, 120)
	fillDisk(img, 60, 60, 12, color.RGBA{150, 20, 20, 255})

	positions, err := New(fastOptions()).Locate(img, 6)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("color range mode should miss the dark marker, got %v", positions)
	}

	opts := fastOptions()
	opts.Mode = SegmentRedDominance
	positions, err = New(opts).Locate(img, 6)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if !reflect.DeepEqual(positions, []Position{{X: 10, Y: 10}}) {
		t.Errorf("got %v, want [{10 10}]", positions)
	}
}

func TestLocate_Errors(t *testing.T) {
	l := New(fastOptions())

	if _, err := l.Locate(nil, 6); !errors.Is(err, imaging.ErrEmptyImage) {
		t.Errorf("nil image: expected ErrEmptyImage, got %v", err)
	}
	if _, err := l.Locate(image.NewRGBA(image.Rect(0, 0, 0, 0)), 6); !errors.Is(err, imaging.ErrEmptyImage) {
		t.Errorf("empty image: expected ErrEmptyImage, got %v", err)
	}
	if _, err := l.Locate(blackImage(10, 10), -1); !errors.Is(err, ErrInvalidMagnification) {
		t.Errorf("negative magnification: expected ErrInvalidMagnification, got %v", err)
	}
	if !errors.Is(ErrInvalidMagnification, calibration.ErrInvalidMagnification) {
		t.Error("locator and calibration should share the magnification error")
	}
}
