package imaging

import (
	"image"
	"image/color"
	"testing"
)

// solidImage creates an in-memory image filled with one color.
func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestColorRange_Contains(t *testing.T) {
	cr := DefaultMarkerRange()

	tests := []struct {
		name    string
		r, g, b uint8
		want    bool
	}{
		{"pure red", 255, 0, 0, true},
		{"lower corner", 178, 0, 0, true},
		{"upper corner", 255, 150, 148, true},
		{"too dark", 177, 0, 0, false},
		{"too green", 255, 151, 0, false},
		{"too blue", 255, 0, 149, false},
		{"white", 255, 255, 255, false},
		{"black", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cr.Contains(tt.r, tt.g, tt.b); got != tt.want {
				t.Errorf("Contains(%d,%d,%d): got %v, want %v", tt.r, tt.g, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseColorRange(t *testing.T) {
	cr, err := ParseColorRange("#B20000", "#FF9694")
	if err != nil {
		t.Fatalf("ParseColorRange failed: %v", err)
	}
	if !cr.Contains(200, 100, 100) {
		t.Error("expected (200,100,100) inside parsed range")
	}
	if cr.String() != "#b20000-#ff9694" {
		t.Errorf("String: got %s", cr.String())
	}

	if _, err := ParseColorRange("red", "#FFFFFF"); err == nil {
		t.Error("expected error for non-hex lower bound")
	}
	if _, err := ParseColorRange("#FFFFFF", "#000000"); err == nil {
		t.Error("expected error for inverted bounds")
	}
}

func TestInRangeMask(t *testing.T) {
	img := solidImage(20, 10, color.White)
	for y := 2; y < 5; y++ {
		for x := 3; x < 7; x++ {
			img.Set(x, y, color.RGBA{220, 30, 30, 255})
		}
	}

	mask := InRangeMask(img, DefaultMarkerRange())

	count := 0
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			v := mask.GrayAt(x, y).Y
			inside := x >= 3 && x < 7 && y >= 2 && y < 5
			if inside && v != 255 {
				t.Errorf("pixel (%d,%d) should be in range", x, y)
			}
			if !inside && v != 0 {
				t.Errorf("pixel (%d,%d) should be out of range", x, y)
			}
			if v == 255 {
				count++
			}
		}
	}
	if count != 12 {
		t.Errorf("mask pixel count: got %d, want 12", count)
	}
}

func TestInRangeMask_OffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 10, 14, 14))
	img.Set(11, 12, color.RGBA{255, 0, 0, 255})

	mask := InRangeMask(img, DefaultMarkerRange())

	if mask.Bounds() != img.Bounds() {
		t.Fatalf("mask bounds: got %v, want %v", mask.Bounds(), img.Bounds())
	}
	if mask.GrayAt(11, 12).Y != 255 {
		t.Error("expected red pixel to be marked")
	}
}

func TestRedDominance(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{200, 50, 30, 255})
	img.Set(1, 0, color.RGBA{100, 80, 60, 255})
	img.Set(2, 0, color.RGBA{255, 255, 255, 255})

	gray := RedDominance(img)

	if v := gray.GrayAt(0, 0).Y; v != 120 {
		t.Errorf("red pixel: got %d, want 120", v)
	}
	if v := gray.GrayAt(1, 0).Y; v != 0 {
		t.Errorf("brownish pixel should saturate at 0, got %d", v)
	}
	if v := gray.GrayAt(2, 0).Y; v != 0 {
		t.Errorf("white pixel should saturate at 0, got %d", v)
	}
}

func TestRedDominanceMask(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{200, 50, 30, 255})
	img.Set(1, 0, color.RGBA{60, 30, 29, 255})
	img.Set(2, 0, color.RGBA{60, 30, 30, 255})

	mask := RedDominanceMask(img, 1)

	want := []uint8{255, 255, 0}
	for i, w := range want {
		if mask.Pix[i] != w {
			t.Errorf("pixel %d: got %d, want %d", i, mask.Pix[i], w)
		}
	}
}
