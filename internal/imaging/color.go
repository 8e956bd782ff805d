package imaging

import (
	"fmt"
	"image"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ColorRange is an inclusive box in RGB space. A pixel is inside the range
// when each of its 8-bit channels lies between the corresponding channels of
// Lower and Upper.
type ColorRange struct {
	Lower colorful.Color
	Upper colorful.Color
}

// RGB255 builds a colorful.Color from 8-bit components.
func RGB255(r, g, b uint8) colorful.Color {
	c, _ := colorful.MakeColor(color.NRGBA{R: r, G: g, B: b, A: 255})
	return c
}

// DefaultMarkerRange selects the saturated red band of the marker ball:
// R in [178, 255], G in [0, 150], B in [0, 148].
func DefaultMarkerRange() ColorRange {
	return ColorRange{
		Lower: RGB255(178, 0, 0),
		Upper: RGB255(255, 150, 148),
	}
}

// ParseColorRange parses "#RRGGBB" hex bounds into a range.
func ParseColorRange(lowerHex, upperHex string) (ColorRange, error) {
	lower, err := colorful.Hex(lowerHex)
	if err != nil {
		return ColorRange{}, fmt.Errorf("invalid lower bound %q: %w", lowerHex, err)
	}
	upper, err := colorful.Hex(upperHex)
	if err != nil {
		return ColorRange{}, fmt.Errorf("invalid upper bound %q: %w", upperHex, err)
	}

	r := ColorRange{Lower: lower, Upper: upper}
	lr, lg, lb := lower.RGB255()
	ur, ug, ub := upper.RGB255()
	if lr > ur || lg > ug || lb > ub {
		return ColorRange{}, fmt.Errorf("lower bound %s exceeds upper bound %s", lowerHex, upperHex)
	}
	return r, nil
}

// Contains reports whether an 8-bit color lies inside the range.
func (cr ColorRange) Contains(r, g, b uint8) bool {
	lr, lg, lb := cr.Lower.RGB255()
	ur, ug, ub := cr.Upper.RGB255()
	return r >= lr && r <= ur && g >= lg && g <= ug && b >= lb && b <= ub
}

// String returns the range as "#rrggbb-#rrggbb".
func (cr ColorRange) String() string {
	return cr.Lower.Hex() + "-" + cr.Upper.Hex()
}

// InRangeMask marks every pixel whose color lies inside cr with 255 and all
// others with 0. The mask has the same bounds as img.
func InRangeMask(img image.Image, cr ColorRange) *image.Gray {
	bounds := img.Bounds()
	mask := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if cr.Contains(uint8(r>>8), uint8(g>>8), uint8(b>>8)) {
				mask.Pix[mask.PixOffset(x, y)] = 255
			}
		}
	}
	return mask
}

// RedDominance converts an image to a single channel holding R - G - B,
// saturated at zero. The redder a pixel, the brighter it becomes.
func RedDominance(img image.Image) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			v := int(r>>8) - int(g>>8) - int(b>>8)
			if v < 0 {
				v = 0
			}
			out.Pix[out.PixOffset(x, y)] = uint8(v)
		}
	}
	return out
}

// RedDominanceMask marks pixels whose R - G - B reaches minimum with 255 and
// all others with 0.
func RedDominanceMask(img image.Image, minimum uint8) *image.Gray {
	mask := RedDominance(img)
	for i, v := range mask.Pix {
		if v >= minimum {
			mask.Pix[i] = 255
		} else {
			mask.Pix[i] = 0
		}
	}
	return mask
}
