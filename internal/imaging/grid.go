package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultGridColor is the line color of DrawBoardGrid when none is given.
var DefaultGridColor = RGB255(0, 200, 255)

// DrawBoardGrid copies a rectified board and rules it every `every` board
// units, magnification pixels per unit. Each intersection is labelled with
// its board coordinates ("x,y"), the same units the locator reports.
//
// Lines start at the first multiple of every inside the image; the board
// edge itself is not drawn. A non-positive magnification or every returns
// the plain copy.
func DrawBoardGrid(img image.Image, magnification, every int, lineColor colorful.Color) *image.NRGBA {
	result := imaging.Clone(img)
	if magnification <= 0 || every <= 0 {
		return result
	}

	r, g, b := lineColor.RGB255()
	line := color.NRGBA{R: r, G: g, B: b, A: 255}
	step := magnification * every
	width, height := result.Bounds().Dx(), result.Bounds().Dy()

	for x := step; x < width; x += step {
		for y := 0; y < height; y++ {
			result.SetNRGBA(x, y, line)
		}
	}
	for y := step; y < height; y += step {
		for x := 0; x < width; x++ {
			result.SetNRGBA(x, y, line)
		}
	}

	fg := color.NRGBA{255, 255, 255, 255}
	bg := color.NRGBA{0, 0, 0, 255}
	for y := step; y < height; y += step {
		for x := step; x < width; x += step {
			drawLabel(result, x+2, y+2, fmt.Sprintf("%d,%d", x/magnification, y/magnification), fg, bg)
		}
	}
	return result
}

// glyphs is a 3x5 pixel font covering board coordinates.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	',': {"000", "000", "000", "010", "010"},
}

// drawLabel draws text on a filled box with its top-left corner at (x, y).
// Pixels outside img are skipped and unknown runes leave a gap.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	bounds := img.Bounds()
	const charWidth, labelHeight = 4, 7
	labelWidth := len(text) * charWidth

	set := func(px, py int, c color.NRGBA) {
		if image.Pt(px, py).In(bounds) {
			img.SetNRGBA(px, py, c)
		}
	}

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			set(x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				if pixel == '1' {
					set(cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
