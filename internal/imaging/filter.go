package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// ErrEmptyImage is returned when a nil or zero-area image is passed to an
// operation that needs pixels.
var ErrEmptyImage = errors.New("image is nil or empty")

// CheckImage reports ErrEmptyImage for nil or zero-area images.
func CheckImage(img image.Image) error {
	if img == nil {
		return ErrEmptyImage
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("bounds %v: %w", img.Bounds(), ErrEmptyImage)
	}
	return nil
}

// ToGrayscale converts an image to a single opaque luminance channel.
func ToGrayscale(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	bounds := rgba.Bounds()
	gray := image.NewGray(bounds)
	for y := 0; y < bounds.Dy(); y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+bounds.Dx()*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+bounds.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return gray
}

// Blur applies a normalized box filter with a square kernel of
// kernelSize pixels per side. Sizes below 2 return an unfiltered copy.
func Blur(img image.Image, kernelSize int) *image.RGBA {
	// bild sizes its kernel as ceil(2*radius+1)
	radius := float64(kernelSize-1) / 2
	return blur.Box(img, radius)
}

// Threshold binarizes an image: pixels whose luminance exceeds cutoff become
// 255, all others 0. A cutoff of 255 yields an empty mask.
//
// The comparison runs on the rounded luminance of ToGrayscale. bild's
// segment.Threshold truncates its float luminance instead, which moves some
// gray levels (146 becomes 145) across the cutoff.
func Threshold(img image.Image, cutoff uint8) *image.Gray {
	mask := ToGrayscale(img)
	for i, v := range mask.Pix {
		if v > cutoff {
			mask.Pix[i] = 255
		} else {
			mask.Pix[i] = 0
		}
	}
	return mask
}

// Nonzero binarizes an image so that any pixel with non-zero luminance is
// foreground. Blurred masks keep their soft fringe as foreground this way.
func Nonzero(img image.Image) *image.Gray {
	return Threshold(img, 0)
}

// MorphologyClose dilates then erodes a binary image with a square
// structuring element of kernelSize pixels, filling small gaps.
func MorphologyClose(img image.Image, kernelSize int) *image.Gray {
	if kernelSize < 2 {
		return Threshold(img, 128)
	}
	radius := morphRadius(kernelSize)
	return Threshold(effect.Erode(effect.Dilate(img, radius), radius), 128)
}

// MorphologyOpen erodes then dilates a binary image, removing specks smaller
// than the structuring element.
func MorphologyOpen(img image.Image, kernelSize int) *image.Gray {
	if kernelSize < 2 {
		return Threshold(img, 128)
	}
	radius := morphRadius(kernelSize)
	return Threshold(effect.Dilate(effect.Erode(img, radius), radius), 128)
}

func morphRadius(kernelSize int) float64 {
	return float64(kernelSize-1) / 2
}

// CleanMask runs the close-then-open sequence used by every segmentation
// pass to fill gaps in blobs and strip isolated noise pixels.
func CleanMask(img image.Image, kernelSize int) *image.Gray {
	return MorphologyOpen(MorphologyClose(img, kernelSize), kernelSize)
}
