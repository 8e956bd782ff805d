package detection

import (
	"image"

	"github.com/ironsheep/board-locator-mcp/internal/imaging"
)

// Blob is one connected foreground region reduced to its bounding box.
type Blob struct {
	Bounds image.Rectangle `json:"-"`
	Center imaging.Point   `json:"center"`
}

// BlobCenter returns the midpoint of a contour's bounding box.
//
// The midpoint is taken between the box's Min and its exclusive Max with
// integer division, so a blob covering x = 10..13 reports x = 12 and a blob
// covering x = 10..12 reports x = 11.
func BlobCenter(contour imaging.Contour) imaging.Point {
	box := imaging.BoundingBox(contour)
	return imaging.Point{
		X: (box.Min.X + box.Max.X) / 2,
		Y: (box.Min.Y + box.Max.Y) / 2,
	}
}

// DetectBlobs extracts the external contours of a binary mask and reduces
// each to its bounding box and center. No shape test is applied.
//
// A mask without foreground yields an empty, non-nil slice.
func DetectBlobs(mask *image.Gray) []Blob {
	contours := imaging.FindExternalContours(mask)
	blobs := make([]Blob, 0, len(contours))
	for _, c := range contours {
		blobs = append(blobs, Blob{
			Bounds: imaging.BoundingBox(c),
			Center: BlobCenter(c),
		})
	}
	return blobs
}
