// Package detection classifies the regions found in binary masks.
//
// Two kinds of regions matter to the board pipeline:
//
//   - Fiducials: printed circles used for calibration. Classify decides
//     whether a contour is a circle and estimates its center, radius and a
//     confidence score.
//   - Marker blobs: color-segmented regions reduced to the midpoint of their
//     bounding box by DetectBlobs. No circularity test is applied to them.
//
// # Circle Test
//
// Classify is an O(n) approximation. The center and radius come from the
// contour's four axis-extremal points; a second scan counts points whose
// radial distance strays from the radius by more than a tolerance. A contour
// is a circle when the outliers stay under a fixed fraction of its points.
// Squares fail at the default thresholds because their corners lie about
// 41% beyond the inscribed radius.
//
// # Coordinate System
//
// Coordinates follow the image convention used by package imaging: origin at
// the top-left, X rightward, Y downward.
//
// Every function here is pure and safe for concurrent use.
package detection
