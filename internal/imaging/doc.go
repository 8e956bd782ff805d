// Package imaging provides the image-processing primitives used by the board
// calibration and marker detection pipelines.
//
// The primitives are deliberately small black boxes with fixed contracts:
//
//   - ToGrayscale, Blur, Threshold, Nonzero: single-image filters built on bild
//   - MorphologyClose, MorphologyOpen, CleanMask: binary mask cleanup
//   - FindExternalContours, BoundingBox: region boundaries
//   - ComputePerspectiveTransform, WarpPerspective: projective rectification
//   - InRangeMask, RedDominance, RedDominanceMask: color segmentation
//   - ImageCache, DecodeBytes, EncodePNG: loading and encoding
//   - DrawBoardGrid: board-unit grid on a rectified board
//
// # Coordinate System
//
// All coordinates use the standard image convention: origin at the top-left
// corner, X increasing rightward, Y increasing downward. Rectangles use an
// inclusive Min and an exclusive Max.
//
// # Binary Masks
//
// Masks are *image.Gray values where 255 marks foreground and 0 background.
// Contour extraction treats any non-zero pixel as foreground.
//
// # Thread Safety
//
// Every function allocates its own output and scratch buffers, so calls on
// independent images may run concurrently. ImageCache is safe for concurrent
// use.
package imaging
