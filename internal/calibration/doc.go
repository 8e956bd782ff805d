// Package calibration finds a fiducial board in a photo and warps it onto a
// canonical square.
//
// The board is dark with light circular fiducials. Calibrate segments the
// photo (grayscale, box blur, threshold, close, open), keeps the external
// contours that pass the circle test in package detection, reduces their
// centers to four corners with SelectCorners and resamples the image so
// those corners land at their Layout positions.
//
// # Passthrough
//
// When fewer circles than Options.RequiredMarkers are found, or the circles
// found do not span a usable quadrilateral, the input image is returned
// unchanged with Result.Rectified set to false. Callers that
// need to tell the two outcomes apart should inspect Result; Rectify hides
// the difference.
//
// # State
//
// Nothing is cached between calls. Every Calibrate call recomputes the
// transform from the pixels it is given.
package calibration
