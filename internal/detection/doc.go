// Package detection finds droplets and measures blobs.
//
// Two families of algorithms live here:
//
//   - Droplet detection: a minimum projection over sample frames, the
//     gradient Hough circle transform and column-major grid labeling
//     (DetectDroplets, HoughCircles, AssignGrid).
//   - Blob measurement: 8-connected component extraction and moment based
//     region properties (ComponentAt, Props), used by the per-frame feature
//     extractor.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X (column) increases rightward
//   - Y (row) increases downward
//
// # Grid Labels
//
// Droplet chambers are imaged as a regular grid. Labels run down each
// column before moving right, so on a 4 x 3 grid labels 1-3 are the leftmost
// column:
//
//	1  4  7  10
//	2  5  8  11
//	3  6  9  12
//
// # Limitations
//
// The Hough transform works best on clean, high-contrast rims. Partially
// occluded or touching droplets may be missed or merged; callers can always
// supply ROIs by hand instead.
package detection
