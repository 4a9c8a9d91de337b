// Package imaging provides the raster primitives used by the droplet assay.
//
// Frames are decoded from disk (PNG, JPEG, GIF or TIFF) into single-channel
// float rasters in the 0-255 range. On top of that the package implements the
// image operations the extractor and the circle detector share: minimum
// projection and disk dilation for background estimation, background
// subtraction with cropping, nearest-border correlation, Hanning windows,
// Canny edge detection and circle annotation.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel), also called the column
//   - Y: vertical position (0 = topmost pixel), also called the row
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// Raster operations are stateless and return new rasters, so they can be
// called concurrently as long as callers do not mutate shared inputs.
// Sequence and RasterSource are safe for concurrent Frame calls.
// BackgroundCache is safe for concurrent use.
//
// # Error Handling
//
// Conditions that make a whole sequence unusable wrap ErrInput:
//   - No frame files match the prefix
//   - None of the sampled frames decode
//   - A requested frame range is empty
//
// Failures to decode an individual frame are returned as plain wrapped errors
// so callers can degrade that frame alone.
package imaging
