// Package units provides the length and pixel conversions used by chart layout
package units

import "fmt"

// MM is the unit of every defect and signal scale
const MM = "mm"

// PixelsPerMillimetre is the CSS pixel density (96 dpi) expressed per millimetre
const PixelsPerMillimetre = 3.7795275591

// PointsPerPixel converts CSS pixels to typographic points (72 per inch)
const PointsPerPixel = 72.0 / 96.0

// PixelsToPoints converts CSS pixels to points, the unit used by vector canvases
func PixelsToPoints(px float64) float64 {
	return px * PointsPerPixel
}

// PointsToPixels converts points back to CSS pixels
func PointsToPixels(pt float64) float64 {
	return pt / PointsPerPixel
}

// FormatScale renders a drawing scale such as "1:5[mm]"
func FormatScale(scale float64) string {
	return fmt.Sprintf("1:%.0f[%s]", scale, MM)
}
