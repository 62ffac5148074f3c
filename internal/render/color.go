package render

import (
	"image/color"

	"github.com/banshee-data/geometry.report/internal/csscolor"
)

// colorOrBlack parses planner colours. Config colours are validated on load,
// so only a malformed spec reaches the black fallback.
func colorOrBlack(s string) color.Color {
	c, err := csscolor.Parse(s)
	if err != nil {
		return color.Black
	}
	return c
}
