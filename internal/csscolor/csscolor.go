// Package csscolor parses the CSS colour notations used in report configs
// and chart specs.
package csscolor

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

var named = map[string]color.Color{
	"transparent": color.Transparent,
	"black":       color.Black,
	"white":       color.White,
}

// Parse reads named colours, #rgb, #rrggbb and the rgb()/rgba() functions.
// As in CSS Color 4, rgb and rgba are aliases: both take three components
// and an optional alpha in [0, 1].
func Parse(s string) (color.Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := named[s]; ok {
		return c, nil
	}
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgba(") : len(s)-1])
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgb(") : len(s)-1])
	}
	return nil, fmt.Errorf("unsupported colour %q", s)
}

func parseHex(h string) (color.Color, error) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return nil, fmt.Errorf("bad hex colour #%s", h)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("bad hex colour #%s: %w", h, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func parseFunc(args string) (color.Color, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("expected 3 or 4 colour components, got %d", len(parts))
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("bad colour component %q", parts[i])
		}
		rgb[i] = uint8(v)
	}
	alpha := uint8(0xff)
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return nil, fmt.Errorf("bad alpha %q", parts[3])
		}
		alpha = uint8(math.Round(a * 255))
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}, nil
}
