// Package track holds the track-geometry data model shared by the
// classification and chart layout stages.
package track

import (
	"encoding/json"
	"math"
)

// Point is a single measurement at a position (stationing) along the track.
// A NaN Value marks an absent measurement.
type Point struct {
	Position float64
	Value    float64
}

// Valid reports whether both coordinates carry a number.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Position) && !math.IsNaN(p.Value)
}

type pointJSON struct {
	X float64  `json:"x"`
	Y *float64 `json:"y"`
}

// MarshalJSON encodes the point as {"x":..,"y":..}; absent values become null.
func (p Point) MarshalJSON() ([]byte, error) {
	out := pointJSON{X: p.Position}
	if !math.IsNaN(p.Value) {
		v := p.Value
		out.Y = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *Point) UnmarshalJSON(data []byte) error {
	var in pointJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Position = in.X
	p.Value = math.NaN()
	if in.Y != nil {
		p.Value = *in.Y
	}
	return nil
}

// Series is the ordered measurement sequence of one channel. Positions are
// expected to be non-decreasing.
type Series []Point

// SeverityBand is one lower/upper limit pair.
type SeverityBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Bands holds the three escalating severity bands of a window, innermost first.
type Bands [3]SeverityBand

// ThresholdWindow applies a set of bands to the position range [Start, End].
// MinSpeed and MaxSpeed are only meaningful for speed-zone derived windows.
type ThresholdWindow struct {
	Start    float64 `json:"position_start"`
	End      float64 `json:"position_end"`
	Bands    Bands   `json:"bands"`
	MinSpeed float64 `json:"min_speed,omitempty"`
	MaxSpeed float64 `json:"max_speed,omitempty"`
}

// Outer returns the most severe band of the window.
func (w ThresholdWindow) Outer() SeverityBand {
	return w.Bands[2]
}

// Event is a named position of interest. Range events also carry EndPosition.
type Event struct {
	Position    float64 `json:"position"`
	EndPosition float64 `json:"end_position,omitempty"`
	IsRange     bool    `json:"is_range"`
	Name        string  `json:"name"`
}

// SpeedZoneBoundary marks where a speed zone ends.
type SpeedZoneBoundary struct {
	Position float64 `json:"position"`
	MinSpeed float64 `json:"min_speed"`
	MaxSpeed float64 `json:"max_speed"`
}

// Class is the severity classification of a single point.
type Class uint8

const (
	ClassOK Class = iota
	ClassAL
	ClassIL
	ClassIAL
)

func (c Class) String() string {
	switch c {
	case ClassAL:
		return "AL"
	case ClassIL:
		return "IL"
	case ClassIAL:
		return "IAL"
	default:
		return "OK"
	}
}

// Tier returns the band index the class corresponds to, or -1 for OK.
func (c Class) Tier() int {
	return int(c) - 1
}

// Color returns the fill colour of the class.
func (c Class) Color() string {
	if c == ClassOK {
		return ColorTransparent
	}
	return TierColor(c.Tier())
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(text []byte) error {
	switch string(text) {
	case "AL":
		*c = ClassAL
	case "IL":
		*c = ClassIL
	case "IAL":
		*c = ClassIAL
	default:
		*c = ClassOK
	}
	return nil
}

// Severity colours.
const (
	ColorAlert        = "#FFEF35"
	ColorIntervention = "#FF9B31"
	ColorImmediate    = "#E40D3B"
	ColorTransparent  = "transparent"
)

// TierColor maps a band tier to its colour. Unknown tiers fall back to the
// alert colour.
func TierColor(tier int) string {
	switch tier {
	case 1:
		return ColorIntervention
	case 2:
		return ColorImmediate
	default:
		return ColorAlert
	}
}

// ThresholdConfig holds the window lists of every axis, keyed by limit category.
type ThresholdConfig map[Axis]map[LimitCategory][]ThresholdWindow
