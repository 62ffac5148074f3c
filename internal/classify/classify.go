// Package classify assigns severity classes to a channel's measurements and
// merges consecutive equal classes into drawable segments.
package classify

import (
	"math"

	"github.com/banshee-data/geometry.report/internal/track"
)

// Overflow is the window index recorded for points past the last window.
const Overflow = -1

// Segment is a maximal run of consecutive points sharing one class.
type Segment struct {
	Class  track.Class   `json:"color_class"`
	Color  string        `json:"color"`
	Points []track.Point `json:"points"`
}

// Bounds is the vertical extent of a classified channel.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Result is the output of one classification pass.
//
// Classes and Windows run parallel to Line. When the channel has no windows,
// Line is the input series, Classes, Windows and Segments are nil and
// HasBounds is false.
type Result struct {
	Line      []track.Point `json:"line"`
	Classes   []track.Class `json:"classes,omitempty"`
	Windows   []int         `json:"windows,omitempty"`
	Segments  []Segment     `json:"segments"`
	Bounds    Bounds        `json:"bounds"`
	HasBounds bool          `json:"has_bounds"`
}

// Level classifies a value against three bands, most severe test first.
// A value exactly on an edge takes the less severe class.
func Level(v float64, b track.Bands) track.Class {
	switch {
	case v > b[2].Upper || v < b[2].Lower:
		return track.ClassIAL
	case v > b[1].Upper || v < b[1].Lower:
		return track.ClassIL
	case v > b[0].Upper || v < b[0].Lower:
		return track.ClassAL
	default:
		return track.ClassOK
	}
}

// Classify runs the single forward pass over series. Positions are assumed
// non-decreasing; out of order input is tolerated but the result is then
// undefined. Use Strict to reject such input instead.
func Classify(series track.Series, windows []track.ThresholdWindow) Result {
	res, _ := classify(series, windows, false)
	return res
}

// Strict is Classify with a position ordering check. It returns a
// *track.DataOrderingError at the first decreasing position.
func Strict(series track.Series, windows []track.ThresholdWindow) (Result, error) {
	return classify(series, windows, true)
}

// LineOnly returns just the continuous trace, for derived channels drawn as an
// overlay without severity colouring.
func LineOnly(series track.Series, windows []track.ThresholdWindow) []track.Point {
	return Classify(series, windows).Line
}

func classify(series track.Series, windows []track.ThresholdWindow, strict bool) (Result, error) {
	if len(windows) == 0 {
		line := make([]track.Point, len(series))
		copy(line, series)
		return Result{Line: line}, nil
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	if len(series) > 0 && series[0].Valid() {
		minY, maxY = series[0].Value, series[0].Value
	}
	outer := windows[0].Outer()
	minY = math.Min(minY, outer.Lower)
	maxY = math.Max(maxY, outer.Upper)

	res := Result{
		Line:    make([]track.Point, 0, len(series)),
		Classes: make([]track.Class, 0, len(series)),
		Windows: make([]int, 0, len(series)),
	}

	cursor := 0
	prev := math.Inf(-1)
	for i, p := range series {
		if !p.Valid() {
			continue
		}
		if strict && p.Position < prev {
			return Result{}, &track.DataOrderingError{Index: i, Previous: prev, Position: p.Position}
		}
		prev = p.Position

		w := windows[cursor]
		for p.Position > w.End && cursor+1 < len(windows) {
			cursor++
			w = windows[cursor]
			outer := w.Outer()
			minY = math.Min(minY, outer.Lower)
			maxY = math.Max(maxY, outer.Upper)
		}

		class, idx := track.ClassOK, cursor
		if p.Position > w.End {
			idx = Overflow
		} else {
			class = Level(p.Value, w.Bands)
		}

		res.Line = append(res.Line, p)
		res.Classes = append(res.Classes, class)
		res.Windows = append(res.Windows, idx)
		res.Segments = appendPoint(res.Segments, class, p)

		minY = math.Min(minY, p.Value)
		maxY = math.Max(maxY, p.Value)
	}

	res.Bounds = Bounds{Min: minY, Max: maxY}
	res.HasBounds = true
	return res, nil
}

// appendPoint extends the open segment when the class is unchanged and opens
// a new one otherwise.
func appendPoint(segments []Segment, class track.Class, p track.Point) []Segment {
	if n := len(segments); n > 0 && segments[n-1].Class == class {
		segments[n-1].Points = append(segments[n-1].Points, p)
		return segments
	}
	return append(segments, Segment{Class: class, Color: class.Color(), Points: []track.Point{p}})
}
