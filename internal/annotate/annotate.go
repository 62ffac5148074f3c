// Package annotate builds the positional overlays drawn on every chart:
// dashed threshold lines, event markers and speed-zone markers.
package annotate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/geometry.report/internal/track"
)

// Line dash styles of the overlays.
const (
	DashThreshold = "dash"
	DashEvent     = "longDash"
	DashSpeedZone = "longDashDot"
)

// DefaultNameLength is how many characters of an event name are shown.
const DefaultNameLength = 4

// MarkerKind tells vertical markers apart.
type MarkerKind string

const (
	KindEventStart MarkerKind = "event_start"
	KindEventEnd   MarkerKind = "event_end"
	KindSpeedZone  MarkerKind = "speed_zone"
)

// HorizontalMarker is a threshold line at Value spanning [Start, End].
type HorizontalMarker struct {
	Value float64 `json:"value"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Tier  int     `json:"tier"`
	Color string  `json:"color"`
	Dash  string  `json:"dash"`
}

// VerticalMarker is a reference line at Position. Label is empty on charts
// that do not carry labels.
type VerticalMarker struct {
	Position   float64    `json:"position"`
	Kind       MarkerKind `json:"kind"`
	Label      string     `json:"label"`
	Dash       string     `json:"dash"`
	Color      string     `json:"color"`
	LabelColor string     `json:"label_color"`
}

// Options controls marker labelling.
type Options struct {
	// Labelled is set for the reference chart only.
	Labelled bool
	// NameLength truncates event names; zero means DefaultNameLength.
	NameLength int
}

// ThresholdLines emits six dashed lines (lower and upper edge per tier) for
// every window intersecting [viewStart, viewEnd]. Windows must be sorted by
// start; generation stops at the first window starting past viewEnd.
func ThresholdLines(windows []track.ThresholdWindow, viewStart, viewEnd float64) []HorizontalMarker {
	var out []HorizontalMarker
	for _, w := range windows {
		if w.Start > viewEnd {
			break
		}
		if w.End <= viewStart {
			continue
		}
		for tier, b := range w.Bands {
			color := track.TierColor(tier)
			out = append(out,
				HorizontalMarker{Value: b.Lower, Start: w.Start, End: w.End, Tier: tier, Color: color, Dash: DashThreshold},
				HorizontalMarker{Value: b.Upper, Start: w.Start, End: w.End, Tier: tier, Color: color, Dash: DashThreshold},
			)
		}
	}
	return out
}

// EventMarkers emits one marker per event and a second one at the end of
// range events.
func EventMarkers(events []track.Event, opts Options) []VerticalMarker {
	n := opts.NameLength
	if n <= 0 {
		n = DefaultNameLength
	}

	out := make([]VerticalMarker, 0, len(events))
	for _, e := range events {
		start := VerticalMarker{Position: e.Position, Kind: KindEventStart, Dash: DashEvent, Color: "#000", LabelColor: "#000"}
		if opts.Labelled {
			start.Label = formatPosition(e.Position)
			if e.IsRange {
				start.Label += "," + strings.ToUpper(truncate(e.Name, n)) + "▼"
			}
		}
		out = append(out, start)

		if !e.IsRange {
			continue
		}
		end := VerticalMarker{Position: e.EndPosition, Kind: KindEventEnd, Dash: DashEvent, Color: "#000", LabelColor: "#000"}
		if opts.Labelled {
			end.Label = formatPosition(e.EndPosition) + "," + strings.ToLower(truncate(e.Name, n)) + "▲"
		}
		out = append(out, end)
	}
	return out
}

// SpeedZoneMarkers emits one marker per speed zone boundary.
func SpeedZoneMarkers(zones []track.SpeedZoneBoundary, opts Options) []VerticalMarker {
	out := make([]VerticalMarker, 0, len(zones))
	for _, z := range zones {
		m := VerticalMarker{Position: z.Position, Kind: KindSpeedZone, Dash: DashSpeedZone, Color: "#000", LabelColor: "#5a5a5a"}
		if opts.Labelled {
			m.Label = fmt.Sprintf("%.1f<V<=%.1f ▼", z.MinSpeed, z.MaxSpeed)
		}
		out = append(out, m)
	}
	return out
}

func formatPosition(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
