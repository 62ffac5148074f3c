// Package layout turns classified channels into render-ready chart specs.
// It performs no drawing; the specs are handed to a rendering surface.
package layout

import (
	"math"

	"github.com/banshee-data/geometry.report/internal/annotate"
	"github.com/banshee-data/geometry.report/internal/classify"
	"github.com/banshee-data/geometry.report/internal/thresholds"
	"github.com/banshee-data/geometry.report/internal/track"
	"github.com/banshee-data/geometry.report/internal/units"
)

// TraceColor is the stroke colour of data traces.
const TraceColor = "black"

// intervalSpan is the view span below which position ticks are placed at
// half the span instead of automatically.
const intervalSpan = 200

// Range is a closed axis range.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Trace is a continuous line.
type Trace struct {
	Points []track.Point `json:"points"`
	Dash   string        `json:"dash"`
	Color  string        `json:"color"`
}

// ChartSpec describes one chart of the stacked report.
type ChartSpec struct {
	Index     int      `json:"index"`
	ChannelID string   `json:"channel_id"`
	ShortName string   `json:"short_name"`
	Column    string   `json:"column"`
	Caption   []string `json:"caption,omitempty"`

	// Reference is set on the chart that carries marker labels and
	// position tick labels.
	Reference  bool    `json:"reference"`
	Height     float64 `json:"height"`
	Shaded     bool    `json:"shaded"`
	Background string  `json:"background"`

	XAxis       Range     `json:"x_axis"`
	XInterval   float64   `json:"x_interval,omitempty"` // 0 = automatic
	YAxis       Range     `json:"y_axis"`
	YAxisLabels []float64 `json:"y_axis_labels,omitempty"`

	Line       Trace                       `json:"line"`
	Segments   []classify.Segment          `json:"segments"`
	Thresholds []annotate.HorizontalMarker `json:"thresholds"`
	Markers    []annotate.VerticalMarker   `json:"markers"`
	Overlays   []Trace                     `json:"overlays,omitempty"`

	// Margin is the value-axis correction set by the axis aligner.
	Margin float64 `json:"margin"`
}

// Channel is one visible channel together with its classification.
type Channel struct {
	Descriptor track.ChannelDescriptor
	Windows    []track.ThresholdWindow
	Result     classify.Result
}

// Params carries the run-wide inputs of the planner.
type Params struct {
	View          Range
	DefectScale   float64
	SignalScale   float64
	DisplayEvents bool
	Events        []track.Event
	SpeedZones    []track.SpeedZoneBoundary

	// CantDefect is drawn as a line-only overlay on the cant chart.
	CantDefect track.Series

	PixelsPerUnit   float64
	BaseOffset      float64
	ReferenceIndex  int // negative = last chart
	ReferenceHeight float64
	AxisPadding     float64
	ShadeColor      string
	EventNameLength int
}

// Validate guards the divisions and sizes the planner relies on.
func (p Params) Validate() error {
	if !(p.DefectScale > 0) || math.IsInf(p.DefectScale, 0) {
		return &track.ConfigurationError{Field: "defect_scale", Reason: "must be a positive number"}
	}
	if !(p.PixelsPerUnit > 0) {
		return &track.ConfigurationError{Field: "pixels_per_unit", Reason: "must be positive"}
	}
	if !(p.ReferenceHeight > 0) {
		return &track.ConfigurationError{Field: "reference_chart_height", Reason: "must be positive"}
	}
	return nil
}

// referenceIndex resolves which chart of n is the reference chart. It
// returns -1 when a pinned index lies outside the set.
func (p Params) referenceIndex(n int) int {
	if p.ReferenceIndex < 0 {
		return n - 1
	}
	if p.ReferenceIndex >= n {
		return -1
	}
	return p.ReferenceIndex
}

// Plan builds one ChartSpec per channel, preserving channel order.
func Plan(channels []Channel, p Params) ([]ChartSpec, error) {
	if len(channels) == 0 {
		return nil, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ref := p.referenceIndex(len(channels))
	xAxis := Range{Min: p.View.Min, Max: p.View.Max + 1}
	interval := 0.0
	if span := math.Abs(p.View.Max - p.View.Min); span < intervalSpan {
		interval = math.Floor(span / 2)
	}

	specs := make([]ChartSpec, 0, len(channels))
	for i, ch := range channels {
		d := ch.Descriptor
		isRef := i == ref
		bounds := chartBounds(ch.Result)

		spec := ChartSpec{
			Index:       i,
			ChannelID:   d.ID,
			ShortName:   d.ShortName,
			Column:      d.Column,
			Reference:   isRef,
			Height:      Height(bounds, p),
			Shaded:      i%2 == 0,
			Background:  track.ColorTransparent,
			XAxis:       xAxis,
			XInterval:   interval,
			YAxis:       Range{Min: bounds.Min - p.AxisPadding, Max: bounds.Max + p.AxisPadding},
			YAxisLabels: thresholds.AxisLabels(ch.Windows),
			Line:        Trace{Points: ch.Result.Line, Dash: dashOf(d), Color: TraceColor},
			Segments:    ch.Result.Segments,
			Thresholds:  annotate.ThresholdLines(ch.Windows, p.View.Min, p.View.Max),
		}
		if isRef {
			spec.Height = p.ReferenceHeight
		} else {
			spec.Caption = caption(d, p)
		}
		if spec.Shaded {
			spec.Background = p.ShadeColor
		}

		opts := annotate.Options{Labelled: isRef, NameLength: p.EventNameLength}
		if p.DisplayEvents {
			spec.Markers = append(spec.Markers, annotate.EventMarkers(p.Events, opts)...)
		}
		spec.Markers = append(spec.Markers, annotate.SpeedZoneMarkers(p.SpeedZones, opts)...)

		if d.ID == track.ChannelCant {
			spec.Overlays = append(spec.Overlays, Trace{
				Points: classify.LineOnly(p.CantDefect, ch.Windows),
				Dash:   track.DashSolid,
				Color:  TraceColor,
			})
		}

		specs = append(specs, spec)
	}
	return specs, nil
}

// Height converts a vertical data spread into pixels so that equal defect
// magnitudes occupy equal heights on every non-reference chart.
func Height(bounds classify.Bounds, p Params) float64 {
	return (bounds.Max-bounds.Min)/p.DefectScale*p.PixelsPerUnit + p.BaseOffset
}

// chartBounds returns the classifier bounds, or the extent of the line for
// channels classified without thresholds.
func chartBounds(res classify.Result) classify.Bounds {
	if res.HasBounds {
		return res.Bounds
	}
	b := classify.Bounds{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, pt := range res.Line {
		if !pt.Valid() {
			continue
		}
		b.Min = math.Min(b.Min, pt.Value)
		b.Max = math.Max(b.Max, pt.Value)
	}
	if math.IsInf(b.Min, 1) {
		return classify.Bounds{}
	}
	return b
}

func dashOf(d track.ChannelDescriptor) string {
	if d.Dash == "" {
		return track.DashSolid
	}
	return d.Dash
}

func caption(d track.ChannelDescriptor, p Params) []string {
	if d.ID == track.ChannelCant {
		return []string{
			"Cant Defect " + units.FormatScale(p.DefectScale),
			d.Column + " " + units.FormatScale(p.SignalScale),
		}
	}
	return []string{d.Column, units.FormatScale(p.DefectScale)}
}
