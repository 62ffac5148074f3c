package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/geometry.report/internal/align"
	"github.com/banshee-data/geometry.report/internal/annotate"
	"github.com/banshee-data/geometry.report/internal/layout"
	"github.com/banshee-data/geometry.report/internal/track"
	"github.com/banshee-data/geometry.report/internal/units"
)

// Stroke widths in points.
const (
	traceWidth   = 1
	segmentWidth = 3
	markerWidth  = 0.75
)

// dashPatterns maps dash style names to gonum dash lengths in points.
var dashPatterns = map[string][]vg.Length{
	annotate.DashThreshold:   {vg.Points(4), vg.Points(2)},
	annotate.DashEvent:       {vg.Points(8), vg.Points(3)},
	annotate.DashSpeedZone:   {vg.Points(8), vg.Points(3), vg.Points(1), vg.Points(3)},
	track.DashLongDashDotDot: {vg.Points(8), vg.Points(3), vg.Points(1), vg.Points(2), vg.Points(1), vg.Points(3)},
}

// PlotSurface renders the stacked charts into a single PNG with gonum/plot.
type PlotSurface struct {
	stack
	width float64 // page width in pixels, padding included
	plots []*plot.Plot
}

// NewPlotSurface returns a surface producing snapshots pageWidth+padding
// pixels wide.
func NewPlotSurface(pageWidth, padding float64) *PlotSurface {
	return &PlotSurface{width: pageWidth + padding}
}

// Draw builds the chart and reports its value-axis gutter.
func (s *PlotSurface) Draw(spec layout.ChartSpec) (align.Gutter, error) {
	p, err := buildPlot(spec)
	if err != nil {
		return align.Gutter{}, fmt.Errorf("render: chart %d (%s): %w", spec.Index, spec.ChannelID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.add(spec); err != nil {
		return align.Gutter{}, err
	}
	s.plots = append(s.plots, p)
	return gutterFor(spec), nil
}

// SetMargin stores the corrective margin of a drawn chart.
func (s *PlotSurface) SetMargin(index int, margin float64) error {
	return s.setMargin(index, margin)
}

// Snapshot composes every chart top to bottom on a white canvas and returns
// it as a PNG data URL.
func (s *PlotSurface) Snapshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.plots) == 0 {
		return "", ErrNoCharts
	}

	w := vg.Length(units.PixelsToPoints(s.width))
	h := vg.Length(units.PixelsToPoints(s.totalHeight()))
	img := vgimg.New(w, h)

	left := offsets(s.margins)
	top := h
	for i, p := range s.plots {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ch := vg.Length(units.PixelsToPoints(s.specs[i].Height))
		c := draw.Canvas{
			Canvas: img,
			Rectangle: vg.Rectangle{
				Min: vg.Point{X: vg.Length(units.PixelsToPoints(left[i])), Y: top - ch},
				Max: vg.Point{X: w, Y: top},
			},
		}
		p.Draw(c)
		top -= ch
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render: encode png: %w", err)
	}
	return PNGDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func buildPlot(spec layout.ChartSpec) (*plot.Plot, error) {
	p := plot.New()
	p.BackgroundColor = colorOrBlack(spec.Background)
	p.Y.Tick.Marker = constantTicks(spec.YAxis, yTickValues(spec))
	if spec.Reference {
		if spec.XInterval > 0 {
			p.X.Tick.Marker = intervalTicks(spec.XAxis, spec.XInterval)
		}
	} else {
		p.HideX()
	}

	for _, seg := range spec.Segments {
		if seg.Class == track.ClassOK || len(seg.Points) == 0 {
			continue
		}
		if err := addTrace(p, seg.Points, seg.Color, track.DashSolid, segmentWidth); err != nil {
			return nil, err
		}
	}

	for _, m := range spec.Thresholds {
		x1, x2 := math.Max(m.Start, spec.XAxis.Min), math.Min(m.End, spec.XAxis.Max)
		if x1 >= x2 {
			continue
		}
		pts := []track.Point{{Position: x1, Value: m.Value}, {Position: x2, Value: m.Value}}
		if err := addTrace(p, pts, m.Color, m.Dash, markerWidth); err != nil {
			return nil, err
		}
	}

	if err := addTrace(p, spec.Line.Points, spec.Line.Color, spec.Line.Dash, traceWidth); err != nil {
		return nil, err
	}
	for _, o := range spec.Overlays {
		if err := addTrace(p, o.Points, o.Color, o.Dash, traceWidth); err != nil {
			return nil, err
		}
	}

	if err := addMarkers(p, spec); err != nil {
		return nil, err
	}
	if err := addCaption(p, spec); err != nil {
		return nil, err
	}

	// Add widens the axes to the data; the planned ranges win.
	p.X.Min, p.X.Max = spec.XAxis.Min, spec.XAxis.Max
	p.Y.Min, p.Y.Max = spec.YAxis.Min, spec.YAxis.Max
	return p, nil
}

func addTrace(p *plot.Plot, pts []track.Point, color, dash string, width float64) error {
	for _, run := range validRuns(pts) {
		l, err := plotter.NewLine(toXYs(run))
		if err != nil {
			return err
		}
		l.Color = colorOrBlack(color)
		l.Width = vg.Points(width)
		l.Dashes = dashPatterns[dash]
		p.Add(l)
	}
	return nil
}

func addMarkers(p *plot.Plot, spec layout.ChartSpec) error {
	var labels plotter.XYLabels
	var colors []string
	for _, m := range spec.Markers {
		pts := []track.Point{
			{Position: m.Position, Value: spec.YAxis.Min},
			{Position: m.Position, Value: spec.YAxis.Max},
		}
		if err := addTrace(p, pts, m.Color, m.Dash, markerWidth); err != nil {
			return err
		}
		if m.Label == "" {
			continue
		}
		labels.XYs = append(labels.XYs, plotter.XY{X: m.Position, Y: spec.YAxis.Max})
		labels.Labels = append(labels.Labels, m.Label)
		colors = append(colors, m.LabelColor)
	}
	if len(labels.Labels) == 0 {
		return nil
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].Color = colorOrBlack(colors[i])
		l.TextStyle[i].Font.Size = vg.Points(6)
		l.TextStyle[i].YAlign = draw.YTop
	}
	p.Add(l)
	return nil
}

func addCaption(p *plot.Plot, spec layout.ChartSpec) error {
	if len(spec.Caption) == 0 {
		return nil
	}
	l, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: spec.XAxis.Max, Y: spec.YAxis.Max}},
		Labels: []string{strings.Join(spec.Caption, "\n")},
	})
	if err != nil {
		return err
	}
	l.TextStyle[0].Font.Size = vg.Points(6)
	l.TextStyle[0].XAlign = draw.XRight
	l.TextStyle[0].YAlign = draw.YTop
	p.Add(l)
	return nil
}

func toXYs(pts []track.Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.Position, Y: pt.Value}
	}
	return xys
}

// yTickValues returns the value-axis tick positions: the threshold band
// edges when the chart has any, otherwise the axis extremes.
func yTickValues(spec layout.ChartSpec) []float64 {
	if len(spec.YAxisLabels) > 0 {
		return spec.YAxisLabels
	}
	return []float64{spec.YAxis.Min, spec.YAxis.Max}
}

// constantTicks labels exactly the given values inside r.
func constantTicks(r layout.Range, values []float64) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, 0, len(values))
	for _, v := range values {
		if v < r.Min || v > r.Max {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: formatTick(v)})
	}
	return ticks
}

// intervalTicks places labelled ticks every step from r.Min.
func intervalTicks(r layout.Range, step float64) plot.ConstantTicks {
	var ticks plot.ConstantTicks
	for v := r.Min; v <= r.Max; v += step {
		ticks = append(ticks, plot.Tick{Value: v, Label: formatTick(v)})
	}
	return ticks
}
