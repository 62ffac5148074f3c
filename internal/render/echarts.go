package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/geometry.report/internal/align"
	"github.com/banshee-data/geometry.report/internal/annotate"
	"github.com/banshee-data/geometry.report/internal/layout"
	"github.com/banshee-data/geometry.report/internal/track"
)

// echartsAssetsPrefix is where the rendered page loads echarts from.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// gridLeft is the base left inset of every chart grid, in pixels.
const gridLeft = 10

// echartsDash maps dash style names onto the line types echarts supports.
var echartsDash = map[string]string{
	track.DashSolid:          "solid",
	annotate.DashThreshold:   "dashed",
	annotate.DashEvent:       "dashed",
	annotate.DashSpeedZone:   "dotted",
	track.DashLongDashDotDot: "dotted",
}

// EChartsSurface renders the stacked charts as an interactive HTML page.
type EChartsSurface struct {
	stack
	width  float64
	title  string
	charts []*charts.Line
}

// NewEChartsSurface returns a surface producing a page pageWidth+padding
// pixels wide.
func NewEChartsSurface(title string, pageWidth, padding float64) *EChartsSurface {
	return &EChartsSurface{title: title, width: pageWidth + padding}
}

// Draw builds the chart and reports its estimated value-axis gutter.
func (s *EChartsSurface) Draw(spec layout.ChartSpec) (align.Gutter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.add(spec); err != nil {
		return align.Gutter{}, err
	}
	s.charts = append(s.charts, buildLine(spec, s.width))
	return gutterFor(spec), nil
}

// SetMargin stores the corrective margin of a drawn chart.
func (s *EChartsSurface) SetMargin(index int, margin float64) error {
	return s.setMargin(index, margin)
}

// WriteHTML renders the page to w.
func (s *EChartsSurface) WriteHTML(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.charts) == 0 {
		return ErrNoCharts
	}

	page := components.NewPage()
	page.SetPageTitle(s.title)
	page.SetAssetsHost(echartsAssetsPrefix)
	page.SetLayout(components.PageNoneLayout)

	left := offsets(s.margins)
	for i, c := range s.charts {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Assigned rather than appended so repeated renders stay identical.
		c.GridList = []opts.Grid{{
			Left:         fmt.Sprintf("%.0fpx", gridLeft+left[i]),
			Right:        "10px",
			Top:          "4px",
			Bottom:       bottomInset(s.specs[i]),
			ContainLabel: opts.Bool(true),
		}}
		page.AddCharts(c)
	}
	return page.Render(w)
}

// Snapshot returns the rendered page as an HTML data URL.
func (s *EChartsSurface) Snapshot(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := s.WriteHTML(ctx, &buf); err != nil {
		return "", err
	}
	return HTMLDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func bottomInset(spec layout.ChartSpec) string {
	if spec.Reference {
		return "20px"
	}
	return "2px"
}

func buildLine(spec layout.ChartSpec, width float64) *charts.Line {
	line := charts.NewLine()

	xAxis := opts.XAxis{
		Type: "value",
		Min:  spec.XAxis.Min,
		Max:  spec.XAxis.Max,
		Show: opts.Bool(spec.Reference),
	}
	if spec.XInterval > 0 {
		xAxis.MinInterval = spec.XInterval
		xAxis.MaxInterval = spec.XInterval
	}

	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:           fmt.Sprintf("%.0fpx", width),
			Height:          fmt.Sprintf("%.0fpx", math.Ceil(spec.Height)),
			BackgroundColor: spec.Background,
			ChartID:         fmt.Sprintf("chart_%d_%s", spec.Index, spec.ChannelID),
		}),
		charts.WithTitleOpts(opts.Title{
			Subtitle: strings.Join(spec.Caption, "\n"),
			Right:    "10px",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithAnimation(false),
		charts.WithXAxisOpts(xAxis),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Min:  spec.YAxis.Min,
			Max:  spec.YAxis.Max,
		}),
	)

	for i, seg := range spec.Segments {
		if seg.Class == track.ClassOK || len(seg.Points) == 0 {
			continue
		}
		addSeries(line, fmt.Sprintf("%s %d", seg.Class, i), seg.Points, seg.Color, track.DashSolid, segmentWidth)
	}
	for i, m := range spec.Thresholds {
		x1, x2 := math.Max(m.Start, spec.XAxis.Min), math.Min(m.End, spec.XAxis.Max)
		if x1 >= x2 {
			continue
		}
		pts := []track.Point{{Position: x1, Value: m.Value}, {Position: x2, Value: m.Value}}
		addSeries(line, fmt.Sprintf("threshold %d", i), pts, m.Color, m.Dash, markerWidth)
	}
	addSeries(line, spec.ShortName, spec.Line.Points, spec.Line.Color, spec.Line.Dash, traceWidth)
	for i, o := range spec.Overlays {
		addSeries(line, fmt.Sprintf("overlay %d", i), o.Points, o.Color, o.Dash, traceWidth)
	}
	for i, m := range spec.Markers {
		addMarker(line, i, m)
	}
	return line
}

func addSeries(line *charts.Line, name string, pts []track.Point, color, dash string, width float64) {
	data := make([]opts.LineData, 0, len(pts))
	for _, p := range pts {
		if math.IsNaN(p.Position) {
			continue
		}
		var y interface{} = p.Value
		if !p.Valid() {
			y = "-"
		}
		data = append(data, opts.LineData{Value: []interface{}{p.Position, y}})
	}
	line.AddSeries(name, data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{
			Color: color,
			Width: float32(width),
			Type:  dashType(dash),
		}),
	)
}

// addMarker draws a vertical marker as an empty series carrying one mark
// line, so each marker keeps its own colour and label.
func addMarker(line *charts.Line, i int, m annotate.VerticalMarker) {
	line.AddSeries(fmt.Sprintf("%s %d", m.Kind, i), nil,
		charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
			Name:  m.Label,
			XAxis: m.Position,
		}),
		charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
			Symbol: []string{"none", "none"},
			Label: &opts.Label{
				Show:      opts.Bool(m.Label != ""),
				Color:     m.LabelColor,
				Formatter: "{b}",
			},
			LineStyle: &opts.LineStyle{
				Color: m.Color,
				Width: markerWidth,
				Type:  dashType(m.Dash),
			},
		}),
	)
}

func dashType(dash string) string {
	if t, ok := echartsDash[dash]; ok {
		return t
	}
	return "solid"
}
