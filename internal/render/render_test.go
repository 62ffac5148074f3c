package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/geometry.report/internal/align"
	"github.com/banshee-data/geometry.report/internal/annotate"
	"github.com/banshee-data/geometry.report/internal/classify"
	"github.com/banshee-data/geometry.report/internal/layout"
	"github.com/banshee-data/geometry.report/internal/track"
	"github.com/banshee-data/geometry.report/internal/units"
)

func testSpec(index int, id string, yLabels []float64) layout.ChartSpec {
	line := []track.Point{
		{Position: 0, Value: 1},
		{Position: 10, Value: -2},
		{Position: 20, Value: math.NaN()},
		{Position: 30, Value: 4},
		{Position: 40, Value: 3},
	}
	return layout.ChartSpec{
		Index:       index,
		ChannelID:   id,
		ShortName:   id,
		Caption:     []string{id, "1:5[mm]"},
		Height:      60,
		Shaded:      index%2 == 0,
		Background:  "rgba(220, 220, 220, 0.5)",
		XAxis:       layout.Range{Min: 0, Max: 41},
		XInterval:   20,
		YAxis:       layout.Range{Min: -6, Max: 6},
		YAxisLabels: yLabels,
		Line:        layout.Trace{Points: line, Dash: track.DashSolid, Color: layout.TraceColor},
		Segments: []classify.Segment{
			{Class: track.ClassOK, Color: track.ColorTransparent, Points: line[:2]},
			{Class: track.ClassIL, Color: track.ColorIntervention, Points: line[3:]},
		},
		Thresholds: []annotate.HorizontalMarker{
			{Value: 5, Start: 0, End: 100, Tier: 2, Color: track.ColorImmediate, Dash: annotate.DashThreshold},
		},
		Markers: []annotate.VerticalMarker{
			{Position: 15, Kind: annotate.KindEventStart, Label: "15,BRID▼", Dash: annotate.DashEvent, Color: "black", LabelColor: "black"},
			{Position: 25, Kind: annotate.KindSpeedZone, Dash: annotate.DashSpeedZone, Color: "#888888"},
		},
	}
}

func TestColorOrBlack(t *testing.T) {
	t.Parallel()

	assert.Equal(t, color.NRGBA{R: 220, G: 220, B: 220, A: 128}, colorOrBlack("rgb(220, 220, 220, 0.5)"))
	assert.Equal(t, color.Black, colorOrBlack("nonsense"))
}

func TestValidRuns(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	runs := validRuns([]track.Point{
		{Position: 0, Value: nan},
		{Position: 1, Value: 1},
		{Position: 2, Value: 2},
		{Position: 3, Value: nan},
		{Position: 4, Value: 4},
	})
	require.Len(t, runs, 2)
	assert.Len(t, runs[0], 2)
	assert.Equal(t, 4.0, runs[1][0].Position)

	assert.Empty(t, validRuns(nil))
}

func TestOffsets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{0, 5, 2}, offsets([]float64{0, 5, 2}))
	// A negative margin shifts every chart right by the same amount.
	assert.Equal(t, []float64{3, 0, 5}, offsets([]float64{0, -3, 2}))
}

func TestGutterFor(t *testing.T) {
	t.Parallel()

	narrow := gutterFor(testSpec(0, "Twist", []float64{1, -1}))
	wide := gutterFor(testSpec(0, "Twist", []float64{-5.125, 5.125}))

	assert.Zero(t, narrow.X1)
	assert.Greater(t, narrow.Width(), 0.0)
	assert.Greater(t, wide.Width(), narrow.Width())

	// Labels outside the axis range are not drawn and do not widen the gutter.
	outside := gutterFor(testSpec(0, "Twist", []float64{1, -1, 1000.125}))
	assert.InDelta(t, narrow.Width(), outside.Width(), 1e-9)

	// Without any in-range tick only the axis padding remains.
	bare := gutterFor(testSpec(0, "Twist", []float64{1000, -1000}))
	assert.InDelta(t, units.PointsToPixels(tickPaddingPt), bare.Width(), 1e-9)
}

func TestConstantTicks(t *testing.T) {
	t.Parallel()

	ticks := constantTicks(layout.Range{Min: -2, Max: 2}, []float64{-3, -1.5, 0, 2})
	require.Len(t, ticks, 3)
	assert.Equal(t, "-1.5", ticks[0].Label)
	assert.Equal(t, "2", ticks[2].Label)

	iv := intervalTicks(layout.Range{Min: 100, Max: 141}, 20)
	require.Len(t, iv, 3)
	assert.Equal(t, 140.0, iv[2].Value)
}

func drawAll(t *testing.T, s Surface, specs ...layout.ChartSpec) []align.Gutter {
	t.Helper()
	gutters := make([]align.Gutter, 0, len(specs))
	for _, spec := range specs {
		g, err := s.Draw(spec)
		require.NoError(t, err)
		gutters = append(gutters, g)
	}
	for i, m := range align.Margins(gutters) {
		require.NoError(t, s.SetMargin(i, m))
	}
	return gutters
}

func TestPlotSurface_Snapshot(t *testing.T) {
	t.Parallel()

	s := NewPlotSurface(600, 21)
	ref := testSpec(1, "Gauge", []float64{-125.5, 125.5})
	ref.YAxis = layout.Range{Min: -130, Max: 130}
	ref.Reference = true
	ref.Height = 85
	drawAll(t, s, testSpec(0, "Twist", []float64{5, -5}), ref)

	url, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, PNGDataURLPrefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, PNGDataURLPrefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	b := img.Bounds()
	assert.InDelta(t, 621, b.Dx(), 1)
	assert.InDelta(t, 145, b.Dy(), 1)
}

func TestPlotSurface_Errors(t *testing.T) {
	t.Parallel()

	s := NewPlotSurface(600, 21)
	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoCharts)

	_, err = s.Draw(testSpec(1, "Twist", nil))
	assert.Error(t, err, "charts must be drawn in index order")

	_, err = s.Draw(testSpec(0, "Twist", nil))
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetMargin(3, 1), ErrUnknownChart)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEChartsSurface_WriteHTML(t *testing.T) {
	t.Parallel()

	s := NewEChartsSurface("Recent geometry", 600, 21)
	ref := testSpec(1, "Gauge", []float64{-125.5, 125.5})
	ref.Reference = true
	drawAll(t, s, testSpec(0, "Twist", []float64{5, -5}), ref)

	var first, second bytes.Buffer
	require.NoError(t, s.WriteHTML(context.Background(), &first))
	require.NoError(t, s.WriteHTML(context.Background(), &second))

	html := first.String()
	assert.Contains(t, html, "Recent geometry")
	assert.Contains(t, html, "chart_0_Twist")
	assert.Contains(t, html, "chart_1_Gauge")
	assert.Contains(t, html, "dashed")
	assert.Equal(t, strings.Count(html, `"grid"`), strings.Count(second.String(), `"grid"`))

	url, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, HTMLDataURLPrefix))
}

func TestEChartsSurface_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewEChartsSurface("x", 100, 0).Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoCharts)
}

func TestSurfacesSatisfyInterface(t *testing.T) {
	t.Parallel()

	var _ Surface = NewPlotSurface(1, 0)
	var _ Surface = NewEChartsSurface("", 1, 0)
}

func TestDecodeDataURL(t *testing.T) {
	t.Parallel()

	mt, data, err := DecodeDataURL(HTMLDataURLPrefix + base64.StdEncoding.EncodeToString([]byte("<html></html>")))
	require.NoError(t, err)
	assert.Equal(t, "text/html", mt)
	assert.Equal(t, "<html></html>", string(data))

	for _, bad := range []string{
		"",
		"image/png;base64,AAAA",
		"data:image/png,AAAA",
		"data:image/png;base64",
		"data:image/png;base64,***",
	} {
		_, _, err := DecodeDataURL(bad)
		assert.ErrorIs(t, err, ErrDataURL, "input %q", bad)
	}
}
