// Package render draws planned chart specs onto a rendering surface and
// produces the stacked report snapshot.
//
// Two surfaces are provided. PlotSurface rasterises the stack with
// gonum/plot and yields a PNG data URL. EChartsSurface emits an interactive
// go-echarts page and yields an HTML data URL.
package render

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/text"

	"github.com/banshee-data/geometry.report/internal/align"
	"github.com/banshee-data/geometry.report/internal/layout"
	"github.com/banshee-data/geometry.report/internal/track"
	"github.com/banshee-data/geometry.report/internal/units"
)

// Surface is the contract between the pipeline and a renderer. Draw must be
// called once per chart in index order; margins are applied after every
// chart has reported its gutter.
type Surface interface {
	Draw(spec layout.ChartSpec) (align.Gutter, error)
	SetMargin(index int, margin float64) error
	Snapshot(ctx context.Context) (string, error)
}

var (
	// ErrNoCharts is returned by Snapshot when nothing was drawn.
	ErrNoCharts = errors.New("render: no charts drawn")
	// ErrUnknownChart is returned by SetMargin for an index never drawn.
	ErrUnknownChart = errors.New("render: unknown chart index")
)

// Data URL prefixes of the snapshot formats.
const (
	PNGDataURLPrefix  = "data:image/png;base64,"
	HTMLDataURLPrefix = "data:text/html;base64,"
)

// ErrDataURL is returned by DecodeDataURL for anything but a base64 data URL.
var ErrDataURL = errors.New("render: not a base64 data URL")

// DecodeDataURL splits a base64 data URL into its media type and payload.
func DecodeDataURL(url string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, ErrDataURL
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrDataURL
	}
	mediaType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrDataURL
	}
	data, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrDataURL, err)
	}
	return mediaType, data, nil
}

// tickLengthPt and tickPaddingPt mirror the gonum/plot value-axis defaults so
// gutter estimates agree with what the PNG surface draws.
const (
	tickLengthPt  = 8
	tickPaddingPt = 5
)

var tickStyle = sync.OnceValue(func() text.Style {
	return plot.New().Y.Tick.Label
})

// gutterFor estimates the horizontal extent of the value-axis labels of a
// spec, in pixels, starting at the left edge of the chart.
func gutterFor(spec layout.ChartSpec) align.Gutter {
	style := tickStyle()
	width := float64(tickPaddingPt)
	// Tick marks and labels take room only when at least one tick is drawn.
	if ticks := constantTicks(spec.YAxis, yTickValues(spec)); len(ticks) > 0 {
		widest := 0.0
		for _, t := range ticks {
			if w := float64(style.Width(t.Label)); w > widest {
				widest = w
			}
		}
		width += widest + tickLengthPt
	}
	return align.Gutter{X1: 0, X2: units.PointsToPixels(width)}
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// validRuns splits a series at absent values into contiguous runs of valid
// points.
func validRuns(pts []track.Point) [][]track.Point {
	var runs [][]track.Point
	var cur []track.Point
	for _, p := range pts {
		if !p.Valid() {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, p)
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

// offsets turns corrective margins, which may be negative, into
// non-negative left offsets that keep the same relative alignment.
func offsets(margins []float64) []float64 {
	low := 0.0
	for _, m := range margins {
		low = math.Min(low, m)
	}
	out := make([]float64, len(margins))
	for i, m := range margins {
		out[i] = m - low
	}
	return out
}

// stack is the bookkeeping shared by both surfaces.
type stack struct {
	mu      sync.Mutex
	specs   []layout.ChartSpec
	margins []float64
}

func (s *stack) add(spec layout.ChartSpec) error {
	if spec.Index != len(s.specs) {
		return fmt.Errorf("render: chart %d drawn out of order, expected %d", spec.Index, len(s.specs))
	}
	s.specs = append(s.specs, spec)
	s.margins = append(s.margins, 0)
	return nil
}

func (s *stack) setMargin(index int, margin float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.margins) {
		return fmt.Errorf("%w: %d", ErrUnknownChart, index)
	}
	s.margins[index] = margin
	return nil
}

// totalHeight sums chart heights in pixels.
func (s *stack) totalHeight() float64 {
	h := 0.0
	for _, spec := range s.specs {
		h += spec.Height
	}
	return h
}
