// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/geometry.report/internal/payload"
	"github.com/banshee-data/geometry.report/internal/track"
)

// Fixture geometry. The sample run covers stationing 1000 to 1200 in one
// metre steps with the vertical axis evaluated on D2 and the horizontal axis
// on D1, which yields eight visible charts.
const (
	SampleStart         = 1000.0
	SampleEnd           = 1200.0
	SamplePageWidth     = 800.0
	SampleDefectScale   = 5.0
	SampleVisibleCharts = 8
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path string, body []byte) *http.Request {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	return httptest.NewRequest(method, path, r)
}

func bands(base float64) []payload.Band {
	return []payload.Band{
		{Lower: -base, Upper: base},
		{Lower: -2 * base, Upper: 2 * base},
		{Lower: -3 * base, Upper: 3 * base},
	}
}

func windows(base float64) []payload.Window {
	mid := (SampleStart + SampleEnd) / 2
	return []payload.Window{
		{StationingStart: SampleStart, StationingEnd: mid, MinSpeed: 0, MaxSpeed: 80, LimitsBySeverity: bands(base)},
		{StationingStart: mid, StationingEnd: SampleEnd, MinSpeed: 80, MaxSpeed: 120, LimitsBySeverity: bands(base * 0.8)},
	}
}

// SampleDocument builds a complete wire document with every catalog channel
// populated by a deterministic wave. Every 25th Gauge value is absent.
func SampleDocument() *payload.Document {
	catalog := track.DefaultCatalog(3)
	doc := &payload.Document{
		StationingStart: SampleStart,
		StationingEnd:   SampleEnd,
		PageWidth:       SamplePageWidth,
		PageHeight:      1100,
		DefectScale:     SampleDefectScale,
		SignalScale:     20,
		DisplayEvents:   true,
		TwistBaseLength: 3,
		Events: []payload.Event{
			{StationingStart: 1020, Name: "Switch 12"},
			{StationingStart: 1050, StationingEnd: 1080, IsRange: true, Name: "Bridge"},
		},
		SeverityLimits: map[string]payload.AxisLimits{
			string(track.AxisVertical): {
				DefectEvaluationType: string(track.EvalD2),
				Limits:               windows(4),
				VersineLimits:        windows(6),
				D1Limits:             windows(4),
				D2Limits:             windows(5),
			},
			string(track.AxisHorizontal): {
				DefectEvaluationType: string(track.EvalD1),
				Limits:               windows(4),
				VersineLimits:        windows(6),
				D1Limits:             windows(4),
				D2Limits:             windows(5),
			},
			string(track.AxisTwist): {Limits: windows(3)},
			string(track.AxisCant):  {Limits: windows(10)},
			string(track.AxisGauge): {Limits: windows(5)},
		},
	}

	for i := 0; SampleStart+float64(i) <= SampleEnd; i++ {
		pos := SampleStart + float64(i)
		row := payload.Row{Stationing: payload.Stationing{Value: pos}}
		for c, ch := range catalog {
			cell := payload.Cell{ID: ch.ID}
			if !(ch.ID == "GaugeDeviation" && i%25 == 24) {
				v := 9 * math.Sin(float64(i)/(7+float64(c)))
				cell.Value = &v
			}
			row.ParameterValues = append(row.ParameterValues, cell)
		}
		doc.VisualTrackDatas = append(doc.VisualTrackDatas, row)
	}
	return doc
}

// SampleJSON returns SampleDocument encoded as JSON.
func SampleJSON(t testing.TB) []byte {
	t.Helper()
	data, err := json.Marshal(SampleDocument())
	if err != nil {
		t.Fatalf("marshal sample document: %v", err)
	}
	return data
}
