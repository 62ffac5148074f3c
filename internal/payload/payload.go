// Package payload decodes the measurement snapshot handed to a report run.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/geometry.report/internal/track"
)

// maxPayloadSize bounds how much input Decode will read.
const maxPayloadSize = 64 * 1024 * 1024

// Document mirrors the wire format of the input snapshot.
type Document struct {
	VisualTrackDatas  []Row                 `json:"VisualTrackDatas"`
	Events            []Event               `json:"Events"`
	StationingStart   float64               `json:"StationingStart"`
	StationingEnd     float64               `json:"StationingEnd"`
	PageWidth         float64               `json:"PageWidth"`
	PageHeight        float64               `json:"PageHeight"`
	DefectScale       float64               `json:"DefectScale"`
	SignalScale       float64               `json:"SignalScale"`
	DisplayEvents     bool                  `json:"DisplayEvents"`
	SeverityLimits    map[string]AxisLimits `json:"SeverityLimits"`
	TwistBaseLength   float64               `json:"TwistBaseLength"`
	ChannelVisibility map[string]bool       `json:"ChannelVisibility,omitempty"`
}

// Row is one stationing with the values of every channel measured there.
type Row struct {
	Stationing      Stationing `json:"Stationing"`
	ParameterValues []Cell     `json:"ParameterValues"`
}

// Stationing wraps the position of a row.
type Stationing struct {
	Value float64 `json:"Value"`
}

// Cell is one channel value; a null Value is an absent measurement.
type Cell struct {
	ID    string   `json:"Id"`
	Value *float64 `json:"Value"`
}

// Event is a point or range event.
type Event struct {
	StationingStart float64 `json:"StationingStart"`
	StationingEnd   float64 `json:"StationingEnd"`
	IsRange         bool    `json:"IsRange"`
	Name            string  `json:"Name"`
}

// AxisLimits is the threshold group of one axis.
type AxisLimits struct {
	DefectEvaluationType string   `json:"DefectEvaluationType,omitempty"`
	Limits               []Window `json:"Limits,omitempty"`
	VersineLimits        []Window `json:"VersineLimits,omitempty"`
	D1Limits             []Window `json:"D1Limits,omitempty"`
	D2Limits             []Window `json:"D2Limits,omitempty"`
}

// Window is a threshold window on the wire.
type Window struct {
	StationingStart  float64 `json:"StationingStart"`
	StationingEnd    float64 `json:"StationingEnd"`
	LimitsBySeverity []Band  `json:"LimitsBySeverity"`
	MinSpeed         float64 `json:"MinSpeed,omitempty"`
	MaxSpeed         float64 `json:"MaxSpeed,omitempty"`
}

// Band is a lower/upper limit pair on the wire.
type Band struct {
	Lower float64 `json:"Lower"`
	Upper float64 `json:"Upper"`
}

// View is the positional range shown on every chart.
type View struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Page holds the pixel dimensions of the composed report.
type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Snapshot is the decoded, immutable input of one report run.
type Snapshot struct {
	Series          map[string]track.Series
	Thresholds      track.ThresholdConfig
	Modes           map[track.Axis]track.EvaluationMode
	Events          []track.Event
	SpeedZones      []track.SpeedZoneBoundary
	View            View
	Page            Page
	DefectScale     float64
	SignalScale     float64
	DisplayEvents   bool
	TwistBaseLength float64
	Visibility      map[string]bool
}

// Decode reads one JSON document from r and converts it into a Snapshot.
func Decode(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, &track.InvalidInputError{Reason: "read payload", Err: err}
	}
	if len(data) > maxPayloadSize {
		return nil, &track.InvalidInputError{Reason: fmt.Sprintf("payload exceeds %d bytes", maxPayloadSize)}
	}
	return Parse(data)
}

// Parse converts a JSON document into a Snapshot. Empty, null or malformed
// documents yield an InvalidInputError.
func Parse(data []byte) (*Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &track.InvalidInputError{Reason: "empty payload"}
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &track.InvalidInputError{Reason: "parse payload", Err: err}
	}
	return doc.Snapshot()
}

// Snapshot converts the wire document into its domain form.
func (d *Document) Snapshot() (*Snapshot, error) {
	s := &Snapshot{
		Series:          make(map[string]track.Series),
		Thresholds:      make(track.ThresholdConfig),
		Modes:           make(map[track.Axis]track.EvaluationMode),
		View:            View{Start: d.StationingStart, End: d.StationingEnd},
		Page:            Page{Width: d.PageWidth, Height: d.PageHeight},
		DefectScale:     d.DefectScale,
		SignalScale:     d.SignalScale,
		DisplayEvents:   d.DisplayEvents,
		TwistBaseLength: d.TwistBaseLength,
		Visibility:      d.ChannelVisibility,
	}

	for _, row := range d.VisualTrackDatas {
		for _, cell := range row.ParameterValues {
			v := math.NaN()
			if cell.Value != nil {
				v = *cell.Value
			}
			s.Series[cell.ID] = append(s.Series[cell.ID], track.Point{Position: row.Stationing.Value, Value: v})
		}
	}

	for name, limits := range d.SeverityLimits {
		axis := track.Axis(name)
		if limits.DefectEvaluationType != "" {
			s.Modes[axis] = track.EvaluationMode(limits.DefectEvaluationType)
		}
		categories := make(map[track.LimitCategory][]track.ThresholdWindow)
		for category, windows := range map[track.LimitCategory][]Window{
			track.CategoryLimits:  limits.Limits,
			track.CategoryVersine: limits.VersineLimits,
			track.CategoryD1:      limits.D1Limits,
			track.CategoryD2:      limits.D2Limits,
		} {
			if windows == nil {
				continue
			}
			converted, err := convertWindows(windows)
			if err != nil {
				return nil, &track.InvalidInputError{Reason: fmt.Sprintf("%s.%s", name, category), Err: err}
			}
			categories[category] = converted
		}
		s.Thresholds[axis] = categories
	}

	for _, e := range d.Events {
		ev := track.Event{Position: e.StationingStart, IsRange: e.IsRange, Name: e.Name}
		if e.IsRange {
			ev.EndPosition = e.StationingEnd
		}
		s.Events = append(s.Events, ev)
	}

	for _, w := range s.Thresholds[track.AxisGauge][track.CategoryLimits] {
		s.SpeedZones = append(s.SpeedZones, track.SpeedZoneBoundary{
			Position: w.End,
			MinSpeed: w.MinSpeed,
			MaxSpeed: w.MaxSpeed,
		})
	}

	return s, nil
}

func convertWindows(in []Window) ([]track.ThresholdWindow, error) {
	out := make([]track.ThresholdWindow, 0, len(in))
	for i, w := range in {
		if len(w.LimitsBySeverity) != 3 {
			return nil, fmt.Errorf("window %d has %d severity bands, want 3", i, len(w.LimitsBySeverity))
		}
		tw := track.ThresholdWindow{
			Start:    w.StationingStart,
			End:      w.StationingEnd,
			MinSpeed: w.MinSpeed,
			MaxSpeed: w.MaxSpeed,
		}
		for j, b := range w.LimitsBySeverity {
			tw.Bands[j] = track.SeverityBand{Lower: b.Lower, Upper: b.Upper}
		}
		out = append(out, tw)
	}
	return out, nil
}
