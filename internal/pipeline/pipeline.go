// Package pipeline runs one report invocation end to end: decode the
// payload, classify every visible channel, plan the charts, draw them on a
// rendering surface, align their value axes and take the snapshot.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/geometry.report/internal/align"
	"github.com/banshee-data/geometry.report/internal/classify"
	"github.com/banshee-data/geometry.report/internal/config"
	"github.com/banshee-data/geometry.report/internal/db"
	"github.com/banshee-data/geometry.report/internal/layout"
	"github.com/banshee-data/geometry.report/internal/monitoring"
	"github.com/banshee-data/geometry.report/internal/payload"
	"github.com/banshee-data/geometry.report/internal/render"
	"github.com/banshee-data/geometry.report/internal/summary"
	"github.com/banshee-data/geometry.report/internal/thresholds"
	"github.com/banshee-data/geometry.report/internal/timeutil"
	"github.com/banshee-data/geometry.report/internal/track"
)

// HTMLTitle is the page title of echarts output.
const HTMLTitle = "Track Geometry Report"

// Recorder persists finished runs. *db.DB satisfies it.
type Recorder interface {
	RecordRun(ctx context.Context, r db.Run) error
}

// Result is the outcome of one invocation.
type Result struct {
	RunID    string             `json:"run_id"`
	Charts   []layout.ChartSpec `json:"charts"`
	Gutters  []align.Gutter     `json:"gutters,omitempty"`
	Summary  summary.Report     `json:"summary"`
	DataURL  string             `json:"data_url,omitempty"`
	Duration time.Duration      `json:"duration_ns"`
}

// Runner holds the run-wide collaborators. The zero value is not usable;
// construct with NewRunner.
type Runner struct {
	Config *config.ReportConfig
	Clock  timeutil.Clock
	// History is optional; nil disables run recording.
	History Recorder
	// NewID generates run identifiers.
	NewID func() string
	// Source labels recorded runs, typically the input file name.
	Source string
}

// NewRunner returns a Runner with the real clock and uuid run ids. A nil
// cfg uses every default.
func NewRunner(cfg *config.ReportConfig) *Runner {
	if cfg == nil {
		cfg = config.EmptyReportConfig()
	}
	return &Runner{
		Config: cfg,
		Clock:  timeutil.RealClock{},
		NewID:  uuid.NewString,
	}
}

// Classified is one visible channel after threshold resolution and
// classification.
type Classified struct {
	Channel layout.Channel
	Series  track.Series
}

// ClassifyChannels selects the visible channels of a snapshot and
// classifies each against its resolved windows, in catalog order.
func (r *Runner) ClassifyChannels(s *payload.Snapshot) ([]Classified, error) {
	catalog := track.DefaultCatalog(s.TwistBaseLength).SelectVisible(s.Modes, s.Visibility).Visible()

	out := make([]Classified, 0, len(catalog))
	for _, d := range catalog {
		series := s.Series[d.ID]
		windows := thresholds.Resolve(d, s.Thresholds)

		var res classify.Result
		if r.Config.GetStrictOrdering() {
			var err error
			if res, err = classify.Strict(series, windows); err != nil {
				return nil, fmt.Errorf("channel %s: %w", d.ID, err)
			}
		} else {
			res = classify.Classify(series, windows)
		}

		out = append(out, Classified{
			Channel: layout.Channel{Descriptor: d, Windows: windows, Result: res},
			Series:  series,
		})
	}
	return out, nil
}

// Params builds the planner inputs from a snapshot and the configuration.
func (r *Runner) Params(s *payload.Snapshot) layout.Params {
	c := r.Config
	return layout.Params{
		View:            layout.Range{Min: s.View.Start, Max: s.View.End},
		DefectScale:     s.DefectScale,
		SignalScale:     s.SignalScale,
		DisplayEvents:   s.DisplayEvents,
		Events:          s.Events,
		SpeedZones:      s.SpeedZones,
		CantDefect:      s.Series[track.ChannelCantDefect],
		PixelsPerUnit:   c.GetPixelsPerUnit(),
		BaseOffset:      c.GetBaseOffset(),
		ReferenceIndex:  c.GetReferenceChartIndex(),
		ReferenceHeight: c.GetReferenceChartHeight(),
		AxisPadding:     c.GetAxisPadding(),
		ShadeColor:      c.GetShadeColor(),
		EventNameLength: c.GetEventNameLength(),
	}
}

// Plan runs the pure stages: selection, classification, summaries and
// layout. Nothing is drawn.
func (r *Runner) Plan(s *payload.Snapshot) ([]layout.ChartSpec, summary.Report, error) {
	classified, err := r.ClassifyChannels(s)
	if err != nil {
		return nil, summary.Report{}, err
	}

	channels := make([]layout.Channel, len(classified))
	summaries := make([]summary.Channel, len(classified))
	for i, c := range classified {
		channels[i] = c.Channel
		summaries[i] = summary.Summarize(c.Channel.Descriptor, c.Series, c.Channel.Result)
	}

	specs, err := layout.Plan(channels, r.Params(s))
	if err != nil {
		return nil, summary.Report{}, err
	}
	return specs, summary.Aggregate(summaries), nil
}

// NewSurface returns the configured rendering surface sized for a page.
func (r *Runner) NewSurface(page payload.Page) render.Surface {
	padding := r.Config.GetSnapshotPadding()
	if r.Config.GetRenderer() == config.RendererHTML {
		return render.NewEChartsSurface(HTMLTitle, page.Width, padding)
	}
	return render.NewPlotSurface(page.Width, padding)
}

// Run executes the whole invocation against surface. A nil surface uses
// NewSurface. Any error leaves the result nil: no partial report is
// returned.
func (r *Runner) Run(ctx context.Context, s *payload.Snapshot, surface render.Surface) (*Result, error) {
	started := r.Clock.Now()

	specs, report, err := r.Plan(s)
	if err != nil {
		return nil, err
	}
	if surface == nil {
		surface = r.NewSurface(s.Page)
	}

	res := &Result{RunID: r.NewID(), Charts: specs, Summary: report}
	if len(specs) > 0 {
		gutters := make([]align.Gutter, len(specs))
		for i, spec := range specs {
			if gutters[i], err = surface.Draw(spec); err != nil {
				return nil, fmt.Errorf("draw chart %d (%s): %w", i, spec.ChannelID, err)
			}
		}

		// Every chart must be realized before margins are known.
		if err := align.Apply(specs, gutters); err != nil {
			return nil, err
		}
		for _, spec := range specs {
			if err := surface.SetMargin(spec.Index, spec.Margin); err != nil {
				return nil, err
			}
		}
		res.Gutters = gutters

		if res.DataURL, err = surface.Snapshot(ctx); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
	}
	res.Duration = r.Clock.Since(started)

	monitoring.Logf("run %s: %d charts, worst %s, %d defects in %v",
		res.RunID, len(specs), report.Worst, report.Defects, res.Duration)

	if r.History != nil {
		run := db.Run{
			ID:        res.RunID,
			CreatedAt: started,
			Source:    r.Source,
			Start:     s.View.Start,
			End:       s.View.End,
			Charts:    len(specs),
			Worst:     report.Worst,
			Defects:   report.Defects,
			Duration:  res.Duration,
			Channels:  report.Channels,
		}
		if err := r.History.RecordRun(ctx, run); err != nil {
			// History is best effort.
			monitoring.Logf("failed to record run %s: %v", res.RunID, err)
		}
	}
	return res, nil
}

// RunReader decodes a payload from rd and runs it.
func (r *Runner) RunReader(ctx context.Context, rd io.Reader, surface render.Surface) (*Result, error) {
	s, err := payload.Decode(rd)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, s, surface)
}
