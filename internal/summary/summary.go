// Package summary condenses classified channels into severity statistics
// for the run history and API responses.
package summary

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/geometry.report/internal/classify"
	"github.com/banshee-data/geometry.report/internal/track"
)

// Channel is the severity summary of one classified channel.
type Channel struct {
	ChannelID string              `json:"channel_id"`
	ShortName string              `json:"short_name"`
	Points    int                 `json:"points"`
	Absent    int                 `json:"absent"`
	Counts    map[track.Class]int `json:"counts"`
	Worst     track.Class         `json:"worst"`

	// Exceedance is the share of valid points classified above OK.
	Exceedance float64 `json:"exceedance"`
	// Defects counts maximal runs of points above OK.
	Defects int `json:"defects"`
	// LongestDefect is the positional length of the longest such run.
	LongestDefect float64 `json:"longest_defect"`

	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P95Abs float64 `json:"p95_abs"`
}

// Report aggregates the channel summaries of one run.
type Report struct {
	Channels []Channel  `json:"channels"`
	Worst    track.Class `json:"worst"`
	Defects  int         `json:"defects"`
}

// Summarize builds the summary of one channel from its input series and
// classification result. Channels without thresholds count every valid
// point as OK.
func Summarize(d track.ChannelDescriptor, series track.Series, res classify.Result) Channel {
	out := Channel{
		ChannelID: d.ID,
		ShortName: d.ShortName,
		Counts:    make(map[track.Class]int),
	}

	values := make([]float64, 0, len(res.Line))
	for i, p := range res.Line {
		if !p.Valid() {
			continue
		}
		values = append(values, p.Value)
		class := track.ClassOK
		if res.Classes != nil {
			class = res.Classes[i]
		}
		out.Counts[class]++
		if class > out.Worst {
			out.Worst = class
		}
	}
	out.Points = len(values)
	out.Absent = absent(series)

	out.Defects, out.LongestDefect = defectRuns(res)

	if len(values) == 0 {
		return out
	}
	out.Exceedance = float64(len(values)-out.Counts[track.ClassOK]) / float64(len(values))
	out.Min = floats.Min(values)
	out.Max = floats.Max(values)
	if len(values) > 1 {
		out.Mean, out.StdDev = stat.MeanStdDev(values, nil)
	} else {
		out.Mean = values[0]
	}

	abs := make([]float64, len(values))
	for i, v := range values {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	out.P95Abs = stat.Quantile(0.95, stat.Empirical, abs, nil)
	return out
}

// Aggregate folds channel summaries into a run report.
func Aggregate(channels []Channel) Report {
	r := Report{Channels: channels}
	for _, c := range channels {
		if c.Worst > r.Worst {
			r.Worst = c.Worst
		}
		r.Defects += c.Defects
	}
	return r
}

// defectRuns counts maximal runs of consecutive points above OK, whatever
// their class, and the positional length of the longest run.
func defectRuns(res classify.Result) (runs int, longest float64) {
	if res.Classes == nil {
		return 0, 0
	}
	open := false
	var start float64
	for i, p := range res.Line {
		if !p.Valid() {
			continue
		}
		if res.Classes[i] == track.ClassOK {
			open = false
			continue
		}
		if !open {
			open = true
			start = p.Position
			runs++
		}
		longest = math.Max(longest, p.Position-start)
	}
	return runs, longest
}

func absent(series track.Series) int {
	n := 0
	for _, p := range series {
		if !p.Valid() {
			n++
		}
	}
	return n
}
