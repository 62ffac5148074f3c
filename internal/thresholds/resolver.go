// Package thresholds resolves the severity windows that apply to a channel.
package thresholds

import "github.com/banshee-data/geometry.report/internal/track"

// Resolve returns the ordered window list a channel classifies against.
// Channels without an axis, axes missing from the configuration and empty
// categories all resolve to no windows. The configured list is returned as
// is: gaps and overlaps are left for the classifier to pass through.
func Resolve(channel track.ChannelDescriptor, cfg track.ThresholdConfig) []track.ThresholdWindow {
	if !channel.HasThresholds() {
		return nil
	}
	categories, ok := cfg[channel.Axis]
	if !ok {
		return nil
	}
	return categories[channel.LimitCategory()]
}

// AxisLabels returns the band edges of the first window as upper/lower pairs,
// innermost band first. These label the value axis of a chart.
func AxisLabels(windows []track.ThresholdWindow) []float64 {
	if len(windows) == 0 {
		return nil
	}
	labels := make([]float64, 0, 6)
	for _, b := range windows[0].Bands {
		labels = append(labels, b.Upper, b.Lower)
	}
	return labels
}
