// Package align lines up the plotted regions of independently rendered
// stacked charts by padding their value-axis label gutters.
package align

import (
	"fmt"

	"github.com/banshee-data/geometry.report/internal/layout"
)

// Gutter is the realized horizontal extent of a chart's value-axis labels,
// as reported by the rendering surface.
type Gutter struct {
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
}

// Width returns the gutter width.
func (g Gutter) Width() float64 {
	return g.X2 - g.X1
}

// Margins returns the corrective margin of every chart. The first chart is
// the reference and gets zero; every other chart gets the reference width
// minus its own, which may be negative.
func Margins(gutters []Gutter) []float64 {
	if len(gutters) == 0 {
		return nil
	}
	ref := gutters[0].Width()
	out := make([]float64, len(gutters))
	for i := 1; i < len(gutters); i++ {
		out[i] = ref - gutters[i].Width()
	}
	return out
}

// Apply stores the corrective margins on the specs. Margins are assigned
// rather than accumulated, so applying the same measurements twice leaves
// the specs unchanged.
func Apply(specs []layout.ChartSpec, gutters []Gutter) error {
	if len(specs) != len(gutters) {
		return fmt.Errorf("align: %d charts but %d gutter measurements", len(specs), len(gutters))
	}
	for i, m := range Margins(gutters) {
		specs[i].Margin = m
	}
	return nil
}
