package track

import "strconv"

// Axis names a threshold configuration group in the input payload.
type Axis string

const (
	AxisVertical   Axis = "VerticalAlignment"
	AxisHorizontal Axis = "HorizontalAlignment"
	AxisTwist      Axis = "Twist"
	AxisCant       Axis = "Cant"
	AxisGauge      Axis = "Gauge"
)

// LimitCategory names a window list within an axis group.
type LimitCategory string

const (
	CategoryLimits  LimitCategory = "Limits"
	CategoryVersine LimitCategory = "VersineLimits"
	CategoryD1      LimitCategory = "D1Limits"
	CategoryD2      LimitCategory = "D2Limits"
)

// EvaluationMode is the defect evaluation type configured for an alignment axis.
type EvaluationMode string

const (
	EvalVersines EvaluationMode = "Versines"
	EvalD1       EvaluationMode = "D1"
	EvalD2       EvaluationMode = "D2"
)

// Line dash styles used for the main trace.
const (
	DashSolid          = "solid"
	DashLongDashDotDot = "longDashDotDot"
)

// Channel identifiers referenced outside the catalog.
const (
	ChannelCant          = "Cant"
	ChannelCantDefect    = "CantDefect"
	ChannelLocalizations = "Localizations"
)

// ChannelDescriptor is the static metadata of one measurement channel.
//
// Axis is empty for channels without thresholds. Category is empty when the
// axis' default Limits list applies. Evaluation is set on the alignment
// channels only and names the mode that makes the channel the representative
// of its axis.
type ChannelDescriptor struct {
	ID         string         `json:"id"`
	ShortName  string         `json:"short_name"`
	Column     string         `json:"column"`
	Visible    bool           `json:"visible"`
	Axis       Axis           `json:"axis,omitempty"`
	Category   LimitCategory  `json:"category,omitempty"`
	Evaluation EvaluationMode `json:"evaluation,omitempty"`
	Dash       string         `json:"dash"`
}

// HasThresholds reports whether the channel draws limits from any axis.
func (c ChannelDescriptor) HasThresholds() bool {
	return c.Axis != ""
}

// LimitCategory returns the window list the channel reads from its axis.
func (c ChannelDescriptor) LimitCategory() LimitCategory {
	if c.Category == "" {
		return CategoryLimits
	}
	return c.Category
}

// Catalog is the ordered channel list. Order drives chart order, the
// reference chart index and background alternation.
type Catalog []ChannelDescriptor

// DefaultCatalog returns a fresh copy of the channel catalog. The twist
// base length only affects the twist column label.
func DefaultCatalog(twistBaseLength float64) Catalog {
	twist := "Twist " + strconv.FormatFloat(twistBaseLength, 'f', -1, 64) + "m"
	return Catalog{
		{ID: "VersineVerticalRight", ShortName: "VVR", Column: "Versine Vertical Right", Axis: AxisVertical, Category: CategoryVersine, Evaluation: EvalVersines},
		{ID: "VersineVerticalLeft", ShortName: "VVL", Column: "Versine Vertical Left", Axis: AxisVertical, Category: CategoryVersine, Evaluation: EvalVersines},
		{ID: "VersineHorizontalRight", ShortName: "VHR", Column: "Versine Horizontal Right", Axis: AxisHorizontal, Category: CategoryVersine, Evaluation: EvalVersines},
		{ID: "VersineHorizontalLeft", ShortName: "VHL", Column: "Versine Horizontal Left", Axis: AxisHorizontal, Category: CategoryVersine, Evaluation: EvalVersines},
		{ID: "LongitudinalLevelD2Right", ShortName: "LLD2R", Column: "Longitudinal Level Right", Axis: AxisVertical, Category: CategoryD2, Evaluation: EvalD2},
		{ID: "LongitudinalLevelD2Left", ShortName: "LLD2L", Column: "Longitudinal Level Left", Axis: AxisVertical, Category: CategoryD2, Evaluation: EvalD2},
		{ID: "LongitudinalLevelD1Right", ShortName: "LLD1R", Column: "Longitudinal Level Right", Axis: AxisVertical, Category: CategoryD1, Evaluation: EvalD1},
		{ID: "LongitudinalLevelD1Left", ShortName: "LLD1L", Column: "Longitudinal Level Left", Axis: AxisVertical, Category: CategoryD1, Evaluation: EvalD1},
		{ID: "AlignmentD2Right", ShortName: "AD2R", Column: "Alignment Right", Axis: AxisHorizontal, Category: CategoryD2, Evaluation: EvalD2},
		{ID: "AlignmentD2Left", ShortName: "AD2L", Column: "Alignment Left", Axis: AxisHorizontal, Category: CategoryD2, Evaluation: EvalD2},
		{ID: "AlignmentD1Right", ShortName: "AD1R", Column: "Alignment Right", Axis: AxisHorizontal, Category: CategoryD1, Evaluation: EvalD1},
		{ID: "AlignmentD1Left", ShortName: "AD1L", Column: "Alignment Left", Axis: AxisHorizontal, Category: CategoryD1, Evaluation: EvalD1},
		{ID: "TwistBase1", ShortName: "Twist", Column: twist, Visible: true, Axis: AxisTwist},
		{ID: ChannelCantDefect, ShortName: "CantDefect", Column: "Cant Defect"},
		{ID: ChannelCant, ShortName: "Cant", Column: "Cant", Visible: true, Axis: AxisCant, Dash: DashLongDashDotDot},
		{ID: "GaugeDeviation", ShortName: "Gauge", Column: "Gauge Defect", Visible: true, Axis: AxisGauge},
		{ID: ChannelLocalizations, ShortName: "Localizations", Column: "Localization Info", Visible: true},
	}
}

// Lookup finds a channel by id.
func (c Catalog) Lookup(id string) (ChannelDescriptor, bool) {
	for _, ch := range c {
		if ch.ID == id {
			return ch, true
		}
	}
	return ChannelDescriptor{}, false
}

// Visible returns the channels marked shown, in catalog order.
func (c Catalog) Visible() Catalog {
	out := make(Catalog, 0, len(c))
	for _, ch := range c {
		if ch.Visible {
			out = append(out, ch)
		}
	}
	return out
}

// Representatives returns the pair of channel ids shown for an alignment axis
// under the given evaluation mode, left channel first.
func Representatives(axis Axis, mode EvaluationMode) ([2]string, bool) {
	switch axis {
	case AxisHorizontal:
		switch mode {
		case EvalD1:
			return [2]string{"AlignmentD1Left", "AlignmentD1Right"}, true
		case EvalD2:
			return [2]string{"AlignmentD2Left", "AlignmentD2Right"}, true
		case EvalVersines:
			return [2]string{"VersineHorizontalLeft", "VersineHorizontalRight"}, true
		}
	case AxisVertical:
		switch mode {
		case EvalD1:
			return [2]string{"LongitudinalLevelD1Left", "LongitudinalLevelD1Right"}, true
		case EvalD2:
			return [2]string{"LongitudinalLevelD2Left", "LongitudinalLevelD2Right"}, true
		case EvalVersines:
			return [2]string{"VersineVerticalLeft", "VersineVerticalRight"}, true
		}
	}
	return [2]string{}, false
}

// SelectVisible returns a copy of the catalog with the evaluation mode
// representatives of both alignment axes marked visible, then applies the
// explicit per-channel overrides keyed by channel id.
func (c Catalog) SelectVisible(modes map[Axis]EvaluationMode, overrides map[string]bool) Catalog {
	out := make(Catalog, len(c))
	copy(out, c)

	show := make(map[string]bool)
	for _, axis := range []Axis{AxisHorizontal, AxisVertical} {
		if ids, ok := Representatives(axis, modes[axis]); ok {
			show[ids[0]] = true
			show[ids[1]] = true
		}
	}
	for i := range out {
		if show[out[i].ID] {
			out[i].Visible = true
		}
		if v, ok := overrides[out[i].ID]; ok {
			out[i].Visible = v
		}
	}
	return out
}
