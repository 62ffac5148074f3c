package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/geometry.report/internal/csscolor"
	"github.com/banshee-data/geometry.report/internal/units"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical report defaults file.
const DefaultConfigPath = "config/report.defaults.json"

// Renderer names accepted by the renderer option.
const (
	RendererPNG  = "png"
	RendererHTML = "html"
)

// ReportConfig holds the layout constants and run options of a report.
// Every field is optional; the Get* methods supply defaults for nil fields so
// partial files are safe.
type ReportConfig struct {
	// Layout
	PixelsPerUnit        *float64 `json:"pixels_per_unit,omitempty" yaml:"pixels_per_unit,omitempty"`
	BaseOffset           *float64 `json:"base_offset,omitempty" yaml:"base_offset,omitempty"`
	ReferenceChartIndex  *int     `json:"reference_chart_index,omitempty" yaml:"reference_chart_index,omitempty"` // -1 = last visible chart
	ReferenceChartHeight *float64 `json:"reference_chart_height,omitempty" yaml:"reference_chart_height,omitempty"`
	AxisPadding          *float64 `json:"axis_padding,omitempty" yaml:"axis_padding,omitempty"`
	ShadeColor           *string  `json:"shade_color,omitempty" yaml:"shade_color,omitempty"`
	EventNameLength      *int     `json:"event_name_length,omitempty" yaml:"event_name_length,omitempty"`

	// Output
	Renderer        *string  `json:"renderer,omitempty" yaml:"renderer,omitempty"` // "png" or "html"
	SnapshotPadding *float64 `json:"snapshot_padding,omitempty" yaml:"snapshot_padding,omitempty"`

	// Run options
	StrictOrdering *bool   `json:"strict_ordering,omitempty" yaml:"strict_ordering,omitempty"`
	HistoryDB      *string `json:"history_db,omitempty" yaml:"history_db,omitempty"`
}

// EmptyReportConfig returns a ReportConfig with all fields set to nil.
func EmptyReportConfig() *ReportConfig {
	return &ReportConfig{}
}

// Load reads a ReportConfig from a .json, .yaml or .yml file and validates it.
func Load(path string) (*ReportConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyReportConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *ReportConfig) Validate() error {
	if c.PixelsPerUnit != nil && *c.PixelsPerUnit <= 0 {
		return fmt.Errorf("pixels_per_unit must be positive, got %f", *c.PixelsPerUnit)
	}
	if c.BaseOffset != nil && *c.BaseOffset < 0 {
		return fmt.Errorf("base_offset must be non-negative, got %f", *c.BaseOffset)
	}
	if c.ReferenceChartIndex != nil && *c.ReferenceChartIndex < -1 {
		return fmt.Errorf("reference_chart_index must be -1 or an index, got %d", *c.ReferenceChartIndex)
	}
	if c.ReferenceChartHeight != nil && *c.ReferenceChartHeight <= 0 {
		return fmt.Errorf("reference_chart_height must be positive, got %f", *c.ReferenceChartHeight)
	}
	if c.AxisPadding != nil && *c.AxisPadding < 0 {
		return fmt.Errorf("axis_padding must be non-negative, got %f", *c.AxisPadding)
	}
	if c.ShadeColor != nil && *c.ShadeColor != "" {
		if _, err := csscolor.Parse(*c.ShadeColor); err != nil {
			return fmt.Errorf("shade_color: %w", err)
		}
	}
	if c.EventNameLength != nil && *c.EventNameLength < 1 {
		return fmt.Errorf("event_name_length must be at least 1, got %d", *c.EventNameLength)
	}
	if c.Renderer != nil && *c.Renderer != RendererPNG && *c.Renderer != RendererHTML {
		return fmt.Errorf("renderer must be %q or %q, got %q", RendererPNG, RendererHTML, *c.Renderer)
	}
	if c.SnapshotPadding != nil && *c.SnapshotPadding < 0 {
		return fmt.Errorf("snapshot_padding must be non-negative, got %f", *c.SnapshotPadding)
	}
	return nil
}

// GetPixelsPerUnit returns the pixels drawn per millimetre of defect.
func (c *ReportConfig) GetPixelsPerUnit() float64 {
	if c.PixelsPerUnit == nil {
		return units.PixelsPerMillimetre
	}
	return *c.PixelsPerUnit
}

// GetBaseOffset returns the pixels added to every computed chart height.
func (c *ReportConfig) GetBaseOffset() float64 {
	if c.BaseOffset == nil {
		return 13
	}
	return *c.BaseOffset
}

// GetReferenceChartIndex returns the pinned reference chart index, or -1 when
// the last visible chart is the reference.
func (c *ReportConfig) GetReferenceChartIndex() int {
	if c.ReferenceChartIndex == nil {
		return -1
	}
	return *c.ReferenceChartIndex
}

// GetReferenceChartHeight returns the fixed height of the reference chart.
func (c *ReportConfig) GetReferenceChartHeight() float64 {
	if c.ReferenceChartHeight == nil {
		return 85
	}
	return *c.ReferenceChartHeight
}

// GetAxisPadding returns the value added above and below the data bounds.
func (c *ReportConfig) GetAxisPadding() float64 {
	if c.AxisPadding == nil {
		return 1
	}
	return *c.AxisPadding
}

// GetShadeColor returns the background of every other chart.
func (c *ReportConfig) GetShadeColor() string {
	if c.ShadeColor == nil || *c.ShadeColor == "" {
		return "rgba(220, 220, 220, 0.5)"
	}
	return *c.ShadeColor
}

// GetEventNameLength returns how many characters of an event name are shown.
func (c *ReportConfig) GetEventNameLength() int {
	if c.EventNameLength == nil {
		return 4
	}
	return *c.EventNameLength
}

// GetRenderer returns the output renderer name.
func (c *ReportConfig) GetRenderer() string {
	if c.Renderer == nil || *c.Renderer == "" {
		return RendererPNG
	}
	return *c.Renderer
}

// GetSnapshotPadding returns the pixels added to the page width of the snapshot.
func (c *ReportConfig) GetSnapshotPadding() float64 {
	if c.SnapshotPadding == nil {
		return 21
	}
	return *c.SnapshotPadding
}

// GetStrictOrdering reports whether decreasing positions abort a run.
func (c *ReportConfig) GetStrictOrdering() bool {
	if c.StrictOrdering == nil {
		return false
	}
	return *c.StrictOrdering
}

// GetHistoryDB returns the run history database path; empty disables history.
func (c *ReportConfig) GetHistoryDB() string {
	if c.HistoryDB == nil {
		return ""
	}
	return *c.HistoryDB
}
