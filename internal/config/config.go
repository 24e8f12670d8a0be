// Package config holds the chart parameters shared by every surface
// (CLI flags, YAML files, the HTTP API and MCP tools).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/junkd0g/bubbleflow/internal/palette"
)

// Frame and interval bounds mirror the ranges the chart controls accept.
const (
	MinFrames     = 30
	MaxFrames     = 200
	MinIntervalMS = 50
	MaxIntervalMS = 500
)

// Params configures column mapping, animation and rendering.
type Params struct {
	Title          string `yaml:"title" json:"title"`
	LabelColumn    string `yaml:"label_column" json:"label_column"`
	CategoryColumn string `yaml:"category_column" json:"category_column"`
	XColumn        string `yaml:"x_column" json:"x_column"`
	YColumn        string `yaml:"y_column" json:"y_column"`
	SizeColumn     string `yaml:"size_column" json:"size_column"`

	NumFrames  int     `yaml:"num_frames" json:"num_frames"`
	IntervalMS int     `yaml:"interval_ms" json:"interval_ms"`
	Scale      float64 `yaml:"scale" json:"scale"`

	UseStaticHorizontal bool    `yaml:"use_static_horizontal" json:"use_static_horizontal"`
	StaticHorizontal    float64 `yaml:"static_horizontal" json:"static_horizontal"`
	UseStaticVertical   bool    `yaml:"use_static_vertical" json:"use_static_vertical"`
	StaticVertical      float64 `yaml:"static_vertical" json:"static_vertical"`

	// Colors maps category value to a #rrggbb color.
	Colors map[string]string `yaml:"colors,omitempty" json:"colors,omitempty"`

	DPI      float64 `yaml:"dpi" json:"dpi"`
	GIFFPS   int     `yaml:"gif_fps" json:"gif_fps"`
	GIFWidth int     `yaml:"gif_width" json:"gif_width"`
	Font     string  `yaml:"font,omitempty" json:"font,omitempty"`
	Theme    string  `yaml:"theme" json:"theme"`
}

// Default returns the parameters used when nothing is configured.
func Default() Params {
	return Params{
		Title:          "Chart Title",
		LabelColumn:    "Topic",
		CategoryColumn: "Category",
		XColumn:        "X-axis",
		YColumn:        "Y-axis",
		SizeColumn:     "Size",
		NumFrames:      100,
		IntervalMS:     150,
		Scale:          0.000005,
		DPI:            100,
		GIFFPS:         10,
		Theme:          "light",
	}
}

// Load reads parameters from a YAML file on top of Default.
// Unknown keys are rejected.
func Load(path string) (Params, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return p, p.Validate()
}

// Save writes parameters as YAML.
func (p Params) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks ranges and required columns.
func (p Params) Validate() error {
	var errs []error

	columns := []struct{ name, value string }{
		{"label_column", p.LabelColumn},
		{"category_column", p.CategoryColumn},
		{"x_column", p.XColumn},
		{"y_column", p.YColumn},
		{"size_column", p.SizeColumn},
	}
	for _, c := range columns {
		if strings.TrimSpace(c.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", c.name))
		}
	}

	if p.NumFrames < MinFrames || p.NumFrames > MaxFrames {
		errs = append(errs, fmt.Errorf("num_frames must be between %d and %d, got %d", MinFrames, MaxFrames, p.NumFrames))
	}
	if p.IntervalMS < MinIntervalMS || p.IntervalMS > MaxIntervalMS {
		errs = append(errs, fmt.Errorf("interval_ms must be between %d and %d, got %d", MinIntervalMS, MaxIntervalMS, p.IntervalMS))
	}
	if !finite(p.Scale) || p.Scale < 0 {
		errs = append(errs, fmt.Errorf("scale must be a non-negative number, got %v", p.Scale))
	}
	if !finite(p.StaticHorizontal) || !finite(p.StaticVertical) {
		errs = append(errs, errors.New("static line values must be finite"))
	}
	if p.DPI < 50 || p.DPI > 600 {
		errs = append(errs, fmt.Errorf("dpi must be between 50 and 600, got %v", p.DPI))
	}
	if p.GIFFPS < 1 || p.GIFFPS > 50 {
		errs = append(errs, fmt.Errorf("gif_fps must be between 1 and 50, got %d", p.GIFFPS))
	}
	if p.GIFWidth < 0 {
		errs = append(errs, fmt.Errorf("gif_width must not be negative, got %d", p.GIFWidth))
	}
	if p.Theme != "light" && p.Theme != "dark" {
		errs = append(errs, fmt.Errorf("theme must be light or dark, got %q", p.Theme))
	}
	for cat, c := range p.Colors {
		if _, err := palette.ParseHex(c); err != nil {
			errs = append(errs, fmt.Errorf("color for %q: %w", cat, err))
		}
	}

	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Slug turns a chart title into a file name stem: lower case, spaces as underscores.
func Slug(title string) string {
	s := cases.Lower(language.Und).String(strings.TrimSpace(title))
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return "chart"
	}
	return s
}

// StaticFilename names a static chart download.
func StaticFilename(title, ext string) string {
	return fmt.Sprintf("%s_static.%s", Slug(title), ext)
}

// AnimationFilename names an animation download.
func AnimationFilename(title, ext string) string {
	return fmt.Sprintf("%s_animation.%s", Slug(title), ext)
}
