// Package chart turns tables into drawable bubble chart scenes and
// interpolates between a start and an end snapshot.
package chart

import (
	"math"

	"github.com/aclements/go-moremath/stats"
)

// Bubble is one point of the chart in data coordinates.
// Size is the marker area in square points, already scaled.
type Bubble struct {
	Label    string  `json:"label"`
	Category string  `json:"category"`
	Color    string  `json:"color"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Size     float64 `json:"size"`
}

// Visible reports whether the bubble has a drawable position.
func (b Bubble) Visible() bool {
	return finite(b.X) && finite(b.Y)
}

// Range is a closed axis interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Scene is everything a renderer needs to draw one chart image.
type Scene struct {
	Title   string   `json:"title"`
	XLabel  string   `json:"x_label"`
	YLabel  string   `json:"y_label"`
	XRange  Range    `json:"x_range"`
	YRange  Range    `json:"y_range"`
	MedianX float64  `json:"median_x"`
	MedianY float64  `json:"median_y"`
	Bubbles []Bubble `json:"bubbles"`

	// Frame is zero based; Frames is 0 for static charts.
	Frame  int `json:"frame"`
	Frames int `json:"frames"`
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Progress maps a frame index to [0, 1]. A single frame sits at 0.
func Progress(frame, frames int) float64 {
	if frames <= 1 {
		return 0
	}
	return float64(frame) / float64(frames-1)
}

// Median returns the median of the finite values, or NaN when there are none.
func Median(values []float64) float64 {
	return stats.Sample{Xs: finiteValues(values)}.Quantile(0.5)
}

// Limits returns the padded axis range covering all finite values.
// Padding is 15% of the data range, or 1 when the range is empty.
func Limits(values ...[]float64) Range {
	var all []float64
	for _, v := range values {
		all = append(all, finiteValues(v)...)
	}
	if len(all) == 0 {
		return Range{Min: -1, Max: 1}
	}

	min, max := stats.Bounds(all)
	pad := 1.0
	if span := max - min; span > 0 {
		pad = span * 0.15
	}
	return Range{Min: min - pad, Max: max + pad}
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
