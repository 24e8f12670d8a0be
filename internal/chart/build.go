package chart

import (
	"fmt"
	"strings"

	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
	"github.com/junkd0g/bubbleflow/internal/palette"
)

// series is a table reduced to the columns a chart draws.
type series struct {
	labels     []string
	categories []string
	x, y, size []float64
}

// prepare converts the mapped columns of every table. Text columns share
// one encoding across tables.
func prepare(p config.Params, tables ...*dataset.Table) ([]series, []dataset.Encoding, error) {
	out := make([]series, len(tables))
	var encodings []dataset.Encoding

	numeric := []struct {
		col string
		set func(s *series, v []float64)
	}{
		{p.XColumn, func(s *series, v []float64) { s.x = v }},
		{p.YColumn, func(s *series, v []float64) { s.y = v }},
		{p.SizeColumn, func(s *series, v []float64) { s.size = v }},
	}
	for _, n := range numeric {
		vals, enc, err := dataset.NumericShared(n.col, tables...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to convert column %q: %w", n.col, err)
		}
		if enc != nil {
			encodings = append(encodings, *enc)
		}
		for i := range out {
			n.set(&out[i], vals[i])
		}
	}

	for i, t := range tables {
		labels, err := t.Column(p.LabelColumn)
		if err != nil {
			return nil, nil, err
		}
		categories, err := t.Column(p.CategoryColumn)
		if err != nil {
			return nil, nil, err
		}
		for j := range labels {
			if dataset.IsMissing(labels[j]) {
				labels[j] = ""
			}
			categories[j] = strings.TrimSpace(categories[j])
		}
		out[i].labels = labels
		out[i].categories = categories

		for j := range out[i].size {
			out[i].size[j] *= p.Scale
		}
	}

	return out, encodings, nil
}

func colorFor(p config.Params, category string) string {
	if c, ok := p.Colors[category]; ok && c != "" {
		return c
	}
	return palette.Fallback
}

// Static builds the chart of a single snapshot, used for the end state.
func Static(t *dataset.Table, p config.Params) (*Scene, []dataset.Encoding, error) {
	prepared, encodings, err := prepare(p, t)
	if err != nil {
		return nil, nil, err
	}
	s := prepared[0]

	scene := &Scene{
		Title:   fmt.Sprintf("%s - End State", p.Title),
		XLabel:  p.XColumn,
		YLabel:  p.YColumn,
		XRange:  Limits(s.x),
		YRange:  Limits(s.y),
		MedianX: Median(s.x),
		MedianY: Median(s.y),
		Bubbles: make([]Bubble, len(s.x)),
	}
	if p.UseStaticVertical {
		scene.MedianX = p.StaticVertical
	}
	if p.UseStaticHorizontal {
		scene.MedianY = p.StaticHorizontal
	}

	for i := range s.x {
		scene.Bubbles[i] = Bubble{
			Label:    s.labels[i],
			Category: s.categories[i],
			Color:    colorFor(p, s.categories[i]),
			X:        s.x[i],
			Y:        s.y[i],
			Size:     s.size[i],
		}
	}
	return scene, encodings, nil
}
