package chart

import (
	"errors"
	"fmt"

	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
)

// ErrRowMismatch is returned when the snapshots hold different numbers of rows.
var ErrRowMismatch = errors.New("start and end row counts differ")

// Animation interpolates bubbles from a start snapshot to an end snapshot.
// Row i of start and row i of end describe the same point.
type Animation struct {
	params     config.Params
	start, end series
	encodings  []dataset.Encoding

	xRange, yRange Range
	startMX, endMX float64
	startMY, endMY float64
	frames         int
}

// NewAnimation prepares both snapshots. Axis limits cover both.
func NewAnimation(start, end *dataset.Table, p config.Params) (*Animation, error) {
	if start.Len() != end.Len() {
		return nil, fmt.Errorf("%w: start has %d rows but end has %d", ErrRowMismatch, start.Len(), end.Len())
	}

	prepared, encodings, err := prepare(p, start, end)
	if err != nil {
		return nil, err
	}

	a := &Animation{
		params:    p,
		start:     prepared[0],
		end:       prepared[1],
		encodings: encodings,
		frames:    p.NumFrames,
	}
	a.xRange = Limits(a.start.x, a.end.x)
	a.yRange = Limits(a.start.y, a.end.y)

	a.startMX, a.endMX = Median(a.start.x), Median(a.end.x)
	if p.UseStaticVertical {
		a.startMX, a.endMX = p.StaticVertical, p.StaticVertical
	}
	a.startMY, a.endMY = Median(a.start.y), Median(a.end.y)
	if p.UseStaticHorizontal {
		a.startMY, a.endMY = p.StaticHorizontal, p.StaticHorizontal
	}

	return a, nil
}

// Len returns the number of frames.
func (a *Animation) Len() int {
	return a.frames
}

// Encodings lists text columns that were turned into numbers.
func (a *Animation) Encodings() []dataset.Encoding {
	return a.encodings
}

// Points returns the number of bubbles per frame.
func (a *Animation) Points() int {
	return len(a.start.x)
}

// Frame builds the scene for frame i in [0, Len()).
func (a *Animation) Frame(i int) (*Scene, error) {
	if i < 0 || i >= a.frames {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, a.frames)
	}
	t := Progress(i, a.frames)

	scene := &Scene{
		Title:   fmt.Sprintf("%s Landscape Over Time - Frame %d", a.params.Title, i+1),
		XLabel:  a.params.XColumn,
		YLabel:  a.params.YColumn,
		XRange:  a.xRange,
		YRange:  a.yRange,
		MedianX: Lerp(a.startMX, a.endMX, t),
		MedianY: Lerp(a.startMY, a.endMY, t),
		Bubbles: make([]Bubble, len(a.start.x)),
		Frame:   i,
		Frames:  a.frames,
	}

	// Labels and colors follow the start snapshot.
	for j := range a.start.x {
		category := a.start.categories[j]
		scene.Bubbles[j] = Bubble{
			Label:    a.start.labels[j],
			Category: category,
			Color:    colorFor(a.params, category),
			X:        Lerp(a.start.x[j], a.end.x[j], t),
			Y:        Lerp(a.start.y[j], a.end.y[j], t),
			Size:     Lerp(a.start.size[j], a.end.size[j], t),
		}
	}
	return scene, nil
}
