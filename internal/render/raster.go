// Package render draws chart scenes as raster images and encodes them as
// PNG, GIF and PDF.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/aclements/go-moremath/scale"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/junkd0g/bubbleflow/internal/chart"
	"github.com/junkd0g/bubbleflow/internal/palette"
)

// Font sizes and stroke widths are in points.
const (
	titleSize     = 14
	axisLabelSize = 12
	tickSize      = 10
	annotateSize  = 9

	tickLength     = 3.5
	tickWidth      = 0.8
	edgeWidth      = 0.8
	medianWidth    = 1.0
	annotateOffset = 12
	bubbleAlpha    = 0.75
	medianAlpha    = 0.8
	outerPad       = 8
)

// Renderer draws scenes onto a fixed size figure.
type Renderer struct {
	// Width and Height are in inches.
	Width, Height float64
	DPI           float64
	Fonts         *Fonts
}

// New returns a renderer for a 12x8 inch figure.
func New(fonts *Fonts, dpi float64) *Renderer {
	return &Renderer{Width: 12, Height: 8, DPI: dpi, Fonts: fonts}
}

// Size returns the pixel dimensions of rendered images.
func (r *Renderer) Size() (int, int) {
	return int(math.Round(r.Width * r.DPI)), int(math.Round(r.Height * r.DPI))
}

type faces struct {
	title, axis, tick, annotate font.Face
}

func (r *Renderer) faces() faces {
	return faces{
		title:    r.Fonts.face(true, titleSize, r.DPI),
		axis:     r.Fonts.face(true, axisLabelSize, r.DPI),
		tick:     r.Fonts.face(false, tickSize, r.DPI),
		annotate: r.Fonts.face(false, annotateSize, r.DPI),
	}
}

type axisTicks struct {
	values []float64
	labels []string
}

func ticksFor(rng chart.Range) axisTicks {
	major, _ := scale.Linear{Min: rng.Min, Max: rng.Max}.Ticks(scale.TickOptions{Max: 8})
	var t axisTicks
	for _, v := range major {
		if v < rng.Min || v > rng.Max {
			continue
		}
		if v == 0 {
			v = 0 // drop negative zero
		}
		t.values = append(t.values, v)
		t.labels = append(t.labels, fmt.Sprintf("%.6g", v))
	}
	return t
}

// Render draws one scene.
func (r *Renderer) Render(scene *chart.Scene) image.Image {
	w, h := r.Size()
	k := r.DPI / 72
	f := r.faces()

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	xt := ticksFor(scene.XRange)
	yt := ticksFor(scene.YRange)

	// Measure text to fit margins around the plot area.
	dc.SetFontFace(f.tick)
	maxYTick := 0.0
	for _, l := range yt.labels {
		if tw, _ := dc.MeasureString(l); tw > maxYTick {
			maxYTick = tw
		}
	}
	_, tickH := dc.MeasureString("0")
	lastXTick := 0.0
	if n := len(xt.labels); n > 0 {
		lastXTick, _ = dc.MeasureString(xt.labels[n-1])
	}
	dc.SetFontFace(f.axis)
	_, axisH := dc.MeasureString("X")
	dc.SetFontFace(f.title)
	_, titleH := dc.MeasureString("X")

	pad := outerPad * k
	gap := 2 * tickLength * k
	top := pad + titleH + 6*k
	left := pad + axisH + gap + maxYTick + gap
	bottom := pad + axisH + gap + tickH + gap
	right := pad + lastXTick/2
	pw := float64(w) - left - right
	ph := float64(h) - top - bottom

	xs := scale.Linear{Min: scene.XRange.Min, Max: scene.XRange.Max}
	ys := scale.Linear{Min: scene.YRange.Min, Max: scene.YRange.Max}
	px := func(v float64) float64 { return left + xs.Map(v)*pw }
	py := func(v float64) float64 { return top + ph - ys.Map(v)*ph }

	// Plot area background; spines are not drawn.
	dc.SetHexColor("#FAFAFA")
	dc.DrawRectangle(left, top, pw, ph)
	dc.Fill()

	// Ticks and tick labels.
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(tickWidth * k)
	dc.SetFontFace(f.tick)
	for i, v := range xt.values {
		x := px(v)
		dc.DrawLine(x, top+ph, x, top+ph+tickLength*k)
		dc.Stroke()
		dc.DrawStringAnchored(xt.labels[i], x, top+ph+gap, 0.5, 1)
	}
	for i, v := range yt.values {
		y := py(v)
		dc.DrawLine(left-tickLength*k, y, left, y)
		dc.Stroke()
		dc.DrawStringAnchored(yt.labels[i], left-gap, y, 1, 0.5)
	}

	// Axis labels and title.
	dc.SetFontFace(f.axis)
	dc.DrawStringAnchored(scene.XLabel, left+pw/2, float64(h)-pad, 0.5, 0)
	dc.Push()
	ylx, yly := pad+axisH/2, top+ph/2
	dc.RotateAbout(gg.Radians(-90), ylx, yly)
	dc.DrawStringAnchored(scene.YLabel, ylx, yly, 0.5, 0.5)
	dc.Pop()

	dc.SetFontFace(f.title)
	dc.DrawStringAnchored(scene.Title, left+pw/2, top-6*k, 0.5, 0)

	// Data layer, clipped to the plot area.
	dc.DrawRectangle(left, top, pw, ph)
	dc.Clip()
	for _, b := range scene.Bubbles {
		if !b.Visible() || math.IsNaN(b.Size) || b.Size <= 0 {
			continue
		}
		c, err := palette.ParseHex(b.Color)
		if err != nil {
			c, _ = palette.ParseHex(palette.Fallback)
		}
		radius := math.Sqrt(b.Size) / 2 * k
		dc.DrawCircle(px(b.X), py(b.Y), radius)
		dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, bubbleAlpha)
		dc.FillPreserve()
		dc.SetRGB(1, 1, 1)
		dc.SetLineWidth(edgeWidth * k)
		dc.Stroke()
	}

	dc.SetRGBA(0.4, 0.4, 0.4, medianAlpha)
	dc.SetLineWidth(medianWidth * k)
	if !math.IsNaN(scene.MedianX) {
		x := px(scene.MedianX)
		dc.DrawLine(x, top, x, top+ph)
		dc.Stroke()
	}
	if !math.IsNaN(scene.MedianY) {
		y := py(scene.MedianY)
		dc.DrawLine(left, y, left+pw, y)
		dc.Stroke()
	}
	dc.ResetClip()

	// Annotations sit above their bubble and are skipped outside the plot area.
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(f.annotate)
	for _, b := range scene.Bubbles {
		if b.Label == "" || !b.Visible() {
			continue
		}
		x, y := px(b.X), py(b.Y)
		if x < left || x > left+pw || y < top || y > top+ph {
			continue
		}
		dc.DrawStringAnchored(b.Label, x, y-annotateOffset*k, 0.5, 0)
	}

	return dc.Image()
}
