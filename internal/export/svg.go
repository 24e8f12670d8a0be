package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/aclements/go-moremath/scale"
	"github.com/goccy/go-graphviz"

	"github.com/junkd0g/bubbleflow/internal/chart"
	"github.com/junkd0g/bubbleflow/internal/palette"
)

// Plot area geometry in inches. Graphviz reads pinned positions in inches.
const (
	plotWidth  = 10.0
	plotHeight = 6.5
	tickGap    = 0.25
)

// RenderSVG lays out the scene with neato, every node pinned, and writes SVG.
func RenderSVG(ctx context.Context, scene *chart.Scene, w io.Writer) error {
	g, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create graphviz: %w", err)
	}
	defer g.Close()
	g.SetLayout(graphviz.NEATO)

	graph, err := graphviz.ParseBytes([]byte(GenerateDOT(scene)))
	if err != nil {
		return fmt.Errorf("failed to parse DOT: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := g.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write SVG: %w", err)
	}
	return nil
}

// GenerateDOT describes the scene as an undirected graph with fixed node
// positions: bubbles are filled circles, median lines are edges between
// invisible end points and tick labels are plain text nodes.
func GenerateDOT(scene *chart.Scene) string {
	var sb strings.Builder

	xs := scale.Linear{Min: scene.XRange.Min, Max: scene.XRange.Max}
	ys := scale.Linear{Min: scene.YRange.Min, Max: scene.YRange.Max}
	px := func(v float64) float64 { return xs.Map(v) * plotWidth }
	py := func(v float64) float64 { return ys.Map(v) * plotHeight }

	sb.WriteString("graph Chart {\n")
	sb.WriteString(fmt.Sprintf("  label=\"%s\";\n", escapeDOT(scene.Title)))
	sb.WriteString("  labelloc=t;\n")
	sb.WriteString("  fontsize=14;\n")
	sb.WriteString("  fontname=\"Helvetica-Bold\";\n")
	sb.WriteString("  bgcolor=\"#FFFFFF\";\n")
	sb.WriteString("  pad=0.3;\n")
	sb.WriteString("  splines=line;\n")
	sb.WriteString("  forcelabels=true;\n")
	sb.WriteString("  outputorder=edgesfirst;\n\n")

	sb.WriteString("  node [fontname=\"Helvetica\", fontsize=9, fixedsize=true];\n")
	sb.WriteString("  edge [penwidth=1, color=\"#666666cc\"];\n\n")

	// Plot area
	sb.WriteString(fmt.Sprintf("  area [shape=box, style=filled, fillcolor=\"#FAFAFA\", color=\"#FAFAFA\", label=\"\", width=%.4f, height=%.4f, pos=\"%.4f,%.4f!\"];\n",
		plotWidth, plotHeight, plotWidth/2, plotHeight/2))

	// Median lines drawn behind the bubbles via outputorder.
	if finite(scene.MedianX) {
		x := px(scene.MedianX)
		writeAnchor(&sb, "mx0", x, 0)
		writeAnchor(&sb, "mx1", x, plotHeight)
		sb.WriteString("  mx0 -- mx1;\n")
	}
	if finite(scene.MedianY) {
		y := py(scene.MedianY)
		writeAnchor(&sb, "my0", 0, y)
		writeAnchor(&sb, "my1", plotWidth, y)
		sb.WriteString("  my0 -- my1;\n")
	}
	sb.WriteString("\n")

	// Ticks
	major, _ := xs.Ticks(scale.TickOptions{Max: 8})
	for i, v := range major {
		if v < scene.XRange.Min || v > scene.XRange.Max {
			continue
		}
		sb.WriteString(fmt.Sprintf("  xt%d [shape=plaintext, fontsize=10, label=\"%s\", pos=\"%.4f,%.4f!\"];\n",
			i, tickLabel(v), px(v), -tickGap))
	}
	major, _ = ys.Ticks(scale.TickOptions{Max: 8})
	for i, v := range major {
		if v < scene.YRange.Min || v > scene.YRange.Max {
			continue
		}
		sb.WriteString(fmt.Sprintf("  yt%d [shape=plaintext, fontsize=10, label=\"%s\", pos=\"%.4f,%.4f!\"];\n",
			i, tickLabel(v), -2*tickGap, py(v)))
	}
	sb.WriteString(fmt.Sprintf("  axis_x [shape=plaintext, fontsize=12, fontname=\"Helvetica-Bold\", label=\"%s\", pos=\"%.4f,%.4f!\"];\n",
		escapeDOT(scene.XLabel), plotWidth/2, -3*tickGap))
	sb.WriteString(fmt.Sprintf("  axis_y [shape=plaintext, fontsize=12, fontname=\"Helvetica-Bold\", label=\"%s\", pos=\"%.4f,%.4f!\"];\n\n",
		escapeDOT(scene.YLabel), -5*tickGap, plotHeight/2))

	// Bubbles
	for i, b := range scene.Bubbles {
		if !b.Visible() || math.IsNaN(b.Size) || b.Size <= 0 {
			continue
		}
		x, y := px(b.X), py(b.Y)
		if x < 0 || x > plotWidth || y < 0 || y > plotHeight {
			continue
		}
		color, err := palette.Normalize(b.Color)
		if err != nil {
			color = palette.Fallback
		}
		diameter := math.Sqrt(b.Size) / 72
		sb.WriteString(fmt.Sprintf("  b%d [shape=circle, style=filled, fillcolor=\"%sbf\", color=\"#FFFFFF\", penwidth=0.8, label=\"\", xlabel=\"%s\", width=%.4f, pos=\"%.4f,%.4f!\"];\n",
			i, color, escapeDOT(b.Label), diameter, x, y))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func writeAnchor(sb *strings.Builder, name string, x, y float64) {
	sb.WriteString(fmt.Sprintf("  %s [shape=point, style=invis, width=0.01, pos=\"%.4f,%.4f!\"];\n", name, x, y))
}

func tickLabel(v float64) string {
	if v == 0 {
		v = 0
	}
	return fmt.Sprintf("%.6g", v)
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
