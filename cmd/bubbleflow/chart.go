package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/export"
	"github.com/junkd0g/bubbleflow/internal/generate"
	"github.com/junkd0g/bubbleflow/internal/session"
)

func newStaticCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "static",
		Short: "Draw the end snapshot as a bubble chart",
		Long: `Draw every selected point at its end position with median (or fixed)
reference lines. The format follows the output extension: .png, .svg or .pdf.`,
		Args: cobra.NoArgs,
		RunE: runStatic,
	}
	addChartFlags(cmd.Flags())
	cmd.Flags().StringP("output", "o", "", "Output file (default <title>_static.png)")
	cmd.Flags().Int("workers", 0, "Render workers (default number of CPUs)")
	return cmd
}

func newAnimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "animate",
		Short: "Animate points from the start to the end snapshot",
		Long: `Interpolate every selected point between the two snapshots. The format
follows the output extension: .html (player page), .gif, or .csv/.xlsx with the
per-frame positions.`,
		Args: cobra.NoArgs,
		RunE: runAnimate,
	}
	d := config.Default()
	addChartFlags(cmd.Flags())
	cmd.Flags().StringP("output", "o", "", "Output file (default <title>_animation.html)")
	cmd.Flags().Int("frames", d.NumFrames, "Number of frames")
	cmd.Flags().Int("interval", d.IntervalMS, "Milliseconds between frames in the HTML player")
	cmd.Flags().Int("gif-fps", d.GIFFPS, "GIF frame rate")
	cmd.Flags().Int("gif-width", d.GIFWidth, "GIF width in pixels (default full size)")
	cmd.Flags().String("theme", d.Theme, "HTML player theme (light or dark)")
	cmd.Flags().Int("workers", 0, "Render workers (default number of CPUs)")
	return cmd
}

func runStatic(cmd *cobra.Command, args []string) error {
	return runChart(cmd, generate.StaticFormats, config.StaticFilename, func(g *generate.Generator) generateFunc { return g.Static })
}

func runAnimate(cmd *cobra.Command, args []string) error {
	return runChart(cmd, generate.AnimationFormats, config.AnimationFilename, func(g *generate.Generator) generateFunc { return g.Animation })
}

type generateFunc func(context.Context, *session.Session, generate.Format, io.Writer) (*generate.Result, error)

func runChart(cmd *cobra.Command, allowed []generate.Format, filename func(string, string) string, pick func(*generate.Generator) generateFunc) error {
	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(v)
	if err != nil {
		return err
	}
	sess, err := loadSession(v)
	if err != nil {
		return err
	}

	output := v.GetString("output")
	if output == "" {
		output = filename(sess.Params().Title, string(allowed[0]))
	}
	format, err := generate.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), "."), allowed)
	if err != nil {
		return err
	}

	gen := generate.New(v.GetInt("workers"), logger)
	var buf bytes.Buffer
	res, err := pick(gen)(cmd.Context(), sess, format, &buf)
	if err != nil {
		return fmt.Errorf("failed to generate chart: %w", err)
	}
	if err := export.WriteFile(output, buf.Bytes()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", headingStyle.Render("Wrote"), output)
	fmt.Fprintf(out, "  bubbles: %d\n", res.Bubbles)
	if res.Frames > 0 {
		fmt.Fprintf(out, "  frames:  %d\n", res.Frames)
	}
	for _, enc := range res.Encodings {
		values := make([]string, len(enc.Values))
		for i, ev := range enc.Values {
			values[i] = fmt.Sprintf("%s=%g", ev.Original, ev.Code)
		}
		fmt.Fprintf(out, "  %s %s\n", dimStyle.Render(enc.Column+":"), strings.Join(values, ", "))
	}
	return nil
}
