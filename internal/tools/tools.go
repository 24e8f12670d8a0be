package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
	"github.com/junkd0g/bubbleflow/internal/export"
	"github.com/junkd0g/bubbleflow/internal/generate"
	"github.com/junkd0g/bubbleflow/internal/session"
)

// Handlers serves the chart tools.
type Handlers struct {
	gen    *generate.Generator
	logger *zerolog.Logger
}

// Register registers all tools with the MCP server.
func Register(s *server.MCPServer, gen *generate.Generator, logger *zerolog.Logger) {
	h := &Handlers{gen: gen, logger: logger}
	s.AddTool(inspectTool(), h.Inspect)
	s.AddTool(staticTool(), h.Static)
	s.AddTool(animationTool(), h.Animation)
}

// datasetOptions are shared by every tool.
func datasetOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("start_path",
			mcp.Required(),
			mcp.Description("Path to the start snapshot (.csv or .xlsx)"),
		),
		mcp.WithString("end_path",
			mcp.Required(),
			mcp.Description("Path to the end snapshot (.csv or .xlsx). Rows must line up with the start snapshot"),
		),
		mcp.WithString("config_path",
			mcp.Description("Optional YAML file with chart parameters. Other arguments override it"),
		),
		mcp.WithString("title", mcp.Description("Chart title. Defaults to \"Chart Title\"")),
		mcp.WithString("label_column", mcp.Description("Column with point labels. Defaults to Topic")),
		mcp.WithString("category_column", mcp.Description("Column with categories. Defaults to Category")),
		mcp.WithString("x_column", mcp.Description("Column for the x axis. Defaults to X-axis")),
		mcp.WithString("y_column", mcp.Description("Column for the y axis. Defaults to Y-axis")),
		mcp.WithString("size_column", mcp.Description("Column for bubble size. Defaults to Size")),
		mcp.WithNumber("scale", mcp.Description("Multiplier applied to the size column. Defaults to 0.000005")),
		mcp.WithString("categories", mcp.Description("Comma separated categories to include. Defaults to all")),
		mcp.WithString("colors", mcp.Description("Comma separated category=#rrggbb pairs")),
	}
}

func inspectTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Loads two data snapshots and reports their shape, column types, categories and the colors that would be used."),
	}, datasetOptions()...)
	return mcp.NewTool("inspect_datasets", opts...)
}

func staticTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Generates a bubble chart of the end snapshot with median reference lines. Supports PNG, SVG and PDF output."),
		mcp.WithString("output_path",
			mcp.Description("Output file (.png, .svg or .pdf). Defaults to <title>_static.png next to the end snapshot"),
		),
	}, datasetOptions()...)
	return mcp.NewTool("generate_static_chart", opts...)
}

func animationTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Generates an animated bubble chart moving every point from the start snapshot to the end snapshot. Supports an HTML player, GIF, and per-frame CSV or XLSX data."),
		mcp.WithString("output_path",
			mcp.Description("Output file (.html, .gif, .csv or .xlsx). Defaults to <title>_animation.html next to the end snapshot"),
		),
		mcp.WithNumber("num_frames", mcp.Description("Number of frames, 30 to 200. Defaults to 100")),
		mcp.WithNumber("interval_ms", mcp.Description("Milliseconds between frames in the HTML player, 50 to 500. Defaults to 150")),
	}, datasetOptions()...)
	return mcp.NewTool("generate_animated_chart", opts...)
}

// Inspect summarizes both snapshots.
func (h *Handlers) Inspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := buildSession(request.Params.Arguments)
	if err != nil {
		return newToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buildSummary(sess.Summary())), nil
}

// Static writes the end state chart.
func (h *Handlers) Static(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.generate(ctx, request, generate.StaticFormats, config.StaticFilename, h.gen.Static)
}

// Animation writes the animated chart.
func (h *Handlers) Animation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.generate(ctx, request, generate.AnimationFormats, config.AnimationFilename, h.gen.Animation)
}

type generateFunc func(context.Context, *session.Session, generate.Format, io.Writer) (*generate.Result, error)

func (h *Handlers) generate(ctx context.Context, request mcp.CallToolRequest, allowed []generate.Format, filename func(string, string) string, fn generateFunc) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments
	sess, err := buildSession(args)
	if err != nil {
		return newToolResultError(err.Error()), nil
	}

	p := sess.Params()
	endPath, _ := args["end_path"].(string)
	outputPath := filepath.Join(filepath.Dir(endPath), filename(p.Title, string(allowed[0])))
	if op, ok := args["output_path"].(string); ok && op != "" {
		outputPath = op
	}

	format, err := generate.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(outputPath)), "."), allowed)
	if err != nil {
		return newToolResultError(err.Error()), nil
	}

	var buf bytes.Buffer
	res, err := fn(ctx, sess, format, &buf)
	if err != nil {
		h.logger.Error().Err(err).Str("output", outputPath).Msg("generate chart failed")
		return newToolResultError(fmt.Sprintf("failed to generate chart: %v", err)), nil
	}
	if err := export.WriteFile(outputPath, buf.Bytes()); err != nil {
		return newToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(buildResult(res, outputPath)), nil
}

func buildSession(args map[string]interface{}) (*session.Session, error) {
	startPath, ok := args["start_path"].(string)
	if !ok || startPath == "" {
		return nil, fmt.Errorf("start_path is required")
	}
	endPath, ok := args["end_path"].(string)
	if !ok || endPath == "" {
		return nil, fmt.Errorf("end_path is required")
	}
	for _, p := range []string{startPath, endPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", p)
		}
	}

	params := config.Default()
	if cp, ok := args["config_path"].(string); ok && cp != "" {
		var err error
		if params, err = config.Load(cp); err != nil {
			return nil, err
		}
	}
	if err := applyArguments(&params, args); err != nil {
		return nil, err
	}

	start, err := dataset.Load(startPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load start data: %w", err)
	}
	end, err := dataset.Load(endPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load end data: %w", err)
	}

	sess, err := session.New(start, end, params)
	if err != nil {
		return nil, err
	}
	if cats, ok := args["categories"].(string); ok && cats != "" {
		if err := sess.SelectCategories(splitList(cats)); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func applyArguments(p *config.Params, args map[string]interface{}) error {
	strs := map[string]*string{
		"title":           &p.Title,
		"label_column":    &p.LabelColumn,
		"category_column": &p.CategoryColumn,
		"x_column":        &p.XColumn,
		"y_column":        &p.YColumn,
		"size_column":     &p.SizeColumn,
	}
	for name, dst := range strs {
		if v, ok := args[name].(string); ok && v != "" {
			*dst = v
		}
	}

	// JSON numbers arrive as float64.
	if v, ok := args["num_frames"].(float64); ok {
		p.NumFrames = int(v)
	}
	if v, ok := args["interval_ms"].(float64); ok {
		p.IntervalMS = int(v)
	}
	if v, ok := args["scale"].(float64); ok {
		p.Scale = v
	}

	if v, ok := args["colors"].(string); ok && v != "" {
		if p.Colors == nil {
			p.Colors = make(map[string]string)
		}
		for _, pair := range splitList(v) {
			cat, hex, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("invalid color %q, expected category=#rrggbb", pair)
			}
			p.Colors[strings.TrimSpace(cat)] = strings.TrimSpace(hex)
		}
	}
	return p.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newToolResultError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: message,
			},
		},
		IsError: true,
	}
}

func buildSummary(sum session.Summary) string {
	var sb strings.Builder

	for _, t := range []session.TableSummary{sum.Start, sum.End} {
		sb.WriteString(fmt.Sprintf("%s: %d rows x %d columns\n", t.Name, t.Rows, len(t.Columns)))
		for _, col := range t.Columns {
			sb.WriteString(fmt.Sprintf("  - %s (%s)\n", col, t.Kinds[col]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Categories found: %d\n", len(sum.Categories)))
	for _, c := range sum.Categories {
		marker := " "
		if c.Selected {
			marker = "x"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s %s: %d data points\n", marker, c.Name, c.Color, c.Count))
	}
	sb.WriteString(fmt.Sprintf("\nSelected points: %d\n", sum.Points))
	return sb.String()
}

func buildResult(res *generate.Result, outputPath string) string {
	summary := fmt.Sprintf("Chart generated successfully!\n\nOutput: %s\nBubbles: %d\n", outputPath, res.Bubbles)
	if res.Frames > 0 {
		summary += fmt.Sprintf("Frames: %d\n", res.Frames)
	}

	if len(res.Encodings) > 0 {
		summary += "\nText columns were encoded as numbers:\n"
		for _, enc := range res.Encodings {
			values := make([]string, len(enc.Values))
			for i, v := range enc.Values {
				values[i] = fmt.Sprintf("%s=%g", v.Original, v.Code)
			}
			summary += fmt.Sprintf("  - %s: %s\n", enc.Column, strings.Join(values, ", "))
		}
	}
	return summary
}
