package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
	"github.com/junkd0g/bubbleflow/internal/logging"
	"github.com/junkd0g/bubbleflow/internal/session"
)

const envPrefix = "BUBBLEFLOW"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bubbleflow",
		Short: "Animated bubble charts from two data snapshots",
		Long: `bubbleflow draws bubble charts from a start and an end snapshot of the
same points (CSV or XLSX) and animates the transition between them.

Examples:
  bubbleflow inspect --start q1.csv --end q2.csv
  bubbleflow static --start q1.csv --end q2.csv -o market.svg
  bubbleflow animate --start q1.csv --end q2.csv --frames 60 -o market.gif
  bubbleflow serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "YAML file with chart parameters")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newStaticCmd())
	root.AddCommand(newAnimateCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// newViper binds the command's flags and BUBBLEFLOW_* environment variables.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// newLogger writes to stderr, as JSON lines when --json-logs is set.
func newLogger(v *viper.Viper) (*zerolog.Logger, error) {
	return logging.New(v.GetString("log-level"), nil, !v.GetBool("json-logs"))
}

// addChartFlags registers the chart parameter flags shared by the
// inspect, static and animate commands.
func addChartFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("start", "", "Start snapshot (.csv or .xlsx)")
	fs.String("end", "", "End snapshot (.csv or .xlsx)")
	fs.String("title", d.Title, "Chart title")
	fs.String("label-column", d.LabelColumn, "Column with point labels")
	fs.String("category-column", d.CategoryColumn, "Column with categories")
	fs.String("x-column", d.XColumn, "Column for the x axis")
	fs.String("y-column", d.YColumn, "Column for the y axis")
	fs.String("size-column", d.SizeColumn, "Column for bubble size")
	fs.Float64("scale", d.Scale, "Multiplier applied to the size column")
	fs.Float64("static-horizontal", 0, "Fixed y value for the horizontal reference line instead of the median")
	fs.Float64("static-vertical", 0, "Fixed x value for the vertical reference line instead of the median")
	fs.StringSlice("categories", nil, "Categories to include (default all)")
	fs.StringToString("color", nil, "Category colors, e.g. --color Tech=#ff0000")
	fs.Float64("dpi", d.DPI, "Raster resolution")
	fs.String("font", d.Font, "System font file name (default embedded Go fonts)")
}

// paramsFrom starts from the --config file (or defaults) and applies every
// flag or environment variable that was set explicitly.
func paramsFrom(v *viper.Viper) (config.Params, error) {
	p := config.Default()
	if path := v.GetString("config"); path != "" {
		var err error
		if p, err = config.Load(path); err != nil {
			return p, err
		}
	}

	strs := map[string]*string{
		"title":           &p.Title,
		"label-column":    &p.LabelColumn,
		"category-column": &p.CategoryColumn,
		"x-column":        &p.XColumn,
		"y-column":        &p.YColumn,
		"size-column":     &p.SizeColumn,
		"font":            &p.Font,
		"theme":           &p.Theme,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	ints := map[string]*int{
		"frames":    &p.NumFrames,
		"interval":  &p.IntervalMS,
		"gif-fps":   &p.GIFFPS,
		"gif-width": &p.GIFWidth,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	if v.IsSet("scale") {
		p.Scale = v.GetFloat64("scale")
	}
	if v.IsSet("dpi") {
		p.DPI = v.GetFloat64("dpi")
	}
	if v.IsSet("static-horizontal") {
		p.UseStaticHorizontal = true
		p.StaticHorizontal = v.GetFloat64("static-horizontal")
	}
	if v.IsSet("static-vertical") {
		p.UseStaticVertical = true
		p.StaticVertical = v.GetFloat64("static-vertical")
	}
	if colors := v.GetStringMapString("color"); len(colors) > 0 {
		if p.Colors == nil {
			p.Colors = make(map[string]string)
		}
		for cat, hex := range colors {
			p.Colors[cat] = hex
		}
	}

	return p, p.Validate()
}

// loadSession reads both snapshots and applies the category selection.
func loadSession(v *viper.Viper) (*session.Session, error) {
	startPath, endPath := v.GetString("start"), v.GetString("end")
	if startPath == "" || endPath == "" {
		return nil, fmt.Errorf("--start and --end are required")
	}

	params, err := paramsFrom(v)
	if err != nil {
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
	if cats := v.GetStringSlice("categories"); len(cats) > 0 {
		if err := sess.SelectCategories(cats); err != nil {
			return nil, err
		}
	}
	return sess, nil
}
