package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/junkd0g/bubbleflow/internal/session"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4A90D9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4A90D9")).
			Padding(0, 1)
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show snapshot columns, categories and colors",
		Long: `Load both snapshots and print their shape, the kind of every column,
the categories found in the start snapshot with their colors, and how many
points the current selection contains.`,
		Args: cobra.NoArgs,
		RunE: runInspect,
	}
	addChartFlags(cmd.Flags())
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	sess, err := loadSession(v)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), sess.Summary())
	return nil
}

func printSummary(w io.Writer, sum session.Summary) {
	for _, t := range []session.TableSummary{sum.Start, sum.End} {
		var sb strings.Builder
		sb.WriteString(headingStyle.Render(t.Name))
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  %d rows x %d columns", t.Rows, len(t.Columns))))
		for _, col := range t.Columns {
			sb.WriteString(fmt.Sprintf("\n  %s %s", col, dimStyle.Render(fmt.Sprintf("(%s)", t.Kinds[col]))))
		}
		fmt.Fprintln(w, boxStyle.Render(sb.String()))
	}

	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Categories (%d)", len(sum.Categories))))
	for _, c := range sum.Categories {
		marker := "[ ]"
		if c.Selected {
			marker = "[x]"
		}
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("●")
		fmt.Fprintf(w, "  %s %s %s %s\n", marker, swatch, c.Name,
			dimStyle.Render(fmt.Sprintf("%s, %d points", c.Color, c.Count)))
	}
	fmt.Fprintf(w, "\nSelected points: %d\n", sum.Points)
}
