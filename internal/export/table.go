package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/junkd0g/bubbleflow/internal/chart"
)

// TableFormat selects the encoding of WriteFrameTable.
type TableFormat string

const (
	FormatCSV  TableFormat = "csv"
	FormatXLSX TableFormat = "xlsx"
)

const frameSheet = "frames"

var frameHeader = []string{"frame", "label", "category", "color", "x", "y", "size"}

// WriteFrameTable writes the interpolated values of every bubble in every
// frame, one row per bubble per frame. Frames are numbered from 1.
func WriteFrameTable(w io.Writer, anim *chart.Animation, format TableFormat) error {
	switch format {
	case FormatCSV:
		return writeFrameCSV(w, anim)
	case FormatXLSX:
		return writeFrameXLSX(w, anim)
	default:
		return fmt.Errorf("unsupported table format %q", format)
	}
}

func writeFrameCSV(w io.Writer, anim *chart.Animation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(frameHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := 0; i < anim.Len(); i++ {
		scene, err := anim.Frame(i)
		if err != nil {
			return err
		}
		for _, b := range scene.Bubbles {
			record := []string{
				strconv.Itoa(i + 1), b.Label, b.Category, b.Color,
				formatFloat(b.X), formatFloat(b.Y), formatFloat(b.Size),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func writeFrameXLSX(w io.Writer, anim *chart.Animation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", frameSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(frameSheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, len(frameHeader))
	for i, h := range frameHeader {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	for i := 0; i < anim.Len(); i++ {
		scene, err := anim.Frame(i)
		if err != nil {
			return err
		}
		for _, b := range scene.Bubbles {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{i + 1, b.Label, b.Category, b.Color, cellValue(b.X), cellValue(b.Y), cellValue(b.Size)}
			if err := sw.SetRow(cell, values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Missing values are left blank in both formats.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
