package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const startCSV = `Topic,Category,X-axis,Y-axis,Size
Alpha,Tech,1,10,100
Beta,Health,2,20,200
Gamma,Tech,3,,300
Delta,,4,40,400
`

const endCSV = `Topic,Category,X-axis,Y-axis,Size
Alpha,Tech,2,12,150
Beta,Health,3,22,250
Gamma,Tech,4,32,350
Delta,Energy,5,42,450
`

func mustCSV(t *testing.T, name, data string) *Table {
	t.Helper()
	tab, err := ReadCSV(strings.NewReader(data), name)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return tab
}

func TestReadCSV(t *testing.T) {
	tab := mustCSV(t, "start.csv", "\ufeffTopic,Size\nA,1\n\nB\n")

	rows, cols := tab.Shape()
	if rows != 2 || cols != 2 {
		t.Fatalf("Expected shape (2, 2), got (%d, %d)", rows, cols)
	}
	if tab.Columns[0] != "Topic" {
		t.Errorf("Expected BOM to be trimmed from header, got %q", tab.Columns[0])
	}
	if got := tab.Rows[1][1]; got != "" {
		t.Errorf("Expected short row to be padded, got %q", got)
	}
}

func TestKinds(t *testing.T) {
	tab := mustCSV(t, "start.csv", startCSV)
	kinds := tab.Kinds()

	want := map[string]ColumnKind{
		"Topic":    KindText,
		"Category": KindText,
		"X-axis":   KindNumeric,
		"Y-axis":   KindNumeric,
		"Size":     KindNumeric,
	}
	for col, kind := range want {
		if kinds[col] != kind {
			t.Errorf("Column %s: expected %s, got %s", col, kind, kinds[col])
		}
	}
}

func TestNumericParsesMissingAsNaN(t *testing.T) {
	tab := mustCSV(t, "start.csv", startCSV)

	ys, enc, err := Numeric(tab, "Y-axis")
	if err != nil {
		t.Fatalf("Numeric failed: %v", err)
	}
	if enc != nil {
		t.Errorf("Expected no encoding for numeric column, got %+v", enc)
	}
	if !math.IsNaN(ys[2]) {
		t.Errorf("Expected NaN for missing cell, got %v", ys[2])
	}
	if ys[3] != 40 {
		t.Errorf("Expected 40, got %v", ys[3])
	}
}

func TestNumericEncodesText(t *testing.T) {
	tab := mustCSV(t, "start.csv", "Stage\nlate\nearly\nmid\nearly\n\n")
	tab.Rows = append(tab.Rows, []string{""})

	vals, enc, err := Numeric(tab, "Stage")
	if err != nil {
		t.Fatalf("Numeric failed: %v", err)
	}
	if enc == nil || len(enc.Values) != 3 {
		t.Fatalf("Expected 3 encoded values, got %+v", enc)
	}
	// sorted: early=0, late=1, mid=2
	want := []float64{1, 0, 2, 0}
	for i, w := range want {
		if vals[i] != w {
			t.Errorf("Row %d: expected %v, got %v", i, w, vals[i])
		}
	}
	if !math.IsNaN(vals[4]) {
		t.Errorf("Expected NaN for missing value, got %v", vals[4])
	}
}

func TestNumericSharedUsesOneEncoding(t *testing.T) {
	start := mustCSV(t, "start.csv", "Stage\nmid\n")
	end := mustCSV(t, "end.csv", "Stage\nlate\n")

	vals, enc, err := NumericShared("Stage", start, end)
	if err != nil {
		t.Fatalf("NumericShared failed: %v", err)
	}
	if len(enc.Values) != 2 {
		t.Fatalf("Expected 2 codes, got %d", len(enc.Values))
	}
	if vals[0][0] != 1 || vals[1][0] != 0 {
		t.Errorf("Expected mid=1 and late=0, got %v and %v", vals[0][0], vals[1][0])
	}
}

func TestDiscoverCategories(t *testing.T) {
	start := mustCSV(t, "start.csv", startCSV)
	end := mustCSV(t, "end.csv", endCSV)

	cats, err := DiscoverCategories(start, end, "Category")
	if err != nil {
		t.Fatalf("DiscoverCategories failed: %v", err)
	}
	want := []string{"Energy", "Health", "Tech"}
	if strings.Join(cats, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, cats)
	}

	_, err = DiscoverCategories(start, end, "Sector")
	if !errors.Is(err, ErrColumnNotFound) {
		t.Errorf("Expected ErrColumnNotFound, got %v", err)
	}
}

func TestCategoryCounts(t *testing.T) {
	start := mustCSV(t, "start.csv", startCSV)

	counts, err := CategoryCounts(start, "Category")
	if err != nil {
		t.Fatalf("CategoryCounts failed: %v", err)
	}
	if counts["Tech"] != 2 || counts["Health"] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
	if _, ok := counts[""]; ok {
		t.Error("Missing category should not be counted")
	}
}

func TestSelect(t *testing.T) {
	tab := mustCSV(t, "start.csv", startCSV)

	sel, err := tab.Select([]int{3, 0})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Rows[0][0] != "Delta" || sel.Rows[1][0] != "Alpha" {
		t.Errorf("Unexpected selection order: %v", sel.Rows)
	}

	if _, err := tab.Select([]int{4}); err == nil {
		t.Error("Expected out of range error")
	}
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Topic", "Category", "X-axis"},
		{"Alpha", "Tech", 1.5},
		{"Beta", "Health", 2},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "start.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}

	tab, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tab.Len() != 2 || !tab.HasColumn("X-axis") {
		t.Fatalf("Unexpected table: %+v", tab)
	}
	xs, _, err := Numeric(tab, "X-axis")
	if err != nil {
		t.Fatalf("Numeric failed: %v", err)
	}
	if xs[0] != 1.5 || xs[1] != 2 {
		t.Errorf("Unexpected values: %v", xs)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
