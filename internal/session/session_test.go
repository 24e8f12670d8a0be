package session

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
	"github.com/junkd0g/bubbleflow/internal/palette"
)

const startCSV = `Topic,Category,X-axis,Y-axis,Size
A,Tech,1,2,10
B,Health,2,3,20
,Tech,3,4,30
C,Health,4,5,40
A,Tech,5,6,50
`

const endCSV = `Topic,Category,X-axis,Y-axis,Size
A,Tech,2,3,11
B,Health,3,4,21
D,Energy,4,5,31
C,Health,5,6,41
A,Tech,6,7,51
`

func mustTable(t *testing.T, name, data string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.ReadCSV(strings.NewReader(data), name)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", name, err)
	}
	return tbl
}

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(mustTable(t, "start.csv", startCSV), mustTable(t, "end.csv", endCSV), config.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func firstColumn(tbl *dataset.Table) []string {
	out := make([]string, len(tbl.Rows))
	for i, r := range tbl.Rows {
		out[i] = r[0]
	}
	return out
}

func TestNewDiscoversCategoriesAndColors(t *testing.T) {
	s := newSession(t)

	want := []string{"Energy", "Health", "Tech"}
	if got := s.Categories(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected categories %v, got %v", want, got)
	}
	if got := s.SelectedCategories(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected every category selected, got %v", got)
	}

	distinct := palette.Distinct(3)
	colors := s.Colors()
	for i, c := range want {
		if colors[c] != distinct[i] {
			t.Errorf("Category %s: expected %s, got %s", c, distinct[i], colors[c])
		}
	}
}

func TestNewAppliesConfiguredColors(t *testing.T) {
	p := config.Default()
	p.Colors = map[string]string{"Tech": "#ABC", "Unknown": "#000000"}

	s, err := New(mustTable(t, "start.csv", startCSV), mustTable(t, "end.csv", endCSV), p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	colors := s.Colors()
	if colors["Tech"] != "#aabbcc" {
		t.Errorf("Expected configured color, got %s", colors["Tech"])
	}
	if _, ok := colors["Unknown"]; ok {
		t.Error("Colors for unknown categories must be ignored")
	}
}

func TestNewRejectsMissingColumns(t *testing.T) {
	p := config.Default()
	p.SizeColumn = "Revenue"

	_, err := New(mustTable(t, "start.csv", startCSV), mustTable(t, "end.csv", endCSV), p)
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("Expected ErrMissingColumns, got %v", err)
	}
	if !strings.Contains(err.Error(), "Revenue in start.csv") {
		t.Errorf("Error should name the column and table: %v", err)
	}
}

func TestPointOptions(t *testing.T) {
	s := newSession(t)

	options, err := s.PointOptions("Tech")
	if err != nil {
		t.Fatalf("PointOptions failed: %v", err)
	}
	want := []PointOption{{Label: "A", Row: 0}, {Label: "Point 2", Row: 2}, {Label: "A", Row: 4}}
	if !reflect.DeepEqual(options, want) {
		t.Errorf("Expected %v, got %v", want, options)
	}

	// Energy only exists in the end snapshot.
	options, err = s.PointOptions("Energy")
	if err != nil {
		t.Fatal(err)
	}
	if len(options) != 0 {
		t.Errorf("Expected no options for Energy, got %v", options)
	}

	if _, err := s.PointOptions("Retail"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Expected ErrUnknownCategory, got %v", err)
	}
}

func TestFinalOrdersBySelection(t *testing.T) {
	s := newSession(t)

	start, end, err := s.Final()
	if err != nil {
		t.Fatalf("Final failed: %v", err)
	}
	if got := firstColumn(start); !reflect.DeepEqual(got, []string{"B", "C", "A", "", "A"}) {
		t.Errorf("Unexpected start rows %v", got)
	}
	if got := end.Rows[0][4]; got != "21" {
		t.Errorf("End rows must be selected by position, got size %s", got)
	}

	if err := s.SelectCategories([]string{"Tech", "Health", "Tech"}); err != nil {
		t.Fatal(err)
	}
	start, _, err = s.Final()
	if err != nil {
		t.Fatal(err)
	}
	if got := firstColumn(start); !reflect.DeepEqual(got, []string{"A", "", "A", "B", "C"}) {
		t.Errorf("Unexpected start rows after reorder %v", got)
	}
}

func TestSelectPointsByLabel(t *testing.T) {
	s := newSession(t)

	if err := s.SelectPoints("Tech", []string{"A"}); err != nil {
		t.Fatalf("SelectPoints failed: %v", err)
	}
	if err := s.SelectCategories([]string{"Tech"}); err != nil {
		t.Fatal(err)
	}

	start, end, err := s.Final()
	if err != nil {
		t.Fatal(err)
	}
	if got := firstColumn(start); !reflect.DeepEqual(got, []string{"A", "A"}) {
		t.Errorf("Both rows labelled A should be selected, got %v", got)
	}
	if end.Len() != 2 {
		t.Errorf("Expected 2 end rows, got %d", end.Len())
	}

	selected, err := s.SelectedPoints("Tech")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(selected, []string{"A"}) {
		t.Errorf("Expected [A], got %v", selected)
	}

	if err := s.SelectPoints("Tech", []string{"Z"}); !errors.Is(err, ErrUnknownPoint) {
		t.Errorf("Expected ErrUnknownPoint, got %v", err)
	}
}

func TestFinalErrors(t *testing.T) {
	s := newSession(t)

	if err := s.SelectCategories(nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Final(); !errors.Is(err, ErrNoCategories) {
		t.Errorf("Expected ErrNoCategories, got %v", err)
	}

	if err := s.SelectCategories([]string{"Tech"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectPoints("Tech", nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Final(); !errors.Is(err, ErrNoPoints) {
		t.Errorf("Expected ErrNoPoints, got %v", err)
	}

	if err := s.SelectCategories([]string{"Retail"}); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Expected ErrUnknownCategory, got %v", err)
	}
}

func TestFinalShortEndSnapshot(t *testing.T) {
	end := mustTable(t, "end.csv", "Topic,Category,X-axis,Y-axis,Size\nA,Tech,1,1,1\nB,Health,1,1,1\n")
	s, err := New(mustTable(t, "start.csv", startCSV), end, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Final(); !errors.Is(err, ErrRowMismatch) {
		t.Errorf("Expected ErrRowMismatch, got %v", err)
	}
	if _, _, _, err := s.Resolve(); !errors.Is(err, ErrRowMismatch) {
		t.Errorf("Resolve: expected ErrRowMismatch, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	s := newSession(t)
	if err := s.SetColor("Tech", "#123456"); err != nil {
		t.Fatal(err)
	}
	p, start, end, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.Colors["Tech"] != "#123456" {
		t.Errorf("Expected session colors in params, got %v", p.Colors)
	}
	wantStart, wantEnd, _ := s.Final()
	if !reflect.DeepEqual(start.Rows, wantStart.Rows) || !reflect.DeepEqual(end.Rows, wantEnd.Rows) {
		t.Error("Resolve rows differ from Final")
	}
}

func TestSetColorsAllOrNothing(t *testing.T) {
	s := newSession(t)
	before := s.Colors()

	for _, colors := range []map[string]string{
		{"Tech": "#111111", "Health": "zzz"},
		{"Tech": "#111111", "Retail": "#222222"},
	} {
		if err := s.SetColors(colors); err == nil {
			t.Errorf("Expected error for %v", colors)
		}
		if !reflect.DeepEqual(s.Colors(), before) {
			t.Fatalf("Rejected colors changed state: %v", s.Colors())
		}
	}

	if err := s.SetColors(map[string]string{"Tech": "#AABBCC", "Health": "#010203"}); err != nil {
		t.Fatalf("SetColors failed: %v", err)
	}
	if got := s.Colors(); got["Tech"] != "#aabbcc" || got["Health"] != "#010203" {
		t.Errorf("Unexpected colors %v", got)
	}
}

func TestColors(t *testing.T) {
	s := newSession(t)

	if err := s.SetColor("Tech", "#00FF00"); err != nil {
		t.Fatalf("SetColor failed: %v", err)
	}
	if got := s.Colors()["Tech"]; got != "#00ff00" {
		t.Errorf("Expected #00ff00, got %s", got)
	}
	if got := s.Params().Colors["Tech"]; got != "#00ff00" {
		t.Errorf("Params should carry session colors, got %s", got)
	}
	if err := s.SetColor("Tech", "green"); err == nil {
		t.Error("Expected error for invalid hex")
	}
	if err := s.SetColor("Retail", "#000000"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("Expected ErrUnknownCategory, got %v", err)
	}

	s.AutoAssignColors()
	if got := s.Colors()["Tech"]; got != palette.Distinct(3)[2] {
		t.Errorf("AutoAssignColors did not reset Tech, got %s", got)
	}

	other := newSession(t)
	s.RandomizeColors(rand.New(rand.NewSource(7)))
	other.RandomizeColors(rand.New(rand.NewSource(7)))
	if !reflect.DeepEqual(s.Colors(), other.Colors()) {
		t.Error("Same seed should give the same colors")
	}
}

func TestSetParamsResetsOnColumnChange(t *testing.T) {
	s := newSession(t)
	if err := s.SelectCategories([]string{"Tech"}); err != nil {
		t.Fatal(err)
	}

	p := s.Params()
	p.NumFrames = 50
	if err := s.SetParams(p); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if got := s.SelectedCategories(); !reflect.DeepEqual(got, []string{"Tech"}) {
		t.Errorf("Selection should survive unrelated changes, got %v", got)
	}

	p.CategoryColumn = "Topic"
	if err := s.SetParams(p); err != nil {
		t.Fatal(err)
	}
	if got := s.SelectedCategories(); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
		t.Errorf("Expected selection reset to new categories, got %v", got)
	}

	p.NumFrames = 1
	if err := s.SetParams(p); err == nil {
		t.Error("Expected validation error")
	}
}

func TestSummary(t *testing.T) {
	s := newSession(t)
	if err := s.SelectPoints("Tech", []string{"Point 2"}); err != nil {
		t.Fatal(err)
	}

	sum := s.Summary()
	if sum.Start.Rows != 5 || len(sum.Start.Columns) != 5 {
		t.Errorf("Unexpected start shape %d x %d", sum.Start.Rows, len(sum.Start.Columns))
	}
	if sum.Start.Kinds["X-axis"] != dataset.KindNumeric || sum.Start.Kinds["Topic"] != dataset.KindText {
		t.Errorf("Unexpected kinds %v", sum.Start.Kinds)
	}
	if len(sum.Categories) != 3 {
		t.Fatalf("Expected 3 categories, got %d", len(sum.Categories))
	}
	tech := sum.Categories[2]
	if tech.Name != "Tech" || tech.Count != 3 || tech.SelectedPoints != 1 {
		t.Errorf("Unexpected Tech summary %+v", tech)
	}
	if sum.Points != 3 {
		t.Errorf("Expected 3 selected points, got %d", sum.Points)
	}
}

func TestStore(t *testing.T) {
	st := NewStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	s := newSession(t)
	id := st.Put(s)
	if id == "" || s.ID != id {
		t.Fatalf("Put should assign the id, got %q / %q", id, s.ID)
	}

	got, err := st.Get(id)
	if err != nil || got != s {
		t.Fatalf("Get failed: %v", err)
	}

	// Get extends the lifetime.
	now = now.Add(50 * time.Second)
	if _, err := st.Get(id); err != nil {
		t.Fatalf("Session expired too early: %v", err)
	}
	now = now.Add(50 * time.Second)
	if _, err := st.Get(id); err != nil {
		t.Fatalf("Get should have refreshed the session: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := st.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
	if n := st.Sweep(); n != 1 {
		t.Errorf("Expected 1 swept session, got %d", n)
	}
	if st.Len() != 0 {
		t.Errorf("Expected empty store, got %d", st.Len())
	}

	id = st.Put(newSession(t))
	if err := st.Delete(id); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreRunStopsOnCancel(t *testing.T) {
	st := NewStore(time.Millisecond)
	st.Put(newSession(t))

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		st.Run(ctx, 5*time.Millisecond, func(n int) {
			select {
			case swept <- n:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-swept:
		if n != 1 {
			t.Errorf("Expected 1 swept session, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Sweeper did not run")
	}
	cancel()
	<-done
}
