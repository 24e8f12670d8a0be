package session

import (
	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
)

// TableSummary describes one loaded snapshot.
type TableSummary struct {
	Name    string                        `json:"name"`
	Rows    int                           `json:"rows"`
	Columns []string                      `json:"columns"`
	Kinds   map[string]dataset.ColumnKind `json:"kinds"`
	Head    [][]string                    `json:"head"`
}

// CategorySummary describes one category of the start snapshot.
type CategorySummary struct {
	Name           string `json:"name"`
	Color          string `json:"color"`
	Count          int    `json:"count"`
	Selected       bool   `json:"selected"`
	SelectedPoints int    `json:"selected_points"`
}

// Summary is a snapshot of the session for display.
type Summary struct {
	ID         string            `json:"id"`
	Start      TableSummary      `json:"start"`
	End        TableSummary      `json:"end"`
	Categories []CategorySummary `json:"categories"`
	Params     config.Params     `json:"params"`
	// Points is the number of rows Final would return.
	Points int `json:"points"`
}

const headRows = 5

func summarizeTable(t *dataset.Table) TableSummary {
	rows, _ := t.Shape()
	return TableSummary{
		Name:    t.Name,
		Rows:    rows,
		Columns: append([]string(nil), t.Columns...),
		Kinds:   t.Kinds(),
		Head:    t.Head(headRows).Rows,
	}
}

// Summary reports shapes, column kinds, categories and the current selection.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		ID:     s.ID,
		Start:  summarizeTable(s.start),
		End:    summarizeTable(s.end),
		Params: s.chartParams(),
	}

	counts, _ := dataset.CategoryCounts(s.start, s.params.CategoryColumn)
	selected := make(map[string]bool, len(s.selected))
	for _, c := range s.selected {
		selected[c] = true
	}

	for _, c := range s.categories {
		cs := CategorySummary{
			Name:     c,
			Color:    s.colors[c],
			Count:    counts[c],
			Selected: selected[c],
		}
		options, _ := s.pointOptions(c)
		for _, o := range options {
			if s.pointSelected(c, o.Label) {
				cs.SelectedPoints++
			}
		}
		if cs.Selected {
			sum.Points += cs.SelectedPoints
		}
		sum.Categories = append(sum.Categories, cs)
	}
	return sum
}
