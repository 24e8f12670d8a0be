// Package session keeps the state of one chart being built: the two loaded
// snapshots, category colors and which categories and points are included.
package session

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
	"github.com/junkd0g/bubbleflow/internal/palette"
)

var (
	ErrNoCategories    = errors.New("no categories selected")
	ErrNoPoints        = errors.New("no points selected")
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownPoint    = errors.New("unknown point")
	ErrMissingColumns  = errors.New("missing required columns")
	ErrRowMismatch     = errors.New("selected rows missing from end snapshot")
)

// PointOption is one selectable row of the start snapshot.
type PointOption struct {
	Label string `json:"label"`
	Row   int    `json:"row"`
}

// Session is safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	start, end *dataset.Table
	params     config.Params
	categories []string
	colors     map[string]string
	selected   []string
	// points maps a category to its selected option labels; a missing
	// entry means every point of the category is selected.
	points map[string]map[string]bool
}

// New validates the column mapping against both snapshots and selects
// every category and every point. Colors from params override the
// generated ones.
func New(start, end *dataset.Table, params config.Params) (*Session, error) {
	s := &Session{
		CreatedAt: time.Now(),
		start:     start,
		end:       end,
		colors:    make(map[string]string),
	}
	if err := s.setParams(params); err != nil {
		return nil, err
	}
	return s, nil
}

// SetParams replaces the chart parameters. Changing the category or label
// column resets colors and selection.
func (s *Session) SetParams(params config.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setParams(params)
}

func (s *Session) setParams(params config.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := checkColumns(params, s.start, s.end); err != nil {
		return err
	}
	categories, err := dataset.DiscoverCategories(s.start, s.end, params.CategoryColumn)
	if err != nil {
		return fmt.Errorf("failed to discover categories: %w", err)
	}

	reset := s.params.CategoryColumn != params.CategoryColumn || s.params.LabelColumn != params.LabelColumn
	s.params = params
	s.categories = categories

	auto := palette.Assign(categories, palette.Distinct(len(categories)))
	colors := make(map[string]string, len(categories))
	for _, c := range categories {
		colors[c] = auto[c]
		if old, ok := s.colors[c]; ok && !reset {
			colors[c] = old
		}
		if custom, ok := params.Colors[c]; ok {
			if hex, err := palette.Normalize(custom); err == nil {
				colors[c] = hex
			}
		}
	}
	s.colors = colors

	if reset || s.selected == nil {
		s.selected = append([]string(nil), categories...)
		s.points = make(map[string]map[string]bool)
	} else {
		s.selected = intersect(s.selected, categories)
	}
	return nil
}

func checkColumns(p config.Params, tables ...*dataset.Table) error {
	var missing []string
	for _, t := range tables {
		for _, col := range []string{p.LabelColumn, p.CategoryColumn, p.XColumn, p.YColumn, p.SizeColumn} {
			if !t.HasColumn(col) {
				missing = append(missing, fmt.Sprintf("%s in %s", col, t.Name))
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

func intersect(selected, categories []string) []string {
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c] = true
	}
	out := selected[:0:0]
	for _, c := range selected {
		if known[c] {
			out = append(out, c)
		}
	}
	return out
}

// Params returns the parameters with the session's colors filled in.
func (s *Session) Params() config.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chartParams()
}

func (s *Session) chartParams() config.Params {
	p := s.params
	p.Colors = make(map[string]string, len(s.colors))
	for k, v := range s.colors {
		p.Colors[k] = v
	}
	return p
}

// Categories returns every discovered category in sorted order.
func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.categories...)
}

// Colors returns a copy of the category colors.
func (s *Session) Colors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.colors))
	for k, v := range s.colors {
		out[k] = v
	}
	return out
}

// AutoAssignColors resets every category to its golden-ratio color.
func (s *Session) AutoAssignColors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors = palette.Assign(s.categories, palette.Distinct(len(s.categories)))
}

// RandomizeColors draws a new random color for every category.
func (s *Session) RandomizeColors(rng *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors = palette.Assign(s.categories, palette.Random(len(s.categories), rng))
}

// SetColors overrides several category colors at once. Nothing is changed
// unless every entry names a known category and a valid color.
func (s *Session) SetColors(colors map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized := make(map[string]string, len(colors))
	for category, hex := range colors {
		if !s.known(category) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		c, err := palette.Normalize(hex)
		if err != nil {
			return fmt.Errorf("color for %q: %w", category, err)
		}
		normalized[category] = c
	}
	for category, c := range normalized {
		s.colors[category] = c
	}
	return nil
}

// SetColor overrides the color of one category.
func (s *Session) SetColor(category, hex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known(category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	normalized, err := palette.Normalize(hex)
	if err != nil {
		return err
	}
	s.colors[category] = normalized
	return nil
}

func (s *Session) known(category string) bool {
	i := sort.SearchStrings(s.categories, category)
	return i < len(s.categories) && s.categories[i] == category
}

// SelectCategories sets the categories to include, in the given order.
// An empty selection is accepted; Final then reports ErrNoCategories.
func (s *Session) SelectCategories(categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(categories))
	selected := make([]string, 0, len(categories))
	for _, c := range categories {
		if !s.known(c) {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
		if !seen[c] {
			seen[c] = true
			selected = append(selected, c)
		}
	}
	s.selected = selected
	return nil
}

// SelectedCategories returns the current category selection.
func (s *Session) SelectedCategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selected...)
}

// PointOptions lists the start snapshot rows of a category. Rows without a
// label are offered as "Point <row>".
func (s *Session) PointOptions(category string) ([]PointOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointOptions(category)
}

func (s *Session) pointOptions(category string) ([]PointOption, error) {
	if !s.known(category) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	cats, err := s.start.Column(s.params.CategoryColumn)
	if err != nil {
		return nil, err
	}
	labels, err := s.start.Column(s.params.LabelColumn)
	if err != nil {
		return nil, err
	}

	var options []PointOption
	for i, c := range cats {
		if dataset.IsMissing(c) || strings.TrimSpace(c) != category {
			continue
		}
		label := strings.TrimSpace(labels[i])
		if dataset.IsMissing(labels[i]) {
			label = fmt.Sprintf("Point %d", i)
		}
		options = append(options, PointOption{Label: label, Row: i})
	}
	return options, nil
}

// SelectedPoints returns the selected option labels of a category.
func (s *Session) SelectedPoints(category string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	options, err := s.pointOptions(category)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := make(map[string]bool)
	for _, o := range options {
		if s.pointSelected(category, o.Label) && !seen[o.Label] {
			seen[o.Label] = true
			out = append(out, o.Label)
		}
	}
	return out, nil
}

// SelectPoints chooses the points of a category by option label. Every row
// whose label is listed is included, so rows sharing a label go together.
func (s *Session) SelectPoints(category string, labels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	options, err := s.pointOptions(category)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(options))
	for _, o := range options {
		valid[o.Label] = true
	}

	chosen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if !valid[l] {
			return fmt.Errorf("%w: %q in category %q", ErrUnknownPoint, l, category)
		}
		chosen[l] = true
	}
	s.points[category] = chosen
	return nil
}

func (s *Session) pointSelected(category, label string) bool {
	chosen, ok := s.points[category]
	if !ok {
		return true
	}
	return chosen[label]
}

// Final returns the selected rows of both snapshots, ordered by category
// selection order and then by row. Rows are taken by position from both.
func (s *Session) Final() (*dataset.Table, *dataset.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final()
}

// Resolve returns the parameters and the selected rows of both snapshots
// as one consistent view.
func (s *Session) Resolve() (config.Params, *dataset.Table, *dataset.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, end, err := s.final()
	return s.chartParams(), start, end, err
}

func (s *Session) final() (*dataset.Table, *dataset.Table, error) {
	if len(s.selected) == 0 {
		return nil, nil, ErrNoCategories
	}
	var rows []int
	for _, c := range s.selected {
		options, err := s.pointOptions(c)
		if err != nil {
			return nil, nil, err
		}
		for _, o := range options {
			if s.pointSelected(c, o.Label) {
				rows = append(rows, o.Row)
			}
		}
	}
	if len(rows) == 0 {
		return nil, nil, ErrNoPoints
	}

	start, err := s.start.Select(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select start rows: %w", err)
	}
	end, err := s.end.Select(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRowMismatch, err)
	}
	return start, end, nil
}
