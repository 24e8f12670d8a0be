package dataset

import (
	"sort"
	"strings"
)

// DiscoverCategories returns the sorted distinct non-missing values of col
// across both snapshots.
func DiscoverCategories(start, end *Table, col string) ([]string, error) {
	seen := make(map[string]bool)
	var categories []string
	for _, t := range []*Table{start, end} {
		cells, err := t.Column(col)
		if err != nil {
			return nil, err
		}
		for _, cell := range cells {
			if IsMissing(cell) {
				continue
			}
			v := strings.TrimSpace(cell)
			if !seen[v] {
				seen[v] = true
				categories = append(categories, v)
			}
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// CategoryCounts counts rows per category value in one table.
func CategoryCounts(t *Table, col string) (map[string]int, error) {
	cells, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, cell := range cells {
		if IsMissing(cell) {
			continue
		}
		counts[strings.TrimSpace(cell)]++
	}
	return counts, nil
}
