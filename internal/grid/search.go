package grid

import (
	"strings"

	"github.com/samber/lo"

	"gridkit/internal/domain"
)

// RowMatchesSearch reports whether any searchable cell of row contains
// lowerQuery. The query must already be lowercased.
func RowMatchesSearch(row Row, cols []domain.Column, lowerQuery string) bool {
	for _, col := range cols {
		if col.IsSynthetic() {
			continue
		}
		text, ok := searchText(row, col)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(text), lowerQuery) {
			return true
		}
	}
	return false
}

// SearchRows keeps the rows matching query across cols. An empty query
// keeps everything.
func SearchRows(rows []Row, cols []domain.Column, query string) []Row {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return rows
	}
	return lo.Filter(rows, func(r Row, _ int) bool { return RowMatchesSearch(r, cols, q) })
}

// searchText is what a cell looks like to search: the display string for
// dates, JSON for json columns, the plain value otherwise.
func searchText(row Row, col domain.Column) (string, bool) {
	switch col.EffectiveFormat() {
	case domain.FormatDate, domain.FormatDatetime:
		if s, ok := row.Display(col.ID); ok {
			return s, true
		}
	case domain.FormatJSON:
		v := row.Value(col)
		if v == nil {
			return "", false
		}
		return jsonText(v), true
	}

	v := row.Value(col)
	if v == nil {
		return "", false
	}
	if list, ok := asSlice(v); ok {
		return strings.Join(lo.Map(list, func(item any, _ int) string { return stringify(item) }), ","), true
	}
	return stringify(v), true
}
