package grid_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
)

func TestSearchRows(t *testing.T) {
	rows := formatRows(t, peopleColumns,
		map[string]any{"id": 1, "name": "Alice", "joined": "2024-01-15", "tags": []any{"red", "blue"}},
		map[string]any{"id": 2, "name": "Bob", "joined": "2024-03-02", "meta": map[string]any{"team": "core"}},
		map[string]any{"id": 3, "name": nil, "age": 7},
	)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query keeps all", "  ", []string{"1", "2", "3"}},
		{"case insensitive", "ALI", []string{"1"}},
		{"date display text", "jan", []string{"1"}},
		{"date display year", "2024", []string{"1", "2"}},
		{"tags joined with comma", "red,blue", []string{"1"}},
		{"json text", `"team":"core"`, []string{"2"}},
		{"numbers as text", "7", []string{"3"}},
		{"no match", "zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(grid.SearchRows(rows, peopleColumns, tt.query))
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestSearchRows_SkipsSyntheticColumns(t *testing.T) {
	cols := append([]domain.Column{{ID: domain.SelectColumnID}}, peopleColumns...)
	rows, err := grid.FormatRows([]map[string]any{
		{domain.SelectColumnID: "secret", "name": "x"},
	}, grid.MustColumnIndex(cols), grid.FormatOptions{})
	require.NoError(t, err)

	assert.Empty(t, grid.SearchRows(rows, cols, "secret"))
}

func TestFormatRows(t *testing.T) {
	cols := grid.MustColumnIndex([]domain.Column{
		{ID: "when", Format: domain.FormatDatetime},
		{ID: "day", Format: domain.FormatDate},
		{ID: "city", Accessor: "address.city"},
	})
	est := time.FixedZone("EST", -5*3600)

	rows, err := grid.FormatRows([]map[string]any{
		{"when": "2024-01-15T15:30:00Z", "day": "2024-01-15", "address": map[string]any{"city": "Lisbon"}},
		{"when": nil},
	}, cols, grid.FormatOptions{Offset: 40, Location: est})
	require.NoError(t, err)

	assert.Equal(t, "40", rows[0].ID())
	assert.Equal(t, "41", rows[1].ID())

	when, ok := rows[0].Display("when")
	require.True(t, ok)
	assert.Equal(t, "Jan 15, 2024, 10:30 AM", when)
	day, _ := rows[0].Display("day")
	assert.Equal(t, "Jan 15, 2024", day, "plain dates are not shifted across zones")

	city, _ := cols.Get("city")
	assert.Equal(t, "Lisbon", rows[0].Value(city))

	_, ok = rows[1].Display("when")
	assert.False(t, ok)

	flat := rows[0].Flatten()
	assert.Contains(t, flat, grid.MetaColumnID)
}

func TestFormatRows_DuplicatePrimaryKey(t *testing.T) {
	_, err := grid.FormatRows([]map[string]any{{"id": 1}, {"id": 1}},
		grid.MustColumnIndex(peopleColumns), grid.FormatOptions{PrimaryKey: "id"})

	assert.ErrorIs(t, err, grid.ErrDuplicateRowID)
}
