package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
)

func numberedRows(t *testing.T, n int) []grid.Row {
	t.Helper()
	data := make([]map[string]any, n)
	for i := range data {
		data[i] = map[string]any{"name": i}
	}
	rows, err := grid.FormatRows(data, grid.MustColumnIndex(peopleColumns), grid.FormatOptions{})
	require.NoError(t, err)
	return rows
}

func selected(ids ...string) grid.SelectionMap {
	m := grid.SelectionMap{}
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// ─────────────────────────────────────────────────────────────
// Range selection
// ─────────────────────────────────────────────────────────────

func TestRowSelector_ShiftClickRange(t *testing.T) {
	rows := numberedRows(t, 6)
	s := grid.NewRowSelector(domain.SelectMulti)
	toggle := grid.DefaultToggle(domain.SelectMulti)
	sel := grid.SelectionMap{}

	sel = s.Toggle(true, toggle, rows[1], false, rows, sel)
	assert.Equal(t, selected("1"), sel)
	anchor, ok := s.Anchor()
	require.True(t, ok)
	assert.Equal(t, "1", anchor)

	sel = s.Toggle(true, toggle, rows[4], true, rows, sel)
	assert.Equal(t, selected("1", "2", "3", "4"), sel)
	anchor, _ = s.Anchor()
	assert.Equal(t, "4", anchor, "anchor moves to the shift-clicked row")

	// Backwards range from the new anchor never deselects.
	sel = s.Toggle(true, toggle, rows[2], true, rows, sel)
	assert.Equal(t, selected("1", "2", "3", "4"), sel)

	// Plain click deselects without moving the anchor.
	sel = s.Toggle(true, toggle, rows[3], false, rows, sel)
	assert.Equal(t, selected("1", "2", "4"), sel)
	anchor, _ = s.Anchor()
	assert.Equal(t, "2", anchor)

	sel = s.Toggle(true, toggle, rows[0], true, rows, sel)
	assert.Equal(t, selected("0", "1", "2", "4"), sel)
}

func TestRowSelector_ShiftWithoutAnchor(t *testing.T) {
	rows := numberedRows(t, 3)
	s := grid.NewRowSelector(domain.SelectMulti)

	sel := s.Toggle(true, nil, rows[2], true, rows, grid.SelectionMap{})

	assert.Equal(t, selected("2"), sel)
	anchor, _ := s.Anchor()
	assert.Equal(t, "2", anchor)
}

func TestRowSelector_DisabledNeverAnchors(t *testing.T) {
	rows := numberedRows(t, 3)
	s := grid.NewRowSelector(domain.SelectMulti)

	sel := s.Toggle(false, nil, rows[0], false, rows, grid.SelectionMap{})

	assert.Equal(t, selected("0"), sel)
	_, ok := s.Anchor()
	assert.False(t, ok)
}

func TestRowSelector_AnchorInvalidation(t *testing.T) {
	rows := numberedRows(t, 5)
	s := grid.NewRowSelector(domain.SelectMulti)
	sel := s.Toggle(true, nil, rows[1], false, rows, grid.SelectionMap{})

	s.InvalidateAnchor(rows[2:])
	_, ok := s.Anchor()
	assert.False(t, ok)

	// With no anchor a shift-click is a plain click.
	sel = s.Toggle(true, nil, rows[4], true, rows[2:], sel)
	assert.Equal(t, selected("1", "4"), sel)
}

func TestRowSelector_TargetNotVisible(t *testing.T) {
	rows := numberedRows(t, 5)
	s := grid.NewRowSelector(domain.SelectMulti)
	sel := s.Toggle(true, nil, rows[0], false, rows, grid.SelectionMap{})

	got := s.Toggle(true, nil, rows[4], true, rows[:3], sel)

	assert.Equal(t, selected("0"), got)
}

// ─────────────────────────────────────────────────────────────
// Modes
// ─────────────────────────────────────────────────────────────

func TestRowSelector_SingleMode(t *testing.T) {
	rows := numberedRows(t, 4)
	s := grid.NewRowSelector(domain.SelectSingle)

	sel := s.Toggle(true, nil, rows[0], false, rows, grid.SelectionMap{})
	sel = s.Toggle(true, nil, rows[3], true, rows, sel)
	assert.Equal(t, selected("3"), sel, "shift is ignored in single mode")

	sel = s.Toggle(true, nil, rows[3], false, rows, sel)
	assert.Empty(t, sel)
}

func TestRowSelector_NoneMode(t *testing.T) {
	rows := numberedRows(t, 2)
	s := grid.NewRowSelector(domain.SelectNone)
	before := selected("1")

	assert.Equal(t, before, s.Toggle(true, nil, rows[0], false, rows, before))
}

func TestSelectAllAndSelectedRows(t *testing.T) {
	rows := numberedRows(t, 4)

	sel := grid.SelectAll(rows[1:3], selected("0"))
	assert.Equal(t, selected("0", "1", "2"), sel)

	assert.Equal(t, []string{"0", "1", "2"}, ids(grid.SelectedRows(rows, sel)))
}
