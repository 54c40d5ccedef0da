package grid

import (
	"maps"

	"github.com/samber/lo"

	"gridkit/internal/domain"
)

// SelectionMap holds the ids of selected rows. Only true entries exist.
type SelectionMap map[string]bool

// ToggleFunc toggles a single row and returns the new selection.
type ToggleFunc func(selection SelectionMap, rowID string) SelectionMap

// DefaultToggle is the plain single-row toggle: single mode replaces the
// selection, multi mode flips the row.
func DefaultToggle(mode domain.SelectMode) ToggleFunc {
	return func(selection SelectionMap, rowID string) SelectionMap {
		if mode == domain.SelectSingle {
			if selection[rowID] {
				return SelectionMap{}
			}
			return SelectionMap{rowID: true}
		}
		next := maps.Clone(selection)
		if next == nil {
			next = SelectionMap{}
		}
		if next[rowID] {
			delete(next, rowID)
		} else {
			next[rowID] = true
		}
		return next
	}
}

// RowSelector tracks the shift-click anchor: the last row selected
// without shift. It is not safe for concurrent use.
type RowSelector struct {
	mode      domain.SelectMode
	anchor    string
	hasAnchor bool
}

// NewRowSelector returns a selector for mode.
func NewRowSelector(mode domain.SelectMode) *RowSelector {
	return &RowSelector{mode: mode}
}

// Mode returns the select mode.
func (s *RowSelector) Mode() domain.SelectMode { return s.mode }

// Anchor returns the current anchor row id.
func (s *RowSelector) Anchor() (string, bool) {
	return s.anchor, s.hasAnchor
}

// Toggle handles a click on row. rows is the current visible order (after
// sort and filter). Plain clicks, and every click in single mode, go
// through toggle and make the row the anchor when it ends up selected.
// Shift-clicks in multi mode select the inclusive range between anchor
// and row without deselecting anything, then move the anchor to row.
// enabled=false means the row cannot become the anchor.
func (s *RowSelector) Toggle(enabled bool, toggle ToggleFunc, row Row, shift bool, rows []Row, selection SelectionMap) SelectionMap {
	if s.mode == domain.SelectNone {
		return selection
	}
	target := row.ID()

	if !shift || s.mode != domain.SelectMulti || !s.hasAnchor {
		return s.single(enabled, toggle, target, selection)
	}

	anchorIdx, targetIdx := -1, -1
	for i, r := range rows {
		id := r.ID()
		if id == s.anchor {
			anchorIdx = i
		}
		if id == target {
			targetIdx = i
		}
		if anchorIdx >= 0 && targetIdx >= 0 {
			break
		}
	}
	if targetIdx < 0 {
		return selection
	}
	if anchorIdx < 0 {
		return s.single(enabled, toggle, target, selection)
	}

	from, to := min(anchorIdx, targetIdx), max(anchorIdx, targetIdx)
	next := maps.Clone(selection)
	if next == nil {
		next = SelectionMap{}
	}
	for _, r := range rows[from : to+1] {
		next[r.ID()] = true
	}
	s.anchor, s.hasAnchor = target, true
	return next
}

func (s *RowSelector) single(enabled bool, toggle ToggleFunc, target string, selection SelectionMap) SelectionMap {
	if toggle == nil {
		toggle = DefaultToggle(s.mode)
	}
	next := toggle(selection, target)
	if enabled && next[target] {
		s.anchor, s.hasAnchor = target, true
	}
	return next
}

// InvalidateAnchor clears the anchor when its row is no longer visible.
// Outside multi mode there is never an anchor.
func (s *RowSelector) InvalidateAnchor(rows []Row) {
	if s.mode != domain.SelectMulti {
		s.ClearAnchor()
		return
	}
	if !s.hasAnchor {
		return
	}
	if !lo.ContainsBy(rows, func(r Row) bool { return r.ID() == s.anchor }) {
		s.ClearAnchor()
	}
}

// ClearAnchor forgets the anchor.
func (s *RowSelector) ClearAnchor() {
	s.anchor, s.hasAnchor = "", false
}

// SelectAll selects every row in rows, keeping existing selections.
func SelectAll(rows []Row, selection SelectionMap) SelectionMap {
	next := maps.Clone(selection)
	if next == nil {
		next = SelectionMap{}
	}
	for _, r := range rows {
		next[r.ID()] = true
	}
	return next
}

// SelectedRows returns the rows of rows that are selected, in order.
func SelectedRows(rows []Row, selection SelectionMap) []Row {
	return lo.Filter(rows, func(r Row, _ int) bool { return selection[r.ID()] })
}
