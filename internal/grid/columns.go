package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"gridkit/internal/domain"
)

// ErrDuplicateColumn is returned when two columns share an id.
var ErrDuplicateColumn = errors.New("duplicate column id")

var validate = validator.New()

// ColumnIndex looks columns up by id and by server key.
type ColumnIndex struct {
	columns  []domain.Column
	byID     map[string]domain.Column
	byServer map[string]domain.Column
}

// NewColumnIndex validates cols and indexes them.
func NewColumnIndex(cols []domain.Column) (*ColumnIndex, error) {
	idx := &ColumnIndex{
		columns:  cols,
		byID:     make(map[string]domain.Column, len(cols)),
		byServer: make(map[string]domain.Column, len(cols)),
	}
	for _, c := range cols {
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.ID, err)
		}
		if _, dup := idx.byID[c.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.ID)
		}
		idx.byID[c.ID] = c
		idx.byServer[c.ServerKey()] = c
	}
	return idx, nil
}

// MustColumnIndex is NewColumnIndex for literals known to be valid.
func MustColumnIndex(cols []domain.Column) *ColumnIndex {
	idx, err := NewColumnIndex(cols)
	if err != nil {
		panic(err)
	}
	return idx
}

// Columns returns the columns in declaration order.
func (ci *ColumnIndex) Columns() []domain.Column {
	return ci.columns
}

// Get returns the column with the given id.
func (ci *ColumnIndex) Get(id string) (domain.Column, bool) {
	c, ok := ci.byID[id]
	return c, ok
}

// ByServerKey returns the column a remote field name maps to.
func (ci *ColumnIndex) ByServerKey(key string) (domain.Column, bool) {
	c, ok := ci.byServer[key]
	return c, ok
}

// Format returns the effective format of a column, string for unknown ids.
func (ci *ColumnIndex) Format(id string) domain.ColumnFormat {
	if c, ok := ci.byID[id]; ok {
		return c.EffectiveFormat()
	}
	return domain.FormatString
}

// DataColumns are the non-synthetic columns.
func (ci *ColumnIndex) DataColumns() []domain.Column {
	return lo.Filter(ci.columns, func(c domain.Column, _ int) bool { return !c.IsSynthetic() })
}

// ColumnVisible resolves whether a data column is shown. The column's
// Hidden flag gives way to the view override, which gives way to the
// user's choice. Either map may be nil.
func ColumnVisible(c domain.Column, view map[string]domain.ColumnOverride, user map[string]bool) bool {
	visible := !c.Hidden
	if o, ok := view[c.ID]; ok && o.Hidden != nil {
		visible = !*o.Hidden
	}
	if v, ok := user[c.ID]; ok {
		visible = v
	}
	return visible
}

// SearchColumns returns the visible data columns. Search only looks at these.
func (ci *ColumnIndex) SearchColumns(view map[string]domain.ColumnOverride, user map[string]bool) []domain.Column {
	return lo.Filter(ci.DataColumns(), func(c domain.Column, _ int) bool { return ColumnVisible(c, view, user) })
}

// SearchColumnsByServerKey returns the data columns named by server keys,
// in declaration order. Nil keys fall back to the columns visible by default.
func (ci *ColumnIndex) SearchColumnsByServerKey(keys []string) []domain.Column {
	if keys == nil {
		return ci.SearchColumns(nil, nil)
	}
	return lo.Filter(ci.DataColumns(), func(c domain.Column, _ int) bool { return lo.Contains(keys, c.ServerKey()) })
}

// ServerKeys maps columns to their server keys.
func ServerKeys(cols []domain.Column) []string {
	return lo.Map(cols, func(c domain.Column, _ int) string { return c.ServerKey() })
}

// lookup walks a dotted accessor path through nested maps.
func lookup(data map[string]any, path string) (any, bool) {
	if v, ok := data[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
