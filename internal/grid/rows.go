package grid

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"gridkit/internal/domain"
)

// MetaColumnID is the out-of-band key the row metadata bag is stored under
// when a row is flattened back into a plain map.
const MetaColumnID = "m-//&&wreqa#jksejsl-*!!AFSS"

// ErrDuplicateRowID means two rows resolved to the same selection id.
var ErrDuplicateRowID = errors.New("duplicate row selection id")

const (
	dateDisplayLayout     = "Jan 2, 2006"
	datetimeDisplayLayout = "Jan 2, 2006, 3:04 PM"
)

// RowMeta is computed once per row when data arrives.
type RowMeta struct {
	SelectionID string            `json:"rowSelectionId"`
	Display     map[string]string `json:"display,omitempty"` // column id -> formatted date/datetime
}

// Row is a raw record plus its metadata. Rows are never mutated after
// FormatRows builds them.
type Row struct {
	Data map[string]any
	Meta RowMeta
}

// ID returns the row-selection id.
func (r Row) ID() string {
	return r.Meta.SelectionID
}

// Value returns the cell for col, following its accessor path.
func (r Row) Value(col domain.Column) any {
	v, _ := lookup(r.Data, col.AccessorPath())
	return v
}

// Display returns the precomputed display string of a date/datetime cell.
func (r Row) Display(columnID string) (string, bool) {
	s, ok := r.Meta.Display[columnID]
	return s, ok
}

// Flatten returns a copy of the data with the metadata bag attached under
// MetaColumnID.
func (r Row) Flatten() map[string]any {
	out := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		out[k] = v
	}
	out[MetaColumnID] = r.Meta
	return out
}

// FormatOptions controls FormatRows.
type FormatOptions struct {
	PrimaryKey string         // column id whose value is the selection id
	Offset     int            // index of the first row within the full dataset
	Location   *time.Location // display time zone, defaults to time.Local
}

// FormatRows attaches metadata to raw records. Selection ids come from the
// primary key when configured, otherwise from offset + index.
func FormatRows(data []map[string]any, cols *ColumnIndex, opts FormatOptions) ([]Row, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	var dateCols []domain.Column
	for _, c := range cols.DataColumns() {
		if f := c.EffectiveFormat(); f == domain.FormatDate || f == domain.FormatDatetime {
			dateCols = append(dateCols, c)
		}
	}

	rows := make([]Row, len(data))
	seen := make(map[string]struct{}, len(data))
	for i, rec := range data {
		id := strconv.Itoa(opts.Offset + i)
		if opts.PrimaryKey != "" {
			if pk, ok := lookup(rec, opts.PrimaryKey); ok && pk != nil {
				id = cast.ToString(pk)
			}
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q at index %d", ErrDuplicateRowID, id, i)
		}
		seen[id] = struct{}{}

		meta := RowMeta{SelectionID: id}
		for _, c := range dateCols {
			v, ok := lookup(rec, c.AccessorPath())
			if !ok || v == nil {
				continue
			}
			if meta.Display == nil {
				meta.Display = make(map[string]string, len(dateCols))
			}
			meta.Display[c.ID] = displayTime(v, c.EffectiveFormat(), loc)
		}
		rows[i] = Row{Data: rec, Meta: meta}
	}
	return rows, nil
}

func displayTime(v any, format domain.ColumnFormat, loc *time.Location) string {
	t, err := toTime(v)
	if err != nil {
		return cast.ToString(v)
	}
	if format == domain.FormatDate {
		// Plain dates carry no zone; shifting them would change the day.
		if s, ok := v.(string); ok && len(s) == len("2006-01-02") {
			return t.Format(dateDisplayLayout)
		}
		return t.In(loc).Format(dateDisplayLayout)
	}
	return t.In(loc).Format(datetimeDisplayLayout)
}

// toTime parses a cell or operand as a time.
func toTime(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	return cast.ToTimeE(v)
}
