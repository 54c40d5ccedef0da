package grid

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"gridkit/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Filter predicate engine
// ─────────────────────────────────────────────────────────────

// Collators keep internal buffers and are not safe for concurrent use.
var collators = sync.Pool{
	New: func() any { return collate.New(language.Und, collate.Loose) },
}

func collatorEqual(a, b string) bool {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b) == 0
}

func collatorCompare(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// Matches reports whether row satisfies a validated filter node.
// A nil node matches every row. Malformed nodes never panic; they exclude
// the row.
func Matches(row Row, node domain.FilterNode, cols *ColumnIndex) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *domain.FilterGroup:
		if n == nil || len(n.Filters) == 0 {
			return false
		}
		switch n.LogicOperator {
		case domain.LogicAnd:
			for _, child := range n.Filters {
				if !Matches(row, child, cols) {
					return false
				}
			}
			return true
		case domain.LogicOr:
			for _, child := range n.Filters {
				if Matches(row, child, cols) {
					return true
				}
			}
			return false
		default:
			return false
		}
	case *domain.FilterClause:
		if n == nil {
			return false
		}
		return matchClause(row, n, cols)
	default:
		return false
	}
}

// FilterRows returns the rows matching node, preserving order.
func FilterRows(rows []Row, node domain.FilterNode, cols *ColumnIndex) []Row {
	if node == nil {
		return rows
	}
	return lo.Filter(rows, func(r Row, _ int) bool { return Matches(r, node, cols) })
}

// matchClause evaluates one clause. A nil cell only ever satisfies
// IS_EMPTY; negated operators exclude it too.
func matchClause(row Row, c *domain.FilterClause, cols *ColumnIndex) bool {
	col, ok := cols.Get(c.Key)
	if !ok || col.IsSynthetic() {
		return false
	}
	cell := row.Value(col)
	format := col.EffectiveFormat()

	switch c.Operator {
	case domain.OpIsEmpty:
		return isEmpty(cell)
	case domain.OpIsNotEmpty:
		return !isEmpty(cell)
	}
	if cell == nil || c.Value == nil {
		return false
	}

	switch c.Operator {
	case domain.OpIs:
		return isEqual(cell, c.Value, format)
	case domain.OpIsNot:
		return !isEqual(cell, c.Value, format)
	case domain.OpIncludes:
		return includes(cell, c.Value)
	case domain.OpNotIncludes:
		return !includes(cell, c.Value)
	case domain.OpGreaterThan:
		cmp, ok := compareOrdered(cell, c.Value, format)
		return ok && cmp > 0
	case domain.OpGreaterThanOrEqual:
		cmp, ok := compareOrdered(cell, c.Value, format)
		return ok && cmp >= 0
	case domain.OpLessThan:
		cmp, ok := compareOrdered(cell, c.Value, format)
		return ok && cmp < 0
	case domain.OpLessThanOrEqual:
		cmp, ok := compareOrdered(cell, c.Value, format)
		return ok && cmp <= 0
	case domain.OpHasAny:
		return hasAny(cell, c.Value)
	case domain.OpNotHasAny:
		return !hasAny(cell, c.Value)
	case domain.OpHasAll:
		return hasAll(cell, c.Value)
	case domain.OpNotHasAll:
		return !hasAll(cell, c.Value)
	default:
		return false
	}
}

// ── Comparison primitives ──────────────────────────────────

// isEmpty treats nil, "", empty slices and empty maps as empty.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func isEqual(cell, value any, format domain.ColumnFormat) bool {
	if format == domain.FormatTag {
		cellList, filterList := asList(cell), asList(value)
		if len(cellList) != len(filterList) {
			return false
		}
		return lo.EveryBy(filterList, func(f any) bool { return containsScalar(cellList, f) })
	}

	if list, ok := asSlice(cell); ok {
		if len(list) == 1 {
			return sameScalar(list[0], value)
		}
		return collatorEqual(stringify(cell), stringify(value))
	}

	switch format {
	case domain.FormatNumber, domain.FormatCurrency:
		a, errA := cast.ToFloat64E(cell)
		b, errB := cast.ToFloat64E(value)
		if errA == nil && errB == nil {
			return a == b
		}
	case domain.FormatBoolean:
		a, errA := cast.ToBoolE(cell)
		b, errB := cast.ToBoolE(value)
		if errA == nil && errB == nil {
			return a == b
		}
	}
	return collatorEqual(stringify(cell), stringify(value))
}

func includes(cell, value any) bool {
	hay, needle := stringify(cell), stringify(value)
	if needle == "" {
		return true
	}
	if isASCII(hay) && isASCII(needle) {
		return strings.Contains(strings.ToLower(hay), strings.ToLower(needle))
	}
	h, n := []rune(hay), []rune(needle)
	if len(n) > len(h) {
		return false
	}
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	for i := 0; i+len(n) <= len(h); i++ {
		if c.CompareString(string(h[i:i+len(n)]), needle) == 0 {
			return true
		}
	}
	return false
}

// compareOrdered compares numerically, or chronologically for date
// formats. ok is false when either side cannot be coerced.
func compareOrdered(cell, value any, format domain.ColumnFormat) (int, bool) {
	if format == domain.FormatDate || format == domain.FormatDatetime {
		a, errA := toTime(cell)
		b, errB := toTime(value)
		if errA != nil || errB != nil {
			return 0, false
		}
		return a.Compare(b), true
	}
	a, errA := cast.ToFloat64E(cell)
	b, errB := cast.ToFloat64E(value)
	if errA != nil || errB != nil {
		return 0, false
	}
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

func hasAny(cell, value any) bool {
	cellList := asList(cell)
	return lo.SomeBy(asList(value), func(f any) bool { return containsScalar(cellList, f) })
}

func hasAll(cell, value any) bool {
	cellList := asList(cell)
	return lo.EveryBy(asList(value), func(f any) bool { return containsScalar(cellList, f) })
}

// ── Value helpers ──────────────────────────────────────────

// asSlice converts any slice or array to []any. []byte is not a list.
func asSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if s, ok := v.([]any); ok {
		return s, true
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asList treats a scalar as a singleton list.
func asList(v any) []any {
	if s, ok := asSlice(v); ok {
		return s
	}
	if v == nil {
		return nil
	}
	return []any{v}
}

func containsScalar(list []any, v any) bool {
	return lo.ContainsBy(list, func(item any) bool { return sameScalar(item, v) })
}

// sameScalar is strict equality, except that numbers compare by value
// regardless of their Go type.
func sameScalar(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToFloat64(n), true
	}
	return 0, false
}

// stringify renders a value the way search and substring matching see it.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return jsonText(v)
	}
	return cast.ToString(v)
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return cast.ToString(v)
	}
	return string(b)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
