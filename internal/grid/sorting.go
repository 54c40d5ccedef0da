package grid

import (
	"slices"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"gridkit/internal/domain"
)

// SortToServer maps rules to server keys, dropping rules whose column no
// longer exists.
func SortToServer(rules []domain.SortRule, cols *ColumnIndex) []domain.ServerSortRule {
	out := make([]domain.ServerSortRule, 0, len(rules))
	for _, r := range rules {
		col, ok := cols.Get(r.ColumnID)
		if !ok {
			continue
		}
		dir := domain.SortAsc
		if r.Descending {
			dir = domain.SortDesc
		}
		out = append(out, domain.ServerSortRule{Key: col.ServerKey(), Direction: dir})
	}
	return out
}

// SortFromServer maps server rules back to column ids. Unknown keys are
// dropped; single-sort tables keep only the first rule.
func SortFromServer(rules []domain.ServerSortRule, cols *ColumnIndex, option domain.SortOption) []domain.SortRule {
	out := make([]domain.SortRule, 0, len(rules))
	for _, r := range rules {
		col, ok := cols.ByServerKey(r.Key)
		if !ok {
			continue
		}
		out = append(out, domain.SortRule{ColumnID: col.ID, Descending: r.Direction == domain.SortDesc})
	}
	if option == domain.SortSingle && len(out) > 1 {
		out = out[:1]
	}
	return out
}

// SortRulesEqual compares server sort rules in order.
func SortRulesEqual(a, b []domain.ServerSortRule) bool {
	return slices.Equal(a, b)
}

// SortRows returns a stably sorted copy of rows. Each rule compares by
// the column format: numbers numerically, dates chronologically, booleans
// false before true, everything else with the collator. Nil cells sort
// last regardless of direction.
func SortRows(rows []Row, rules []domain.SortRule, cols *ColumnIndex) []Row {
	type key struct {
		col  domain.Column
		desc bool
	}
	keys := lo.FilterMap(rules, func(r domain.SortRule, _ int) (key, bool) {
		col, ok := cols.Get(r.ColumnID)
		return key{col: col, desc: r.Descending}, ok && !col.IsSynthetic()
	})
	out := slices.Clone(rows)
	if len(keys) == 0 {
		return out
	}
	slices.SortStableFunc(out, func(a, b Row) int {
		for _, k := range keys {
			va, vb := a.Value(k.col), b.Value(k.col)
			if va == nil || vb == nil {
				switch {
				case va == nil && vb == nil:
					continue
				case va == nil:
					return 1
				default:
					return -1
				}
			}
			cmp := compareCells(va, vb, k.col.EffectiveFormat())
			if cmp == 0 {
				continue
			}
			if k.desc {
				return -cmp
			}
			return cmp
		}
		return 0
	})
	return out
}

func compareCells(a, b any, format domain.ColumnFormat) int {
	switch format {
	case domain.FormatNumber, domain.FormatCurrency, domain.FormatDate, domain.FormatDatetime:
		if cmp, ok := compareOrdered(a, b, format); ok {
			return cmp
		}
	case domain.FormatBoolean:
		ba, errA := cast.ToBoolE(a)
		bb, errB := cast.ToBoolE(b)
		if errA == nil && errB == nil {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	return collatorCompare(stringify(a), stringify(b))
}
