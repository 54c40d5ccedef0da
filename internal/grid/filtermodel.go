package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gridkit/internal/domain"
)

// ErrUnknownColumn means a filter references a column the table no longer has.
var ErrUnknownColumn = errors.New("filter references unknown column")

// ValidateFilter derives the applied tree from a draft. Incomplete clauses
// and groups without valid children are dropped; nil means no filter.
func ValidateFilter(node DraftNode) domain.FilterNode {
	switch n := node.(type) {
	case *DraftClause:
		if n == nil || n.Key == "" {
			return nil
		}
		if n.Value == nil && !n.Operator.TakesNoValue() {
			return nil
		}
		return &domain.FilterClause{Key: n.Key, Operator: n.Operator, Value: n.Value}
	case *DraftGroup:
		if n == nil {
			return nil
		}
		var children []domain.FilterNode
		for _, child := range n.Filters {
			if v := ValidateFilter(child); v != nil {
				children = append(children, v)
			}
		}
		if len(children) == 0 {
			return nil
		}
		return &domain.FilterGroup{LogicOperator: n.LogicOperator, Filters: children}
	}
	return nil
}

// DraftFromFilter turns an applied tree back into a draft with fresh ids.
func DraftFromFilter(node domain.FilterNode) DraftNode {
	switch n := node.(type) {
	case *domain.FilterClause:
		return &DraftClause{ID: uuid.NewString(), Key: n.Key, Operator: n.Operator, Value: n.Value}
	case *domain.FilterGroup:
		g := &DraftGroup{ID: uuid.NewString(), LogicOperator: n.LogicOperator}
		for _, child := range n.Filters {
			if d := DraftFromFilter(child); d != nil {
				g.Filters = append(g.Filters, d)
			}
		}
		return g
	}
	return nil
}

// FilterToServer renames clause keys from column ids to server keys.
// Clauses on unknown columns are dropped, as are groups they leave empty.
func FilterToServer(node domain.FilterNode, cols *ColumnIndex) domain.FilterNode {
	switch n := node.(type) {
	case *domain.FilterClause:
		col, ok := cols.Get(n.Key)
		if !ok {
			return nil
		}
		return &domain.FilterClause{Key: col.ServerKey(), Operator: n.Operator, Value: n.Value}
	case *domain.FilterGroup:
		var children []domain.FilterNode
		for _, child := range n.Filters {
			if s := FilterToServer(child, cols); s != nil {
				children = append(children, s)
			}
		}
		if len(children) == 0 {
			return nil
		}
		return &domain.FilterGroup{LogicOperator: n.LogicOperator, Filters: children}
	}
	return nil
}

// FilterFromServer rehydrates a server tree into a draft. Server keys map
// back to column ids, operators the column does not support are replaced
// by its first valid operator, and date operands become time.Time. A
// reference to a missing column fails the whole tree with ErrUnknownColumn.
func FilterFromServer(node domain.FilterNode, cols *ColumnIndex) (DraftNode, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *domain.FilterClause:
		col, ok := cols.ByServerKey(n.Key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, n.Key)
		}
		format := col.EffectiveFormat()
		op := n.Operator
		if !IsValidOperator(op, format) {
			op = ValidOperators(format)[0]
		}
		value := n.Value
		switch OperatorInputType(op, format) {
		case InputNone:
			value = nil
		case InputDate, InputDateTime:
			if value != nil {
				t, err := toTime(value)
				if err != nil {
					value = nil
				} else {
					value = t
				}
			}
		}
		return &DraftClause{ID: uuid.NewString(), Key: col.ID, Operator: op, Value: value}, nil
	case *domain.FilterGroup:
		logic := n.LogicOperator
		if logic != domain.LogicOr {
			logic = domain.LogicAnd
		}
		g := &DraftGroup{ID: uuid.NewString(), LogicOperator: logic}
		for _, child := range n.Filters {
			d, err := FilterFromServer(child, cols)
			if err != nil {
				return nil, err
			}
			if d != nil {
				g.Filters = append(g.Filters, d)
			}
		}
		return g, nil
	}
	return nil, fmt.Errorf("unsupported filter node %T", node)
}

// FiltersEqual compares two trees structurally. Operands compare by their
// JSON encoding, except that a time.Time equals any string naming the
// same instant.
func FiltersEqual(a, b domain.FilterNode) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *domain.FilterClause:
		y, ok := b.(*domain.FilterClause)
		return ok && x.Key == y.Key && x.Operator == y.Operator && operandsEqual(x.Value, y.Value)
	case *domain.FilterGroup:
		y, ok := b.(*domain.FilterGroup)
		if !ok || x.LogicOperator != y.LogicOperator || len(x.Filters) != len(y.Filters) {
			return false
		}
		for i := range x.Filters {
			if !FiltersEqual(x.Filters[i], y.Filters[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func operandsEqual(a, b any) bool {
	_, aTime := a.(time.Time)
	_, bTime := b.(time.Time)
	if aTime || bTime {
		ta, errA := toTime(a)
		tb, errB := toTime(b)
		return errA == nil && errB == nil && ta.Equal(tb)
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
