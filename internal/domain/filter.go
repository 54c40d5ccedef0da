package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Operator is a filter clause comparison.
type Operator string

const (
	OpIs                 Operator = "is"
	OpIsNot              Operator = "isNot"
	OpIncludes           Operator = "includes"
	OpNotIncludes        Operator = "notIncludes"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpIsEmpty            Operator = "isEmpty"
	OpIsNotEmpty         Operator = "isNotEmpty"
	OpHasAny             Operator = "hasAny"
	OpNotHasAny          Operator = "notHasAny"
	OpHasAll             Operator = "hasAll"
	OpNotHasAll          Operator = "notHasAll"
)

// TakesNoValue reports whether the operator carries no operand.
func (o Operator) TakesNoValue() bool {
	return o == OpIsEmpty || o == OpIsNotEmpty
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpIs, OpIsNot, OpIncludes, OpNotIncludes,
		OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
		OpIsEmpty, OpIsNotEmpty, OpHasAny, OpNotHasAny, OpHasAll, OpNotHasAll:
		return true
	}
	return false
}

// LogicOperator joins the children of a filter group.
type LogicOperator string

const (
	LogicAnd LogicOperator = "and"
	LogicOr  LogicOperator = "or"
)

// ─────────────────────────────────────────────────────────────
// FilterNode: validated / server filter tree
// ─────────────────────────────────────────────────────────────

// FilterNode is either a *FilterClause or a *FilterGroup. A nil FilterNode
// means "no filter".
type FilterNode interface {
	filterNode()
}

// FilterClause compares one column against a value.
// In the applied form Key is a column id; in the server form it is the
// column's server key.
type FilterClause struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// FilterGroup combines child nodes with AND or OR.
type FilterGroup struct {
	LogicOperator LogicOperator `json:"logicOperator"`
	Filters       []FilterNode  `json:"filters"`
}

func (*FilterClause) filterNode() {}
func (*FilterGroup) filterNode()  {}

// UnmarshalJSON decodes children by shape.
func (g *FilterGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		LogicOperator LogicOperator     `json:"logicOperator"`
		Filters       []json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.LogicOperator = raw.LogicOperator
	g.Filters = make([]FilterNode, 0, len(raw.Filters))
	for _, child := range raw.Filters {
		node, err := DecodeFilter(child)
		if err != nil {
			return err
		}
		if node != nil {
			g.Filters = append(g.Filters, node)
		}
	}
	return nil
}

// DecodeFilter decodes a filter tree from JSON. "null" and empty input
// decode to a nil node. Objects with a logicOperator are groups,
// everything else is a clause.
func DecodeFilter(data []byte) (FilterNode, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if _, ok := fields["logicOperator"]; ok {
		g := &FilterGroup{}
		if err := json.Unmarshal(data, g); err != nil {
			return nil, fmt.Errorf("decode filter group: %w", err)
		}
		return g, nil
	}
	c := &FilterClause{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode filter clause: %w", err)
	}
	return c, nil
}

// EncodeFilter encodes a filter tree; a nil node encodes as "null".
func EncodeFilter(node FilterNode) ([]byte, error) {
	if node == nil {
		return []byte("null"), nil
	}
	return json.Marshal(node)
}
