package grid

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"gridkit/internal/domain"
)

// Editor errors. They indicate a caller bug (a stale or made-up path),
// never bad user input.
var (
	ErrNodeNotFound = errors.New("filter node not found")
	ErrNotClause    = errors.New("filter node is not a clause")
	ErrNotGroup     = errors.New("filter node is not a group")
)

// ─────────────────────────────────────────────────────────────
// Draft filter tree
// ─────────────────────────────────────────────────────────────

// DraftNode is a *DraftClause or a *DraftGroup. Drafts may hold incomplete
// clauses; ValidateFilter prunes them. Draft nodes are treated as
// immutable: every edit returns a new tree.
type DraftNode interface {
	NodeID() string
	draftNode()
}

// DraftClause is an editable clause. An empty Key means no column chosen.
type DraftClause struct {
	ID       string          `json:"id"`
	Key      string          `json:"key"`
	Operator domain.Operator `json:"operator"`
	Value    any             `json:"value"`
}

// DraftGroup is an editable group.
type DraftGroup struct {
	ID            string               `json:"id"`
	LogicOperator domain.LogicOperator `json:"logicOperator"`
	Filters       []DraftNode          `json:"filters"`
}

func (c *DraftClause) NodeID() string { return c.ID }
func (g *DraftGroup) NodeID() string  { return g.ID }
func (*DraftClause) draftNode()       {}
func (*DraftGroup) draftNode()        {}

// NewDraftClause returns the default clause: no column, IS, no value.
func NewDraftClause() *DraftClause {
	return &DraftClause{ID: uuid.NewString(), Operator: domain.OpIs}
}

// NewDraftGroup returns the default group: AND with one default clause.
func NewDraftGroup() *DraftGroup {
	return &DraftGroup{
		ID:            uuid.NewString(),
		LogicOperator: domain.LogicAnd,
		Filters:       []DraftNode{NewDraftClause()},
	}
}

// ── Lookup ─────────────────────────────────────────────────

// FindNode returns the node addressed by path, a list of node ids from
// the root down to the target.
func FindNode(root DraftNode, path []string) (DraftNode, error) {
	if root == nil || len(path) == 0 || root.NodeID() != path[0] {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, path)
	}
	node := root
	for _, id := range path[1:] {
		g, ok := node.(*DraftGroup)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, path)
		}
		i := childIndex(g, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, path)
		}
		node = g.Filters[i]
	}
	return node, nil
}

func childIndex(g *DraftGroup, id string) int {
	return slices.IndexFunc(g.Filters, func(n DraftNode) bool { return n.NodeID() == id })
}

// rewrite rebuilds the spine from root to the addressed node, replacing
// that node with fn's result. Siblings are shared with the old tree.
func rewrite(root DraftNode, path []string, fn func(DraftNode) (DraftNode, error)) (DraftNode, error) {
	if root == nil || len(path) == 0 || root.NodeID() != path[0] {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, path)
	}
	if len(path) == 1 {
		return fn(root)
	}
	g, ok := root.(*DraftGroup)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, path)
	}
	i := childIndex(g, path[1])
	if i < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, path)
	}
	child, err := rewrite(g.Filters[i], path[1:], fn)
	if err != nil {
		return nil, err
	}
	next := *g
	next.Filters = slices.Clone(g.Filters)
	next.Filters[i] = child
	return &next, nil
}

func rewriteClause(root DraftNode, path []string, fn func(DraftClause) DraftClause) (DraftNode, error) {
	return rewrite(root, path, func(n DraftNode) (DraftNode, error) {
		c, ok := n.(*DraftClause)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotClause, n.NodeID())
		}
		next := fn(*c)
		return &next, nil
	})
}

func rewriteGroup(root DraftNode, path []string, fn func(DraftGroup) DraftGroup) (DraftNode, error) {
	return rewrite(root, path, func(n DraftNode) (DraftNode, error) {
		g, ok := n.(*DraftGroup)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, n.NodeID())
		}
		next := fn(*g)
		return &next, nil
	})
}

// ── Clause edits ───────────────────────────────────────────

// UpdateClauseKey points a clause at another column. An operator the new
// column does not support is replaced by the column's first valid one.
// The value is cleared when the operand editor changes or the new column
// is a tag column, whose options are per column.
func UpdateClauseKey(root DraftNode, path []string, key string, cols *ColumnIndex) (DraftNode, error) {
	return rewriteClause(root, path, func(c DraftClause) DraftClause {
		oldInput := OperatorInputType(c.Operator, cols.Format(c.Key))
		format := cols.Format(key)
		c.Key = key
		if !IsValidOperator(c.Operator, format) {
			c.Operator = ValidOperators(format)[0]
		}
		newInput := OperatorInputType(c.Operator, format)
		if newInput != oldInput || newInput == InputMultiSelect {
			c.Value = nil
		}
		return c
	})
}

// UpdateClauseOperator changes the operator. Emptiness operators carry no
// operand, so the value is cleared.
func UpdateClauseOperator(root DraftNode, path []string, op domain.Operator) (DraftNode, error) {
	return rewriteClause(root, path, func(c DraftClause) DraftClause {
		c.Operator = op
		if op.TakesNoValue() {
			c.Value = nil
		}
		return c
	})
}

// UpdateClauseValue sets the operand.
func UpdateClauseValue(root DraftNode, path []string, value any) (DraftNode, error) {
	return rewriteClause(root, path, func(c DraftClause) DraftClause {
		c.Value = value
		return c
	})
}

// ── Group edits ────────────────────────────────────────────

// UpdateGroupLogicOperator switches a group between AND and OR.
func UpdateGroupLogicOperator(root DraftNode, path []string, op domain.LogicOperator) (DraftNode, error) {
	return rewriteGroup(root, path, func(g DraftGroup) DraftGroup {
		g.LogicOperator = op
		return g
	})
}

// AddClauseToGroup appends a default clause to the addressed group.
func AddClauseToGroup(root DraftNode, path []string) (DraftNode, error) {
	return appendToGroup(root, path, NewDraftClause())
}

// AddGroupToGroup appends a default group to the addressed group.
func AddGroupToGroup(root DraftNode, path []string) (DraftNode, error) {
	return appendToGroup(root, path, NewDraftGroup())
}

func appendToGroup(root DraftNode, path []string, child DraftNode) (DraftNode, error) {
	return rewriteGroup(root, path, func(g DraftGroup) DraftGroup {
		g.Filters = append(slices.Clone(g.Filters), child)
		return g
	})
}

// RemoveNode removes the addressed node. A group left empty is removed
// from its own parent in turn; removing the last node yields nil.
func RemoveNode(root DraftNode, path []string) (DraftNode, error) {
	if _, err := FindNode(root, path); err != nil {
		return nil, err
	}
	if len(path) == 1 {
		return nil, nil
	}
	parentPath := path[:len(path)-1]
	parent, _ := FindNode(root, parentPath)
	if g := parent.(*DraftGroup); len(g.Filters) == 1 {
		return RemoveNode(root, parentPath)
	}
	target := path[len(path)-1]
	return rewriteGroup(root, parentPath, func(g DraftGroup) DraftGroup {
		g.Filters = slices.DeleteFunc(slices.Clone(g.Filters), func(n DraftNode) bool { return n.NodeID() == target })
		return g
	})
}

// ── Top level ──────────────────────────────────────────────

// AddTopLevelClause adds a condition at the root. With no filter it starts
// a default group; a bare clause is wrapped together with the new clause
// in an AND group; a group gets the clause appended.
func AddTopLevelClause(root DraftNode) DraftNode {
	switch r := root.(type) {
	case nil:
		return NewDraftGroup()
	case *DraftGroup:
		next := *r
		next.Filters = append(slices.Clone(r.Filters), NewDraftClause())
		return &next
	default:
		return &DraftGroup{
			ID:            uuid.NewString(),
			LogicOperator: domain.LogicAnd,
			Filters:       []DraftNode{root, NewDraftClause()},
		}
	}
}

// AddTopLevelGroup adds a nested group at the root, wrapping a bare
// clause the same way AddTopLevelClause does.
func AddTopLevelGroup(root DraftNode) DraftNode {
	switch r := root.(type) {
	case nil:
		return NewDraftGroup()
	case *DraftGroup:
		next := *r
		next.Filters = append(slices.Clone(r.Filters), NewDraftGroup())
		return &next
	default:
		return &DraftGroup{
			ID:            uuid.NewString(),
			LogicOperator: domain.LogicAnd,
			Filters:       []DraftNode{root, NewDraftGroup()},
		}
	}
}
