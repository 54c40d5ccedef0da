package domain

import (
	"encoding/json"
	"fmt"
)

// SortDirection is the server-side sort direction.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortRule is one level of a multi-level sort, keyed by column id.
type SortRule struct {
	ColumnID   string `json:"columnId"`
	Descending bool   `json:"descending"`
}

// ServerSortRule is the wire form of a SortRule, keyed by server field name.
type ServerSortRule struct {
	Key       string        `json:"key"`
	Direction SortDirection `json:"direction"`
}

// SortOption controls whether a table sorts at all, and by how many columns.
type SortOption string

const (
	SortDisabled SortOption = "disabled"
	SortSingle   SortOption = "single"
	SortMulti    SortOption = "multi"
)

// SelectMode controls row selection.
type SelectMode string

const (
	SelectNone   SelectMode = ""
	SelectSingle SelectMode = "single"
	SelectMulti  SelectMode = "multi"
)

// ColumnOverride is a per-column tweak a view applies on top of the
// column descriptor.
type ColumnOverride struct {
	Hidden *bool       `json:"hidden,omitempty"`
	Pinned *PinnedSide `json:"pinned,omitempty"`
}

// NoViewAppliedKey is the draft value of the view control when no view is
// selected. Its server form is the empty string.
const NoViewAppliedKey = "__no_view_applied__"

// View is a named preset of search, sort, filter, column and density state.
// Sort and filter are stored in server form.
type View struct {
	Key         string                    `json:"key" validate:"required"`
	Label       string                    `json:"label"`
	Description string                    `json:"description,omitempty"`
	SearchQuery *string                   `json:"searchQuery"`
	SortBy      []ServerSortRule          `json:"sortBy"`
	FilterBy    FilterNode                `json:"filterBy"`
	Columns     map[string]ColumnOverride `json:"columns"`
	Density     *Density                  `json:"density,omitempty"`
	IsDefault   bool                      `json:"isDefault,omitempty"`
}

// BaseView holds the defaults every view is merged over.
var BaseView = View{
	Label:   "Default",
	SortBy:  []ServerSortRule{},
	Columns: map[string]ColumnOverride{},
}

// UnmarshalJSON decodes FilterBy through DecodeFilter.
func (v *View) UnmarshalJSON(data []byte) error {
	type alias View
	var raw struct {
		alias
		FilterBy json.RawMessage `json:"filterBy"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	node, err := DecodeFilter(raw.FilterBy)
	if err != nil {
		return fmt.Errorf("view %q: %w", raw.Key, err)
	}
	*v = View(raw.alias)
	v.FilterBy = node
	return nil
}

// ─────────────────────────────────────────────────────────────
// Page requests: what a paginated source is asked for
// ─────────────────────────────────────────────────────────────

// PageRequest carries the server form of every data operation plus paging.
type PageRequest struct {
	Offset      int              `json:"offset"`
	Limit       int              `json:"limit"`
	SearchQuery *string          `json:"searchQuery"`
	SortBy      []ServerSortRule `json:"sortBy"`
	FilterBy    FilterNode       `json:"filterBy"`
	ViewBy      string           `json:"viewBy,omitempty"`
	// SearchColumns are the server keys search looks at. Nil means every
	// column not hidden by default.
	SearchColumns []string `json:"searchColumns,omitempty"`
}

// UnmarshalJSON decodes FilterBy through DecodeFilter.
func (r *PageRequest) UnmarshalJSON(data []byte) error {
	type alias PageRequest
	var raw struct {
		alias
		FilterBy json.RawMessage `json:"filterBy"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	node, err := DecodeFilter(raw.FilterBy)
	if err != nil {
		return err
	}
	*r = PageRequest(raw.alias)
	r.FilterBy = node
	return nil
}

// PageResponse is one page of rows served for a PageRequest.
type PageResponse struct {
	Rows   []map[string]any `json:"rows"`
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
}
