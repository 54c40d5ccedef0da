package domain

// ColumnFormat defines how a column's cells are compared, searched and displayed.
type ColumnFormat string

const (
	FormatString   ColumnFormat = "string"
	FormatNumber   ColumnFormat = "number"
	FormatCurrency ColumnFormat = "currency"
	FormatBoolean  ColumnFormat = "boolean"
	FormatDate     ColumnFormat = "date"
	FormatDatetime ColumnFormat = "datetime"
	FormatTag      ColumnFormat = "tag"
	FormatJSON     ColumnFormat = "json"
)

// PinnedSide is the side of the grid a column is pinned to.
type PinnedSide string

const (
	PinnedLeft  PinnedSide = "left"
	PinnedRight PinnedSide = "right"
	PinnedNone  PinnedSide = "none"
)

// Overflow controls how long cell content is rendered.
type Overflow string

const (
	OverflowClip     Overflow = "clip"
	OverflowEllipsis Overflow = "ellipsis"
	OverflowDynamic  Overflow = "dynamic"
)

// Reserved ids for the synthetic selection and action columns.
// They never collide with data keys and are skipped by search and filtering.
const (
	SelectColumnID = "s-//&&select#column-*!!SLCT"
	ActionColumnID = "a-//&&action#column-*!!ACTN"
)

// Column describes one grid column. Columns are supplied by the caller and
// are read-only to the engine.
type Column struct {
	ID          string       `json:"id" validate:"required"`
	Label       string       `json:"label"`
	Accessor    string       `json:"accessor,omitempty"` // dotted path into the row, defaults to ID
	Format      ColumnFormat `json:"format,omitempty" validate:"omitempty,oneof=string number currency boolean date datetime tag json"`
	Width       string       `json:"width,omitempty"`
	PinnedWidth string       `json:"pinnedWidth,omitempty"`
	Pinned      PinnedSide   `json:"pinned,omitempty" validate:"omitempty,oneof=left right none"`
	Hidden      bool         `json:"hidden,omitempty"`
	Original    string       `json:"original,omitempty"` // server-side field name when it differs from ID
	Overflow    Overflow     `json:"overflow,omitempty" validate:"omitempty,oneof=clip ellipsis dynamic"`
	Expand      bool         `json:"expand,omitempty"`
}

// EffectiveFormat returns the column format, defaulting to string.
func (c Column) EffectiveFormat() ColumnFormat {
	if c.Format == "" {
		return FormatString
	}
	return c.Format
}

// ServerKey is the field name a remote source knows this column by.
func (c Column) ServerKey() string {
	if c.Original != "" {
		return c.Original
	}
	return c.ID
}

// AccessorPath returns the accessor, defaulting to the column id.
func (c Column) AccessorPath() string {
	if c.Accessor != "" {
		return c.Accessor
	}
	return c.ID
}

// IsSynthetic reports whether the column is one of the reserved
// selection/action columns.
func (c Column) IsSynthetic() bool {
	return c.ID == SelectColumnID || c.ID == ActionColumnID
}

// Density is the row spacing of the grid.
type Density string

const (
	DensityCompact     Density = "compact"
	DensityStandard    Density = "standard"
	DensityComfortable Density = "comfortable"
)

// Valid reports whether d is a known density.
func (d Density) Valid() bool {
	switch d {
	case DensityCompact, DensityStandard, DensityComfortable:
		return true
	}
	return false
}
