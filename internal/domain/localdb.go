package domain

import "time"

// SourceType identifies where a grid table's rows come from.
type SourceType string

const (
	SourceLocal    SourceType = "local"    // rows stored in grid_rows
	SourceDatabase SourceType = "database" // rows read from an external connection
	SourceCSVFile  SourceType = "csv_file"
	SourceJSONFile SourceType = "json_file"
)

// GridTable is a persisted table definition.
// ColumnsJSON holds []Column, ViewsJSON holds []View and SourceConfig holds
// source specific settings (file path, connection id, table name).
type GridTable struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	PrimaryKey   string     `json:"primaryKey"`
	ColumnsJSON  string     `json:"columnsJson"`
	ViewsJSON    string     `json:"viewsJson"`
	SourceType   SourceType `json:"sourceType"`
	SourceConfig string     `json:"sourceConfig"`
	RefreshCron  string     `json:"refreshCron"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// GridRow is a single row of a local grid table.
// DataJSON stores cell values as { "column_id": value }.
type GridRow struct {
	ID        string    `json:"id"`
	TableID   string    `json:"tableId"`
	DataJSON  string    `json:"dataJson"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GridTableStore manages CRUD for grid tables, their rows and views.
type GridTableStore interface {
	CreateTable(t *GridTable) error
	GetTable(id string) (*GridTable, error)
	GetTableByName(name string) (*GridTable, error)
	ListTables() ([]GridTable, error)
	UpdateTable(t *GridTable) error
	DeleteTable(id string) error
	SaveViews(tableID, viewsJSON string) error

	CreateRow(row *GridRow) error
	GetRow(id string) (*GridRow, error)
	ListRows(tableID string) ([]GridRow, error)
	ListRowsPage(tableID string, offset, limit int) ([]GridRow, error)
	CountRows(tableID string) (int, error)
	UpdateRow(row *GridRow) error
	DeleteRow(id string) error
	ReplaceRows(tableID string, rows []GridRow) error
	ReorderRows(tableID string, rowIDs []string) error
}
