package dbclient

import (
	"context"
	"fmt"

	"gridkit/internal/domain"
	"gridkit/internal/logger"
)

// RowSet is a snapshot of one table or collection.
type RowSet struct {
	Columns   []string         `json:"columns"` // field names in source order
	Records   []map[string]any `json:"records"`
	Truncated bool             `json:"truncated"` // more rows exist beyond the limit
}

// SchemaInfo lists the tables of a database.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// TableInfo describes a table/collection.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ColumnInfo describes a column/field.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Connector reads rows from an external database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// FetchRows reads up to limit rows of table (a collection for MongoDB).
	// Values are normalized to JSON friendly Go types.
	FetchRows(ctx context.Context, table string, limit int) (*RowSet, error)

	// Introspect returns the tables and their columns.
	Introspect(ctx context.Context) (*SchemaInfo, error)

	// Close releases the connection pool.
	Close() error
}

// NewConnector creates a Connector for the given database connection.
// The password is resolved by the caller from the environment.
func NewConnector(conn *domain.DatabaseConnection, password string, log logger.ILogger) (Connector, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch conn.Driver {
	case domain.DatabaseDriverSQLite:
		return newSQLiteConnector(conn)
	case domain.DatabaseDriverMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(conn, password))
	case domain.DatabaseDriverPostgres:
		return newSQLConnector("postgres", buildPostgresDSN(conn, password))
	case domain.DatabaseDriverMongoDB:
		return newMongoConnector(conn, password, log)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver)
	}
}
