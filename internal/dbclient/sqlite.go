package dbclient

import (
	"gridkit/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteConnector opens an external SQLite file. Host holds the path.
func newSQLiteConnector(conn *domain.DatabaseConnection) (*sqlConnector, error) {
	return newSQLConnector("sqlite", conn.Host+"?_pragma=busy_timeout(5000)")
}
