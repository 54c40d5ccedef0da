package source

import (
	"context"
	"fmt"

	"gridkit/internal/dbclient"
	"gridkit/internal/domain"
)

// QuerySource serves a table or collection of an external database. Rows
// are read once (up to the fetch limit) and paged in memory; Reload reads
// them again.
type QuerySource struct {
	*snapshot
	conn dbclient.Connector
}

func init() {
	RegisterFactory(domain.SourceDatabase, newQuerySource)
}

func newQuerySource(t *domain.GridTable, cfg Config, env Env) (Source, error) {
	if cfg.ConnectionID == "" || cfg.Table == "" {
		return nil, fmt.Errorf("connectionId and table are required")
	}
	if env.Connections == nil {
		return nil, fmt.Errorf("no connection store configured")
	}
	declared, err := DeclaredColumns(t)
	if err != nil {
		return nil, err
	}
	dbConn, err := env.Connections.GetConnection(cfg.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	password := ""
	if env.Secret != nil {
		password = env.Secret(dbConn.ID)
	}
	conn, err := dbclient.NewConnector(dbConn, password, env.Log)
	if err != nil {
		return nil, err
	}
	return NewQuerySource(conn, cfg.Table, declared, env), nil
}

// NewQuerySource wraps an open connector. declared may be empty, in which
// case columns are inferred from the fetched rows.
func NewQuerySource(conn dbclient.Connector, table string, declared []domain.Column, env Env) *QuerySource {
	log := env.Log
	limit := env.FetchLimit
	load := func(ctx context.Context) ([]map[string]any, []string, error) {
		set, err := conn.FetchRows(ctx, table, limit)
		if err != nil {
			return nil, nil, err
		}
		if set.Truncated && log != nil {
			log.Warn("source", "external table truncated", map[string]any{
				"table": table, "limit": limit,
			})
		}
		return set.Records, set.Columns, nil
	}
	return &QuerySource{snapshot: newSnapshot(load, declared), conn: conn}
}

func (s *QuerySource) Close() error {
	return s.conn.Close()
}
