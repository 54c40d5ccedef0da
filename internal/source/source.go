package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gridkit/internal/domain"
	"gridkit/internal/logger"
)

// ── Source ──────────────────────────────────────────────────
// A Source serves the rows of one grid table, one page at a time.
// Implementations live in this package, one file per source type.

// Source is the interface every row source implements.
type Source interface {
	// Columns returns the table's column descriptors.
	Columns(ctx context.Context) ([]domain.Column, error)

	// FetchPage applies the request's search, filter and sort and returns
	// the requested slice. A non-positive limit returns every match.
	FetchPage(ctx context.Context, req domain.PageRequest) (*domain.PageResponse, error)

	// Close releases connections and file handles.
	Close() error
}

// Reloader is implemented by sources that hold a snapshot of an external
// system (a file or a database table).
type Reloader interface {
	Reload(ctx context.Context) error
}

// Config is the decoded GridTable.SourceConfig.
type Config struct {
	FilePath     string `json:"filePath,omitempty"`     // csv_file / json_file
	Delimiter    string `json:"delimiter,omitempty"`    // csv_file, defaults to ","
	HasHeader    *bool  `json:"hasHeader,omitempty"`    // csv_file, defaults to true
	DataPath     string `json:"dataPath,omitempty"`     // json_file, dotted path to the array
	ConnectionID string `json:"connectionId,omitempty"` // database
	Table        string `json:"table,omitempty"`        // database table or collection
}

// ParseConfig decodes a SourceConfig string. Empty means no settings.
func ParseConfig(raw string) (Config, error) {
	var cfg Config
	if raw == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("parse source config: %w", err)
	}
	return cfg, nil
}

// Env carries what factories need to build a source.
type Env struct {
	Tables      domain.GridTableStore
	Connections domain.DatabaseConnectionStore
	Secret      func(connectionID string) string
	DataDir     string // base for relative file paths
	FetchLimit  int    // max rows read from an external system
	Log         logger.ILogger
}

// Factory builds a Source for a stored table.
type Factory func(t *domain.GridTable, cfg Config, env Env) (Source, error)

// ── Factory Registry ───────────────────────────────────────
// Registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[domain.SourceType]Factory{}
)

// RegisterFactory registers the factory for a source type.
func RegisterFactory(typ domain.SourceType, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = f
}

// Open builds the source for t according to its SourceType.
func Open(t *domain.GridTable, env Env) (Source, error) {
	registryMu.RLock()
	f, ok := registry[t.SourceType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", t.SourceType)
	}
	cfg, err := ParseConfig(t.SourceConfig)
	if err != nil {
		return nil, err
	}
	if env.Log == nil {
		env.Log = logger.NewNop()
	}
	return f(t, cfg, env)
}

// DeclaredColumns decodes GridTable.ColumnsJSON. An empty list means the
// columns should be inferred from the data.
func DeclaredColumns(t *domain.GridTable) ([]domain.Column, error) {
	if t.ColumnsJSON == "" {
		return nil, nil
	}
	var cols []domain.Column
	if err := json.Unmarshal([]byte(t.ColumnsJSON), &cols); err != nil {
		return nil, fmt.Errorf("table %s columns: %w", t.ID, err)
	}
	return cols, nil
}
