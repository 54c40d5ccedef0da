package source

import (
	"context"
	"encoding/json"
	"fmt"

	"gridkit/internal/domain"
)

// TableSource serves the rows of a local table straight from the store.
// Every fetch reads the current rows, so it never needs a reload.
type TableSource struct {
	store domain.GridTableStore
	table *domain.GridTable
	cols  []domain.Column
}

func init() {
	RegisterFactory(domain.SourceLocal, newTableSource)
}

func newTableSource(t *domain.GridTable, _ Config, env Env) (Source, error) {
	if env.Tables == nil {
		return nil, fmt.Errorf("no table store configured")
	}
	return NewTableSource(env.Tables, t)
}

// NewTableSource builds a source over a stored local table.
func NewTableSource(store domain.GridTableStore, t *domain.GridTable) (*TableSource, error) {
	cols, err := DeclaredColumns(t)
	if err != nil {
		return nil, err
	}
	return &TableSource{store: store, table: t, cols: cols}, nil
}

func (s *TableSource) Columns(context.Context) ([]domain.Column, error) {
	return s.cols, nil
}

func (s *TableSource) FetchPage(ctx context.Context, req domain.PageRequest) (*domain.PageResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := s.store.ListRows(s.table.ID)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	data, err := DecodeRows(stored)
	if err != nil {
		return nil, err
	}
	return Paginate(data, s.cols, req)
}

func (s *TableSource) Close() error {
	return nil
}

// DecodeRows unmarshals the stored row payloads.
func DecodeRows(stored []domain.GridRow) ([]map[string]any, error) {
	data := make([]map[string]any, len(stored))
	for i, r := range stored {
		if err := json.Unmarshal([]byte(r.DataJSON), &data[i]); err != nil {
			return nil, fmt.Errorf("row %s: %w", r.ID, err)
		}
	}
	return data, nil
}
