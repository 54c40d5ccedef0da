package source

import (
	"context"
	"sync"

	"gridkit/internal/domain"
)

// loadFunc reads every record of an external system, plus the field order
// when the system knows it.
type loadFunc func(ctx context.Context) (records []map[string]any, fields []string, err error)

// snapshot keeps the last read of an external system in memory and
// serves pages from it. The first read happens lazily.
type snapshot struct {
	load     loadFunc
	declared []domain.Column

	mu      sync.RWMutex
	loaded  bool
	records []map[string]any
	cols    []domain.Column
}

func newSnapshot(load loadFunc, declared []domain.Column) *snapshot {
	return &snapshot{load: load, declared: declared}
}

// Reload rereads the external system.
func (s *snapshot) Reload(ctx context.Context) error {
	records, fields, err := s.load(ctx)
	if err != nil {
		return err
	}
	cols := s.declared
	if len(cols) == 0 {
		cols = InferColumns(records, fields)
	}

	s.mu.Lock()
	s.records, s.cols, s.loaded = records, cols, true
	s.mu.Unlock()
	return nil
}

func (s *snapshot) ensure(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Reload(ctx)
}

func (s *snapshot) Columns(ctx context.Context) ([]domain.Column, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols, nil
}

func (s *snapshot) FetchPage(ctx context.Context, req domain.PageRequest) (*domain.PageResponse, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	records, cols := s.records, s.cols
	s.mu.RUnlock()
	return Paginate(records, cols, req)
}
