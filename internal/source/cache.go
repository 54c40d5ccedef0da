package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"gridkit/internal/domain"
)

// sharedFetchTimeout bounds a fetch that no caller can cancel.
const sharedFetchTimeout = 2 * time.Minute

// CachedSource memoizes pages of another source. Keys combine a version
// counter with the request, so Invalidate drops every page at once.
// Identical concurrent fetches share one call to the inner source.
type CachedSource struct {
	inner   Source
	pages   *gocache.Cache
	group   singleflight.Group
	version atomic.Uint64
}

// NewCachedSource wraps inner with a page cache whose entries live for ttl.
func NewCachedSource(inner Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		inner: inner,
		pages: gocache.New(ttl, 2*ttl),
	}
}

// Inner returns the wrapped source.
func (s *CachedSource) Inner() Source {
	return s.inner
}

func (s *CachedSource) Columns(ctx context.Context) ([]domain.Column, error) {
	return s.inner.Columns(ctx)
}

func (s *CachedSource) FetchPage(ctx context.Context, req domain.PageRequest) (*domain.PageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode page request: %w", err)
	}
	key := fmt.Sprintf("%d:%s", s.version.Load(), body)

	if page, ok := s.pages.Get(key); ok {
		return page.(*domain.PageResponse), nil
	}

	// The shared fetch outlives any single caller; each caller still
	// stops waiting when its own ctx ends.
	ch := s.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		page, err := s.inner.FetchPage(shared, req)
		if err != nil {
			return nil, err
		}
		s.pages.SetDefault(key, page)
		return page, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.PageResponse), nil
	}
}

// Reload reloads the inner source when it keeps a snapshot, then drops
// every cached page.
func (s *CachedSource) Reload(ctx context.Context) error {
	if r, ok := s.inner.(Reloader); ok {
		if err := r.Reload(ctx); err != nil {
			return err
		}
	}
	s.Invalidate()
	return nil
}

// Invalidate drops every cached page.
func (s *CachedSource) Invalidate() {
	s.version.Add(1)
	s.pages.Flush()
}

func (s *CachedSource) Close() error {
	s.pages.Flush()
	return s.inner.Close()
}
