package source

import (
	"fmt"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
)

// Paginate runs a page request over in-memory records with the grid
// engine: search, then filter, then sort, then the offset/limit slice.
// Filter and sort arrive in server form and are mapped through cols.
func Paginate(data []map[string]any, cols []domain.Column, req domain.PageRequest) (*domain.PageResponse, error) {
	idx, err := grid.NewColumnIndex(cols)
	if err != nil {
		return nil, err
	}
	rows, err := grid.FormatRows(data, idx, grid.FormatOptions{})
	if err != nil {
		return nil, err
	}

	if req.SearchQuery != nil {
		rows = grid.SearchRows(rows, idx.SearchColumnsByServerKey(req.SearchColumns), *req.SearchQuery)
	}

	if req.FilterBy != nil {
		draft, err := grid.FilterFromServer(req.FilterBy, idx)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		rows = grid.FilterRows(rows, grid.ValidateFilter(draft), idx)
	}

	if len(req.SortBy) > 0 {
		rows = grid.SortRows(rows, grid.SortFromServer(req.SortBy, idx, domain.SortMulti), idx)
	}

	total := len(rows)
	start := min(max(req.Offset, 0), total)
	end := total
	if req.Limit > 0 {
		end = min(start+req.Limit, total)
	}

	page := make([]map[string]any, 0, end-start)
	for _, r := range rows[start:end] {
		page = append(page, r.Data)
	}
	return &domain.PageResponse{Rows: page, Total: total, Offset: start}, nil
}

// ViewRequest expands a view key into the request a client would send
// right after applying it: the view's search, sort and filter, first page.
// A view search covers the columns the view leaves visible. Unknown keys
// give an empty request.
func ViewRequest(cols []domain.Column, views []domain.View, key string, limit int) (domain.PageRequest, error) {
	idx, err := grid.NewColumnIndex(cols)
	if err != nil {
		return domain.PageRequest{}, err
	}
	vs, err := grid.NewViewSet(views)
	if err != nil {
		return domain.PageRequest{}, err
	}
	v := vs.Resolve(key)
	req := domain.PageRequest{
		Limit:       limit,
		SearchQuery: v.SearchQuery,
		SortBy:      v.SortBy,
		FilterBy:    v.FilterBy,
		ViewBy:      vs.ViewToServer(v),
	}
	if req.SearchQuery != nil {
		req.SearchColumns = grid.ServerKeys(idx.SearchColumns(v.Columns, nil))
	}
	return req, nil
}
