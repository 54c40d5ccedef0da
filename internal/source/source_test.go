package source_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridkit/internal/dbclient"
	"gridkit/internal/domain"
	"gridkit/internal/grid"
	"gridkit/internal/source"
	"gridkit/internal/storage"
)

func ptr[T any](v T) *T { return &v }

var inventoryColumns = []domain.Column{
	{ID: "sku", Label: "SKU"},
	{ID: "name", Label: "Name", Original: "product_name"},
	{ID: "qty", Label: "Qty", Format: domain.FormatNumber},
	{ID: "tags", Label: "Tags", Format: domain.FormatTag},
}

func inventory() []map[string]any {
	return []map[string]any{
		{"sku": "A1", "name": "Anvil", "qty": 4.0, "tags": []any{"heavy"}},
		{"sku": "B2", "name": "Bolt", "qty": 250.0, "tags": []any{"small", "metal"}},
		{"sku": "C3", "name": "Crate", "qty": 12.0, "tags": []any{"wood"}},
		{"sku": "D4", "name": "Drill", "qty": 0.0, "tags": []any{"metal", "power"}},
		{"sku": "E5", "name": "Epoxy", "qty": nil, "tags": []any{}},
	}
}

func skus(page *domain.PageResponse) []string {
	out := make([]string, len(page.Rows))
	for i, r := range page.Rows {
		out[i] = r["sku"].(string)
	}
	return out
}

// ─────────────────────────────────────────────────────────────
// Paginate
// ─────────────────────────────────────────────────────────────

func TestPaginate(t *testing.T) {
	tests := []struct {
		name      string
		req       domain.PageRequest
		wantSKUs  []string
		wantTotal int
	}{
		{
			name:      "everything",
			req:       domain.PageRequest{},
			wantSKUs:  []string{"A1", "B2", "C3", "D4", "E5"},
			wantTotal: 5,
		},
		{
			name:      "search",
			req:       domain.PageRequest{SearchQuery: ptr("metal")},
			wantSKUs:  []string{"B2", "D4"},
			wantTotal: 2,
		},
		{
			name: "filter by server key",
			req: domain.PageRequest{FilterBy: &domain.FilterClause{
				Key: "product_name", Operator: domain.OpIncludes, Value: "r",
			}},
			wantSKUs:  []string{"C3", "D4"},
			wantTotal: 2,
		},
		{
			name:      "sort descending, nils last",
			req:       domain.PageRequest{SortBy: []domain.ServerSortRule{{Key: "qty", Direction: domain.SortDesc}}},
			wantSKUs:  []string{"B2", "C3", "A1", "D4", "E5"},
			wantTotal: 5,
		},
		{
			name: "offset and limit after sort",
			req: domain.PageRequest{
				Offset: 1, Limit: 2,
				SortBy: []domain.ServerSortRule{{Key: "qty", Direction: domain.SortAsc}},
			},
			wantSKUs:  []string{"A1", "C3"},
			wantTotal: 5,
		},
		{
			name:      "offset past the end",
			req:       domain.PageRequest{Offset: 10, Limit: 2},
			wantSKUs:  []string{},
			wantTotal: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := source.Paginate(inventory(), inventoryColumns, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSKUs, skus(page))
			assert.Equal(t, tt.wantTotal, page.Total)
		})
	}
}

func TestPaginate_SearchColumns(t *testing.T) {
	query := "bolt"

	page, err := source.Paginate(inventory(), inventoryColumns, domain.PageRequest{SearchQuery: &query})
	require.NoError(t, err)
	assert.Equal(t, []string{"B2"}, skus(page), "nil covers every column shown by default")

	page, err = source.Paginate(inventory(), inventoryColumns, domain.PageRequest{
		SearchQuery:   &query,
		SearchColumns: []string{"sku", "qty"},
	})
	require.NoError(t, err)
	assert.Empty(t, skus(page), "a hidden product_name is not searched")

	hidden := append([]domain.Column(nil), inventoryColumns...)
	hidden[1].Hidden = true
	page, err = source.Paginate(inventory(), hidden, domain.PageRequest{
		SearchQuery:   &query,
		SearchColumns: []string{"product_name"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B2"}, skus(page), "a column the user showed is searched")
}

func TestViewRequest_SearchSkipsViewHiddenColumns(t *testing.T) {
	hide := true
	views := []domain.View{{
		Key:         "bare",
		SearchQuery: ptr("bolt"),
		Columns:     map[string]domain.ColumnOverride{"name": {Hidden: &hide}},
	}}

	req, err := source.ViewRequest(inventoryColumns, views, "bare", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "qty", "tags"}, req.SearchColumns)

	page, err := source.Paginate(inventory(), inventoryColumns, req)
	require.NoError(t, err)
	assert.Empty(t, skus(page))
}

func TestPaginate_UnknownFilterColumn(t *testing.T) {
	_, err := source.Paginate(inventory(), inventoryColumns, domain.PageRequest{
		FilterBy: &domain.FilterClause{Key: "weight", Operator: domain.OpIs, Value: 1},
	})
	assert.ErrorIs(t, err, grid.ErrUnknownColumn)
}

func TestViewRequest(t *testing.T) {
	views := []domain.View{{
		Key:         "stocked",
		SearchQuery: ptr("a"),
		SortBy:      []domain.ServerSortRule{{Key: "qty", Direction: domain.SortDesc}},
		FilterBy:    &domain.FilterClause{Key: "qty", Operator: domain.OpGreaterThan, Value: 0},
	}}

	req, err := source.ViewRequest(inventoryColumns, views, "stocked", 50)
	require.NoError(t, err)
	assert.Equal(t, "stocked", req.ViewBy)
	assert.Equal(t, 50, req.Limit)

	page, err := source.Paginate(inventory(), inventoryColumns, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"B2", "C3", "A1"}, skus(page))

	none, err := source.ViewRequest(inventoryColumns, views, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, "", none.ViewBy)
	assert.Nil(t, none.FilterBy)
}

// ─────────────────────────────────────────────────────────────
// Inference
// ─────────────────────────────────────────────────────────────

func TestGuessColumnFormat(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   domain.ColumnFormat
	}{
		{"empty", nil, domain.FormatString},
		{"only nils", []any{nil, nil}, domain.FormatString},
		{"booleans", []any{true, nil, false}, domain.FormatBoolean},
		{"numbers", []any{1.5, int64(2), nil}, domain.FormatNumber},
		{"dates", []any{"2024-01-15", "2023-12-31"}, domain.FormatDate},
		{"datetimes", []any{"2024-01-15T10:30:00Z", time.Now()}, domain.FormatDatetime},
		{"arrays", []any{[]any{"a"}, []any{}}, domain.FormatTag},
		{"objects", []any{map[string]any{"a": 1}}, domain.FormatJSON},
		{"mixed", []any{1.0, "two"}, domain.FormatString},
		{"date then text", []any{"2024-01-15", "soon"}, domain.FormatString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, source.GuessColumnFormat(tt.values))
		})
	}
}

func TestGuessColumnFormat_SamplesTenValues(t *testing.T) {
	values := make([]any, 0, 11)
	for range 10 {
		values = append(values, 1.0)
	}
	values = append(values, "not a number")
	assert.Equal(t, domain.FormatNumber, source.GuessColumnFormat(values))
}

func TestInferColumns(t *testing.T) {
	cols := source.InferColumns([]map[string]any{
		{"unit_price": 3.5, "created_at": "2024-01-15T10:30:00Z"},
		{"unit_price": nil, "created_at": "2024-02-01T00:00:00Z", "note": "x"},
	}, nil)

	require.Len(t, cols, 3)
	assert.Equal(t, domain.Column{ID: "created_at", Label: "Created At", Format: domain.FormatDatetime}, cols[0])
	assert.Equal(t, "note", cols[1].ID)
	assert.Equal(t, domain.FormatNumber, cols[2].Format)
	assert.Equal(t, "Unit Price", cols[2].Label)

	ordered := source.InferColumns(nil, []string{"b", "a"})
	assert.Equal(t, "b", ordered[0].ID)
	assert.Equal(t, domain.FormatString, ordered[0].Format)
}

// ─────────────────────────────────────────────────────────────
// File sources
// ─────────────────────────────────────────────────────────────

func TestFileSource_CSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stock.csv"),
		[]byte("sku;qty;active\nA1;4;true\nB2;;false\n"), 0644))

	src, err := source.Open(&domain.GridTable{
		ID:           "t1",
		SourceType:   domain.SourceCSVFile,
		SourceConfig: `{"filePath":"stock.csv","delimiter":";"}`,
	}, source.Env{DataDir: dir})
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()
	cols, err := src.Columns(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "sku", cols[0].ID)
	assert.Equal(t, domain.FormatNumber, cols[1].Format)
	assert.Equal(t, domain.FormatBoolean, cols[2].Format)

	page, err := src.FetchPage(ctx, domain.PageRequest{
		FilterBy: &domain.FilterClause{Key: "qty", Operator: domain.OpIsEmpty},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B2"}, skus(page))

	// Reload picks up edits to the file
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stock.csv"),
		[]byte("sku;qty;active\nA1;4;true\n"), 0644))
	require.NoError(t, src.(source.Reloader).Reload(ctx))
	page, err = src.FetchPage(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestFileSource_CSVWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,1\ny,2\n"), 0644))

	src, err := source.Open(&domain.GridTable{
		SourceType:   domain.SourceCSVFile,
		SourceConfig: `{"filePath":"` + filepath.ToSlash(path) + `","hasHeader":false}`,
	}, source.Env{})
	require.NoError(t, err)

	cols, err := src.Columns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "col_1", cols[0].ID)
	assert.Equal(t, "col_2", cols[1].ID)
}

func TestFileSource_JSONDataPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.json"),
		[]byte(`{"data":{"items":[{"sku":"A1","tags":["x"]},{"sku":"B2","tags":["y","x"]}]}}`), 0644))

	src, err := source.Open(&domain.GridTable{
		SourceType:   domain.SourceJSONFile,
		SourceConfig: `{"filePath":"items.json","dataPath":"data.items"}`,
	}, source.Env{DataDir: dir})
	require.NoError(t, err)

	page, err := src.FetchPage(context.Background(), domain.PageRequest{
		FilterBy: &domain.FilterClause{Key: "tags", Operator: domain.OpHasAll, Value: []any{"x", "y"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B2"}, skus(page))

	bad, err := source.Open(&domain.GridTable{
		SourceType:   domain.SourceJSONFile,
		SourceConfig: `{"filePath":"items.json","dataPath":"data.items.deeper"}`,
	}, source.Env{DataDir: dir})
	require.NoError(t, err)
	_, err = bad.FetchPage(context.Background(), domain.PageRequest{})
	assert.ErrorContains(t, err, "invalid data path")
}

func TestOpen_Errors(t *testing.T) {
	_, err := source.Open(&domain.GridTable{SourceType: "ftp"}, source.Env{})
	assert.ErrorContains(t, err, "unknown source type")

	_, err = source.Open(&domain.GridTable{SourceType: domain.SourceCSVFile, SourceConfig: `{}`}, source.Env{})
	assert.ErrorContains(t, err, "filePath is required")

	_, err = source.Open(&domain.GridTable{SourceType: domain.SourceDatabase, SourceConfig: `{"table":"x"}`}, source.Env{})
	assert.ErrorContains(t, err, "connectionId and table are required")

	_, err = source.Open(&domain.GridTable{SourceType: domain.SourceLocal, SourceConfig: `{`}, source.Env{})
	assert.ErrorContains(t, err, "parse source config")
}

// ─────────────────────────────────────────────────────────────
// Table source
// ─────────────────────────────────────────────────────────────

func TestTableSource(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "grid.db"), dir)
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewGridTableStore(db)

	tbl := &domain.GridTable{
		ID:          "t1",
		Name:        "inventory",
		ColumnsJSON: `[{"id":"sku"},{"id":"qty","format":"number"}]`,
	}
	require.NoError(t, store.CreateTable(tbl))
	require.NoError(t, store.ReplaceRows("t1", []domain.GridRow{
		{DataJSON: `{"sku":"A1","qty":3}`},
		{DataJSON: `{"sku":"B2","qty":1}`},
		{DataJSON: `{"sku":"C3","qty":2}`},
	}))

	src, err := source.Open(tbl, source.Env{Tables: store})
	require.NoError(t, err)

	page, err := src.FetchPage(context.Background(), domain.PageRequest{
		Limit:  2,
		SortBy: []domain.ServerSortRule{{Key: "qty", Direction: domain.SortAsc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B2", "C3"}, skus(page))
	assert.Equal(t, 3, page.Total)

	// Writes are visible on the next fetch
	require.NoError(t, store.CreateRow(&domain.GridRow{TableID: "t1", DataJSON: `{"sku":"D4","qty":0}`}))
	page, err = src.FetchPage(context.Background(), domain.PageRequest{Limit: 1,
		SortBy: []domain.ServerSortRule{{Key: "qty", Direction: domain.SortAsc}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"D4"}, skus(page))
}

// ─────────────────────────────────────────────────────────────
// Query source
// ─────────────────────────────────────────────────────────────

type fakeConnector struct {
	mu     sync.Mutex
	calls  int
	set    *dbclient.RowSet
	closed bool
}

func (f *fakeConnector) TestConnection(context.Context) error { return nil }

func (f *fakeConnector) FetchRows(_ context.Context, _ string, limit int) (*dbclient.RowSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.set, nil
}

func (f *fakeConnector) Introspect(context.Context) (*dbclient.SchemaInfo, error) {
	return &dbclient.SchemaInfo{}, nil
}

func (f *fakeConnector) Close() error {
	f.closed = true
	return nil
}

func TestQuerySource(t *testing.T) {
	conn := &fakeConnector{set: &dbclient.RowSet{
		Columns: []string{"sku", "qty"},
		Records: []map[string]any{
			{"sku": "A1", "qty": int64(5)},
			{"sku": "B2", "qty": int64(7)},
		},
		Truncated: true,
	}}
	src := source.NewQuerySource(conn, "stock", nil, source.Env{FetchLimit: 2})

	ctx := context.Background()
	cols, err := src.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "qty"}, []string{cols[0].ID, cols[1].ID})
	assert.Equal(t, domain.FormatNumber, cols[1].Format)

	page, err := src.FetchPage(ctx, domain.PageRequest{
		FilterBy: &domain.FilterClause{Key: "qty", Operator: domain.OpGreaterThan, Value: 6},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B2"}, skus(page))
	assert.Equal(t, 1, conn.calls)

	require.NoError(t, src.Reload(ctx))
	assert.Equal(t, 2, conn.calls)

	require.NoError(t, src.Close())
	assert.True(t, conn.closed)
}

// ─────────────────────────────────────────────────────────────
// Cache
// ─────────────────────────────────────────────────────────────

type countingSource struct {
	mu      sync.Mutex
	fetches int
	reloads int
	release chan struct{}
	records []map[string]any
}

func (s *countingSource) Columns(context.Context) ([]domain.Column, error) {
	return inventoryColumns, nil
}

func (s *countingSource) FetchPage(ctx context.Context, req domain.PageRequest) (*domain.PageResponse, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	return source.Paginate(s.records, inventoryColumns, req)
}

func (s *countingSource) Reload(context.Context) error {
	s.reloads++
	return nil
}

func (s *countingSource) Close() error { return nil }

func TestCachedSource(t *testing.T) {
	inner := &countingSource{records: inventory()}
	src := source.NewCachedSource(inner, time.Minute)
	ctx := context.Background()
	req := domain.PageRequest{Limit: 2, SearchQuery: ptr("a")}

	first, err := src.FetchPage(ctx, req)
	require.NoError(t, err)
	second, err := src.FetchPage(ctx, req)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.fetches)

	_, err = src.FetchPage(ctx, domain.PageRequest{Limit: 2, Offset: 2, SearchQuery: ptr("a")})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.fetches)

	require.NoError(t, src.Reload(ctx))
	assert.Equal(t, 1, inner.reloads)
	_, err = src.FetchPage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.fetches)
}

func TestCachedSource_CollapsesConcurrentFetches(t *testing.T) {
	inner := &countingSource{records: inventory(), release: make(chan struct{})}
	src := source.NewCachedSource(inner, time.Minute)
	req := domain.PageRequest{Limit: 3}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := src.FetchPage(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	// Give every goroutine time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, 1, inner.fetches)
}

func TestCachedSource_CancelledCallerDoesNotFailOthers(t *testing.T) {
	inner := &countingSource{records: inventory(), release: make(chan struct{})}
	src := source.NewCachedSource(inner, time.Minute)
	req := domain.PageRequest{Limit: 3}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := src.FetchPage(firstCtx, req)
		firstErr <- err
	}()
	// Let the first caller start the shared fetch
	time.Sleep(20 * time.Millisecond)

	type result struct {
		page *domain.PageResponse
		err  error
	}
	second := make(chan result, 1)
	go func() {
		page, err := src.FetchPage(context.Background(), req)
		second <- result{page, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(inner.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.page.Rows, 3)
	assert.Equal(t, 1, inner.fetches)
}
