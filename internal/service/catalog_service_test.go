package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
	"gridkit/internal/service"
	"gridkit/internal/source"
	"gridkit/internal/storage"
)

type recordingObserver struct {
	calls []bool
}

func (o *recordingObserver) TableChanged(_ context.Context, _ string, structural bool) {
	o.calls = append(o.calls, structural)
}

func newCatalog(t *testing.T) (*service.CatalogService, *storage.GridTableStore, *service.MockEmitter) {
	t.Helper()
	store := storage.NewGridTableStore(openDB(t))
	emitter := &service.MockEmitter{}
	return service.NewCatalogService(store, emitter, nil), store, emitter
}

func people() []map[string]any {
	return []map[string]any{
		{"id": "p1", "name": "Ada", "age": 36.0},
		{"id": "p2", "name": "Grace", "age": 45.0},
		{"id": "p3", "name": "Linus", "age": 28.0},
	}
}

// ─────────────────────────────────────────────────────────────
// Tables
// ─────────────────────────────────────────────────────────────

func TestCatalog_CreateTable_InfersColumns(t *testing.T) {
	catalog, store, emitter := newCatalog(t)
	obs := &recordingObserver{}
	catalog.AddObserver(obs)

	tbl, err := catalog.CreateTable(context.Background(), service.CreateTableInput{
		Name:       "people",
		PrimaryKey: "id",
		Rows:       people(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLocal, tbl.SourceType)
	assert.Contains(t, tbl.ColumnsJSON, `"id":"age"`)
	assert.Contains(t, tbl.ColumnsJSON, `"format":"number"`)

	n, err := store.CountRows(tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, 2, emitter.Count(service.EventTableChanged), "rows added, then table created")
	assert.Equal(t, []bool{false, true}, obs.calls)

	summaries, err := catalog.ListTables()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].RowCount)
}

func TestCatalog_CreateTable_Rejects(t *testing.T) {
	catalog, _, _ := newCatalog(t)
	ctx := context.Background()

	_, err := catalog.CreateTable(ctx, service.CreateTableInput{Name: "people"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input service.CreateTableInput
		is    error
	}{
		{name: "missing name", input: service.CreateTableInput{}},
		{name: "duplicate name", input: service.CreateTableInput{Name: "people"}, is: service.ErrTableExists},
		{name: "bad source type", input: service.CreateTableInput{Name: "x", SourceType: "ftp"}},
		{name: "bad cron", input: service.CreateTableInput{Name: "x", RefreshCron: "every minute"}},
		{
			name: "rows for a file table",
			input: service.CreateTableInput{
				Name: "x", SourceType: domain.SourceCSVFile,
				SourceConfig: source.Config{FilePath: "x.csv"},
				Rows:         people(),
			},
			is: service.ErrNotLocal,
		},
		{
			name: "duplicate view keys",
			input: service.CreateTableInput{
				Name:  "x",
				Views: []domain.View{{Key: "a"}, {Key: "a"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.CreateTable(ctx, tt.input)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestCatalog_ResolveTable(t *testing.T) {
	catalog, _, _ := newCatalog(t)
	tbl, err := catalog.CreateTable(context.Background(), service.CreateTableInput{Name: "people"})
	require.NoError(t, err)

	byID, err := catalog.ResolveTable(tbl.ID)
	require.NoError(t, err)
	byName, err := catalog.ResolveTable("people")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byName.ID)

	_, err = catalog.ResolveTable("nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// ─────────────────────────────────────────────────────────────
// Rows
// ─────────────────────────────────────────────────────────────

func TestCatalog_AddRows_DuplicatePrimaryKey(t *testing.T) {
	catalog, store, _ := newCatalog(t)
	ctx := context.Background()
	tbl, err := catalog.CreateTable(ctx, service.CreateTableInput{Name: "people", PrimaryKey: "id", Rows: people()})
	require.NoError(t, err)

	_, err = catalog.AddRows(ctx, tbl.ID, []map[string]any{{"id": "p2", "name": "Again"}})
	assert.ErrorIs(t, err, grid.ErrDuplicateRowID)

	_, err = catalog.AddRows(ctx, tbl.ID, []map[string]any{{"id": "p9"}, {"id": "p9"}})
	assert.ErrorIs(t, err, grid.ErrDuplicateRowID, "duplicates within the batch")

	created, err := catalog.AddRows(ctx, tbl.ID, []map[string]any{{"id": "p4", "name": "Barbara"}})
	require.NoError(t, err)
	require.Len(t, created, 1)

	n, err := store.CountRows(tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCatalog_RowEdits(t *testing.T) {
	catalog, _, _ := newCatalog(t)
	ctx := context.Background()
	tbl, err := catalog.CreateTable(ctx, service.CreateTableInput{Name: "people", Rows: people()})
	require.NoError(t, err)

	rows, err := catalog.ListRows(tbl.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, catalog.UpdateRow(ctx, rows[0].ID, map[string]any{"id": "p1", "name": "Ada L."}))
	require.NoError(t, catalog.DeleteRow(ctx, rows[1].ID))
	require.NoError(t, catalog.ReorderRows(ctx, tbl.ID, []string{rows[2].ID, rows[0].ID}))

	rows, err = catalog.ListRows(tbl.ID)
	require.NoError(t, err)
	data, err := source.DecodeRows(rows)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, "Linus", data[0]["name"])
	assert.Equal(t, "Ada L.", data[1]["name"])
}

func TestCatalog_UpdateRow_DuplicatePrimaryKey(t *testing.T) {
	catalog, _, _ := newCatalog(t)
	ctx := context.Background()
	tbl, err := catalog.CreateTable(ctx, service.CreateTableInput{Name: "people", PrimaryKey: "id", Rows: people()})
	require.NoError(t, err)

	rows, err := catalog.ListRows(tbl.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	err = catalog.UpdateRow(ctx, rows[0].ID, map[string]any{"id": "p2", "name": "Ada"})
	assert.ErrorIs(t, err, grid.ErrDuplicateRowID)

	// keeping its own key is fine
	require.NoError(t, catalog.UpdateRow(ctx, rows[0].ID, map[string]any{"id": "p1", "name": "Ada L."}))

	rows, err = catalog.ListRows(tbl.ID)
	require.NoError(t, err)
	data, err := source.DecodeRows(rows)
	require.NoError(t, err)
	ids := make([]any, len(data))
	for i, d := range data {
		ids[i] = d["id"]
	}
	assert.Equal(t, []any{"p1", "p2", "p3"}, ids)
	assert.Equal(t, "Ada L.", data[0]["name"])
}

func TestCatalog_UpdateRow_ExternalTable(t *testing.T) {
	catalog, store, _ := newCatalog(t)
	ctx := context.Background()
	tbl, err := catalog.CreateTable(ctx, service.CreateTableInput{
		Name:         "feed",
		SourceType:   domain.SourceJSONFile,
		SourceConfig: source.Config{FilePath: "feed.json"},
	})
	require.NoError(t, err)

	stray := domain.GridRow{ID: "stray", TableID: tbl.ID, DataJSON: `{"id":"x"}`}
	require.NoError(t, store.CreateRow(&stray))

	err = catalog.UpdateRow(ctx, stray.ID, map[string]any{"id": "y"})
	assert.ErrorIs(t, err, service.ErrNotLocal)
}

func TestCatalog_AddRows_ExternalTable(t *testing.T) {
	catalog, _, _ := newCatalog(t)
	ctx := context.Background()
	tbl, err := catalog.CreateTable(ctx, service.CreateTableInput{
		Name:         "feed",
		SourceType:   domain.SourceJSONFile,
		SourceConfig: source.Config{FilePath: "feed.json"},
	})
	require.NoError(t, err)

	_, err = catalog.AddRows(ctx, tbl.ID, people())
	assert.ErrorIs(t, err, service.ErrNotLocal)
}

// ─────────────────────────────────────────────────────────────
// Views + schedule
// ─────────────────────────────────────────────────────────────

func TestCatalog_Views(t *testing.T) {
	catalog, store, _ := newCatalog(t)
	ctx := context.Background()
	tbl, err := catalog.CreateTable(ctx, service.CreateTableInput{Name: "people", Rows: people()})
	require.NoError(t, err)

	q := "ada"
	require.NoError(t, catalog.SaveView(ctx, tbl.ID, domain.View{Key: "ada", Label: "Ada", SearchQuery: &q}))
	require.NoError(t, catalog.SaveView(ctx, tbl.ID, domain.View{Key: "old", Label: "Old", IsDefault: true}))
	require.NoError(t, catalog.SaveView(ctx, tbl.ID, domain.View{Key: "ada", Label: "Only Ada", SearchQuery: &q}))

	got, err := store.GetTable(tbl.ID)
	require.NoError(t, err)
	views, err := service.TableViews(got)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Only Ada", views[0].Label)

	err = catalog.SaveView(ctx, tbl.ID, domain.View{Key: "new", IsDefault: true})
	assert.Error(t, err, "a second default view")

	require.NoError(t, catalog.DeleteView(ctx, tbl.ID, "ada"))
	got, err = store.GetTable(tbl.ID)
	require.NoError(t, err)
	views, err = service.TableViews(got)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "old", views[0].Key)
}

func TestCatalog_SetRefreshCron(t *testing.T) {
	catalog, store, _ := newCatalog(t)
	ctx := context.Background()
	tbl, err := catalog.CreateTable(ctx, service.CreateTableInput{Name: "people"})
	require.NoError(t, err)

	require.NoError(t, catalog.SetRefreshCron(ctx, tbl.ID, "*/5 * * * *"))
	got, err := store.GetTable(tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got.RefreshCron)

	assert.Error(t, catalog.SetRefreshCron(ctx, tbl.ID, "soon"))
	require.NoError(t, catalog.SetRefreshCron(ctx, tbl.ID, ""))
}
