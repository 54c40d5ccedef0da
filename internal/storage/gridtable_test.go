package storage_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridkit/internal/domain"
	"gridkit/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "grid.db"), filepath.Join(dir, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTable(t *testing.T, s *storage.GridTableStore, id string, rows int) {
	t.Helper()
	require.NoError(t, s.CreateTable(&domain.GridTable{
		ID:          id,
		Name:        "table " + id,
		ColumnsJSON: `[{"id":"n","format":"number"}]`,
		ViewsJSON:   `[]`,
	}))
	batch := make([]domain.GridRow, rows)
	for i := range batch {
		batch[i] = domain.GridRow{DataJSON: fmt.Sprintf(`{"n":%d}`, i)}
	}
	require.NoError(t, s.ReplaceRows(id, batch))
}

// ─────────────────────────────────────────────────────────────
// Tables
// ─────────────────────────────────────────────────────────────

func TestGridTableStore_TableCRUD(t *testing.T) {
	s := storage.NewGridTableStore(openDB(t))

	tbl := &domain.GridTable{ID: "t1", Name: "people", ColumnsJSON: "[]", ViewsJSON: "[]"}
	require.NoError(t, s.CreateTable(tbl))
	assert.Equal(t, domain.SourceLocal, tbl.SourceType)

	got, err := s.GetTable("t1")
	require.NoError(t, err)
	assert.Equal(t, "people", got.Name)

	byName, err := s.GetTableByName("people")
	require.NoError(t, err)
	assert.Equal(t, "t1", byName.ID)

	require.NoError(t, s.SaveViews("t1", `[{"key":"all"}]`))
	got, err = s.GetTable("t1")
	require.NoError(t, err)
	assert.Equal(t, `[{"key":"all"}]`, got.ViewsJSON)

	got.RefreshCron = "*/5 * * * *"
	require.NoError(t, s.UpdateTable(got))
	list, err := s.ListTables()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "*/5 * * * *", list[0].RefreshCron)

	require.NoError(t, s.DeleteTable("t1"))
	_, err = s.GetTable("t1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGridTableStore_MissingTable(t *testing.T) {
	s := storage.NewGridTableStore(openDB(t))

	assert.ErrorIs(t, s.SaveViews("nope", "[]"), storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateTable(&domain.GridTable{ID: "nope"}), storage.ErrNotFound)
	_, err := s.GetTableByName("nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// ─────────────────────────────────────────────────────────────
// Rows
// ─────────────────────────────────────────────────────────────

func TestGridTableStore_RowPaging(t *testing.T) {
	s := storage.NewGridTableStore(openDB(t))
	seedTable(t, s, "t1", 7)

	n, err := s.CountRows("t1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	page, err := s.ListRowsPage("t1", 2, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, `{"n":2}`, page[0].DataJSON)
	assert.Equal(t, `{"n":4}`, page[2].DataJSON)

	tail, err := s.ListRowsPage("t1", 5, 0)
	require.NoError(t, err)
	assert.Len(t, tail, 2)

	past, err := s.ListRowsPage("t1", 50, 10)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestGridTableStore_RowCRUDAndReorder(t *testing.T) {
	s := storage.NewGridTableStore(openDB(t))
	seedTable(t, s, "t1", 2)

	row := &domain.GridRow{TableID: "t1", DataJSON: `{"n":99}`}
	require.NoError(t, s.CreateRow(row))
	assert.NotEmpty(t, row.ID)
	assert.Equal(t, 3, row.SortOrder)

	row.DataJSON = `{"n":100}`
	require.NoError(t, s.UpdateRow(row))
	got, err := s.GetRow(row.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"n":100}`, got.DataJSON)

	rows, err := s.ListRows("t1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.NoError(t, s.ReorderRows("t1", []string{rows[2].ID, rows[0].ID, rows[1].ID}))

	rows, err = s.ListRows("t1")
	require.NoError(t, err)
	assert.Equal(t, `{"n":100}`, rows[0].DataJSON)

	require.NoError(t, s.DeleteRow(row.ID))
	_, err = s.GetRow(row.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGridTableStore_ReplaceRows(t *testing.T) {
	s := storage.NewGridTableStore(openDB(t))
	seedTable(t, s, "t1", 5)

	require.NoError(t, s.ReplaceRows("t1", []domain.GridRow{{DataJSON: `{"n":-1}`}}))

	rows, err := s.ListRows("t1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].SortOrder)
}

// ─────────────────────────────────────────────────────────────
// Connections
// ─────────────────────────────────────────────────────────────

func TestDBConnectionStore_CRUD(t *testing.T) {
	s := storage.NewDBConnectionStore(openDB(t))

	c := &domain.DatabaseConnection{
		ID: "c1", Name: "warehouse", Driver: domain.DatabaseDriverPostgres,
		Host: "db.internal", Port: 5432, Database: "dw", Username: "reader",
	}
	require.NoError(t, s.CreateConnection(c))
	assert.Equal(t, "{}", c.ExtraJSON)

	c.Port = 6432
	require.NoError(t, s.UpdateConnection(c))

	got, err := s.GetConnection("c1")
	require.NoError(t, err)
	assert.Equal(t, 6432, got.Port)
	assert.Equal(t, domain.DatabaseDriverPostgres, got.Driver)

	list, err := s.ListConnections()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteConnection("c1"))
	_, err = s.GetConnection("c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateConnection(c), storage.ErrNotFound)
}
