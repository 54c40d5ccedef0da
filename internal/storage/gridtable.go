package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"gridkit/internal/domain"
)

// ErrNotFound is returned when a table, row or connection does not exist.
var ErrNotFound = errors.New("not found")

const (
	tableColumns = `id, name, primary_key, columns_json, views_json, source_type, source_config, refresh_cron, created_at, updated_at`
	rowColumns   = `id, table_id, data_json, sort_order, created_at, updated_at`
)

// GridTableStore implements domain.GridTableStore using SQLite.
type GridTableStore struct {
	db *DB
}

// NewGridTableStore creates a new GridTableStore.
func NewGridTableStore(db *DB) *GridTableStore {
	return &GridTableStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTable(s scanner) (*domain.GridTable, error) {
	t := &domain.GridTable{}
	err := s.Scan(&t.ID, &t.Name, &t.PrimaryKey, &t.ColumnsJSON, &t.ViewsJSON,
		&t.SourceType, &t.SourceConfig, &t.RefreshCron, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanRow(s scanner) (domain.GridRow, error) {
	r := domain.GridRow{}
	err := s.Scan(&r.ID, &r.TableID, &r.DataJSON, &r.SortOrder, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// ── Table CRUD ─────────────────────────────────────────────

func (s *GridTableStore) CreateTable(t *domain.GridTable) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.SourceType == "" {
		t.SourceType = domain.SourceLocal
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO grid_tables (`+tableColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.PrimaryKey, t.ColumnsJSON, t.ViewsJSON,
		t.SourceType, t.SourceConfig, t.RefreshCron, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *GridTableStore) GetTable(id string) (*domain.GridTable, error) {
	t, err := scanTable(s.db.conn.QueryRow(
		`SELECT `+tableColumns+` FROM grid_tables WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("grid table %s: %w", id, ErrNotFound)
	}
	return t, err
}

// GetTableByName looks a table up by its unique name.
func (s *GridTableStore) GetTableByName(name string) (*domain.GridTable, error) {
	t, err := scanTable(s.db.conn.QueryRow(
		`SELECT `+tableColumns+` FROM grid_tables WHERE name = ?`, name,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("grid table %q: %w", name, ErrNotFound)
	}
	return t, err
}

func (s *GridTableStore) ListTables() ([]domain.GridTable, error) {
	rows, err := s.db.conn.Query(`SELECT ` + tableColumns + ` FROM grid_tables ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GridTable
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (s *GridTableStore) UpdateTable(t *domain.GridTable) error {
	t.UpdatedAt = time.Now()
	res, err := s.db.conn.Exec(
		`UPDATE grid_tables SET name = ?, primary_key = ?, columns_json = ?, views_json = ?,
		 source_type = ?, source_config = ?, refresh_cron = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.PrimaryKey, t.ColumnsJSON, t.ViewsJSON,
		t.SourceType, t.SourceConfig, t.RefreshCron, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "grid table", t.ID)
}

func (s *GridTableStore) DeleteTable(id string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM grid_rows WHERE table_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM grid_tables WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveViews replaces the stored views of a table.
func (s *GridTableStore) SaveViews(tableID, viewsJSON string) error {
	res, err := s.db.conn.Exec(
		`UPDATE grid_tables SET views_json = ?, updated_at = ? WHERE id = ?`,
		viewsJSON, time.Now(), tableID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "grid table", tableID)
}

func expectAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// ── Row CRUD ───────────────────────────────────────────────

func (s *GridTableStore) CreateRow(r *domain.GridRow) error {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	// Auto-assign sort_order to end
	if r.SortOrder == 0 {
		var maxOrder sql.NullInt64
		if err := s.db.conn.QueryRow(
			`SELECT MAX(sort_order) FROM grid_rows WHERE table_id = ?`, r.TableID,
		).Scan(&maxOrder); err != nil {
			return err
		}
		r.SortOrder = int(maxOrder.Int64) + 1
	}

	_, err := s.db.conn.Exec(
		`INSERT INTO grid_rows (`+rowColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.TableID, r.DataJSON, r.SortOrder, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *GridTableStore) GetRow(id string) (*domain.GridRow, error) {
	r, err := scanRow(s.db.conn.QueryRow(`SELECT `+rowColumns+` FROM grid_rows WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("grid row %s: %w", id, ErrNotFound)
	}
	return &r, err
}

func (s *GridTableStore) ListRows(tableID string) ([]domain.GridRow, error) {
	return s.queryRows(s.rowsQuery(tableID))
}

// ListRowsPage returns at most limit rows starting at offset, in sort
// order. A non-positive limit returns everything from offset on.
func (s *GridTableStore) ListRowsPage(tableID string, offset, limit int) ([]domain.GridRow, error) {
	q := s.rowsQuery(tableID)
	if limit > 0 {
		q = q.Limit(uint64(limit)).Offset(uint64(max(offset, 0)))
		return s.queryRows(q)
	}
	all, err := s.queryRows(q)
	if err != nil || offset <= 0 {
		return all, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:], nil
}

func (s *GridTableStore) rowsQuery(tableID string) sq.SelectBuilder {
	return sq.Select(rowColumns).
		From("grid_rows").
		Where(sq.Eq{"table_id": tableID}).
		OrderBy("sort_order ASC", "id ASC")
}

func (s *GridTableStore) queryRows(q sq.SelectBuilder) ([]domain.GridRow, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build row query: %w", err)
	}
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GridRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *GridTableStore) CountRows(tableID string) (int, error) {
	var n int
	err := s.db.conn.QueryRow(`SELECT COUNT(*) FROM grid_rows WHERE table_id = ?`, tableID).Scan(&n)
	return n, err
}

func (s *GridTableStore) UpdateRow(r *domain.GridRow) error {
	r.UpdatedAt = time.Now()
	res, err := s.db.conn.Exec(
		`UPDATE grid_rows SET data_json = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
		r.DataJSON, r.SortOrder, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res, "grid row", r.ID)
}

func (s *GridTableStore) DeleteRow(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM grid_rows WHERE id = ?`, id)
	return err
}

// ReplaceRows swaps every row of a table for rows, in one transaction.
// Rows get sort orders 1..n in slice order; missing ids are generated.
func (s *GridTableStore) ReplaceRows(tableID string, rows []domain.GridRow) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM grid_rows WHERE table_id = ?`, tableID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO grid_rows (` + rowColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i := range rows {
		r := &rows[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.TableID = tableID
		r.SortOrder = i + 1
		r.CreatedAt, r.UpdatedAt = now, now
		if _, err := stmt.Exec(r.ID, r.TableID, r.DataJSON, r.SortOrder, r.CreatedAt, r.UpdatedAt); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *GridTableStore) ReorderRows(tableID string, rowIDs []string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE grid_rows SET sort_order = ? WHERE id = ? AND table_id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range rowIDs {
		if _, err := stmt.Exec(i+1, id, tableID); err != nil {
			return fmt.Errorf("reorder row %s: %w", id, err)
		}
	}

	return tx.Commit()
}

var _ domain.GridTableStore = (*GridTableStore)(nil)
