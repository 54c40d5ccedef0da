package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
	"gridkit/internal/logger"
	"gridkit/internal/source"
)

var validate = validator.New()

// ErrTableExists is returned when a table name is already taken.
var ErrTableExists = errors.New("table name already in use")

// ErrNotLocal is returned by row operations on tables fed by a source.
var ErrNotLocal = errors.New("table rows come from an external source")

// TableObserver is told when a stored table changes. structural means
// columns, views or the table itself changed; otherwise only rows did.
type TableObserver interface {
	TableChanged(ctx context.Context, tableID string, structural bool)
}

// ─────────────────────────────────────────────────────────────
// Catalog Service: stored tables, rows and views
// ─────────────────────────────────────────────────────────────

// CatalogService manages table definitions and the rows of local tables.
type CatalogService struct {
	store     domain.GridTableStore
	emitter   EventEmitter
	log       logger.ILogger
	observers []TableObserver
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(store domain.GridTableStore, emitter EventEmitter, log logger.ILogger) *CatalogService {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CatalogService{store: store, emitter: emitter, log: log}
}

// AddObserver registers a component that follows table changes (open
// grids, refresh schedules). Observers are added at wiring time only.
func (s *CatalogService) AddObserver(o TableObserver) {
	s.observers = append(s.observers, o)
}

func (s *CatalogService) changed(ctx context.Context, tableID string, structural bool) {
	s.emitter.Emit(ctx, EventTableChanged, map[string]any{"tableId": tableID, "structural": structural})
	for _, o := range s.observers {
		o.TableChanged(ctx, tableID, structural)
	}
}

// TableSummary is a table plus its row count (local tables only).
type TableSummary struct {
	domain.GridTable
	RowCount int `json:"rowCount"`
}

// CreateTableInput describes a new table. Columns may be omitted when
// rows are given; they are then inferred.
type CreateTableInput struct {
	Name         string            `json:"name" validate:"required,max=200"`
	PrimaryKey   string            `json:"primaryKey"`
	Columns      []domain.Column   `json:"columns" validate:"dive"`
	Views        []domain.View     `json:"views" validate:"dive"`
	SourceType   domain.SourceType `json:"sourceType" validate:"omitempty,oneof=local database csv_file json_file"`
	SourceConfig source.Config     `json:"sourceConfig"`
	RefreshCron  string            `json:"refreshCron"`
	Rows         []map[string]any  `json:"rows"`
}

// ── Table CRUD ─────────────────────────────────────────────

func (s *CatalogService) CreateTable(ctx context.Context, input CreateTableInput) (*domain.GridTable, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid table: %w", err)
	}
	if input.SourceType == "" {
		input.SourceType = domain.SourceLocal
	}
	if input.SourceType != domain.SourceLocal && len(input.Rows) > 0 {
		return nil, ErrNotLocal
	}
	if _, err := s.store.GetTableByName(input.Name); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, input.Name)
	}
	if input.RefreshCron != "" {
		if _, err := cron.ParseStandard(input.RefreshCron); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", input.RefreshCron, err)
		}
	}

	cols := input.Columns
	if len(cols) == 0 && len(input.Rows) > 0 {
		cols = source.InferColumns(input.Rows, nil)
	}
	if cols == nil {
		cols = []domain.Column{}
	}
	if _, err := grid.NewColumnIndex(cols); err != nil {
		return nil, err
	}
	views := input.Views
	if views == nil {
		views = []domain.View{}
	}
	if _, err := grid.NewViewSet(views); err != nil {
		return nil, err
	}

	colsJSON, err := json.Marshal(cols)
	if err != nil {
		return nil, err
	}
	viewsJSON, err := json.Marshal(views)
	if err != nil {
		return nil, err
	}
	cfgJSON, err := json.Marshal(input.SourceConfig)
	if err != nil {
		return nil, err
	}

	t := &domain.GridTable{
		ID:           uuid.NewString(),
		Name:         input.Name,
		PrimaryKey:   input.PrimaryKey,
		ColumnsJSON:  string(colsJSON),
		ViewsJSON:    string(viewsJSON),
		SourceType:   input.SourceType,
		SourceConfig: string(cfgJSON),
		RefreshCron:  input.RefreshCron,
	}
	if err := s.store.CreateTable(t); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	if len(input.Rows) > 0 {
		if _, err := s.AddRows(ctx, t.ID, input.Rows); err != nil {
			_ = s.store.DeleteTable(t.ID)
			return nil, err
		}
	}

	s.log.Info("catalog", "table created", map[string]any{
		"tableId": t.ID, "name": t.Name, "source": t.SourceType, "rows": len(input.Rows),
	})
	s.changed(ctx, t.ID, true)
	return t, nil
}

// ResolveTable finds a table by id, falling back to its name.
func (s *CatalogService) ResolveTable(ref string) (*domain.GridTable, error) {
	if t, err := s.store.GetTable(ref); err == nil {
		return t, nil
	}
	return s.store.GetTableByName(ref)
}

func (s *CatalogService) ListTables() ([]TableSummary, error) {
	tables, err := s.store.ListTables()
	if err != nil {
		return nil, err
	}
	out := make([]TableSummary, len(tables))
	for i, t := range tables {
		out[i] = TableSummary{GridTable: t}
		if t.SourceType == domain.SourceLocal {
			if n, err := s.store.CountRows(t.ID); err == nil {
				out[i].RowCount = n
			}
		}
	}
	return out, nil
}

func (s *CatalogService) DeleteTable(ctx context.Context, id string) error {
	if err := s.store.DeleteTable(id); err != nil {
		return err
	}
	s.changed(ctx, id, true)
	return nil
}

// SetRefreshCron changes (or clears, with "") a table's refresh schedule.
func (s *CatalogService) SetRefreshCron(ctx context.Context, id, expr string) error {
	if expr != "" {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", expr, err)
		}
	}
	t, err := s.store.GetTable(id)
	if err != nil {
		return err
	}
	t.RefreshCron = expr
	if err := s.store.UpdateTable(t); err != nil {
		return err
	}
	s.changed(ctx, id, false)
	return nil
}

// ── Views ──────────────────────────────────────────────────

// TableViews decodes the views stored with t.
func TableViews(t *domain.GridTable) ([]domain.View, error) {
	if t.ViewsJSON == "" {
		return nil, nil
	}
	var views []domain.View
	if err := json.Unmarshal([]byte(t.ViewsJSON), &views); err != nil {
		return nil, fmt.Errorf("table %s views: %w", t.ID, err)
	}
	return views, nil
}

// SaveView adds v to the table, replacing any view with the same key.
func (s *CatalogService) SaveView(ctx context.Context, tableID string, v domain.View) error {
	return s.editViews(ctx, tableID, func(views []domain.View) []domain.View {
		if i := slices.IndexFunc(views, func(e domain.View) bool { return e.Key == v.Key }); i >= 0 {
			views[i] = v
			return views
		}
		return append(views, v)
	})
}

// DeleteView removes the view with the given key.
func (s *CatalogService) DeleteView(ctx context.Context, tableID, key string) error {
	return s.editViews(ctx, tableID, func(views []domain.View) []domain.View {
		return slices.DeleteFunc(views, func(e domain.View) bool { return e.Key == key })
	})
}

func (s *CatalogService) editViews(ctx context.Context, tableID string, edit func([]domain.View) []domain.View) error {
	t, err := s.store.GetTable(tableID)
	if err != nil {
		return err
	}
	views, err := TableViews(t)
	if err != nil {
		return err
	}
	views = edit(views)
	if views == nil {
		views = []domain.View{}
	}
	if _, err := grid.NewViewSet(views); err != nil {
		return err
	}
	data, err := json.Marshal(views)
	if err != nil {
		return err
	}
	if err := s.store.SaveViews(tableID, string(data)); err != nil {
		return err
	}
	s.changed(ctx, tableID, true)
	return nil
}

// ── Row CRUD ───────────────────────────────────────────────

// AddRows appends rows to a local table. With a primary key configured,
// rows whose key is already present are rejected.
func (s *CatalogService) AddRows(ctx context.Context, tableID string, rows []map[string]any) ([]domain.GridRow, error) {
	t, err := s.localTable(tableID)
	if err != nil {
		return nil, err
	}

	if err := s.checkPrimaryKeys(t, rows, ""); err != nil {
		return nil, err
	}

	created := make([]domain.GridRow, 0, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return created, fmt.Errorf("encode row %d: %w", i, err)
		}
		row := domain.GridRow{ID: uuid.NewString(), TableID: tableID, DataJSON: string(data)}
		if err := s.store.CreateRow(&row); err != nil {
			return created, fmt.Errorf("create row: %w", err)
		}
		created = append(created, row)
	}
	s.changed(ctx, tableID, false)
	return created, nil
}

// checkPrimaryKeys rejects rows whose primary key is already stored or
// repeats within rows. The stored row skipRowID is ignored, so an update
// may keep its own key.
func (s *CatalogService) checkPrimaryKeys(t *domain.GridTable, rows []map[string]any, skipRowID string) error {
	if t.PrimaryKey == "" {
		return nil
	}
	existing, err := s.store.ListRows(t.ID)
	if err != nil {
		return err
	}
	existing = slices.DeleteFunc(existing, func(r domain.GridRow) bool { return r.ID == skipRowID })
	data, err := source.DecodeRows(existing)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(data)+len(rows))
	for _, d := range data {
		seen[cast.ToString(d[t.PrimaryKey])] = true
	}
	for i, r := range rows {
		key := cast.ToString(r[t.PrimaryKey])
		if seen[key] {
			return fmt.Errorf("%w: %q at index %d", grid.ErrDuplicateRowID, key, i)
		}
		seen[key] = true
	}
	return nil
}

func (s *CatalogService) ListRows(tableID string) ([]domain.GridRow, error) {
	return s.store.ListRows(tableID)
}

func (s *CatalogService) UpdateRow(ctx context.Context, rowID string, data map[string]any) error {
	row, err := s.store.GetRow(rowID)
	if err != nil {
		return err
	}
	t, err := s.localTable(row.TableID)
	if err != nil {
		return err
	}
	if err := s.checkPrimaryKeys(t, []map[string]any{data}, rowID); err != nil {
		return err
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	row.DataJSON = string(encoded)
	if err := s.store.UpdateRow(row); err != nil {
		return err
	}
	s.changed(ctx, row.TableID, false)
	return nil
}

func (s *CatalogService) DeleteRow(ctx context.Context, rowID string) error {
	row, err := s.store.GetRow(rowID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRow(rowID); err != nil {
		return err
	}
	s.changed(ctx, row.TableID, false)
	return nil
}

func (s *CatalogService) ReorderRows(ctx context.Context, tableID string, rowIDs []string) error {
	if err := s.store.ReorderRows(tableID, rowIDs); err != nil {
		return err
	}
	s.changed(ctx, tableID, false)
	return nil
}

func (s *CatalogService) localTable(id string) (*domain.GridTable, error) {
	t, err := s.store.GetTable(id)
	if err != nil {
		return nil, err
	}
	if t.SourceType != domain.SourceLocal {
		return nil, fmt.Errorf("table %s: %w", t.Name, ErrNotLocal)
	}
	return t, nil
}
