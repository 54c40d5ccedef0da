package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
	"gridkit/internal/logger"
	"gridkit/internal/source"
)

const gridModule = "grid-service"

// ErrUnknownView is returned by SetView for keys the table does not define.
var ErrUnknownView = errors.New("unknown view")

// GridOptions tunes how tables are opened.
type GridOptions struct {
	PageSize            int
	PaginationThreshold int // tables with more rows open paginated
	SearchThrottle      time.Duration
	PageCacheTTL        time.Duration
	FetchTimeout        time.Duration
}

func (o GridOptions) withDefaults() GridOptions {
	if o.PageSize <= 0 {
		o.PageSize = 100
	}
	if o.PaginationThreshold <= 0 {
		o.PaginationThreshold = 2500
	}
	if o.PageCacheTTL <= 0 {
		o.PageCacheTTL = 30 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 60 * time.Second
	}
	return o
}

// ─────────────────────────────────────────────────────────────
// Grid Service: live grid sessions over stored tables
// ─────────────────────────────────────────────────────────────

// GridService keeps one grid.Table per open stored table. Small tables are
// loaded whole and processed locally; large ones page through their source.
type GridService struct {
	tables  domain.GridTableStore
	env     source.Env
	opts    GridOptions
	emitter EventEmitter
	log     logger.ILogger
	guard   refreshGuard

	mu       sync.Mutex
	sessions map[string]*gridSession
}

type gridSession struct {
	id     string
	name   string
	table  *grid.Table
	src    *source.CachedSource
	ctx    context.Context
	cancel context.CancelFunc

	loadMu  sync.Mutex // serializes page loads
	mu      sync.Mutex
	total   int
	offset  int
	lastErr error
}

// NewGridService creates a GridService. env is how sources reach stores
// and secrets; env.Tables is also used to resolve table ids.
func NewGridService(env source.Env, opts GridOptions, emitter EventEmitter, log logger.ILogger) *GridService {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	env.Log = log
	return &GridService{
		tables:   env.Tables,
		env:      env,
		opts:     opts.withDefaults(),
		emitter:  emitter,
		log:      log,
		sessions: make(map[string]*gridSession),
	}
}

// ── Lifecycle ──────────────────────────────────────────────

// Open loads a table by id or name and returns its session id (the table
// id). Opening an open table is a no-op.
func (s *GridService) Open(ctx context.Context, ref string) (string, error) {
	t, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if _, ok := s.sessions[t.ID]; ok {
		s.mu.Unlock()
		return t.ID, nil
	}
	s.mu.Unlock()

	sess, err := s.open(ctx, t)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[t.ID]; ok {
		sess.close()
		return existing.id, nil
	}
	s.sessions[t.ID] = sess
	return t.ID, nil
}

func (s *GridService) resolve(ref string) (*domain.GridTable, error) {
	if t, err := s.tables.GetTable(ref); err == nil {
		return t, nil
	}
	t, err := s.tables.GetTableByName(ref)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", ref, err)
	}
	return t, nil
}

func (s *GridService) open(ctx context.Context, t *domain.GridTable) (*gridSession, error) {
	src, err := source.Open(t, s.env)
	if err != nil {
		return nil, err
	}
	cached := source.NewCachedSource(src, s.opts.PageCacheTTL)

	cols, err := cached.Columns(ctx)
	if err != nil {
		_ = cached.Close()
		return nil, fmt.Errorf("load columns: %w", err)
	}
	views, err := TableViews(t)
	if err != nil {
		_ = cached.Close()
		return nil, err
	}

	all, err := cached.FetchPage(ctx, domain.PageRequest{})
	if err != nil {
		_ = cached.Close()
		return nil, fmt.Errorf("load rows: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &gridSession{id: t.ID, name: t.Name, src: cached, ctx: sessCtx, cancel: cancel}

	opts := grid.Options{
		Columns:          cols,
		PrimaryKey:       t.PrimaryKey,
		PageSize:         s.opts.PageSize,
		SelectMode:       domain.SelectMulti,
		Views:            views,
		ThrottleInterval: s.opts.SearchThrottle,
		Logger:           s.log,
		Hooks: grid.Hooks{
			OnRecompute:     func() { s.emitRows(sess) },
			OnServerRequest: func(req domain.PageRequest) { s.loadPage(sess, req) },
		},
	}

	if all.Total > s.opts.PaginationThreshold {
		vs, err := grid.NewViewSet(views)
		if err != nil {
			cancel()
			_ = cached.Close()
			return nil, err
		}
		req, err := source.ViewRequest(cols, views, vs.DefaultKey(), s.opts.PageSize)
		if err != nil {
			cancel()
			_ = cached.Close()
			return nil, err
		}
		page, err := cached.FetchPage(ctx, req)
		if err != nil {
			cancel()
			_ = cached.Close()
			return nil, fmt.Errorf("load first page: %w", err)
		}
		opts.Paginated = true
		opts.Data = page.Rows
		opts.Offset = page.Offset
		opts.Remote = remoteFromRequest(req)
		sess.total, sess.offset = page.Total, page.Offset
	} else {
		opts.Data = all.Rows
		sess.total = all.Total
	}

	table, err := grid.NewTable(opts)
	if err != nil {
		cancel()
		_ = cached.Close()
		return nil, err
	}
	sess.table = table

	s.log.Info(gridModule, "table opened", map[string]any{
		"tableId": t.ID, "name": t.Name, "rows": all.Total, "paginated": opts.Paginated,
	})
	return sess, nil
}

func remoteFromRequest(req domain.PageRequest) grid.RemoteState {
	return grid.RemoteState{
		SearchQuery:   req.SearchQuery,
		SortBy:        req.SortBy,
		FilterBy:      req.FilterBy,
		ViewBy:        req.ViewBy,
		SearchColumns: req.SearchColumns,
	}
}

func (sess *gridSession) close() {
	sess.cancel()
	if sess.table != nil {
		sess.table.Close()
	}
	_ = sess.src.Close()
}

// Close ends the session of one table.
func (s *GridService) Close(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.close()
	}
}

// CloseAll ends every session and waits (bounded by ctx) for in-flight
// refreshes.
func (s *GridService) CloseAll(ctx context.Context) {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*gridSession)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
	s.guard.WaitAll(ctx)
}

// OpenTables returns the ids of the open tables.
func (s *GridService) OpenTables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.sessions)
}

// session returns the open session for id, opening it on demand.
func (s *GridService) session(ctx context.Context, ref string) (*gridSession, error) {
	id, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("table %q was closed", ref)
	}
	return sess, nil
}

// ── Paging ─────────────────────────────────────────────────

// loadPage serves a page request of a paginated table and hands the
// result back to the grid as the new remote state.
func (s *GridService) loadPage(sess *gridSession, req domain.PageRequest) {
	sess.loadMu.Lock()
	defer sess.loadMu.Unlock()

	ctx, cancel := context.WithTimeout(sess.ctx, s.opts.FetchTimeout)
	defer cancel()

	page, err := sess.src.FetchPage(ctx, req)
	sess.mu.Lock()
	sess.lastErr = err
	sess.mu.Unlock()
	if err != nil {
		s.log.Warn(gridModule, "page fetch failed", map[string]any{"tableId": sess.id, "error": err.Error()})
		return
	}

	sess.table.SetRemoteState(remoteFromRequest(req))
	sess.mu.Lock()
	sess.total, sess.offset = page.Total, page.Offset
	sess.mu.Unlock()
	if err := sess.table.SetData(page.Rows, page.Offset); err != nil {
		sess.mu.Lock()
		sess.lastErr = err
		sess.mu.Unlock()
		s.log.Warn(gridModule, "page rejected", map[string]any{"tableId": sess.id, "error": err.Error()})
	}
}

func (s *GridService) emitRows(sess *gridSession) {
	sess.mu.Lock()
	total := sess.total
	sess.mu.Unlock()
	s.emitter.Emit(sess.ctx, EventRowsChanged, map[string]any{
		"tableId": sess.id,
		"visible": len(sess.table.Rows()),
		"total":   total,
	})
}

// ── Snapshot ───────────────────────────────────────────────

// RowView is one visible row as clients see it.
type RowView struct {
	ID       string            `json:"id"`
	Data     map[string]any    `json:"data"`
	Display  map[string]string `json:"display,omitempty"`
	Selected bool              `json:"selected"`
}

// GridSnapshot is the full client-facing state of an open table.
type GridSnapshot struct {
	TableID   string          `json:"tableId"`
	Name      string          `json:"name"`
	Paginated bool            `json:"paginated"`
	Total     int             `json:"total"`
	Offset    int             `json:"offset"`
	Columns   []domain.Column `json:"columns"`
	Rows      []RowView       `json:"rows"`

	Search  grid.SearchState  `json:"search"`
	Filter  grid.FilterState  `json:"filter"`
	Sort    grid.SortState    `json:"sort"`
	View    grid.ViewState    `json:"view"`
	Density grid.DensityState `json:"density"`

	ViewDirty   bool            `json:"viewDirty"`
	Views       []domain.View   `json:"views"`
	Visibility  map[string]bool `json:"visibility"`
	PinnedLeft  []string        `json:"pinnedLeft"`
	PinnedRight []string        `json:"pinnedRight"`
	Selected    int             `json:"selected"`
	Error       string          `json:"error,omitempty"`
}

// Query returns a window of the visible rows. In local mode offset and
// limit slice the processed rows; in paginated mode they move the page
// window on the source. A non-positive limit means the page size.
func (s *GridService) Query(ctx context.Context, ref string, offset, limit int) (*GridSnapshot, error) {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.opts.PageSize
	}
	offset = max(offset, 0)

	paginated := sess.table.Paginated()
	if paginated {
		sess.mu.Lock()
		moved := offset != sess.offset
		sess.mu.Unlock()
		if moved || sess.table.IsStale() {
			req := sess.table.ServerQuery()
			req.Offset, req.Limit = offset, limit
			s.loadPage(sess, req)
		}
	}

	rows := sess.table.Rows()
	sess.mu.Lock()
	total, start, lastErr := sess.total, sess.offset, sess.lastErr
	sess.mu.Unlock()
	if !paginated {
		total = len(rows)
		start = min(offset, total)
		rows = rows[start:min(start+limit, total)]
	}

	selection := sess.table.Selection()
	left, right := sess.table.ColumnPinning()
	snap := &GridSnapshot{
		TableID:     sess.id,
		Name:        sess.name,
		Paginated:   paginated,
		Total:       total,
		Offset:      start,
		Columns:     sess.table.Columns(),
		Rows:        make([]RowView, len(rows)),
		Search:      sess.table.SearchState(),
		Filter:      sess.table.FilterState(),
		Sort:        sess.table.SortState(),
		View:        sess.table.ViewState(),
		Density:     sess.table.DensityState(),
		ViewDirty:   sess.table.ViewIsDirty(),
		Views:       sess.table.Views(),
		Visibility:  sess.table.ColumnVisibility(),
		PinnedLeft:  left,
		PinnedRight: right,
		Selected:    len(selection),
	}
	for i, r := range rows {
		snap.Rows[i] = RowView{ID: r.ID(), Data: r.Data, Display: r.Meta.Display, Selected: selection[r.ID()]}
	}
	if lastErr != nil {
		snap.Error = lastErr.Error()
	}
	return snap, nil
}

// ── Data operations ────────────────────────────────────────

// SetSearch applies a search query right away, skipping the keystroke
// throttle.
func (s *GridService) SetSearch(ctx context.Context, ref, query string) error {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return err
	}
	sess.table.SetSearch(query)
	sess.table.Flush()
	return nil
}

// SetSort replaces the sort rules. Unknown or unsortable columns are
// rejected.
func (s *GridService) SetSort(ctx context.Context, ref string, rules []domain.SortRule) error {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return err
	}
	idx := sess.table.ColumnIndex()
	for _, r := range rules {
		col, ok := idx.Get(r.ColumnID)
		if !ok {
			return fmt.Errorf("unknown column %q", r.ColumnID)
		}
		if col.IsSynthetic() {
			return fmt.Errorf("column %q cannot be sorted", r.ColumnID)
		}
	}
	sess.table.SetSort(rules)
	return nil
}

// SetView applies a view by key; "" goes back to the default view.
func (s *GridService) SetView(ctx context.Context, ref, key string) error {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return err
	}
	if key == "" {
		sess.table.ResetView()
		return nil
	}
	if key != domain.NoViewAppliedKey && !lo.ContainsBy(sess.table.Views(), func(v domain.View) bool { return v.Key == key }) {
		return fmt.Errorf("%w: %q", ErrUnknownView, key)
	}
	sess.table.SetView(key)
	return nil
}

// SetDensity changes the row density.
func (s *GridService) SetDensity(ctx context.Context, ref string, d domain.Density) error {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return err
	}
	return sess.table.SetDensity(d)
}

// SetColumnVisibility shows or hides a column.
func (s *GridService) SetColumnVisibility(ctx context.Context, ref, columnID string, visible bool) error {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return err
	}
	return sess.table.SetColumnVisibility(columnID, visible)
}

// Filter editor operations.
const (
	FilterAddTopClause = "add_top_clause"
	FilterAddTopGroup  = "add_top_group"
	FilterAddClause    = "add_clause"
	FilterAddGroup     = "add_group"
	FilterRemove       = "remove"
	FilterSetKey       = "set_key"
	FilterSetOperator  = "set_operator"
	FilterSetValue     = "set_value"
	FilterSetLogic     = "set_logic"
	FilterDiscard      = "discard"
)

// FilterEdit is one filter editor operation. Path lists node ids from the
// root to the target node.
type FilterEdit struct {
	Op       string               `json:"op"`
	Path     []string             `json:"path"`
	Key      string               `json:"key,omitempty"`
	Operator domain.Operator      `json:"operator,omitempty"`
	Value    any                  `json:"value,omitempty"`
	Logic    domain.LogicOperator `json:"logic,omitempty"`
}

// EditFilter applies one editor operation to the filter draft and returns
// the new draft.
func (s *GridService) EditFilter(ctx context.Context, ref string, edit FilterEdit) (grid.DraftNode, error) {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return nil, err
	}
	if edit.Op == FilterDiscard {
		sess.table.DiscardFilterEdits()
		return sess.table.FilterState().Draft, nil
	}
	_, err = sess.table.EditFilter(func(root grid.DraftNode, cols *grid.ColumnIndex) (grid.DraftNode, error) {
		switch edit.Op {
		case FilterAddTopClause:
			return grid.AddTopLevelClause(root), nil
		case FilterAddTopGroup:
			return grid.AddTopLevelGroup(root), nil
		case FilterAddClause:
			return grid.AddClauseToGroup(root, edit.Path)
		case FilterAddGroup:
			return grid.AddGroupToGroup(root, edit.Path)
		case FilterRemove:
			return grid.RemoveNode(root, edit.Path)
		case FilterSetKey:
			return grid.UpdateClauseKey(root, edit.Path, edit.Key, cols)
		case FilterSetOperator:
			return grid.UpdateClauseOperator(root, edit.Path, edit.Operator)
		case FilterSetValue:
			return grid.UpdateClauseValue(root, edit.Path, edit.Value)
		case FilterSetLogic:
			return grid.UpdateGroupLogicOperator(root, edit.Path, edit.Logic)
		default:
			return nil, fmt.Errorf("unknown filter operation %q", edit.Op)
		}
	})
	if err != nil {
		return nil, err
	}
	return sess.table.FilterState().Draft, nil
}

// ResetFilter restores the filter of the applied view.
func (s *GridService) ResetFilter(ctx context.Context, ref string) error {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return err
	}
	sess.table.ResetFilter()
	return nil
}

// ── Selection + export ─────────────────────────────────────

// Toggle clicks a visible row; shift extends from the anchor.
func (s *GridService) Toggle(ctx context.Context, ref, rowID string, shift bool) (grid.SelectionMap, error) {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return nil, err
	}
	return sess.table.Toggle(rowID, shift)
}

// ClearSelection deselects every row.
func (s *GridService) ClearSelection(ctx context.Context, ref string) error {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return err
	}
	sess.table.ClearSelection()
	return nil
}

// ExportCSV renders the visible rows. The file is named after the table
// unless opts names it.
func (s *GridService) ExportCSV(ctx context.Context, ref string, opts grid.ExportOptions) (grid.CSVFile, error) {
	sess, err := s.session(ctx, ref)
	if err != nil {
		return grid.CSVFile{}, err
	}
	if opts.Filename == "" {
		opts.Filename = sess.name
	}
	return sess.table.ExportCSV(opts), nil
}

// ── Refresh ────────────────────────────────────────────────

// Refresh reloads an open table from its source. Tables that are not
// open, or already refreshing, are skipped.
func (s *GridService) Refresh(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if !s.guard.TryLock(id) {
		s.log.Debug(gridModule, "refresh already running", map[string]any{"tableId": id})
		return nil
	}
	defer s.guard.Unlock(id)

	start := time.Now()
	if err := sess.src.Reload(ctx); err != nil {
		sess.mu.Lock()
		sess.lastErr = err
		sess.mu.Unlock()
		return fmt.Errorf("reload %s: %w", sess.name, err)
	}

	if sess.table.Paginated() {
		sess.mu.Lock()
		offset := sess.offset
		sess.mu.Unlock()
		req := sess.table.ServerQuery()
		req.Offset = offset
		s.loadPage(sess, req)
	} else {
		all, err := sess.src.FetchPage(ctx, domain.PageRequest{})
		if err != nil {
			return fmt.Errorf("reload %s: %w", sess.name, err)
		}
		sess.mu.Lock()
		sess.total = all.Total
		sess.mu.Unlock()
		if err := sess.table.SetData(all.Rows, 0); err != nil {
			return fmt.Errorf("reload %s: %w", sess.name, err)
		}
	}

	s.log.Info(gridModule, "table refreshed", map[string]any{
		"tableId": id, "duration": time.Since(start).String(),
	})
	s.emitter.Emit(ctx, EventRefreshed, map[string]any{"tableId": id})
	return nil
}

// TableChanged keeps open sessions in line with the store. Row edits
// refresh the session; structural edits close it so the next use
// reopens with the new columns and views.
func (s *GridService) TableChanged(ctx context.Context, tableID string, structural bool) {
	if structural {
		s.Close(tableID)
		return
	}
	if err := s.Refresh(ctx, tableID); err != nil {
		s.log.Warn(gridModule, "refresh after change failed", map[string]any{"tableId": tableID, "error": err.Error()})
	}
}

var _ TableObserver = (*GridService)(nil)
