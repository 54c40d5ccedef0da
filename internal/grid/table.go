package grid

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"gridkit/internal/domain"
	"gridkit/internal/logger"
)

const logModule = "grid"

// ErrRowNotFound is returned by Toggle for ids outside the visible rows.
var ErrRowNotFound = errors.New("row not found")

// Hooks are the table's outbound signals. They run without the table lock
// held, so they may call back into the table.
type Hooks struct {
	// OnRecompute runs after the visible rows were recomputed locally.
	OnRecompute func()
	// OnServerRequest runs in paginated mode when a data operation changed
	// and the remote source must serve a new page.
	OnServerRequest func(req domain.PageRequest)
}

// RemoteState is what the remote source last reported for each data
// operation. Only meaningful in paginated mode.
type RemoteState struct {
	SearchQuery *string
	SortBy      []domain.ServerSortRule
	FilterBy    domain.FilterNode
	ViewBy      string
	Density     domain.Density
	// SearchColumns are the server keys the last remote search covered.
	SearchColumns []string
}

// Options configures a Table.
type Options struct {
	Columns    []domain.Column
	Data       []map[string]any
	PrimaryKey string
	Offset     int

	Paginated bool
	PageSize  int

	DisableSearch bool
	DisableFilter bool
	SortOption    domain.SortOption // defaults to multi
	SelectMode    domain.SelectMode
	Views         []domain.View
	Density       domain.Density // defaults to standard

	Remote           RemoteState
	ThrottleInterval time.Duration
	Location         *time.Location
	Logger           logger.ILogger
	Hooks            Hooks
}

// State is a snapshot of one data operation.
type State[D, A, S any] struct {
	Draft   D    `json:"draft"`
	Applied A    `json:"applied"`
	Server  S    `json:"server"`
	Enabled bool `json:"enabled"`
	Stale   bool `json:"stale"`
}

func snapshot[D, A, S any](c *Control[D, A, S]) State[D, A, S] {
	return State[D, A, S]{
		Draft:   c.Draft(),
		Applied: c.Applied(),
		Server:  c.Server(),
		Enabled: c.IsEnabled(),
		Stale:   c.IsServerValueStale(),
	}
}

type (
	SearchState  = State[string, *string, *string]
	FilterState  = State[DraftNode, domain.FilterNode, domain.FilterNode]
	SortState    = State[[]domain.SortRule, []domain.SortRule, []domain.ServerSortRule]
	ViewState    = State[string, domain.View, string]
	DensityState = State[domain.Density, domain.Density, domain.Density]
)

// ─────────────────────────────────────────────────────────────
// Table: owns the data operations of one grid instance
// ─────────────────────────────────────────────────────────────

// Table combines the applied values of every data operation into the
// visible row list, and their server values into page requests.
// It is safe for concurrent use.
type Table struct {
	mu sync.Mutex

	opts     Options
	cols     *ColumnIndex
	views    *ViewSet
	log      logger.ILogger
	throttle *Throttle

	raw     []map[string]any
	offset  int
	rows    []Row
	visible []Row
	remote  RemoteState

	search  *Control[string, *string, *string]
	filter  *Control[DraftNode, domain.FilterNode, domain.FilterNode]
	sort    *Control[[]domain.SortRule, []domain.SortRule, []domain.ServerSortRule]
	view    *Control[string, domain.View, string]
	density *Control[domain.Density, domain.Density, domain.Density]

	selector   *RowSelector
	selection  SelectionMap
	visibility map[string]bool // user overrides on top of column and view
}

// NewTable validates columns and views, formats the initial data and
// computes the visible rows.
func NewTable(opts Options) (*Table, error) {
	cols, err := NewColumnIndex(opts.Columns)
	if err != nil {
		return nil, err
	}
	views, err := NewViewSet(opts.Views)
	if err != nil {
		return nil, err
	}
	if opts.SortOption == "" {
		opts.SortOption = domain.SortMulti
	}
	if !opts.Density.Valid() {
		opts.Density = domain.DensityStandard
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	t := &Table{
		opts:       opts,
		cols:       cols,
		views:      views,
		log:        opts.Logger,
		throttle:   NewThrottle(opts.ThrottleInterval),
		remote:     opts.Remote,
		selector:   NewRowSelector(opts.SelectMode),
		selection:  SelectionMap{},
		visibility: map[string]bool{},
	}
	t.initControls()

	if err := t.setDataLocked(opts.Data, opts.Offset); err != nil {
		return nil, err
	}
	t.recomputeLocked()
	return t, nil
}

func (t *Table) initControls() {
	paginated := t.opts.Paginated

	t.view = NewControl(ControlConfig[string, domain.View, string]{
		DraftToApplied:       t.views.Resolve,
		AppliedToServer:      t.views.ViewToServer,
		ServerToDraft:        t.views.ViewFromServer,
		ServerValuesAreEqual: func(a, b string) bool { return a == b },
		GetCurrentServerValue: func() string {
			if paginated {
				return t.remote.ViewBy
			}
			return t.defaultViewServer()
		},
		GetResetValue: t.defaultViewServer,
		IsEnabled:     true,
		DisabledValue: "",
		Paginated:     paginated,
	})

	t.search = NewControl(ControlConfig[string, *string, *string]{
		DraftToApplied:       normalizeSearch,
		AppliedToServer:      func(a *string) *string { return a },
		ServerToDraft:        func(s *string) string { return deref(s) },
		ServerValuesAreEqual: searchEqual,
		GetCurrentServerValue: func() *string {
			if paginated {
				return t.remote.SearchQuery
			}
			return t.view.Applied().SearchQuery
		},
		GetResetValue: func() *string { return t.view.Applied().SearchQuery },
		IsEnabled:     !t.opts.DisableSearch,
		Paginated:     paginated,
	})

	t.filter = NewControl(ControlConfig[DraftNode, domain.FilterNode, domain.FilterNode]{
		DraftToApplied:       ValidateFilter,
		AppliedToServer:      func(a domain.FilterNode) domain.FilterNode { return FilterToServer(a, t.cols) },
		ServerToDraft:        t.filterFromServer,
		ServerValuesAreEqual: FiltersEqual,
		GetCurrentServerValue: func() domain.FilterNode {
			if paginated {
				return t.remote.FilterBy
			}
			return t.view.Applied().FilterBy
		},
		GetResetValue: func() domain.FilterNode { return t.view.Applied().FilterBy },
		IsEnabled:     !t.opts.DisableFilter,
		Paginated:     paginated,
	})

	option := t.opts.SortOption
	t.sort = NewControl(ControlConfig[[]domain.SortRule, []domain.SortRule, []domain.ServerSortRule]{
		DraftToApplied: func(d []domain.SortRule) []domain.SortRule {
			if option == domain.SortSingle && len(d) > 1 {
				return d[:1]
			}
			return d
		},
		AppliedToServer:      func(a []domain.SortRule) []domain.ServerSortRule { return SortToServer(a, t.cols) },
		ServerToDraft:        func(s []domain.ServerSortRule) []domain.SortRule { return SortFromServer(s, t.cols, option) },
		ServerValuesAreEqual: SortRulesEqual,
		GetCurrentServerValue: func() []domain.ServerSortRule {
			if paginated {
				return t.remote.SortBy
			}
			return t.view.Applied().SortBy
		},
		GetResetValue: func() []domain.ServerSortRule { return t.view.Applied().SortBy },
		IsEnabled:     option != domain.SortDisabled,
		DisabledValue: []domain.ServerSortRule{},
		Paginated:     paginated,
	})

	identity := func(d domain.Density) domain.Density { return d }
	t.density = NewControl(ControlConfig[domain.Density, domain.Density, domain.Density]{
		DraftToApplied:        identity,
		AppliedToServer:       identity,
		ServerToDraft:         identity,
		ServerValuesAreEqual:  func(a, b domain.Density) bool { return a == b },
		GetCurrentServerValue: t.viewDensity,
		GetResetValue:         t.viewDensity,
		IsEnabled:             true,
		DisabledValue:         t.opts.Density,
		Paginated:             false,
	})
}

func (t *Table) defaultViewServer() string {
	return t.views.ViewToServer(t.views.Resolve(t.views.DefaultKey()))
}

func (t *Table) viewDensity() domain.Density {
	if t.remote.Density.Valid() {
		return t.remote.Density
	}
	if d := t.view.Applied().Density; d != nil && d.Valid() {
		return *d
	}
	return t.opts.Density
}

// filterFromServer falls back to no filter when the tree cannot be
// rehydrated, e.g. when it names a column that was removed.
func (t *Table) filterFromServer(s domain.FilterNode) DraftNode {
	d, err := FilterFromServer(s, t.cols)
	if err != nil {
		t.log.Warn(logModule, "discarding filter that cannot be restored", map[string]any{"error": err.Error()})
		return nil
	}
	return d
}

func normalizeSearch(d string) *string {
	q := strings.TrimSpace(d)
	if q == "" {
		return nil
	}
	return &q
}

func searchEqual(a, b *string) bool {
	return deref(normalizeSearch(deref(a))) == deref(normalizeSearch(deref(b)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ── Data ───────────────────────────────────────────────────

// SetData replaces the raw rows. offset is the index of the first row in
// the full dataset (the page offset in paginated mode).
func (t *Table) SetData(data []map[string]any, offset int) error {
	t.mu.Lock()
	if err := t.setDataLocked(data, offset); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()
	t.recompute()
	return nil
}

func (t *Table) setDataLocked(data []map[string]any, offset int) error {
	rows, err := FormatRows(data, t.cols, FormatOptions{
		PrimaryKey: t.opts.PrimaryKey,
		Offset:     offset,
		Location:   t.opts.Location,
	})
	if err != nil {
		return fmt.Errorf("format rows: %w", err)
	}
	t.raw, t.offset, t.rows = data, offset, rows
	return nil
}

// SetColumns replaces the column descriptors and reformats the rows.
func (t *Table) SetColumns(cols []domain.Column) error {
	idx, err := NewColumnIndex(cols)
	if err != nil {
		return err
	}
	t.mu.Lock()
	prev := t.cols
	t.cols = idx
	if err := t.setDataLocked(t.raw, t.offset); err != nil {
		t.cols = prev
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()
	t.recompute()
	return nil
}

// SetRemoteState records what the remote source reported and runs the
// passive resync of every data operation.
func (t *Table) SetRemoteState(rs RemoteState) {
	t.mu.Lock()
	t.remote = rs
	t.view.Sync()
	t.search.Sync()
	t.filter.Sync()
	t.sort.Sync()
	t.density.Sync()
	t.mu.Unlock()
}

// Columns returns the column descriptors.
func (t *Table) Columns() []domain.Column {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cols.Columns()
}

// ColumnIndex returns the current column index.
func (t *Table) ColumnIndex() *ColumnIndex {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cols
}

// Rows returns the visible rows: searched, filtered and sorted locally,
// or the current page as delivered in paginated mode.
func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// AllRows returns every formatted row regardless of data operations.
func (t *Table) AllRows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Paginated reports whether the rows are owned by a remote source.
func (t *Table) Paginated() bool {
	return t.opts.Paginated
}

func (t *Table) recompute() {
	t.mu.Lock()
	t.recomputeLocked()
	hook := t.opts.Hooks.OnRecompute
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (t *Table) recomputeLocked() {
	rows := t.rows
	if !t.opts.Paginated {
		searchCols := t.cols.SearchColumns(t.view.Applied().Columns, t.visibility)
		rows = SearchRows(rows, searchCols, deref(t.search.Applied()))
		rows = FilterRows(rows, t.filter.Applied(), t.cols)
		rows = SortRows(rows, t.sort.Applied(), t.cols)
	}
	t.visible = rows
	t.selector.InvalidateAnchor(rows)
}

// changed routes a data-operation change: in paginated mode it asks for a
// new page when anything is stale, otherwise it recomputes the visible
// rows. Throttled changes (keystrokes) go through the table's throttle.
// It reports whether a server request is needed.
func (t *Table) changed(throttled bool) bool {
	if !t.opts.Paginated {
		if throttled {
			t.throttle.Do(t.recompute)
		} else {
			t.recompute()
		}
		return false
	}

	t.mu.Lock()
	stale := t.staleLocked()
	t.mu.Unlock()
	if !stale {
		return false
	}
	if throttled {
		t.throttle.Do(t.requestServer)
	} else {
		t.requestServer()
	}
	return true
}

func (t *Table) requestServer() {
	t.mu.Lock()
	if !t.staleLocked() {
		t.mu.Unlock()
		return
	}
	req := t.serverQueryLocked()
	hook := t.opts.Hooks.OnServerRequest
	t.mu.Unlock()
	if hook != nil {
		hook(req)
	}
}

func (t *Table) staleLocked() bool {
	return t.search.IsServerValueStale() || t.filter.IsServerValueStale() ||
		t.sort.IsServerValueStale() || t.view.IsServerValueStale() ||
		t.searchColumnsStaleLocked()
}

// searchColumnsStaleLocked reports whether an active remote search ran
// over other columns than the ones now visible.
func (t *Table) searchColumnsStaleLocked() bool {
	if !t.opts.Paginated || t.search.Server() == nil {
		return false
	}
	return !slices.Equal(t.remote.SearchColumns, t.searchServerKeysLocked())
}

func (t *Table) searchServerKeysLocked() []string {
	return ServerKeys(t.cols.SearchColumns(t.view.Applied().Columns, t.visibility))
}

// IsStale reports whether any data operation has changes the remote source
// has not confirmed yet.
func (t *Table) IsStale() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.staleLocked()
}

// ServerQuery returns the first page request for the current server values.
func (t *Table) ServerQuery() domain.PageRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serverQueryLocked()
}

func (t *Table) serverQueryLocked() domain.PageRequest {
	req := domain.PageRequest{
		Offset:      0,
		Limit:       t.opts.PageSize,
		SearchQuery: t.search.Server(),
		SortBy:      t.sort.Server(),
		FilterBy:    t.filter.Server(),
		ViewBy:      t.view.Server(),
	}
	if req.SearchQuery != nil {
		req.SearchColumns = t.searchServerKeysLocked()
	}
	return req
}

// Flush runs any throttled recomputation immediately.
func (t *Table) Flush() {
	t.throttle.Flush()
}

// Close stops the throttle. Pending recomputations are dropped.
func (t *Table) Close() {
	t.throttle.Close()
}

// ── Search ─────────────────────────────────────────────────

func (t *Table) SearchState() SearchState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.search)
}

// SetSearch sets the search draft. Recomputation is throttled.
func (t *Table) SetSearch(query string) bool {
	t.mu.Lock()
	t.search.Set(query)
	t.mu.Unlock()
	return t.changed(true)
}

func (t *Table) ResetSearch() bool {
	t.mu.Lock()
	t.search.Reset()
	t.mu.Unlock()
	return t.changed(false)
}

func (t *Table) SetSearchEnabled(enabled bool) bool {
	t.mu.Lock()
	t.search.SetIsEnabled(enabled)
	t.mu.Unlock()
	return t.changed(false)
}

// ── Filter ─────────────────────────────────────────────────

func (t *Table) FilterState() FilterState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.filter)
}

// SetFilter replaces the filter draft.
func (t *Table) SetFilter(draft DraftNode) bool {
	t.mu.Lock()
	t.filter.Set(draft)
	t.mu.Unlock()
	return t.changed(false)
}

// EditFilter applies one editor operation to the current draft. Editor
// errors leave the draft untouched.
func (t *Table) EditFilter(edit func(root DraftNode, cols *ColumnIndex) (DraftNode, error)) (bool, error) {
	t.mu.Lock()
	next, err := edit(t.filter.Draft(), t.cols)
	if err != nil {
		t.mu.Unlock()
		return false, err
	}
	t.filter.Set(next)
	t.mu.Unlock()
	return t.changed(false), nil
}

// DiscardFilterEdits reloads the applied filter into the editor, dropping
// incomplete clauses and empty groups from the draft. The applied filter
// does not change.
func (t *Table) DiscardFilterEdits() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter.Set(DraftFromFilter(t.filter.Applied()))
}

func (t *Table) ResetFilter() bool {
	t.mu.Lock()
	t.filter.Reset()
	t.mu.Unlock()
	return t.changed(false)
}

func (t *Table) SetFilterEnabled(enabled bool) bool {
	t.mu.Lock()
	t.filter.SetIsEnabled(enabled)
	t.mu.Unlock()
	return t.changed(false)
}

// ── Sort ───────────────────────────────────────────────────

func (t *Table) SortState() SortState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.sort)
}

func (t *Table) SetSort(rules []domain.SortRule) bool {
	t.mu.Lock()
	t.sort.Set(rules)
	t.mu.Unlock()
	return t.changed(false)
}

func (t *Table) ResetSort() bool {
	t.mu.Lock()
	t.sort.Reset()
	t.mu.Unlock()
	return t.changed(false)
}

func (t *Table) SetSortEnabled(enabled bool) bool {
	t.mu.Lock()
	t.sort.SetIsEnabled(enabled)
	t.mu.Unlock()
	return t.changed(false)
}

// ── Views ──────────────────────────────────────────────────

func (t *Table) ViewState() ViewState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.view)
}

// Views returns the configured views.
func (t *Table) Views() []domain.View {
	return t.views.Views()
}

// SetView applies a view: its search, sort, filter, density and column
// overrides replace the live values.
func (t *Table) SetView(key string) bool {
	t.mu.Lock()
	t.view.Set(key)
	t.applyViewLocked()
	t.mu.Unlock()
	return t.changed(false)
}

// ResetView goes back to the default view.
func (t *Table) ResetView() bool {
	t.mu.Lock()
	t.view.Reset()
	t.applyViewLocked()
	t.mu.Unlock()
	return t.changed(false)
}

func (t *Table) applyViewLocked() {
	t.search.Reset()
	t.filter.Reset()
	t.sort.Reset()
	t.density.Reset()
	clear(t.visibility)
}

// ViewIsDirty reports whether the live values diverged from the applied view.
func (t *Table) ViewIsDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.view.Applied()
	if !searchEqual(t.search.Server(), v.SearchQuery) {
		return true
	}
	if !FiltersEqual(t.filter.Server(), FilterToServer(t.filterAppliedFromView(v), t.cols)) {
		return true
	}
	if !SortRulesEqual(t.sort.Server(), SortToServer(SortFromServer(v.SortBy, t.cols, t.opts.SortOption), t.cols)) {
		return true
	}
	if v.Density != nil && *v.Density != t.density.Server() {
		return true
	}
	return len(t.visibility) > 0
}

// filterAppliedFromView normalizes a view's filter the way the control
// would, so repaired operators do not count as edits.
func (t *Table) filterAppliedFromView(v domain.View) domain.FilterNode {
	d, err := FilterFromServer(v.FilterBy, t.cols)
	if err != nil {
		return nil
	}
	return ValidateFilter(d)
}

// ── Density ────────────────────────────────────────────────

func (t *Table) DensityState() DensityState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.density)
}

// SetDensity changes the row density. It never needs a server round trip.
func (t *Table) SetDensity(d domain.Density) error {
	if !d.Valid() {
		return fmt.Errorf("unknown density %q", d)
	}
	t.mu.Lock()
	t.density.Set(d)
	t.mu.Unlock()
	return nil
}

func (t *Table) ResetDensity() {
	t.mu.Lock()
	t.density.Reset()
	t.mu.Unlock()
}

// ── Columns ────────────────────────────────────────────────

// ColumnVisibility maps every data column id to whether it is shown:
// the column's Hidden flag, overridden by the applied view, overridden by
// SetColumnVisibility.
func (t *Table) ColumnVisibility() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visibilityLocked()
}

func (t *Table) visibilityLocked() map[string]bool {
	overrides := t.view.Applied().Columns
	out := make(map[string]bool, len(t.cols.Columns()))
	for _, c := range t.cols.DataColumns() {
		out[c.ID] = ColumnVisible(c, overrides, t.visibility)
	}
	return out
}

// SetColumnVisibility shows or hides one column.
func (t *Table) SetColumnVisibility(columnID string, visible bool) error {
	t.mu.Lock()
	if _, ok := t.cols.Get(columnID); !ok {
		t.mu.Unlock()
		return fmt.Errorf("unknown column %q", columnID)
	}
	t.visibility[columnID] = visible
	t.mu.Unlock()
	// Search only looks at visible columns.
	t.changed(false)
	return nil
}

// ResetColumnVisibility drops every SetColumnVisibility override.
func (t *Table) ResetColumnVisibility() {
	t.mu.Lock()
	clear(t.visibility)
	t.mu.Unlock()
	t.changed(false)
}

// ColumnPinning returns the ids pinned left and right. The selection
// column always leads the left side and the action column always ends the
// right side.
func (t *Table) ColumnPinning() (left, right []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	overrides := t.view.Applied().Columns
	left, right = []string{}, []string{}
	if _, ok := t.cols.Get(domain.SelectColumnID); ok {
		left = append(left, domain.SelectColumnID)
	}
	for _, c := range t.cols.DataColumns() {
		side := c.Pinned
		if o, ok := overrides[c.ID]; ok && o.Pinned != nil {
			side = *o.Pinned
		}
		switch side {
		case domain.PinnedLeft:
			left = append(left, c.ID)
		case domain.PinnedRight:
			right = append(right, c.ID)
		}
	}
	if _, ok := t.cols.Get(domain.ActionColumnID); ok {
		right = append(right, domain.ActionColumnID)
	}
	return left, right
}

// ── Selection ──────────────────────────────────────────────

// Selection returns a copy of the selection map.
func (t *Table) Selection() SelectionMap {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.selection)
}

// Anchor returns the shift-click anchor row id.
func (t *Table) Anchor() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selector.Anchor()
}

// Toggle clicks the visible row rowID, extending from the anchor when
// shift is set.
func (t *Table) Toggle(rowID string, shift bool) (SelectionMap, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := slices.IndexFunc(t.visible, func(r Row) bool { return r.ID() == rowID })
	if i < 0 {
		return maps.Clone(t.selection), fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	t.selection = t.selector.Toggle(true, DefaultToggle(t.opts.SelectMode), t.visible[i], shift, t.visible, t.selection)
	return maps.Clone(t.selection), nil
}

// SelectAllVisible selects every visible row.
func (t *Table) SelectAllVisible() SelectionMap {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.opts.SelectMode != domain.SelectMulti {
		return maps.Clone(t.selection)
	}
	t.selection = SelectAll(t.visible, t.selection)
	return maps.Clone(t.selection)
}

// ClearSelection deselects everything and forgets the anchor.
func (t *Table) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selection = SelectionMap{}
	t.selector.ClearAnchor()
}

// ── Export ─────────────────────────────────────────────────

// ExportCSV exports the visible rows with the current column visibility.
func (t *Table) ExportCSV(opts ExportOptions) CSVFile {
	t.mu.Lock()
	defer t.mu.Unlock()
	if opts.SelectedOnly && opts.Selection == nil {
		opts.Selection = t.selection
	}
	return ExportCSV(t.visible, t.cols.Columns(), t.visibilityLocked(), opts)
}
