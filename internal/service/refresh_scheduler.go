package service

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"gridkit/internal/domain"
	"gridkit/internal/logger"
	"gridkit/internal/source"
)

const schedulerModule = "refresh"

// FileDebounce is how long a watched file must stay quiet before its
// table is refreshed.
const FileDebounce = 500 * time.Millisecond

// Refresher reloads one table from its source.
type Refresher interface {
	Refresh(ctx context.Context, tableID string) error
}

// ─────────────────────────────────────────────────────────────
// Refresh Scheduler: cron schedules and file watches
// ─────────────────────────────────────────────────────────────

// RefreshScheduler refreshes tables on their RefreshCron schedule and
// whenever the file behind a CSV or JSON table changes.
type RefreshScheduler struct {
	store     domain.GridTableStore
	refresher Refresher
	dataDir   string
	debounce  time.Duration
	log       logger.ILogger

	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
	watched     map[string]string // abs file path -> table id
}

// NewRefreshScheduler creates a scheduler. dataDir anchors relative file
// paths, as it does for file sources.
func NewRefreshScheduler(store domain.GridTableStore, refresher Refresher, dataDir string, log logger.ILogger) *RefreshScheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &RefreshScheduler{
		store:     store,
		refresher: refresher,
		dataDir:   dataDir,
		debounce:  FileDebounce,
		log:       log,
	}
}

// Restart tears down the current schedules and watches and rebuilds them
// from the stored tables.
func (s *RefreshScheduler) Restart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	tables, err := s.store.ListTables()
	if err != nil {
		s.log.Error(schedulerModule, "failed to list tables", map[string]any{"error": err.Error()})
		return
	}

	// ── Cron schedules ──
	scheduled := 0
	c := cron.New()
	for _, t := range tables {
		if t.RefreshCron == "" {
			continue
		}
		id, name := t.ID, t.Name
		_, err := c.AddFunc(t.RefreshCron, func() {
			s.log.Debug(schedulerModule, "scheduled refresh", map[string]any{"tableId": id, "name": name})
			s.refresh(ctx, id)
		})
		if err != nil {
			s.log.Warn(schedulerModule, "invalid refresh schedule", map[string]any{
				"tableId": id, "expr": t.RefreshCron, "error": err.Error(),
			})
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		c.Start()
		s.cronSched = c
		s.log.Info(schedulerModule, "refresh schedules started", map[string]any{"count": scheduled})
	}

	// ── File watches ──
	pathToTable := make(map[string]string)
	for _, t := range tables {
		if t.SourceType != domain.SourceCSVFile && t.SourceType != domain.SourceJSONFile {
			continue
		}
		cfg, err := source.ParseConfig(t.SourceConfig)
		if err != nil || cfg.FilePath == "" {
			continue
		}
		abs, err := filepath.Abs(source.ResolvePath(cfg.FilePath, s.dataDir))
		if err != nil {
			s.log.Warn(schedulerModule, "bad file path", map[string]any{"tableId": t.ID, "path": cfg.FilePath})
			continue
		}
		pathToTable[abs] = t.ID
	}
	s.watched = pathToTable
	if len(pathToTable) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Error(schedulerModule, "failed to create watcher", map[string]any{"error": err.Error()})
		return
	}
	s.watcher = watcher

	// Editors often replace files, so the parent directory is watched.
	watchedDirs := make(map[string]bool)
	for path := range pathToTable {
		dir := filepath.Dir(path)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.log.Warn(schedulerModule, "failed to watch dir", map[string]any{"dir": dir, "error": err.Error()})
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	go s.watch(watchCtx, watcher, pathToTable)

	s.log.Info(schedulerModule, "watching files", map[string]any{"count": len(pathToTable)})
}

func (s *RefreshScheduler) watch(ctx context.Context, watcher *fsnotify.Watcher, pathToTable map[string]string) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			tableID, ok := pathToTable[abs]
			if !ok {
				continue
			}
			if t, exists := timers[tableID]; exists {
				t.Stop()
			}
			timers[tableID] = time.AfterFunc(s.debounce, func() {
				s.log.Debug(schedulerModule, "file changed", map[string]any{"tableId": tableID, "path": abs})
				s.refresh(ctx, tableID)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn(schedulerModule, "watcher error", map[string]any{"error": err.Error()})
		}
	}
}

func (s *RefreshScheduler) refresh(ctx context.Context, tableID string) {
	if ctx.Err() != nil {
		return
	}
	if err := s.refresher.Refresh(ctx, tableID); err != nil {
		s.log.Warn(schedulerModule, "refresh failed", map[string]any{"tableId": tableID, "error": err.Error()})
	}
}

// WatchedFiles returns the watched file paths and their table ids.
func (s *RefreshScheduler) WatchedFiles() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.watched))
	for k, v := range s.watched {
		out[k] = v
	}
	return out
}

// TableChanged rebuilds schedules and watches. Schedule edits are not
// structural for open grids, so every change triggers a rebuild.
func (s *RefreshScheduler) TableChanged(ctx context.Context, _ string, _ bool) {
	s.Restart(context.WithoutCancel(ctx))
}

// Stop tears down every schedule and watch.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *RefreshScheduler) stopLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
	s.watched = nil
}

var _ TableObserver = (*RefreshScheduler)(nil)
