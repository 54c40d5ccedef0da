package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridkit/internal/config"
	"gridkit/internal/logger"
	mcpserver "gridkit/internal/mcp"
	"gridkit/internal/secret"
	"gridkit/internal/service"
	"gridkit/internal/source"
	"gridkit/internal/storage"
)

const appModule = "app"

// App wires storage, services and the MCP server together.
type App struct {
	cfg *config.Config
	log logger.ILogger

	db          *storage.DB
	catalog     *service.CatalogService
	grids       *service.GridService
	connections *service.ConnectionService
	scheduler   *service.RefreshScheduler
	mcp         *mcpserver.Server
}

// New opens the database and builds every service.
func New(cfg *config.Config, log logger.ILogger) (*App, error) {
	db, err := storage.New(cfg.Storage.DBPath, cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Storage stores
	tableStore := storage.NewGridTableStore(db)
	connStore := storage.NewDBConnectionStore(db)

	notifier := mcpserver.NewNotifier()

	// Services
	connections := service.NewConnectionService(connStore, secret.NewEnvStore(), log)
	catalog := service.NewCatalogService(tableStore, notifier, log)
	grids := service.NewGridService(source.Env{
		Tables:      tableStore,
		Connections: connStore,
		Secret:      connections.Password,
		DataDir:     db.DataDir(),
		FetchLimit:  cfg.Grid.FetchLimit,
	}, service.GridOptions{
		PageSize:            cfg.Grid.PageSize,
		PaginationThreshold: cfg.Grid.PaginationThreshold,
		SearchThrottle:      cfg.Grid.SearchThrottle,
		PageCacheTTL:        cfg.Grid.PageCacheTTL,
	}, notifier, log)
	scheduler := service.NewRefreshScheduler(tableStore, grids, db.DataDir(), log)

	catalog.AddObserver(grids)
	catalog.AddObserver(scheduler)

	srv := mcpserver.New(mcpserver.Deps{
		Catalog:     catalog,
		Grids:       grids,
		Connections: connections,
		Log:         log,
	})
	notifier.Attach(srv)

	return &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		catalog:     catalog,
		grids:       grids,
		connections: connections,
		scheduler:   scheduler,
		mcp:         srv,
	}, nil
}

// Startup starts background refreshes.
func (a *App) Startup(ctx context.Context) {
	a.scheduler.Restart(ctx)
	a.log.Info(appModule, "started", map[string]any{
		"dataDir": a.cfg.Storage.DataDir,
		"db":      a.cfg.Storage.DBPath,
	})
}

// Shutdown stops schedules, waits for in-flight refreshes and closes
// every connection.
func (a *App) Shutdown(ctx context.Context) {
	a.scheduler.Stop()
	a.grids.CloseAll(ctx)
	a.connections.Close()
	if a.db != nil {
		a.db.Close()
	}
	a.log.Info(appModule, "stopped", nil)
}

// ServeMCP runs gridkit as an MCP server on stdin/stdout until the
// client disconnects or the process is interrupted.
func ServeMCP() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, found := config.Load()
	log := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer log.Sync()
	if !found {
		log.Debug(appModule, "no .env file, using environment", nil)
	}

	a, err := New(cfg, log)
	if err != nil {
		log.Error(appModule, "startup failed", map[string]any{"error": err.Error()})
		return err
	}
	a.Startup(ctx)
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		a.Shutdown(shutdownCtx)
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- a.mcp.ServeStdio() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			log.Error(appModule, "mcp server error", map[string]any{"error": err.Error()})
		}
		return err
	}
}
