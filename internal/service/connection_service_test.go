package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridkit/internal/domain"
	"gridkit/internal/secret"
	"gridkit/internal/service"
	"gridkit/internal/source"
	"gridkit/internal/storage"
)

// seedOrders writes a small SQLite database to stand in for an external one.
func seedOrders(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, item TEXT, qty INTEGER)`,
		`INSERT INTO orders (id, item, qty) VALUES (1, 'bolt', 40), (2, 'nut', 15), (3, 'washer', 90)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func TestConnectionService_CRUDAndSecrets(t *testing.T) {
	db := openDB(t)
	secrets := secret.NewEnvStore()
	svc := service.NewConnectionService(storage.NewDBConnectionStore(db), secrets, nil)
	t.Cleanup(svc.Close)

	conn, err := svc.CreateConnection(service.ConnectionInput{
		Name: "warehouse", Driver: "postgres", Host: "db.internal", Port: 5432,
		Database: "stock", Username: "reader", Password: "s3cret",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", svc.Password(conn.ID))

	t.Setenv(secret.EnvKey("other"), "from-env")
	assert.Equal(t, "from-env", svc.Password("other"))

	_, err = svc.CreateConnection(service.ConnectionInput{Name: "bad", Driver: "oracle", Host: "x"})
	assert.Error(t, err, "unsupported driver")

	require.NoError(t, svc.UpdateConnection(conn.ID, service.ConnectionInput{
		Name: "warehouse-ro", Driver: "postgres", Host: "db.internal", Port: 5433,
	}))
	got, err := svc.GetConnection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "warehouse-ro", got.Name)
	assert.Equal(t, 5433, got.Port)

	require.NoError(t, svc.DeleteConnection(conn.ID))
	conns, err := svc.ListConnections()
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestConnectionService_SQLiteIntrospectAndGrid(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	connStore := storage.NewDBConnectionStore(db)
	tables := storage.NewGridTableStore(db)
	conns := service.NewConnectionService(connStore, secret.NewEnvStore(), nil)
	t.Cleanup(conns.Close)

	conn, err := conns.CreateConnection(service.ConnectionInput{
		Name: "shop", Driver: "sqlite", Host: seedOrders(t),
	})
	require.NoError(t, err)
	require.NoError(t, conns.TestConnection(ctx, conn.ID))

	schema, err := conns.Introspect(ctx, conn.ID)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "orders", schema.Tables[0].Name)

	catalog := service.NewCatalogService(tables, nil, nil)
	grids := service.NewGridService(source.Env{
		Tables:      tables,
		Connections: connStore,
		Secret:      conns.Password,
		DataDir:     db.DataDir(),
	}, service.GridOptions{}, nil, nil)
	catalog.AddObserver(grids)
	t.Cleanup(func() { grids.CloseAll(ctx) })

	_, err = catalog.CreateTable(ctx, service.CreateTableInput{
		Name:         "orders",
		SourceType:   domain.SourceDatabase,
		SourceConfig: source.Config{ConnectionID: conn.ID, Table: "orders"},
	})
	require.NoError(t, err)

	snap, err := grids.Query(ctx, "orders", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Total)

	require.NoError(t, grids.SetSearch(ctx, "orders", "wash"))
	snap, err = grids.Query(ctx, "orders", 0, 0)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "washer", snap.Rows[0].Data["item"])
}
