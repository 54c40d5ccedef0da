package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridkit/internal/secret"
	"gridkit/internal/service"
	"gridkit/internal/source"
	"gridkit/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "grid.db"), filepath.Join(dir, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tables := storage.NewGridTableStore(db)
	notifier := NewNotifier()
	catalog := service.NewCatalogService(tables, notifier, nil)
	conns := service.NewConnectionService(storage.NewDBConnectionStore(db), secret.NewEnvStore(), nil)
	grids := service.NewGridService(source.Env{
		Tables:      tables,
		Connections: storage.NewDBConnectionStore(db),
		Secret:      conns.Password,
		DataDir:     db.DataDir(),
	}, service.GridOptions{}, notifier, nil)
	catalog.AddObserver(grids)
	t.Cleanup(func() {
		grids.CloseAll(context.Background())
		conns.Close()
	})

	s := New(Deps{Catalog: catalog, Grids: grids, Connections: conns})
	notifier.Attach(s)
	return s
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) string {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

const peopleRows = `[
	{"id":"p1","name":"Ada","age":36},
	{"id":"p2","name":"Grace","age":45},
	{"id":"p3","name":"Linus","age":28}
]`

// ─────────────────────────────────────────────────────────────
// Table tools
// ─────────────────────────────────────────────────────────────

func TestTableTools_CreateDescribeList(t *testing.T) {
	s := newTestServer(t)

	out := call(t, s.handleCreateTable, map[string]any{
		"name":       "people",
		"primaryKey": "id",
		"rows":       peopleRows,
		"views":      `[{"key":"senior","label":"Senior","sortBy":[{"key":"age","direction":"desc"}]}]`,
	})
	assert.Contains(t, out, `Created table "people"`)

	var tables []map[string]any
	require.NoError(t, json.Unmarshal([]byte(call(t, s.handleListTables, nil)), &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, "people", tables[0]["name"])
	assert.EqualValues(t, 3, tables[0]["rowCount"])

	var desc tableDescription
	require.NoError(t, json.Unmarshal([]byte(call(t, s.handleDescribeTable, map[string]any{"table": "people"})), &desc))
	require.Len(t, desc.Columns, 3)
	require.Len(t, desc.Views, 1)
	for _, c := range desc.Columns {
		assert.NotEmpty(t, c.Operators, c.ID)
	}

	_, err := s.handleCreateTable(context.Background(), mcp.CallToolRequest{})
	assert.Error(t, err, "name is required")
}

func TestTableTools_AddRowsAndBadJSON(t *testing.T) {
	s := newTestServer(t)
	call(t, s.handleCreateTable, map[string]any{"name": "people", "primaryKey": "id", "rows": peopleRows})

	out := call(t, s.handleAddRows, map[string]any{"table": "people", "rows": `[{"id":"p4","name":"Barbara","age":51}]`})
	assert.Contains(t, out, "Added 1 rows")

	var req mcp.CallToolRequest
	req.Params.Arguments = map[string]any{"table": "people", "rows": `[{"id":`}
	_, err := s.handleAddRows(context.Background(), req)
	assert.Error(t, err)

	req.Params.Arguments = map[string]any{"table": "people", "rows": `[{"id":"p1"}]`}
	_, err = s.handleAddRows(context.Background(), req)
	assert.Error(t, err, "duplicate primary key")
}

// ─────────────────────────────────────────────────────────────
// Grid tools
// ─────────────────────────────────────────────────────────────

type snapshotRows struct {
	Total int `json:"total"`
	Rows  []struct {
		ID string `json:"id"`
	} `json:"rows"`
}

func queryIDs(t *testing.T, s *Server) []string {
	t.Helper()
	var snap snapshotRows
	require.NoError(t, json.Unmarshal([]byte(call(t, s.handleQueryTable, map[string]any{"table": "people"})), &snap))
	ids := make([]string, len(snap.Rows))
	for i, r := range snap.Rows {
		ids[i] = r.ID
	}
	return ids
}

func TestGridTools_FilterSortSelectExport(t *testing.T) {
	s := newTestServer(t)
	call(t, s.handleCreateTable, map[string]any{"name": "people", "primaryKey": "id", "rows": peopleRows})

	assert.Equal(t, []string{"p1", "p2", "p3"}, queryIDs(t, s))

	var draft struct {
		Draft struct {
			ID      string `json:"id"`
			Filters []struct {
				ID string `json:"id"`
			} `json:"filters"`
		} `json:"draft"`
	}
	out := call(t, s.handleEditFilter, map[string]any{"table": "people", "op": service.FilterAddTopClause})
	require.NoError(t, json.Unmarshal([]byte(out), &draft))
	require.Len(t, draft.Draft.Filters, 1)
	path, _ := json.Marshal([]string{draft.Draft.ID, draft.Draft.Filters[0].ID})

	call(t, s.handleEditFilter, map[string]any{"table": "people", "op": service.FilterSetKey, "path": string(path), "key": "age"})
	call(t, s.handleEditFilter, map[string]any{"table": "people", "op": service.FilterSetOperator, "path": string(path), "operator": "greaterThan"})
	call(t, s.handleEditFilter, map[string]any{"table": "people", "op": service.FilterSetValue, "path": string(path), "value": "30"})
	assert.Equal(t, []string{"p1", "p2"}, queryIDs(t, s))

	call(t, s.handleSetSort, map[string]any{"table": "people", "sort": `[{"columnId":"age","descending":true}]`})
	assert.Equal(t, []string{"p2", "p1"}, queryIDs(t, s))

	call(t, s.handleToggleRow, map[string]any{"table": "people", "rowId": "p2"})
	out = call(t, s.handleToggleRow, map[string]any{"table": "people", "rowId": "p1", "shift": true})
	assert.Contains(t, out, `"count": 2`)

	var file struct {
		CSV string `json:"csv"`
	}
	require.NoError(t, json.Unmarshal([]byte(call(t, s.handleExportCSV, map[string]any{"table": "people", "selectedOnly": true})), &file))
	assert.Contains(t, file.CSV, "Grace")
	assert.NotContains(t, file.CSV, "Linus")

	call(t, s.handleResetFilter, map[string]any{"table": "people"})
	call(t, s.handleSetSort, map[string]any{"table": "people"})
	assert.Equal(t, []string{"p1", "p2", "p3"}, queryIDs(t, s))
}

func TestGridTools_SearchAndView(t *testing.T) {
	s := newTestServer(t)
	call(t, s.handleCreateTable, map[string]any{"name": "people", "primaryKey": "id", "rows": peopleRows})
	call(t, s.handleSaveView, map[string]any{
		"table": "people",
		"view":  `{"key":"young","label":"Young","filterBy":{"logicOperator":"and","filters":[{"key":"age","operator":"lessThan","value":40}]}}`,
	})

	call(t, s.handleSetView, map[string]any{"table": "people", "key": "young"})
	assert.Equal(t, []string{"p1", "p3"}, queryIDs(t, s))

	call(t, s.handleSetSearch, map[string]any{"table": "people", "query": "lin"})
	assert.Equal(t, []string{"p3"}, queryIDs(t, s))

	var req mcp.CallToolRequest
	req.Params.Arguments = map[string]any{"table": "people", "key": "missing"}
	_, err := s.handleSetView(context.Background(), req)
	assert.ErrorIs(t, err, service.ErrUnknownView)
}

func TestGridTools_ShiftToggleOnlyAdds(t *testing.T) {
	s := newTestServer(t)
	call(t, s.handleCreateTable, map[string]any{"name": "people", "primaryKey": "id", "rows": peopleRows})

	var sel struct {
		Selection map[string]bool `json:"selected"`
		Count     int             `json:"count"`
	}
	call(t, s.handleToggleRow, map[string]any{"table": "people", "rowId": "p1"})
	call(t, s.handleToggleRow, map[string]any{"table": "people", "rowId": "p3"})
	out := call(t, s.handleToggleRow, map[string]any{"table": "people", "rowId": "p1", "shift": true})
	require.NoError(t, json.Unmarshal([]byte(out), &sel))

	assert.Equal(t, 3, sel.Count, "selected rows in the range stay selected")
	for _, id := range []string{"p1", "p2", "p3"} {
		assert.True(t, sel.Selection[id], id)
	}
}

// ─────────────────────────────────────────────────────────────
// Resources
// ─────────────────────────────────────────────────────────────

func TestResources_TableRows(t *testing.T) {
	s := newTestServer(t)
	call(t, s.handleCreateTable, map[string]any{"name": "people", "primaryKey": "id", "rows": peopleRows})

	var req mcp.ReadResourceRequest
	req.Params.URI = "grid://table/people/rows"
	contents, err := s.handleTableRowsResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents).Text
	assert.Contains(t, text, `"total": 3`)

	req.Params.URI = "grid://tables"
	contents, err = s.handleTablesResource(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, "people")
}

func TestTableRefFromURI(t *testing.T) {
	tests := []struct {
		uri, suffix, want string
	}{
		{"grid://table/people/rows", "/rows", "people"},
		{"grid://table/abc-123/schema", "/schema", "abc-123"},
		{"grid://table/people/rows", "/schema", ""},
		{"file://table/people/rows", "/rows", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tableRefFromURI(tt.uri, tt.suffix), tt.uri)
	}
}

func TestNotifier_DetachedIsNoop(t *testing.T) {
	n := NewNotifier()
	assert.NotPanics(t, func() { n.Emit(context.Background(), service.EventRefreshed, nil) })
}
