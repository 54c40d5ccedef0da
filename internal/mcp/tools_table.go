package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
	"gridkit/internal/service"
	"gridkit/internal/source"
)

func (s *Server) registerTableTools() {
	s.mcp.AddTool(mcp.NewTool("list_tables",
		mcp.WithDescription("List all stored tables with their source type and row count"),
	), s.handleListTables)

	s.mcp.AddTool(mcp.NewTool("create_table",
		mcp.WithDescription("Create a table. Local tables store rows; csv_file, json_file and database tables read them from a source. Columns are inferred from the data when omitted."),
		mcp.WithString("name", mcp.Description("Unique table name"), mcp.Required()),
		mcp.WithString("primaryKey", mcp.Description("Row field used as row id (optional)")),
		mcp.WithString("sourceType", mcp.Description("local (default), csv_file, json_file or database")),
		mcp.WithString("sourceConfig", mcp.Description(`JSON source settings, e.g. {"filePath":"stock.csv"} or {"connectionId":"...","table":"orders"}`)),
		mcp.WithString("columns", mcp.Description(`JSON array of columns: [{"id":"age","label":"Age","format":"number"}]`)),
		mcp.WithString("views", mcp.Description(`JSON array of saved views: [{"key":"young","label":"Young","sortBy":[{"key":"age","direction":"asc"}]}]`)),
		mcp.WithString("rows", mcp.Description("JSON array of row objects (local tables only)")),
		mcp.WithString("refreshCron", mcp.Description("Cron expression for scheduled refresh (optional)")),
	), s.handleCreateTable)

	s.mcp.AddTool(mcp.NewTool("describe_table",
		mcp.WithDescription("Show a table's columns, the filter operators each column accepts, its saved views and its source"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
	), s.handleDescribeTable)

	s.mcp.AddTool(mcp.NewTool("delete_table",
		mcp.WithDescription("Delete a table and its stored rows"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteTable)

	s.mcp.AddTool(mcp.NewTool("add_rows",
		mcp.WithDescription("Append rows to a local table"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("rows", mcp.Description("JSON array of row objects"), mcp.Required()),
	), s.handleAddRows)

	s.mcp.AddTool(mcp.NewTool("update_row",
		mcp.WithDescription("Replace the data of a stored row"),
		mcp.WithString("rowId", mcp.Description("Stored row ID"), mcp.Required()),
		mcp.WithString("data", mcp.Description("JSON object with the new row data"), mcp.Required()),
	), s.handleUpdateRow)

	s.mcp.AddTool(mcp.NewTool("delete_row",
		mcp.WithDescription("Delete a stored row"),
		mcp.WithString("rowId", mcp.Description("Stored row ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteRow)

	s.mcp.AddTool(mcp.NewTool("save_view",
		mcp.WithDescription("Create or replace a saved view, matched by key"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("view", mcp.Description(`JSON view: {"key":"big","label":"Big","filterBy":{...},"sortBy":[...],"searchQuery":"..."}`), mcp.Required()),
	), s.handleSaveView)

	s.mcp.AddTool(mcp.NewTool("delete_view",
		mcp.WithDescription("Remove a saved view"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("key", mcp.Description("View key"), mcp.Required()),
	), s.handleDeleteView)

	s.mcp.AddTool(mcp.NewTool("set_refresh_schedule",
		mcp.WithDescription("Set or clear the cron schedule that refreshes a table from its source"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("cron", mcp.Description("Cron expression, empty to clear")),
	), s.handleSetRefreshSchedule)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListTables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tables, err := s.catalog.ListTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	type tableSummary struct {
		ID          string            `json:"id"`
		Name        string            `json:"name"`
		SourceType  domain.SourceType `json:"sourceType"`
		RowCount    int               `json:"rowCount,omitempty"`
		RefreshCron string            `json:"refreshCron,omitempty"`
	}
	out := make([]tableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableSummary{
			ID:          t.ID,
			Name:        t.Name,
			SourceType:  t.SourceType,
			RowCount:    t.RowCount,
			RefreshCron: t.RefreshCron,
		})
	}
	return jsonResult(out)
}

func (s *Server) handleCreateTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := service.CreateTableInput{
		Name:        req.GetString("name", ""),
		PrimaryKey:  req.GetString("primaryKey", ""),
		SourceType:  domain.SourceType(req.GetString("sourceType", "")),
		RefreshCron: req.GetString("refreshCron", ""),
	}
	if err := parseJSON(req.GetString("sourceConfig", ""), &input.SourceConfig); err != nil {
		return nil, fmt.Errorf("invalid sourceConfig: %w", err)
	}
	if err := parseJSON(req.GetString("columns", ""), &input.Columns); err != nil {
		return nil, fmt.Errorf("invalid columns: %w", err)
	}
	if err := parseJSON(req.GetString("views", ""), &input.Views); err != nil {
		return nil, fmt.Errorf("invalid views: %w", err)
	}
	if err := parseJSON(req.GetString("rows", ""), &input.Rows); err != nil {
		return nil, fmt.Errorf("invalid rows: %w", err)
	}

	t, err := s.catalog.CreateTable(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return textResult(fmt.Sprintf("Created table %q (id: %s, %d rows)", t.Name, t.ID, len(input.Rows))), nil
}

type columnInfo struct {
	domain.Column
	Operators []domain.Operator `json:"operators"`
}

type tableDescription struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	PrimaryKey   string            `json:"primaryKey,omitempty"`
	SourceType   domain.SourceType `json:"sourceType"`
	SourceConfig source.Config     `json:"sourceConfig"`
	RefreshCron  string            `json:"refreshCron,omitempty"`
	Columns      []columnInfo      `json:"columns"`
	Views        []domain.View     `json:"views"`
}

func (s *Server) describe(ref string) (*tableDescription, error) {
	t, err := s.catalog.ResolveTable(ref)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", ref, err)
	}
	cols, err := source.DeclaredColumns(t)
	if err != nil {
		return nil, err
	}
	views, err := service.TableViews(t)
	if err != nil {
		return nil, err
	}
	cfg, err := source.ParseConfig(t.SourceConfig)
	if err != nil {
		return nil, err
	}

	desc := &tableDescription{
		ID:           t.ID,
		Name:         t.Name,
		PrimaryKey:   t.PrimaryKey,
		SourceType:   t.SourceType,
		SourceConfig: cfg,
		RefreshCron:  t.RefreshCron,
		Views:        views,
	}
	for _, c := range cols {
		desc.Columns = append(desc.Columns, columnInfo{Column: c, Operators: grid.ValidOperators(c.Format)})
	}
	return desc, nil
}

func (s *Server) handleDescribeTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	desc, err := s.describe(ref)
	if err != nil {
		return nil, err
	}
	return jsonResult(desc)
}

func (s *Server) handleDeleteTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	t, err := s.catalog.ResolveTable(ref)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", ref, err)
	}
	if err := s.catalog.DeleteTable(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("delete table: %w", err)
	}
	return textResult(fmt.Sprintf("Deleted table %q", t.Name)), nil
}

func (s *Server) handleAddRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := parseJSON(req.GetString("rows", ""), &rows); err != nil {
		return nil, fmt.Errorf("invalid rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rows is required")
	}
	t, err := s.catalog.ResolveTable(ref)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", ref, err)
	}
	created, err := s.catalog.AddRows(ctx, t.ID, rows)
	if err != nil {
		return nil, fmt.Errorf("add rows: %w", err)
	}
	return textResult(fmt.Sprintf("Added %d rows to %q", len(created), t.Name)), nil
}

func (s *Server) handleUpdateRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rowID := req.GetString("rowId", "")
	if rowID == "" {
		return nil, fmt.Errorf("rowId is required")
	}
	var data map[string]any
	if err := parseJSON(req.GetString("data", ""), &data); err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	if err := s.catalog.UpdateRow(ctx, rowID, data); err != nil {
		return nil, fmt.Errorf("update row: %w", err)
	}
	return textResult("Row updated"), nil
}

func (s *Server) handleDeleteRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rowID := req.GetString("rowId", "")
	if rowID == "" {
		return nil, fmt.Errorf("rowId is required")
	}
	if err := s.catalog.DeleteRow(ctx, rowID); err != nil {
		return nil, fmt.Errorf("delete row: %w", err)
	}
	return textResult("Row deleted"), nil
}

func (s *Server) handleSaveView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	var v domain.View
	if err := parseJSON(req.GetString("view", ""), &v); err != nil {
		return nil, fmt.Errorf("invalid view: %w", err)
	}
	t, err := s.catalog.ResolveTable(ref)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", ref, err)
	}
	if err := s.catalog.SaveView(ctx, t.ID, v); err != nil {
		return nil, fmt.Errorf("save view: %w", err)
	}
	return textResult(fmt.Sprintf("Saved view %q on %q", v.Key, t.Name)), nil
}

func (s *Server) handleDeleteView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	t, err := s.catalog.ResolveTable(ref)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", ref, err)
	}
	key := req.GetString("key", "")
	if err := s.catalog.DeleteView(ctx, t.ID, key); err != nil {
		return nil, fmt.Errorf("delete view: %w", err)
	}
	return textResult(fmt.Sprintf("Deleted view %q", key)), nil
}

func (s *Server) handleSetRefreshSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	t, err := s.catalog.ResolveTable(ref)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", ref, err)
	}
	expr := req.GetString("cron", "")
	if err := s.catalog.SetRefreshCron(ctx, t.ID, expr); err != nil {
		return nil, fmt.Errorf("set schedule: %w", err)
	}
	if expr == "" {
		return textResult(fmt.Sprintf("Cleared refresh schedule of %q", t.Name)), nil
	}
	return textResult(fmt.Sprintf("%q refreshes on %q", t.Name, expr)), nil
}
