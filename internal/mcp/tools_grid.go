package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"gridkit/internal/domain"
	"gridkit/internal/grid"
	"gridkit/internal/service"
)

func (s *Server) registerGridTools() {
	s.mcp.AddTool(mcp.NewTool("query_table",
		mcp.WithDescription("Open a table as a grid and return a window of its visible rows along with the grid state (search, filter, sort, view, selection)"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithNumber("offset", mcp.Description("First row to return (default 0)")),
		mcp.WithNumber("limit", mcp.Description("Rows to return (default page size)")),
	), s.handleQueryTable)

	s.mcp.AddTool(mcp.NewTool("set_search",
		mcp.WithDescription("Set the grid's global search query; empty clears it"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("query", mcp.Description("Search text")),
	), s.handleSetSearch)

	s.mcp.AddTool(mcp.NewTool("set_sort",
		mcp.WithDescription("Replace the grid's sort rules"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("sort", mcp.Description(`JSON array: [{"columnId":"age","descending":true}]; empty clears sorting`)),
	), s.handleSetSort)

	s.mcp.AddTool(mcp.NewTool("edit_filter",
		mcp.WithDescription("Apply one filter editor operation and return the new filter draft. Ops: add_top_clause, add_top_group, add_clause, add_group, remove, set_key, set_operator, set_value, set_logic, discard. The draft is applied once every clause is complete; discard drops incomplete edits and reloads the applied filter."),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("op", mcp.Description("Editor operation"), mcp.Required()),
		mcp.WithString("path", mcp.Description(`JSON array of node ids from the root group to the target node`)),
		mcp.WithString("key", mcp.Description("Column id (set_key)")),
		mcp.WithString("operator", mcp.Description("Filter operator (set_operator)")),
		mcp.WithString("value", mcp.Description("JSON value (set_value)")),
		mcp.WithString("logic", mcp.Description("and | or (set_logic)")),
	), s.handleEditFilter)

	s.mcp.AddTool(mcp.NewTool("reset_filter",
		mcp.WithDescription("Restore the filter of the current view"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
	), s.handleResetFilter)

	s.mcp.AddTool(mcp.NewTool("set_view",
		mcp.WithDescription("Apply a saved view by key; empty key returns to the default view"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("key", mcp.Description("View key")),
	), s.handleSetView)

	s.mcp.AddTool(mcp.NewTool("set_density",
		mcp.WithDescription("Set row density: compact, standard or comfortable"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("density", mcp.Description("Density"), mcp.Required()),
	), s.handleSetDensity)

	s.mcp.AddTool(mcp.NewTool("set_column_visibility",
		mcp.WithDescription("Show or hide a column"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("columnId", mcp.Description("Column id"), mcp.Required()),
		mcp.WithBoolean("visible", mcp.Description("Whether the column is shown"), mcp.Required()),
	), s.handleSetColumnVisibility)

	s.mcp.AddTool(mcp.NewTool("toggle_row",
		mcp.WithDescription("Toggle selection of a visible row. With shift, every visible row between the anchor (the last row selected without shift) and this one is added to the selection; nothing is deselected."),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithString("rowId", mcp.Description("Row id as returned by query_table"), mcp.Required()),
		mcp.WithBoolean("shift", mcp.Description("Add the range from the anchor row")),
	), s.handleToggleRow)

	s.mcp.AddTool(mcp.NewTool("clear_selection",
		mcp.WithDescription("Deselect every row"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
	), s.handleClearSelection)

	s.mcp.AddTool(mcp.NewTool("export_csv",
		mcp.WithDescription("Export the visible rows as CSV"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
		mcp.WithBoolean("selectedOnly", mcp.Description("Export only selected rows")),
		mcp.WithBoolean("includeHidden", mcp.Description("Include hidden columns")),
		mcp.WithNumber("maxChars", mcp.Description("Truncate the returned CSV (default: no limit)")),
	), s.handleExportCSV)

	s.mcp.AddTool(mcp.NewTool("refresh_table",
		mcp.WithDescription("Reload an open grid from its source"),
		mcp.WithString("table", mcp.Description("Table ID or name"), mcp.Required()),
	), s.handleRefreshTable)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleQueryTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	args := req.GetArguments()
	snap, err := s.grids.Query(ctx, ref, getInt(args, "offset", 0), getInt(args, "limit", 0))
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return jsonResult(snap)
}

func (s *Server) handleSetSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	q := req.GetString("query", "")
	if err := s.grids.SetSearch(ctx, ref, q); err != nil {
		return nil, err
	}
	if q == "" {
		return textResult("Search cleared"), nil
	}
	return textResult(fmt.Sprintf("Searching for %q", q)), nil
}

func (s *Server) handleSetSort(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	var rules []domain.SortRule
	if err := parseJSON(req.GetString("sort", ""), &rules); err != nil {
		return nil, fmt.Errorf("invalid sort: %w", err)
	}
	if err := s.grids.SetSort(ctx, ref, rules); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Sorting by %d rule(s)", len(rules))), nil
}

func (s *Server) handleEditFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	edit := service.FilterEdit{
		Op:       req.GetString("op", ""),
		Key:      req.GetString("key", ""),
		Operator: domain.Operator(req.GetString("operator", "")),
		Logic:    domain.LogicOperator(req.GetString("logic", "")),
	}
	if err := parseJSON(req.GetString("path", ""), &edit.Path); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if raw := req.GetString("value", ""); raw != "" {
		if err := parseJSON(raw, &edit.Value); err != nil {
			// Bare words are taken as strings.
			edit.Value = raw
		}
	}

	draft, err := s.grids.EditFilter(ctx, ref, edit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", edit.Op, err)
	}
	return jsonResult(map[string]any{"draft": draft})
}

func (s *Server) handleResetFilter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	if err := s.grids.ResetFilter(ctx, ref); err != nil {
		return nil, err
	}
	return textResult("Filter reset"), nil
}

func (s *Server) handleSetView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	key := req.GetString("key", "")
	if err := s.grids.SetView(ctx, ref, key); err != nil {
		return nil, err
	}
	if key == "" {
		return textResult("Default view applied"), nil
	}
	return textResult(fmt.Sprintf("View %q applied", key)), nil
}

func (s *Server) handleSetDensity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	d := domain.Density(req.GetString("density", ""))
	if err := s.grids.SetDensity(ctx, ref, d); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Density set to %s", d)), nil
}

func (s *Server) handleSetColumnVisibility(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	col := req.GetString("columnId", "")
	visible := req.GetBool("visible", true)
	if err := s.grids.SetColumnVisibility(ctx, ref, col, visible); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Column %q visible: %t", col, visible)), nil
}

func (s *Server) handleToggleRow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	rowID := req.GetString("rowId", "")
	if rowID == "" {
		return nil, fmt.Errorf("rowId is required")
	}
	sel, err := s.grids.Toggle(ctx, ref, rowID, req.GetBool("shift", false))
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"selected": sel, "count": len(sel)})
}

func (s *Server) handleClearSelection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	if err := s.grids.ClearSelection(ctx, ref); err != nil {
		return nil, err
	}
	return textResult("Selection cleared"), nil
}

func (s *Server) handleExportCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	file, err := s.grids.ExportCSV(ctx, ref, grid.ExportOptions{
		SelectedOnly:  req.GetBool("selectedOnly", false),
		IncludeHidden: req.GetBool("includeHidden", false),
	})
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	content := string(file.Content)
	if n := getInt(req.GetArguments(), "maxChars", 0); n > 0 {
		content = truncate(content, n)
	}
	return jsonResult(map[string]any{
		"filename":    file.Filename,
		"contentType": file.ContentType,
		"csv":         content,
	})
}

func (s *Server) handleRefreshTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := requireTable(req)
	if err != nil {
		return nil, err
	}
	id, err := s.grids.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.grids.Refresh(ctx, id); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return textResult("Table refreshed"), nil
}
