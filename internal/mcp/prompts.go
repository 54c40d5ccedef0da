package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("explore_table",
		mcp.WithPromptDescription("Walk through a table: schema, a first page, then searches and filters that answer a question"),
		mcp.WithArgument("table",
			mcp.ArgumentDescription("Table ID or name"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("question",
			mcp.ArgumentDescription("What you want to learn from the data"),
			mcp.RequiredArgument(),
		),
	), s.handleExploreTablePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("build_view",
		mcp.WithPromptDescription("Design a saved view (filter, sort, visible columns) for a table"),
		mcp.WithArgument("table",
			mcp.ArgumentDescription("Table ID or name"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the view should show"),
			mcp.RequiredArgument(),
		),
	), s.handleBuildViewPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("import_file",
		mcp.WithPromptDescription("Turn a CSV or JSON file into a watched table"),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("File path, absolute or relative to the data directory"),
			mcp.RequiredArgument(),
		),
	), s.handleImportFilePrompt)
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: text},
			},
		},
	}
}

func (s *Server) handleExploreTablePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	table := req.Params.Arguments["table"]
	question := req.Params.Arguments["question"]
	return userPrompt(fmt.Sprintf("Explore %s", table), fmt.Sprintf(`Answer this question using the table "%s": %s

1. Call describe_table to learn the columns and which filter operators each accepts
2. Call query_table with a small limit to see what the data looks like
3. Narrow the rows with set_search, or build a filter with edit_filter:
   add_top_clause, then set_key, set_operator and set_value on the new clause's path
4. Order the result with set_sort and read it back with query_table
5. If the answer is worth keeping, save it with save_view

Call reset_filter and set_view with an empty key when you are done.`, table, question)), nil
}

func (s *Server) handleBuildViewPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	table := req.Params.Arguments["table"]
	goal := req.Params.Arguments["goal"]
	return userPrompt(fmt.Sprintf("Build a view for %s", table), fmt.Sprintf(`Create a saved view on "%s" that shows: %s

1. Call describe_table and check the existing views so the new key is unique
2. Try the filter and sort live with edit_filter and set_sort, checking rows with query_table
3. Save it with save_view. A view holds key, label, searchQuery, filterBy
   (a group {"logicOperator":"and","filters":[{"key":...,"operator":...,"value":...}]}),
   sortBy ([{"key":...,"direction":"asc"|"desc"}]) and per-column overrides
4. Apply it with set_view and confirm with query_table that viewDirty is false`, table, goal)), nil
}

func (s *Server) handleImportFilePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	path := req.Params.Arguments["path"]
	return userPrompt(fmt.Sprintf("Import %s", path), fmt.Sprintf(`Create a table backed by the file "%s":

1. Use sourceType csv_file for .csv files and json_file for .json files
2. Call create_table with sourceConfig {"filePath": "%s"}; columns are inferred when omitted
3. Call query_table to check the inferred columns and first rows
4. Edits to the file refresh the table automatically. Add a refreshCron only if the file is replaced by another process without write events`, path, path)), nil
}
