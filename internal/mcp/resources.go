package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	tablesURI      = "grid://tables"
	tableURIPrefix = "grid://table/"
)

func (s *Server) registerResources() {
	// ── grid://tables ──────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		tablesURI,
		"All Tables",
		mcp.WithMIMEType("application/json"),
	), s.handleTablesResource)

	// ── grid://table/{table}/schema ────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"grid://table/{table}/schema",
			"Table Schema",
		),
		s.handleTableSchemaResource,
	)

	// ── grid://table/{table}/rows ──────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"grid://table/{table}/rows",
			"First Page of a Table",
		),
		s.handleTableRowsResource,
	)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleTablesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	tables, err := s.catalog.ListTables()
	if err != nil {
		return nil, err
	}

	type tableSummary struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Source   string `json:"source"`
		RowCount int    `json:"rowCount,omitempty"`
	}

	summaries := make([]tableSummary, 0, len(tables))
	for _, t := range tables {
		summaries = append(summaries, tableSummary{ID: t.ID, Name: t.Name, Source: string(t.SourceType), RowCount: t.RowCount})
	}
	return jsonContents(tablesURI, summaries)
}

func (s *Server) handleTableSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	ref := tableRefFromURI(uri, "/schema")
	if ref == "" {
		return nil, fmt.Errorf("could not extract table from URI: %s", uri)
	}
	desc, err := s.describe(ref)
	if err != nil {
		return nil, err
	}
	return jsonContents(uri, desc)
}

func (s *Server) handleTableRowsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	ref := tableRefFromURI(uri, "/rows")
	if ref == "" {
		return nil, fmt.Errorf("could not extract table from URI: %s", uri)
	}
	snap, err := s.grids.Query(ctx, ref, 0, 0)
	if err != nil {
		return nil, err
	}
	return jsonContents(uri, snap)
}

// tableRefFromURI extracts the table from "grid://table/{table}<suffix>".
func tableRefFromURI(uri, suffix string) string {
	if !strings.HasPrefix(uri, tableURIPrefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(uri, tableURIPrefix), suffix)
}
