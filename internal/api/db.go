package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/db"
)

// DBHandler exposes the feature catalog to SQL.
type DBHandler struct {
	catalog *db.Catalog
}

// NewDBHandler creates a new database handler.
func NewDBHandler(catalog *db.Catalog) *DBHandler {
	return &DBHandler{catalog: catalog}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("catalog"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("catalog"))
}

type TablesBody struct {
	Tables []string `json:"tables" doc:"List of table names"`
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.catalog == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	tables, err := h.catalog.Tables(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"A single read-only SQL query; semicolons are only allowed at the end" example:"SELECT layer_name, count(*) FROM features GROUP BY 1"`
		Limit int    `json:"limit,omitempty" minimum:"1" maximum:"10000" default:"1000" doc:"Maximum rows returned"`
	}
}

type QueryBody struct {
	Columns   []string         `json:"columns" doc:"Column names"`
	Rows      []map[string]any `json:"rows" doc:"Query results"`
	Count     int              `json:"count" doc:"Number of rows returned"`
	Truncated bool             `json:"truncated" doc:"Whether rows were cut at the limit"`
}

// Query executes a read-only SQL query against the catalog.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*struct{ Body QueryBody }, error) {
	if h.catalog == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	res, err := h.catalog.Query(ctx, input.Body.Query, input.Body.Limit)
	if errors.Is(err, db.ErrNotQuery) {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	body := QueryBody{
		Columns:   res.Columns,
		Rows:      res.Rows,
		Count:     len(res.Rows),
		Truncated: res.Truncated,
	}
	return &struct{ Body QueryBody }{Body: body}, nil
}
