// Package db mirrors the features of the map session into DuckDB so they
// can be queried with SQL.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// Table is the name of the feature table.
const Table = "features"

const schema = `CREATE TABLE IF NOT EXISTS features (
	layer_id   VARCHAR NOT NULL,
	layer_name VARCHAR NOT NULL,
	name       VARCHAR,
	kind       VARCHAR NOT NULL,
	wkt        VARCHAR NOT NULL,
	lon        DOUBLE,
	lat        DOUBLE
)`

// Queries reach the database from HTTP clients. The database is in-memory,
// and once the feature table exists file and network access are switched
// off and the configuration is locked.
var lockdown = []string{
	"SET disabled_filesystems = 'LocalFileSystem'",
	"SET enable_external_access = false",
	"SET lock_configuration = true",
}

// ErrNotQuery is returned by Query for anything but a single query expression.
var ErrNotQuery = errors.New("only a single SELECT query is allowed")

// Config holds database configuration.
type Config struct {
	// Project converts stored geometries to WGS84. Nil means they already are.
	Project orb.Projection
}

// Layer is one layer's worth of features to index.
type Layer struct {
	ID       string
	Name     string
	Features []*geojson.Feature
}

// Catalog is the feature table and its connection.
type Catalog struct {
	db      *sql.DB
	project orb.Projection
	mu      sync.Mutex
}

// Open creates an in-memory DuckDB database holding the feature table.
func Open(ctx context.Context, cfg Config) (*Catalog, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create %s: %w", Table, err)
	}
	for _, stmt := range lockdown {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return &Catalog{db: conn, project: cfg.Project}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// index replaces the rows of one layer.
func (c *Catalog) index(ctx context.Context, l Layer) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM features WHERE layer_id = ?", l.ID); err != nil {
		return fmt.Errorf("index %s: %w", l.Name, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO features (layer_id, layer_name, name, kind, wkt, lon, lat) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("index %s: %w", l.Name, err)
	}
	defer stmt.Close()

	for _, f := range l.Features {
		if f.Geometry == nil {
			continue
		}
		g := f.Geometry
		if c.project != nil {
			g = project.Geometry(orb.Clone(g), c.project)
		}
		centroid, _ := planar.CentroidArea(g)
		name, _ := f.Properties["name"].(string)
		_, err := stmt.ExecContext(ctx, l.ID, l.Name, name, g.GeoJSONType(), wkt.MarshalString(g), centroid[0], centroid[1])
		if err != nil {
			return fmt.Errorf("index %s: %w", l.Name, err)
		}
	}
	return tx.Commit()
}

func (c *Catalog) drop(ctx context.Context, layerID string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM features WHERE layer_id = ?", layerID); err != nil {
		return fmt.Errorf("drop %s: %w", layerID, err)
	}
	return nil
}

// Sync makes the table mirror layers: rows of unlisted layers are deleted
// and listed layers not yet indexed are added. Layers are immutable once
// loaded, so indexed layers are not rewritten.
func (c *Catalog) Sync(ctx context.Context, layers []Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	indexed, err := c.layerIDs(ctx)
	if err != nil {
		return err
	}
	keep := make([]string, 0, len(layers))
	for _, l := range layers {
		keep = append(keep, l.ID)
		if slices.Contains(indexed, l.ID) {
			continue
		}
		if err := c.index(ctx, l); err != nil {
			return err
		}
	}
	for _, id := range indexed {
		if slices.Contains(keep, id) {
			continue
		}
		if err := c.drop(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) layerIDs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT layer_id FROM features")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of rows of a layer, or of all layers when
// layerID is empty.
func (c *Catalog) Count(ctx context.Context, layerID string) (int, error) {
	var n int
	var err error
	if layerID == "" {
		err = c.db.QueryRowContext(ctx, "SELECT count(*) FROM features").Scan(&n)
	} else {
		err = c.db.QueryRowContext(ctx, "SELECT count(*) FROM features WHERE layer_id = ?", layerID).Scan(&n)
	}
	return n, err
}

// Tables lists the tables of the database.
func (c *Catalog) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Result holds the rows of a query.
type Result struct {
	Columns   []string
	Rows      []map[string]any
	Truncated bool
}

// Query runs one read-only query and returns at most limit rows. The query
// is evaluated as a subquery, so statements that are not query expressions
// fail to parse. Semicolons are only accepted at the end.
func (c *Catalog) Query(ctx context.Context, query string, limit int) (Result, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimRight(q, ";"))
	if q == "" || strings.Contains(q, ";") {
		return Result{}, ErrNotQuery
	}
	if limit <= 0 {
		limit = 1000
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM (\n%s\n) LIMIT %d", q, limit+1))
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}
	res := Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}
