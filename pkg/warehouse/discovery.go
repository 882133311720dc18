// Package warehouse discovers the hierarchical catalog of a
// multi-tenant warehouse (databases, schemas, tables, columns) and
// hands out per-principal query engines for the flattened
// database.schema connection names it discovers.
//
// Enumeration is best-effort: a database or schema the principal cannot
// access contributes nothing instead of failing the discovery. All
// caches are principal-scoped; nothing is shared across principals.
package warehouse

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/txn2/analytics-gateway/pkg/cache"
	"github.com/txn2/analytics-gateway/pkg/catalog"
	"github.com/txn2/analytics-gateway/pkg/connections"
	"github.com/txn2/analytics-gateway/pkg/identity"
)

// reservedSchema is the metadata schema excluded from discovery.
const reservedSchema = "INFORMATION_SCHEMA"

// DefaultMaxEngines bounds the discovery engine cache.
const DefaultMaxEngines = 50

// Config is the static discovery configuration.
type Config struct {
	// Account is the warehouse account identifier.
	Account string

	// Warehouse is the compute warehouse used for queries.
	Warehouse string

	// ConnectionName selects a static local credential; empty when only
	// delegated auth is used.
	ConnectionName string

	// Databases, when non-empty, is an allow-list that replaces the
	// list-databases step entirely.
	Databases []string

	// MaxEngines bounds the engine cache; <= 0 selects
	// DefaultMaxEngines.
	MaxEngines int
}

// Entry is one discovered catalog row: a table addressed through its
// flattened database.schema connection name.
type Entry struct {
	Connection string
	Database   string
	Schema     string
	Table      string
}

// dbSchema is the (database, schema) pair behind a connection name.
type dbSchema struct {
	database string
	schema   string
}

type engineKey struct {
	principal  string
	connection string
}

// Discovery enumerates the warehouse catalog per principal and caches
// both the results and the live engines they lead to.
type Discovery struct {
	cfg       Config
	connector Connector
	exchanger TokenExchanger

	mu sync.Mutex
	// conns maps principal -> connection name -> (database, schema).
	// Grows monotonically per principal, including mid-stream.
	conns map[string]map[string]dbSchema
	// catalogs maps principal -> full catalog, set only once an
	// enumeration ran to completion.
	catalogs map[string][]Entry
	// tables maps principal -> fully resolved table schemas. No
	// invalidation short of DisposeAll; the catalog is assumed static
	// for the process lifetime.
	tables map[string][]catalog.TableSchema

	engines *cache.Cache[engineKey, connections.Engine]
}

// New creates a Discovery. exchanger may be nil when the deployment has
// no delegated auth backend.
func New(cfg Config, connector Connector, exchanger TokenExchanger) (*Discovery, error) {
	if connector == nil {
		return nil, fmt.Errorf("warehouse: connector is required")
	}
	maxEngines := cfg.MaxEngines
	if maxEngines <= 0 {
		maxEngines = DefaultMaxEngines
	}
	return &Discovery{
		cfg:       cfg,
		connector: connector,
		exchanger: exchanger,
		conns:     make(map[string]map[string]dbSchema),
		catalogs:  make(map[string][]Entry),
		tables:    make(map[string][]catalog.TableSchema),
		engines: cache.New[engineKey, connections.Engine](maxEngines, func(e connections.Engine) {
			if err := e.Close(); err != nil {
				slog.Warn("warehouse: closing evicted engine", "error", err)
			}
		}),
	}, nil
}

// connect resolves auth for the requesting identity and opens a
// connection, optionally scoped to a database and schema.
func (d *Discovery) connect(ctx context.Context, id identity.Identity, database, schema string) (Conn, error) {
	auth, err := d.resolveAuth(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.connector.Connect(ctx, auth, database, schema)
}

// databaseList returns the databases to enumerate: the configured
// allow-list, or everything the connection can see.
func (d *Discovery) databaseList(ctx context.Context, conn Conn) ([]string, error) {
	if len(d.cfg.Databases) > 0 {
		return d.cfg.Databases, nil
	}
	return conn.ListDatabases(ctx)
}

// enumerateDatabase lists one database's tables. Schema-listing and
// table-listing failures skip the affected branch; they never propagate.
func (d *Discovery) enumerateDatabase(ctx context.Context, conn Conn, database string) []Entry {
	schemas, err := conn.ListSchemas(ctx, database)
	if err != nil {
		slog.Debug("warehouse: skipping inaccessible database",
			"database", database, "error", err)
		return nil
	}

	var entries []Entry
	for _, schema := range schemas {
		if schema == reservedSchema {
			continue
		}
		tables, err := conn.ListTables(ctx, database, schema)
		if err != nil {
			slog.Debug("warehouse: skipping inaccessible schema",
				"database", database, "schema", schema, "error", err)
			continue
		}
		for _, table := range tables {
			entries = append(entries, Entry{
				Connection: database + "." + schema,
				Database:   database,
				Schema:     schema,
				Table:      table,
			})
		}
	}
	return entries
}

// registerEntries merges entries into the principal's connection map.
func (d *Discovery) registerEntries(principal string, entries []Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conns := d.conns[principal]
	if conns == nil {
		conns = make(map[string]dbSchema)
		d.conns[principal] = conns
	}
	for _, e := range entries {
		if _, ok := conns[e.Connection]; !ok {
			conns[e.Connection] = dbSchema{database: e.Database, schema: e.Schema}
		}
	}
}

func (d *Discovery) cachedCatalog(principal string) ([]Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries, ok := d.catalogs[principal]
	return entries, ok
}

// ensureCatalog returns the principal's full catalog, enumerating it
// once on first use.
func (d *Discovery) ensureCatalog(ctx context.Context, id identity.Identity) ([]Entry, error) {
	if entries, ok := d.cachedCatalog(id.Principal); ok {
		return entries, nil
	}

	conn, err := d.connect(ctx, id, "", "")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	databases, err := d.databaseList(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}

	var entries []Entry
	for _, database := range databases {
		entries = append(entries, d.enumerateDatabase(ctx, conn, database)...)
	}

	d.registerEntries(id.Principal, entries)
	d.mu.Lock()
	d.catalogs[id.Principal] = entries
	d.mu.Unlock()

	slog.Debug("warehouse: catalog discovered",
		"principal", id.Principal, "tables", len(entries))
	return entries, nil
}

// GetTableNames returns every discovered table with its connection
// name. Fast path: catalog only, no columns. The result is cached per
// principal after the first successful enumeration.
func (d *Discovery) GetTableNames(ctx context.Context) ([]catalog.TableRef, error) {
	id := identity.FromContext(ctx)
	entries, err := d.ensureCatalog(ctx, id)
	if err != nil {
		return nil, err
	}
	return refsOf(entries), nil
}

// StreamTableNames discovers tables incrementally, yielding one
// database's tables at a time. Each database's connections are
// registered as soon as they are discovered, so a connection yielded
// early is queryable via GetEngine before the enumeration finishes.
// When the catalog is already fully cached the stream replays cached
// data grouped by database without touching the warehouse.
func (d *Discovery) StreamTableNames(ctx context.Context) (iter.Seq2[string, []catalog.TableRef], error) {
	id := identity.FromContext(ctx)

	if entries, ok := d.cachedCatalog(id.Principal); ok {
		return replayByDatabase(entries), nil
	}

	conn, err := d.connect(ctx, id, "", "")
	if err != nil {
		return nil, err
	}
	databases, err := d.databaseList(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("listing databases: %w", err)
	}

	return func(yield func(string, []catalog.TableRef) bool) {
		defer conn.Close()

		var all []Entry
		complete := true
		for _, database := range databases {
			entries := d.enumerateDatabase(ctx, conn, database)
			d.registerEntries(id.Principal, entries)
			all = append(all, entries...)
			if !yield(database, refsOf(entries)) {
				complete = false
				break
			}
		}

		// Only a finished enumeration counts as a full catalog; an
		// abandoned stream re-enumerates next time.
		if complete {
			d.mu.Lock()
			d.catalogs[id.Principal] = all
			d.mu.Unlock()
		}
	}, nil
}

// replayByDatabase groups a cached flat catalog by database, preserving
// first-seen order.
func replayByDatabase(entries []Entry) iter.Seq2[string, []catalog.TableRef] {
	return func(yield func(string, []catalog.TableRef) bool) {
		var order []string
		grouped := make(map[string][]catalog.TableRef)
		for _, e := range entries {
			if _, ok := grouped[e.Database]; !ok {
				order = append(order, e.Database)
			}
			grouped[e.Database] = append(grouped[e.Database], catalog.TableRef{
				Table: e.Table, Connection: e.Connection,
			})
		}
		for _, database := range order {
			if !yield(database, grouped[database]) {
				return
			}
		}
	}
}

// GetTables returns the full schemas (with columns) of every table the
// principal can see. Columns are fetched in one bulk call per database.
// includeStats is accepted for interface compatibility but always
// treated as false here: column stat queries are too expensive on large
// warehouse tables and trip identifier-casing hazards. The result is
// cached per principal with no invalidation path short of DisposeAll.
func (d *Discovery) GetTables(ctx context.Context, includeStats bool) ([]catalog.TableSchema, error) {
	_ = includeStats

	id := identity.FromContext(ctx)

	d.mu.Lock()
	if cached, ok := d.tables[id.Principal]; ok {
		d.mu.Unlock()
		return cached, nil
	}
	d.mu.Unlock()

	entries, err := d.ensureCatalog(ctx, id)
	if err != nil {
		return nil, err
	}

	conn, err := d.connect(ctx, id, "", "")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Bulk column fetch, one call per distinct database.
	type tableKey struct{ database, schema, table string }
	columns := make(map[tableKey][]catalog.ColumnSchema)

	var databases []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.Database] {
			seen[e.Database] = true
			databases = append(databases, e.Database)
		}
	}

	for _, database := range databases {
		cols, err := conn.ListColumns(ctx, database)
		if err != nil {
			slog.Debug("warehouse: skipping column listing for database",
				"database", database, "error", err)
			continue
		}
		for _, col := range cols {
			key := tableKey{database: col.Database, schema: col.Schema, table: col.Table}
			columns[key] = append(columns[key], catalog.ColumnSchema{
				Name:     col.Column,
				DataType: NormalizeType(col.RawType),
			})
		}
	}

	// Assemble in catalog order so output is deterministic.
	schemas := make([]catalog.TableSchema, 0, len(entries))
	for _, e := range entries {
		schemas = append(schemas, catalog.TableSchema{
			Table:      e.Table,
			Connection: e.Connection,
			Columns:    columns[tableKey{database: e.Database, schema: e.Schema, table: e.Table}],
		})
	}

	d.mu.Lock()
	d.tables[id.Principal] = schemas
	d.mu.Unlock()
	return schemas, nil
}

// GetSingleTableSchema resolves the columns of exactly one table via a
// per-table describe. Returns (nil, nil) when the connection is unknown
// for this principal or the table yields no columns. Does not consult
// or populate the GetTables cache.
func (d *Discovery) GetSingleTableSchema(ctx context.Context, table, connectionName string) (*catalog.TableSchema, error) {
	id := identity.FromContext(ctx)

	d.mu.Lock()
	ds, ok := d.conns[id.Principal][connectionName]
	d.mu.Unlock()
	if !ok {
		return nil, nil
	}

	conn, err := d.connect(ctx, id, ds.database, ds.schema)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	cols, err := conn.DescribeTable(ctx, ds.database, ds.schema, table)
	if err != nil {
		slog.Debug("warehouse: describe table failed",
			"connection", connectionName, "table", table, "error", err)
		return nil, nil
	}
	if len(cols) == 0 {
		return nil, nil
	}

	schema := &catalog.TableSchema{Table: table, Connection: connectionName}
	for _, col := range cols {
		// Describe output carries readable type strings already.
		schema.Columns = append(schema.Columns, catalog.ColumnSchema{
			Name:     col.Column,
			DataType: col.RawType,
		})
	}
	return schema, nil
}

// GetEngine returns a cached engine scoped to a discovered connection
// name. Discovery must have run for this principal first: an unknown
// principal or connection name yields ErrUnknownConnection.
func (d *Discovery) GetEngine(ctx context.Context, connectionName string) (connections.Engine, error) {
	id := identity.FromContext(ctx)

	d.mu.Lock()
	ds, ok := d.conns[id.Principal][connectionName]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", connections.ErrUnknownConnection, connectionName)
	}

	key := engineKey{principal: id.Principal, connection: connectionName}
	return d.engines.GetOrCreate(key, func() (connections.Engine, error) {
		slog.Debug("warehouse: building engine",
			"connection", connectionName, "principal", id.Principal)
		return d.connect(ctx, id, ds.database, ds.schema)
	})
}

// HasConnection reports whether connectionName has been discovered for
// the requesting principal. Always false before discovery has run.
func (d *Discovery) HasConnection(ctx context.Context, connectionName string) bool {
	id := identity.FromContext(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.conns[id.Principal][connectionName]
	return ok
}

// DisposeAll closes every cached engine and clears every per-principal
// cache. Full reset; used at process shutdown.
func (d *Discovery) DisposeAll() {
	d.engines.Purge()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns = make(map[string]map[string]dbSchema)
	d.catalogs = make(map[string][]Entry)
	d.tables = make(map[string][]catalog.TableSchema)
}

func refsOf(entries []Entry) []catalog.TableRef {
	refs := make([]catalog.TableRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, catalog.TableRef{Table: e.Table, Connection: e.Connection})
	}
	return refs
}
