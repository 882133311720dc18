package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	sf "github.com/snowflakedb/gosnowflake"
)

// SnowflakeConnector opens Snowflake connections. Token auth builds an
// OAuth DSN from the exchanged credential; named auth looks up a static
// driver config registered at construction (local development).
type SnowflakeConnector struct {
	account   string
	warehouse string
	named     map[string]sf.Config
}

// NewSnowflakeConnector creates a connector for one account and
// warehouse. named maps local connection names to static driver
// configs; nil when only delegated auth is used.
func NewSnowflakeConnector(account, warehouse string, named map[string]sf.Config) *SnowflakeConnector {
	return &SnowflakeConnector{account: account, warehouse: warehouse, named: named}
}

// Connect opens a connection under the resolved auth mode, scoped to
// database and schema when non-empty.
func (c *SnowflakeConnector) Connect(ctx context.Context, auth Auth, database, schema string) (Conn, error) {
	var cfg sf.Config
	switch {
	case auth.Token != nil:
		cfg = sf.Config{
			Account:       c.account,
			Authenticator: sf.AuthTypeOAuth,
			Token:         auth.Token.Token,
		}
	default:
		named, ok := c.named[auth.ConnectionName]
		if !ok {
			return nil, fmt.Errorf("no credentials registered for connection name %q", auth.ConnectionName)
		}
		cfg = named
		if cfg.Account == "" {
			cfg.Account = c.account
		}
	}
	cfg.Warehouse = c.warehouse
	cfg.Database = database
	cfg.Schema = schema

	dsn, err := sf.DSN(&cfg)
	if err != nil {
		return nil, fmt.Errorf("building warehouse DSN: %w", err)
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to warehouse: %w", err)
	}
	return &snowflakeConn{DB: db}, nil
}

// snowflakeConn adapts *sql.DB to the Conn metadata surface using SHOW
// and DESCRIBE commands.
type snowflakeConn struct {
	*sql.DB
}

func (c *snowflakeConn) ListDatabases(ctx context.Context) ([]string, error) {
	return c.showNames(ctx, "SHOW DATABASES")
}

func (c *snowflakeConn) ListSchemas(ctx context.Context, database string) ([]string, error) {
	return c.showNames(ctx, fmt.Sprintf("SHOW SCHEMAS IN DATABASE %s", quoteIdent(database)))
}

func (c *snowflakeConn) ListTables(ctx context.Context, database, schema string) ([]string, error) {
	return c.showNames(ctx, fmt.Sprintf("SHOW TABLES IN SCHEMA %s.%s",
		quoteIdent(database), quoteIdent(schema)))
}

func (c *snowflakeConn) ListColumns(ctx context.Context, database string) ([]ColumnInfo, error) {
	records, err := c.showRecords(ctx, fmt.Sprintf("SHOW COLUMNS IN DATABASE %s", quoteIdent(database)))
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnInfo, 0, len(records))
	for _, rec := range records {
		cols = append(cols, ColumnInfo{
			Database: rec["database_name"],
			Schema:   rec["schema_name"],
			Table:    rec["table_name"],
			Column:   rec["column_name"],
			RawType:  rec["data_type"],
		})
	}
	return cols, nil
}

func (c *snowflakeConn) DescribeTable(ctx context.Context, database, schema, table string) ([]ColumnInfo, error) {
	records, err := c.showRecords(ctx, fmt.Sprintf("DESCRIBE TABLE %s.%s.%s",
		quoteIdent(database), quoteIdent(schema), quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnInfo, 0, len(records))
	for _, rec := range records {
		cols = append(cols, ColumnInfo{
			Database: database,
			Schema:   schema,
			Table:    table,
			Column:   rec["name"],
			RawType:  rec["type"],
		})
	}
	return cols, nil
}

// showNames runs a SHOW command and extracts its "name" column.
func (c *snowflakeConn) showNames(ctx context.Context, query string) ([]string, error) {
	records, err := c.showRecords(ctx, query)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec["name"])
	}
	return names, nil
}

// showRecords runs a metadata command and returns its rows as
// column-name keyed maps. SHOW output layouts vary across server
// versions, so columns are resolved by name rather than position.
func (c *snowflakeConn) showRecords(ctx context.Context, query string) ([]map[string]string, error) {
	rows, err := c.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []map[string]string
	for rows.Next() {
		values := make([]sql.NullString, len(colNames))
		scan := make([]any, len(colNames))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		rec := make(map[string]string, len(colNames))
		for i, name := range colNames {
			if values[i].Valid {
				rec[name] = values[i].String
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

var _ Connector = (*SnowflakeConnector)(nil)
var _ Conn = (*snowflakeConn)(nil)
