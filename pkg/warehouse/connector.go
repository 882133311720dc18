package warehouse

import (
	"context"

	"github.com/txn2/analytics-gateway/pkg/connections"
)

// ColumnInfo is one column from a metadata listing. RawType holds the
// engine-native type descriptor for bulk listings (see NormalizeType)
// and an already-readable type string for per-table describes.
type ColumnInfo struct {
	Database string
	Schema   string
	Table    string
	Column   string
	RawType  string
}

// Conn is a live warehouse connection: a query engine plus the metadata
// surface discovery enumerates.
type Conn interface {
	connections.Engine

	// ListDatabases enumerates databases visible to the connection.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListSchemas enumerates schemas in a database.
	ListSchemas(ctx context.Context, database string) ([]string, error)

	// ListTables enumerates tables in a schema.
	ListTables(ctx context.Context, database, schema string) ([]string, error)

	// ListColumns bulk-lists every column in a database. One call per
	// database, never one per table.
	ListColumns(ctx context.Context, database string) ([]ColumnInfo, error)

	// DescribeTable lists the columns of exactly one table.
	DescribeTable(ctx context.Context, database, schema, table string) ([]ColumnInfo, error)
}

// Connector opens warehouse connections under a resolved auth mode,
// optionally scoped to a database and schema. Unscoped connections
// (empty database) serve catalog enumeration; scoped ones serve
// queries against a flattened connection name.
type Connector interface {
	Connect(ctx context.Context, auth Auth, database, schema string) (Conn, error)
}
