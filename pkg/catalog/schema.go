package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Querier is the minimal query surface schema extraction needs. Both
// workspace engines and remote connection engines satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// maxCategoricalValues bounds how many distinct values qualify a text
// column as categorical.
const maxCategoricalValues = 20

var numericPrefixes = []string{
	"INTEGER", "BIGINT", "SMALLINT", "TINYINT", "HUGEINT",
	"FLOAT", "DOUBLE", "DECIMAL", "REAL", "NUMERIC", "NUMBER", "INT",
}

var textPrefixes = []string{"VARCHAR", "TEXT", "STRING", "CHAR"}

// IsNumericType classifies an engine type name as numeric.
func IsNumericType(dataType string) bool {
	return hasAnyPrefix(dataType, numericPrefixes)
}

// IsTextType classifies an engine type name as text-like.
func IsTextType(dataType string) bool {
	return hasAnyPrefix(dataType, textPrefixes)
}

func hasAnyPrefix(dataType string, prefixes []string) bool {
	upper := strings.ToUpper(dataType)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// LocalTableSchema extracts the schema of a table registered in a
// session workspace, with optional column statistics.
func LocalTableSchema(ctx context.Context, q Querier, table string, includeStats bool) (TableSchema, error) {
	rows, err := q.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", table)
	if err != nil {
		return TableSchema{}, fmt.Errorf("describing %q: %w", table, err)
	}
	defer rows.Close()

	var columns []ColumnSchema
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return TableSchema{}, err
		}
		columns = append(columns, ColumnSchema{Name: name, DataType: dataType})
	}
	if err := rows.Err(); err != nil {
		return TableSchema{}, err
	}

	if includeStats {
		for i := range columns {
			addColumnStats(ctx, q, table, &columns[i])
		}
	}

	return TableSchema{Table: table, Columns: columns}, nil
}

// addColumnStats fills statistics for a single column. Stat queries are
// best-effort: a failure leaves the column without stats.
func addColumnStats(ctx context.Context, q Querier, table string, col *ColumnSchema) {
	switch {
	case IsNumericType(col.DataType):
		query := fmt.Sprintf(`SELECT MIN(%s), MAX(%s) FROM %s`,
			quoteIdent(col.Name), quoteIdent(col.Name), quoteIdent(table))
		rows, err := q.QueryContext(ctx, query)
		if err != nil {
			return
		}
		defer rows.Close()
		if rows.Next() {
			var minVal, maxVal sql.NullString
			if err := rows.Scan(&minVal, &maxVal); err == nil {
				if minVal.Valid {
					col.MinValue = minVal.String
				}
				if maxVal.Valid {
					col.MaxValue = maxVal.String
				}
			}
		}

	case IsTextType(col.DataType):
		query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d`,
			quoteIdent(col.Name), quoteIdent(table), quoteIdent(col.Name), maxCategoricalValues+1)
		rows, err := q.QueryContext(ctx, query)
		if err != nil {
			return
		}
		defer rows.Close()

		var values []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return
			}
			values = append(values, v)
		}
		if rows.Err() == nil && len(values) <= maxCategoricalValues {
			sort.Strings(values)
			col.CategoricalValues = values
		}
	}
}

// RemoteTableSchemas lists every table visible through a remote engine
// via information_schema, grouped into TableSchemas tagged with the
// connection name. Statistics are never gathered here; remote stat
// queries are the caller's decision table by table.
func RemoteTableSchemas(ctx context.Context, q Querier, connection string) ([]TableSchema, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("listing columns for %q: %w", connection, err)
	}
	defer rows.Close()

	var (
		schemas []TableSchema
		current *TableSchema
	)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, err
		}
		if current == nil || current.Table != table {
			schemas = append(schemas, TableSchema{Table: table, Connection: connection})
			current = &schemas[len(schemas)-1]
		}
		current.Columns = append(current.Columns, ColumnSchema{Name: column, DataType: dataType})
	}
	return schemas, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
