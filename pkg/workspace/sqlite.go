package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/txn2/analytics-gateway/pkg/dataset"
)

// SQLite is a Workspace backed by an in-memory SQLite database. Each
// instance owns an independent database; closing it discards all data.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a fresh in-memory workspace.
func NewSQLite() (*SQLite, error) {
	// One connection per workspace: a second pooled connection would see
	// a different, empty :memory: database.
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening workspace: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

// Register creates a table for the dataset and loads its rows.
func (w *SQLite) Register(name string, ds dataset.Dataset) error {
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("registering %q: %w", name, err)
	}

	cols := make([]string, len(ds.Columns))
	for i, col := range ds.Columns {
		cols[i] = quoteIdent(col) + " " + columnAffinity(ds, i)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := w.db.Exec(create); err != nil {
		return fmt.Errorf("creating table %q: %w", name, err)
	}

	if len(ds.Rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ds.Columns)), ",")
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), placeholders)

	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(insert)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range ds.Rows {
		if _, err := stmt.Exec(row...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("loading rows into %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// QueryContext runs SQL against the workspace.
func (w *SQLite) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return w.db.QueryContext(ctx, query, args...)
}

// Close discards the workspace.
func (w *SQLite) Close() error {
	return w.db.Close()
}

// columnAffinity picks a column type from the first non-nil value.
func columnAffinity(ds dataset.Dataset, col int) string {
	for _, row := range ds.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case int, int32, int64, bool:
			return "INTEGER"
		case float32, float64:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ Workspace = (*SQLite)(nil)
