package connections

import (
	"context"
	"database/sql"
	"strings"

	"github.com/txn2/analytics-gateway/pkg/identity"

	// Drivers available to URL-configured connections.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// driverForProvider maps provider tags to registered driver names.
var driverForProvider = map[string]string{
	"postgresql": "postgres",
	"postgres":   "postgres",
	"mysql":      "mysql",
	"sqlite":     "sqlite3",
	"sqlite3":    "sqlite3",
}

// ProviderFromURL extracts the provider tag from a connection URL
// scheme. Dialect+driver schemes such as "postgresql+psycopg2" collapse
// to the dialect. Returns "" when the URL has no scheme.
func ProviderFromURL(url string) string {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return ""
	}
	dialect, _, _ := strings.Cut(scheme, "+")
	return dialect
}

// URLFactory builds a Factory that opens a database/sql engine for the
// given provider and DSN. The engine is shared by all requests for the
// same (name, principal) cache key; database/sql pools underneath.
func URLFactory(provider, dsn string) Factory {
	driver, ok := driverForProvider[provider]
	if !ok {
		driver = provider
	}
	return func(ctx context.Context, _ identity.Identity) (Engine, error) {
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}
