package db

import (
	"fmt"
	"net/url"
	"strings"
)

// WithDBName returns dsn with its database path replaced by database.
// Supports postgres:// and postgresql:// schemes; a missing scheme is
// treated as postgres://.
func WithDBName(dsn, database string) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}

// ResultsDSN picks the database that receives ride results: dsn itself, or
// dsn pointed at name when name is set.
func ResultsDSN(dsn, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return dsn, nil
	}
	return WithDBName(dsn, name)
}
