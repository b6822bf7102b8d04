// Package store selects the core.Store adapter for a database URL.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/palletload/internal/config"
	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/JonMunkholm/palletload/internal/store/postgres"
	"github.com/JonMunkholm/palletload/internal/store/sqlite"
)

// Driver names a supported backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DriverFor picks the backend from the URL scheme.
func DriverFor(url string) (Driver, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"):
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme in %q (want postgres://, sqlite: or file:)", config.MaskURL(url))
	}
}

// Open connects to the configured database and verifies it is reachable.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	driver, err := DriverFor(cfg.URL)
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return postgres.Connect(ctx, cfg)
	}
}
