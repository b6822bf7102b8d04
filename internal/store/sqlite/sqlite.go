// Package sqlite implements core.Store on SQLite through modernc.org/sqlite.
//
// It is meant for local runs and tests. The schema and statements mirror the
// PostgreSQL adapter; SQLite supports the same ON CONFLICT DO NOTHING form,
// so insert-if-absent needs no existence pre-check.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/palletload/internal/core"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS parcel_table (
	sscc         TEXT PRIMARY KEY,
	country_code TEXT NOT NULL,
	pallet_id    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parcel_table_pallet_id ON parcel_table(pallet_id);

CREATE TABLE IF NOT EXISTS pallet_status (
	pallet_id      TEXT PRIMARY KEY,
	console_status TEXT DEFAULT 'IN CONSOLE',
	quantity       TEXT DEFAULT '0'
);
`

// Store is a SQLite-backed core.Store.
type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open opens the database at dsn. Accepted forms are a plain path,
// "sqlite:path", "sqlite://path", "file:path?..." and ":memory:".
//
// An in-memory database lives in a single connection, so the pool is capped
// at one connection for it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	path := TrimScheme(dsn)
	if path == "" {
		return nil, errors.New("open sqlite: empty path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if isMemory(path) {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: set busy timeout: %w", err)
	}

	return &Store{db: db}, nil
}

// TrimScheme strips a sqlite: or sqlite:// scheme from a connection string.
// file: URIs are returned unchanged since the driver understands them.
func TrimScheme(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return rest
	}
	return dsn
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}

// DB exposes the underlying handle for tests and maintenance commands.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrapErr("init schema", err)
	}
	return nil
}

func (s *Store) ListParcels(ctx context.Context) ([]core.ParcelRow, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT sscc, pallet_id, country_code
	FROM parcel_table
	ORDER BY pallet_id, sscc;
	`)
	if err != nil {
		return nil, wrapErr("list parcels", err)
	}
	defer rows.Close()

	parcels := make([]core.ParcelRow, 0, 256)
	for rows.Next() {
		var p core.ParcelRow
		if err := rows.Scan(&p.SSCC, &p.PalletID, &p.CountryCode); err != nil {
			return nil, fmt.Errorf("list parcels: scan row: %w", err)
		}
		parcels = append(parcels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list parcels", err)
	}
	return parcels, nil
}

// InsertParcels inserts the batch in one transaction. Rows whose SSCC exists
// are ignored and not counted.
func (s *Store) InsertParcels(ctx context.Context, batch []core.Assignment) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("insert parcels: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO parcel_table (sscc, country_code, pallet_id)
	VALUES (?, ?, ?)
	ON CONFLICT (sscc) DO NOTHING;
	`)
	if err != nil {
		return 0, wrapErr("insert parcels: prepare", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range batch {
		res, err := stmt.ExecContext(ctx, a.SSCC, a.CountryCode, a.PalletID)
		if err != nil {
			return 0, wrapErr(fmt.Sprintf("insert parcel sscc=%q", a.SSCC), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert parcels: rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("insert parcels: commit", err)
	}
	return inserted, nil
}

func (s *Store) EnsurePallets(ctx context.Context, palletIDs []string) (int, error) {
	if len(palletIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("ensure pallets: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pallet_status (pallet_id, console_status, quantity)
	VALUES (?, ?, '0')
	ON CONFLICT (pallet_id) DO NOTHING;
	`)
	if err != nil {
		return 0, wrapErr("ensure pallets: prepare", err)
	}
	defer stmt.Close()

	created := 0
	for _, id := range palletIDs {
		res, err := stmt.ExecContext(ctx, id, core.DefaultConsoleStatus)
		if err != nil {
			return 0, wrapErr(fmt.Sprintf("ensure pallet %q", id), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("ensure pallets: rows affected: %w", err)
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("ensure pallets: commit", err)
	}
	return created, nil
}

// RecountQuantities rewrites the quantity of every pallet that has parcels.
// A pallet referenced by parcels but lacking a status row (a run that died
// between its write steps) gets one first, so no parcel goes uncounted.
func (s *Store) RecountQuantities(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapErr("recount: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO pallet_status (pallet_id, console_status, quantity)
	SELECT DISTINCT pallet_id, ?, '0' FROM parcel_table WHERE true
	ON CONFLICT (pallet_id) DO NOTHING;
	`, core.DefaultConsoleStatus); err != nil {
		return 0, wrapErr("recount: backfill status rows", err)
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE pallet_status
	SET quantity = CAST(c.n AS TEXT)
	FROM (
		SELECT pallet_id, COUNT(*) AS n
		FROM parcel_table
		GROUP BY pallet_id
	) AS c
	WHERE pallet_status.pallet_id = c.pallet_id;
	`)
	if err != nil {
		return 0, wrapErr("recount: update quantities", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recount: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("recount: commit", err)
	}
	return int(n), nil
}

// listPalletsQuery joins each status row with its parcels to derive the
// pallet's country. Filters are applied by the caller through HAVING.
const listPalletsQuery = `
SELECT
	s.pallet_id,
	COALESCE(s.console_status, 'IN CONSOLE'),
	CAST(COALESCE(s.quantity, '0') AS INTEGER),
	COALESCE(MIN(p.country_code), '')
FROM pallet_status s
LEFT JOIN parcel_table p ON p.pallet_id = s.pallet_id
GROUP BY s.pallet_id, s.console_status, s.quantity
`

func (s *Store) ListPallets(ctx context.Context, filter core.PalletFilter) ([]core.PalletStatus, error) {
	var (
		having []string
		args   []any
	)
	if filter.CountryCode != "" {
		having = append(having, "COALESCE(MIN(p.country_code), '') = ?")
		args = append(args, filter.CountryCode)
	}
	if filter.OpenOnly {
		having = append(having, "CAST(COALESCE(s.quantity, '0') AS INTEGER) < ?")
		args = append(args, filter.Capacity)
	}

	query := listPalletsQuery
	if len(having) > 0 {
		query += "HAVING " + strings.Join(having, " AND ") + "\n"
	}
	query += "ORDER BY s.pallet_id;"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list pallets", err)
	}
	defer rows.Close()

	var pallets []core.PalletStatus
	for rows.Next() {
		var p core.PalletStatus
		if err := rows.Scan(&p.PalletID, &p.ConsoleStatus, &p.Quantity, &p.CountryCode); err != nil {
			return nil, fmt.Errorf("list pallets: scan row: %w", err)
		}
		pallets = append(pallets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list pallets", err)
	}
	return pallets, nil
}

func (s *Store) GetPallet(ctx context.Context, palletID string) (core.PalletStatus, error) {
	query := listPalletsQuery + "HAVING s.pallet_id = ?;"

	var p core.PalletStatus
	err := s.db.QueryRowContext(ctx, query, palletID).
		Scan(&p.PalletID, &p.ConsoleStatus, &p.Quantity, &p.CountryCode)
	if errors.Is(err, sql.ErrNoRows) {
		return p, core.ErrPalletNotFound
	}
	if err != nil {
		return p, wrapErr("get pallet", err)
	}
	return p, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// wrapErr marks connection-level failures as core.StoreUnavailableError so
// callers can tell a retryable outage from a data problem.
func wrapErr(op string, err error) error {
	if isUnavailable(err) {
		return &core.StoreUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
			return true
		}
	}
	return false
}
