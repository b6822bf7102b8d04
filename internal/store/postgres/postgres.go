// Package postgres implements core.Store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/JonMunkholm/palletload/internal/config"
	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

var (
	_ DBTX = (*pgxpool.Pool)(nil)
	_ DBTX = (pgx.Tx)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS parcel_table (
	sscc         TEXT PRIMARY KEY,
	country_code TEXT NOT NULL,
	pallet_id    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parcel_table_pallet_id ON parcel_table (pallet_id);

CREATE TABLE IF NOT EXISTS pallet_status (
	pallet_id      TEXT PRIMARY KEY,
	console_status TEXT DEFAULT 'IN CONSOLE',
	quantity       TEXT DEFAULT '0'
);
`

const (
	insertParcelSQL = `
	INSERT INTO parcel_table (sscc, country_code, pallet_id)
	VALUES ($1, $2, $3)
	ON CONFLICT (sscc) DO NOTHING`

	ensurePalletSQL = `
	INSERT INTO pallet_status (pallet_id, console_status, quantity)
	VALUES ($1, $2, '0')
	ON CONFLICT (pallet_id) DO NOTHING`

	backfillPalletsSQL = `
	INSERT INTO pallet_status (pallet_id, console_status, quantity)
	SELECT DISTINCT pallet_id, $1, '0' FROM parcel_table
	ON CONFLICT (pallet_id) DO NOTHING`

	recountSQL = `
	UPDATE pallet_status s
	SET quantity = c.n::text
	FROM (
		SELECT pallet_id, COUNT(*) AS n
		FROM parcel_table
		GROUP BY pallet_id
	) c
	WHERE s.pallet_id = c.pallet_id`

	listPalletsSQL = `
	SELECT
		s.pallet_id,
		COALESCE(s.console_status, 'IN CONSOLE'),
		CAST(COALESCE(s.quantity, '0') AS INTEGER),
		COALESCE(MIN(p.country_code), '')
	FROM pallet_status s
	LEFT JOIN parcel_table p ON p.pallet_id = s.pallet_id
	`
)

// Store is a PostgreSQL-backed core.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect builds a pool from the database settings and verifies it with a
// ping before returning.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapErr("connect", err)
	}

	s := New(pool)
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// DatabaseName returns the database named in a connection URL, for logging.
func DatabaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return wrapErr("init schema", err)
	}
	return nil
}

func (s *Store) ListParcels(ctx context.Context) ([]core.ParcelRow, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT sscc, pallet_id, country_code
	FROM parcel_table
	ORDER BY pallet_id, sscc`)
	if err != nil {
		return nil, wrapErr("list parcels", err)
	}

	parcels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.ParcelRow, error) {
		var p core.ParcelRow
		err := row.Scan(&p.SSCC, &p.PalletID, &p.CountryCode)
		return p, err
	})
	if err != nil {
		return nil, wrapErr("list parcels", err)
	}
	return parcels, nil
}

// InsertParcels sends the batch as one pipelined pgx.Batch inside a
// transaction and sums the rows each statement actually inserted.
func (s *Store) InsertParcels(ctx context.Context, batch []core.Assignment) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	var inserted int
	err := s.inTx(ctx, "insert parcels", func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, a := range batch {
			b.Queue(insertParcelSQL, a.SSCC, a.CountryCode, a.PalletID)
		}
		n, err := execBatch(ctx, tx, b, func(i int) string {
			return fmt.Sprintf("sscc=%q", batch[i].SSCC)
		})
		inserted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) EnsurePallets(ctx context.Context, palletIDs []string) (int, error) {
	if len(palletIDs) == 0 {
		return 0, nil
	}

	var created int
	err := s.inTx(ctx, "ensure pallets", func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, id := range palletIDs {
			b.Queue(ensurePalletSQL, id, core.DefaultConsoleStatus)
		}
		n, err := execBatch(ctx, tx, b, func(i int) string {
			return fmt.Sprintf("pallet %q", palletIDs[i])
		})
		created = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// RecountQuantities rewrites the quantity of every pallet that has parcels,
// creating status rows for pallets a crashed run left without one.
func (s *Store) RecountQuantities(ctx context.Context) (int, error) {
	var updated int
	err := s.inTx(ctx, "recount", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, backfillPalletsSQL, core.DefaultConsoleStatus); err != nil {
			return fmt.Errorf("backfill status rows: %w", err)
		}
		tag, err := tx.Exec(ctx, recountSQL)
		if err != nil {
			return fmt.Errorf("update quantities: %w", err)
		}
		updated = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (s *Store) ListPallets(ctx context.Context, filter core.PalletFilter) ([]core.PalletStatus, error) {
	var (
		having []string
		args   []any
	)
	if filter.CountryCode != "" {
		args = append(args, filter.CountryCode)
		having = append(having, fmt.Sprintf("COALESCE(MIN(p.country_code), '') = $%d", len(args)))
	}
	if filter.OpenOnly {
		args = append(args, filter.Capacity)
		having = append(having, fmt.Sprintf("CAST(COALESCE(s.quantity, '0') AS INTEGER) < $%d", len(args)))
	}

	query := listPalletsSQL + "GROUP BY s.pallet_id, s.console_status, s.quantity\n"
	if len(having) > 0 {
		query += "HAVING " + strings.Join(having, " AND ") + "\n"
	}
	query += "ORDER BY s.pallet_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list pallets", err)
	}
	pallets, err := pgx.CollectRows(rows, scanPallet)
	if err != nil {
		return nil, wrapErr("list pallets", err)
	}
	return pallets, nil
}

func (s *Store) GetPallet(ctx context.Context, palletID string) (core.PalletStatus, error) {
	query := listPalletsSQL + `
	WHERE s.pallet_id = $1
	GROUP BY s.pallet_id, s.console_status, s.quantity`

	rows, err := s.pool.Query(ctx, query, palletID)
	if err != nil {
		return core.PalletStatus{}, wrapErr("get pallet", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPallet)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, core.ErrPalletNotFound
	}
	if err != nil {
		return p, wrapErr("get pallet", err)
	}
	return p, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanPallet(row pgx.CollectableRow) (core.PalletStatus, error) {
	var p core.PalletStatus
	err := row.Scan(&p.PalletID, &p.ConsoleStatus, &p.Quantity, &p.CountryCode)
	return p, err
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr(op+": begin tx", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := fn(tx); err != nil {
		return wrapErr(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapErr(op+": commit", err)
	}
	return nil
}

// execBatch sends b and returns the summed affected row counts. describe
// names the i-th queued statement in errors.
func execBatch(ctx context.Context, db DBTX, b *pgx.Batch, describe func(i int) string) (int, error) {
	br := db.SendBatch(ctx, b)

	total := 0
	for i := 0; i < b.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("%s: %w", describe(i), err)
		}
		total += int(tag.RowsAffected())
	}

	if err := br.Close(); err != nil {
		return 0, err
	}
	return total, nil
}

// wrapErr marks connection-level failures as core.StoreUnavailableError so
// callers can tell a retryable outage from a data problem.
func wrapErr(op string, err error) error {
	var su *core.StoreUnavailableError
	if errors.As(err, &su) {
		return err
	}
	if isUnavailable(err) {
		return &core.StoreUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exceptions; 57P01-57P03 are shutdowns.
		switch {
		case strings.HasPrefix(pgErr.Code, "08"):
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}
