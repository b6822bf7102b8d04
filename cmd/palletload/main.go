// Command palletload imports parcel batch files and assigns parcels to
// pallets.
//
// Usage:
//
//	palletload import [--dir DIR] [--dry-run]
//	palletload init-db
//	palletload pallets [--country CC] [--open]
//	palletload serve
//
// Configuration comes from the environment, with a .env file in the working
// directory taking precedence.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/palletload/internal/config"
	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/JonMunkholm/palletload/internal/logging"
	"github.com/JonMunkholm/palletload/internal/metrics"
	"github.com/JonMunkholm/palletload/internal/source"
	"github.com/JonMunkholm/palletload/internal/store"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code with an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	store    core.Store
	importer *core.Importer
	registry *prometheus.Registry // nil when metrics are disabled
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			slog.Warn("closing store", "error", cerr)
		}
	}
	if err == nil {
		return exitOK
	}

	reportError(err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// reportError prints the user-facing message. The technical error has
// already been logged where it happened.
func reportError(err error) {
	fmt.Fprintln(os.Stderr, "error:", core.FormatUserError(err))
	if phase := core.FailedPhase(err); phase != "" {
		fmt.Fprintln(os.Stderr, "failed phase:", phase)
	}
	if core.IsRetryable(err) {
		fmt.Fprintln(os.Stderr, "the run can be retried safely")
	}
	fmt.Fprintln(os.Stderr, "details:", err)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "palletload",
		Short:         "Import parcel batches and assign parcels to pallets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newImportCmd(a),
		newInitDBCmd(a),
		newPalletsCmd(a),
		newServeCmd(a),
	)
	return root
}

// bootstrap loads configuration, sets up logging and connects to the store.
// withImporter additionally builds the record source and importer.
func (a *app) bootstrap(ctx context.Context, withImporter bool) error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envLoaded := godotenv.Overload() == nil

	cfg, err := config.Load()
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "env_file", envLoaded, "config", cfg.String())

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "url", config.MaskURL(cfg.Database.URL), "error", err)
		return err
	}
	a.store = st

	if !withImporter {
		return nil
	}

	columns, err := source.LoadColumnMap(cfg.Import.ColumnMapFile)
	if err != nil {
		return withCode(exitUsage, err)
	}
	enc, err := source.LookupEncoding(cfg.Import.CSVEncoding)
	if err != nil {
		return withCode(exitUsage, err)
	}
	reader := source.NewReader(source.Options{Columns: columns, CSVEncoding: enc})

	var m core.Metrics
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.NewPrometheus(a.registry, "")
	}

	a.importer, err = core.NewImporter(st, reader, core.ImporterConfig{
		Format:    cfg.Import.PalletFormat(),
		BatchSize: cfg.Import.BatchSize,
		LockWait:  cfg.Import.LockWait,
		Metrics:   m,
	})
	return err
}
