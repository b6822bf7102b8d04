package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/spf13/cobra"
)

type importOptions struct {
	dir    string
	dryRun bool
	initDB bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import every batch file in a folder",
		Long: `Reads every .xlsx and .csv file in the folder, drops parcels already
stored, assigns new parcels to pallets of their country and writes the result.
Running the same folder twice inserts nothing the second time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bootstrap(cmd.Context(), true); err != nil {
				return err
			}
			if opts.dir == "" {
				opts.dir = a.cfg.Import.Dir
			}
			return runImport(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "Folder of batch files (default: IMPORT_DIR)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Allocate and report without writing")
	cmd.Flags().BoolVar(&opts.initDB, "init-db", true, "Create missing tables before importing")

	return cmd
}

func runImport(ctx context.Context, a *app, opts importOptions, out io.Writer) error {
	if strings.TrimSpace(opts.dir) == "" {
		return withCode(exitUsage, fmt.Errorf("--dir is required when IMPORT_DIR is empty"))
	}

	if opts.initDB && !opts.dryRun {
		if err := a.store.InitSchema(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Import.Timeout)
	defer cancel()

	res, err := a.importer.Run(ctx, opts.dir, core.RunOptions{DryRun: opts.dryRun})
	if err != nil {
		return err
	}

	printResult(out, res)
	slog.Debug("import finished", "run_id", res.RunID)
	return nil
}

func printResult(w io.Writer, res *core.RunResult) {
	mode := "import"
	if res.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "%s %s of %s (%d files)\n", mode, res.RunID, res.Dir, len(res.Source.Files))
	fmt.Fprintf(w, "  rows read:        %d\n", res.Source.RowsRead)
	fmt.Fprintf(w, "  duplicates:       %d\n", res.Source.DuplicateRows)
	fmt.Fprintf(w, "  blank SSCC:       %d\n", res.Source.BlankKeyRows)
	fmt.Fprintf(w, "  already known:    %d\n", res.AlreadyKnown)
	fmt.Fprintf(w, "  assigned:         %d\n", res.Assigned)
	fmt.Fprintf(w, "  inserted:         %d\n", res.Inserted)
	fmt.Fprintf(w, "  pallets touched:  %d\n", len(res.PalletsTouched))
	fmt.Fprintf(w, "  pallets minted:   %d\n", len(res.PalletsMinted))
	if len(res.PalletsMinted) > 0 {
		fmt.Fprintf(w, "    %s\n", strings.Join(res.PalletsMinted, " "))
	}
	fmt.Fprintf(w, "  took:             %s\n", res.Duration.Round(time.Millisecond))
}
