package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/palletload/internal/metrics"
	"github.com/JonMunkholm/palletload/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pallet and import API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.bootstrap(ctx, true); err != nil {
				return err
			}
			if err := a.store.InitSchema(ctx); err != nil {
				return err
			}
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	var metricsHandler http.Handler
	if a.registry != nil {
		metricsHandler = metrics.Handler(a.registry)
	}
	server := web.NewServer(a.store, a.importer, a.cfg, metricsHandler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Waits for a running import as well as open requests.
	if running, since := a.importer.Lock().Running(); running {
		slog.Info("waiting for import to complete", "started", since)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	return <-errCh
}
