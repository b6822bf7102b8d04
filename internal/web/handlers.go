package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/JonMunkholm/palletload/internal/logging"
	"github.com/go-chi/chi/v5"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// PalletListResponse is the body of GET /api/pallets.
type PalletListResponse struct {
	Pallets  []core.PalletStatus `json:"pallets"`
	Count    int                 `json:"count"`
	Capacity int                 `json:"capacity"`
}

// ImportStatusResponse is the body of GET /api/imports/status.
type ImportStatusResponse struct {
	Running bool       `json:"running"`
	Since   *time.Time `json:"since,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleListPallets lists pallet status rows.
//
// Query parameters:
//   - country: only pallets holding parcels of this country
//   - open: "true" for pallets below capacity only
func (s *Server) handleListPallets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.PalletFilter{
		CountryCode: strings.TrimSpace(q.Get("country")),
		Capacity:    s.cfg.Import.PalletCapacity,
	}
	if v := q.Get("open"); v != "" {
		open, err := strconv.ParseBool(v)
		if err != nil {
			respondBadRequest(w, r, "open must be true or false")
			return
		}
		filter.OpenOnly = open
	}

	pallets, err := s.store.ListPallets(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if pallets == nil {
		pallets = []core.PalletStatus{}
	}

	writeJSON(w, r, http.StatusOK, PalletListResponse{
		Pallets:  pallets,
		Count:    len(pallets),
		Capacity: s.cfg.Import.PalletCapacity,
	})
}

func (s *Server) handleGetPallet(w http.ResponseWriter, r *http.Request) {
	palletID := chi.URLParam(r, "palletID")

	p, err := s.store.GetPallet(r.Context(), palletID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// handleRunImport runs an import over the configured folder and returns the
// run result. A run already in progress yields 409 rather than queueing.
//
// The run is detached from the request's cancellation: a client hanging up
// does not stop a run midway. It is bounded by IMPORT_TIMEOUT instead.
func (s *Server) handleRunImport(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondBadRequest(w, r, "dry_run must be true or false")
			return
		}
		dryRun = b
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.importTimeout())
	defer cancel()

	res, err := s.importer.TryRun(ctx, s.cfg.Import.Dir, core.RunOptions{DryRun: dryRun})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import request complete",
		"run_id", res.RunID,
		"inserted", res.Inserted,
	)
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	running, since := s.importer.Lock().Running()
	resp := ImportStatusResponse{Running: running}
	if running {
		resp.Since = &since
	}
	writeJSON(w, r, http.StatusOK, resp)
}
