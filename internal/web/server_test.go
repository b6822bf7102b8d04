package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/palletload/internal/config"
	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/JonMunkholm/palletload/internal/source"
	"github.com/JonMunkholm/palletload/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			Dir:            dir,
			PalletPrefix:   "PALLET",
			PalletCapacity: 20,
			SequenceWidth:  5,
			BatchSize:      100,
		},
	}
}

func newTestServer(t *testing.T, store core.Store) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)

	im, err := core.NewImporter(store, source.NewReader(source.Options{}), core.ImporterConfig{
		Format:    cfg.Import.PalletFormat(),
		BatchSize: cfg.Import.BatchSize,
	})
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics\n"))
	})
	return NewServer(store, im, cfg, metrics), dir
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema(ctx))
	return store
}

func writeBatch(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, openStore(t))

	rec := do(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
}

// downStore fails every call as an unreachable database would.
type downStore struct {
	core.Store
}

func (downStore) Ping(context.Context) error {
	return &core.StoreUnavailableError{Op: "ping", Err: errors.New("connection refused")}
}

func (downStore) ListPallets(context.Context, core.PalletFilter) ([]core.PalletStatus, error) {
	return nil, &core.StoreUnavailableError{Op: "list pallets", Err: errors.New("connection refused")}
}

func TestHealthStoreDown(t *testing.T) {
	s, _ := newTestServer(t, downStore{})

	rec := do(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "DB004", decode[ErrorResponse](t, rec).Code)

	rec = do(t, s, http.MethodGet, "/api/pallets")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImportThenQueryPallets(t *testing.T) {
	s, dir := newTestServer(t, openStore(t))
	writeBatch(t, dir, "a.csv", "No.,SSCC / Parcel ID,Country Code\n1,S1,DE\n2,S2,DE\n3,S3,FR\n")

	rec := do(t, s, http.MethodPost, "/api/imports")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[core.RunResult](t, rec)
	require.Equal(t, 3, res.Inserted)
	require.Equal(t, []string{"PALLET00001", "PALLET00002"}, res.PalletsMinted)

	rec = do(t, s, http.MethodGet, "/api/pallets")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[PalletListResponse](t, rec)
	require.Equal(t, 2, list.Count)
	require.Equal(t, 20, list.Capacity)

	rec = do(t, s, http.MethodGet, "/api/pallets?country=FR")
	list = decode[PalletListResponse](t, rec)
	require.Len(t, list.Pallets, 1)
	require.Equal(t, "PALLET00002", list.Pallets[0].PalletID)
	require.Equal(t, 1, list.Pallets[0].Quantity)

	rec = do(t, s, http.MethodGet, "/api/pallets/PALLET00001")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[core.PalletStatus](t, rec)
	require.Equal(t, 2, p.Quantity)
	require.Equal(t, core.DefaultConsoleStatus, p.ConsoleStatus)

	// Same folder again inserts nothing.
	rec = do(t, s, http.MethodPost, "/api/imports")
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[core.RunResult](t, rec)
	require.Zero(t, res.Inserted)
	require.Equal(t, 3, res.AlreadyKnown)
}

func TestImportDryRun(t *testing.T) {
	s, dir := newTestServer(t, openStore(t))
	writeBatch(t, dir, "a.csv", "No.,SSCC / Parcel ID,Country Code\n1,S1,DE\n")

	rec := do(t, s, http.MethodPost, "/api/imports?dry_run=true")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[core.RunResult](t, rec)
	require.True(t, res.DryRun)
	require.Equal(t, 1, res.Assigned)

	rec = do(t, s, http.MethodGet, "/api/pallets")
	require.Zero(t, decode[PalletListResponse](t, rec).Count)
}

func TestImportBadParams(t *testing.T) {
	s, _ := newTestServer(t, openStore(t))

	rec := do(t, s, http.MethodPost, "/api/imports?dry_run=maybe")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/pallets?open=sometimes")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportSchemaError(t *testing.T) {
	s, dir := newTestServer(t, openStore(t))
	writeBatch(t, dir, "a.csv", "No.,Parcel,Country Code\n1,S1,DE\n")

	rec := do(t, s, http.MethodPost, "/api/imports")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	require.Equal(t, "SCH001", resp.Code)
	require.Equal(t, string(core.PhaseRead), resp.Phase)
	require.Contains(t, resp.Error, "SSCC")
	require.Contains(t, resp.Error, "a.csv")
}

func TestImportInProgress(t *testing.T) {
	s, _ := newTestServer(t, openStore(t))

	lock := s.importer.Lock()
	require.True(t, lock.TryAcquire())

	rec := do(t, s, http.MethodGet, "/api/imports/status")
	status := decode[ImportStatusResponse](t, rec)
	require.True(t, status.Running)
	require.NotNil(t, status.Since)

	rec = do(t, s, http.MethodPost, "/api/imports")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "30", rec.Header().Get("Retry-After"))
	require.Equal(t, "IMP001", decode[ErrorResponse](t, rec).Code)

	lock.Release()

	rec = do(t, s, http.MethodGet, "/api/imports/status")
	require.False(t, decode[ImportStatusResponse](t, rec).Running)
}

func TestPalletNotFound(t *testing.T) {
	s, _ := newTestServer(t, openStore(t))

	rec := do(t, s, http.MethodGet, "/api/pallets/PALLET99999")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "IMP003", decode[ErrorResponse](t, rec).Code)
}

func TestMetricsMounted(t *testing.T) {
	s, _ := newTestServer(t, openStore(t))

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Body.String(), "# metrics"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"in progress", core.ErrImportInProgress, http.StatusConflict},
		{"not found", core.ErrPalletNotFound, http.StatusNotFound},
		{"schema", &core.PhaseError{Phase: core.PhaseRead, Err: &core.SchemaError{File: "a.csv", Missing: []string{"SSCC"}}}, http.StatusUnprocessableEntity},
		{"unavailable", &core.StoreUnavailableError{Op: "insert", Err: errors.New("eof")}, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"corrupt", &core.CorruptStateError{PalletID: "X1", Reason: "bad id"}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
