package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")

	p.RecordRun("success", 0.4)
	p.RecordRun("write_parcels", 1.2)
	p.RecordRun("success", 0.1)
	p.RecordParcels(25, map[string]int{"already_known": 3, "duplicate_in_batch": 1})
	p.RecordParcels(5, map[string]int{"already_known": 2})
	p.RecordPalletsMinted(2)

	require.Equal(t, 2.0, testutil.ToFloat64(p.runs.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.runs.WithLabelValues("write_parcels")))
	require.Equal(t, 30.0, testutil.ToFloat64(p.inserted))
	require.Equal(t, 5.0, testutil.ToFloat64(p.dropped.WithLabelValues("already_known")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.dropped.WithLabelValues("duplicate_in_batch")))
	require.Equal(t, 2.0, testutil.ToFloat64(p.palletsMinted))
}

func TestPrometheusCollector_OpenPalletsReplaced(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.SetOpenPallets(map[string]int{"US": 1, "DE": 2})
	require.Equal(t, 2, testutil.CollectAndCount(p.openPallets))

	p.SetOpenPallets(map[string]int{"US": 3})
	require.Equal(t, 1, testutil.CollectAndCount(p.openPallets))
	require.Equal(t, 3.0, testutil.ToFloat64(p.openPallets.WithLabelValues("US")))
}

func TestHandler_ExposesNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "")
	p.RecordPalletsMinted(1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "palletload_allocator_pallets_minted_total 1"), string(body))
}
