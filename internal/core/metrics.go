package core

// Metrics receives import run measurements.
// Implemented by internal/metrics; NopMetrics discards everything.
type Metrics interface {
	// RecordRun records a finished run. outcome is "success", "dry_run" or the
	// failing phase name.
	RecordRun(outcome string, seconds float64)

	// RecordParcels records parcels inserted and parcels dropped by reason
	// ("duplicate_in_batch", "already_known", "blank_key").
	RecordParcels(inserted int, dropped map[string]int)

	// RecordPalletsMinted records newly issued pallet ids.
	RecordPalletsMinted(n int)

	// SetOpenPallets reports, per country, how many pallets still have room
	// after a run.
	SetOpenPallets(byCountry map[string]int)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) RecordRun(string, float64)         {}
func (NopMetrics) RecordParcels(int, map[string]int) {}
func (NopMetrics) RecordPalletsMinted(int)           {}
func (NopMetrics) SetOpenPallets(map[string]int)     {}
