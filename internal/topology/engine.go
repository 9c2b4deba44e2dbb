package topology

import "time"

// Updater is the narrow Store dependency the Ingestor uses to report an
// observed edge sample (spec.md §4.4).
type Updater interface {
	UpdateTopology(source, neighbor string, snr *float64, rssi *float64, hopCount int, now time.Time) error
}

// Engine is the Topology Engine component (spec.md §2 row D): it forwards
// observed samples to the Store's running-aggregate command. The
// incremental mean/min/max math and link-quality scoring live in
// internal/store (the component that owns the edge row and its
// transaction), per spec.md §9's "maintain (count, mean, min, max) and
// update atomically inside a transaction holding the edge row" note.
type Engine struct {
	store Updater
}

// New builds a Topology Engine over the given Store.
func New(store Updater) *Engine {
	return &Engine{store: store}
}

// Observe records one sample of source reaching neighbor with the given
// SNR/RSSI and hop count.
func (e *Engine) Observe(source, neighbor string, snr *float64, rssi *float64, hopCount int, now time.Time) error {
	return e.store.UpdateTopology(source, neighbor, snr, rssi, hopCount, now)
}
