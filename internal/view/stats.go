package view

import "github.com/loranexus/loranexus/internal/store"

type statsStore interface {
	NetworkStats() (store.Stats, error)
}

// NetworkStats passes through the Store's aggregate counters (spec.md
// §4.7), grounded on original_source/plugins/node_web_server.py:get_stats.
func NetworkStats(st statsStore) (store.Stats, error) {
	return st.NetworkStats()
}
