package radio

import (
	"sync"
	"time"
)

// NodeTable is a mutex-guarded, live-updated cache of node identity/signal
// state: every received packet refreshes last-heard time and SNR, and
// NODEINFO_APP packets also refresh the names.
// It is the primary relay-resolution candidate source (spec.md §4.3),
// grounded on internal/core/nodelookup.go's cached-lookup pattern, adapted
// from a file-backed periodic reload to a driver-owned live update.
type NodeTable struct {
	mu      sync.RWMutex
	entries map[uint32]DriverNodeInfo
}

// NewNodeTable returns an empty table.
func NewNodeTable() *NodeTable {
	return &NodeTable{entries: make(map[uint32]DriverNodeInfo)}
}

// Snapshot returns a shallow copy of the current table contents, safe for
// the caller to range over without holding the table's lock.
func (t *NodeTable) Snapshot() map[uint32]DriverNodeInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[uint32]DriverNodeInfo, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Observe records identity (from a NODEINFO_APP packet) for num, creating
// the entry if absent.
func (t *NodeTable) Observe(num uint32, shortName, longName string, heard time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[num]
	e.Num = num
	e.ID = NodeIDString(num)
	if shortName != "" {
		e.ShortName = shortName
	}
	if longName != "" {
		e.LongName = longName
	}
	if heard.After(e.LastHeard) {
		e.LastHeard = heard
	}
	t.entries[num] = e
}

// Heard updates last-heard time and signal quality for num from any
// received packet, creating the entry if absent.
func (t *NodeTable) Heard(num uint32, snr float64, heard time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[num]
	e.Num = num
	if e.ID == "" {
		e.ID = NodeIDString(num)
	}
	e.SNR = snr
	if heard.After(e.LastHeard) {
		e.LastHeard = heard
	}
	t.entries[num] = e
}
