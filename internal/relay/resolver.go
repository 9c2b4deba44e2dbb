// Package relay resolves the 8-bit partial relay identifier carried in
// multi-hop packets back to a full node identity (spec.md §4.3).
package relay

import (
	"sort"
	"time"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/store"
)

type candidate struct {
	num         uint32
	lastHeard   time.Time
	snr         float64
	packetCount int64
}

// Resolve maps a partial (low 8 bits of a node number) back to a full node
// identity. The radio driver's live node table is the sole primary
// candidate source; the Store is consulted only as a strict fallback, when
// the driver-table loop yields zero qualifying candidates, never merged
// with driver-table results. A candidate qualifies when its low byte
// matches partial and it is not sourceNum (a packet cannot relay through
// itself). Among driver-table candidates, ties are broken by most recent
// last-heard, then best reported SNR. Among Store fallback candidates,
// ties are broken by highest total packet count. Grounded on
// original_source/plugins/node_tracking.py's _match_relay_node(), whose
// "if not matches and NodeTracking._db:" guard only queries the database
// once the in-memory node table comes up empty.
func Resolve(partial uint8, sourceNum uint32, driverTable map[uint32]radio.DriverNodeInfo, storeNodes []store.Node) (uint32, bool) {
	var driverCandidates []*candidate
	for num, info := range driverTable {
		if uint8(num) != partial || num == sourceNum {
			continue
		}
		driverCandidates = append(driverCandidates, &candidate{num: num, lastHeard: info.LastHeard, snr: info.SNR})
	}
	if len(driverCandidates) > 0 {
		sort.Slice(driverCandidates, func(i, j int) bool {
			a, b := driverCandidates[i], driverCandidates[j]
			if !a.lastHeard.Equal(b.lastHeard) {
				return a.lastHeard.After(b.lastHeard)
			}
			return a.snr > b.snr
		})
		return driverCandidates[0].num, true
	}

	var storeCandidates []*candidate
	for _, n := range storeNodes {
		if uint8(n.Num) != partial || n.Num == sourceNum {
			continue
		}
		storeCandidates = append(storeCandidates, &candidate{num: n.Num, packetCount: n.TotalPackets})
	}
	if len(storeCandidates) == 0 {
		return 0, false
	}
	sort.Slice(storeCandidates, func(i, j int) bool {
		return storeCandidates[i].packetCount > storeCandidates[j].packetCount
	})
	return storeCandidates[0].num, true
}
