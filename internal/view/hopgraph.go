// Package view is the Snapshot/View component (spec.md §2 row G, §4.7):
// pure, read-only functions over the Store producing the hop-graph,
// coverage map, and aggregate statistics.
package view

import (
	"time"

	"github.com/loranexus/loranexus/internal/store"
)

// LocalNodeID matches internal/ingest's synthetic neighbor identity.
const LocalNodeID = "LOCAL_NODE"

// HopNode is one node in the derived hop-graph, carrying the fields needed
// to render it without a further Store round-trip.
type HopNode struct {
	NodeID      string
	Label       string
	ShortName   string
	LongName    string
	Hops        int // -1 for the synthetic LOCAL_NODE entry, 99 if never observed
	BatteryPct  *int32
	LastSeenUTC time.Time // zero for the synthetic LOCAL_NODE entry
	RelayVia    string
}

// HopEdge is one edge in the derived hop-graph.
type HopEdge struct {
	From string
	To   string
	Hops int
}

// HopGraphResult is HopGraph's return value: the node list (with the
// synthetic LOCAL_NODE entry) plus the edge list connecting them.
type HopGraphResult struct {
	Nodes []HopNode
	Edges []HopEdge
}

type hopSummaryStore interface {
	HopSummaries() ([]store.HopSummary, error)
	ListNodes(includeIgnored bool) ([]store.Node, error)
}

// HopGraph derives the hop-graph per spec.md §4.7: a synthetic LOCAL_NODE
// with hops=-1, a (LOCAL_NODE -> node, hops=0) edge for every node whose
// minimum observed hops-away is 0, and a (relay -> node, hops=min_hops)
// edge otherwise when a valid full-identity relay exists. Partial relay
// markers (not "!"-prefixed) are skipped, per spec.md §4.3's exclusion.
// The node list mirrors node_web_server.py's graph_nodes: every tracked
// node plus the LOCAL_NODE sentinel, each carrying its minimum hop count,
// battery level, last-seen time, and relay-via identity.
func HopGraph(st hopSummaryStore) (HopGraphResult, error) {
	summaries, err := st.HopSummaries()
	if err != nil {
		return HopGraphResult{}, err
	}
	byNodeID := make(map[string]store.HopSummary, len(summaries))
	for _, hs := range summaries {
		byNodeID[hs.NodeID] = hs
	}

	nodes, err := st.ListNodes(true)
	if err != nil {
		return HopGraphResult{}, err
	}

	result := HopGraphResult{
		Nodes: make([]HopNode, 0, len(nodes)+1),
		Edges: make([]HopEdge, 0, len(nodes)),
	}
	result.Nodes = append(result.Nodes, HopNode{
		NodeID: LocalNodeID,
		Label:  "Self (This Device)",
		Hops:   -1,
	})

	for _, n := range nodes {
		label := n.LongName
		if label == "" {
			label = n.ShortName
		}
		if label == "" {
			label = n.ID
		}

		hs, hasSummary := byNodeID[n.ID]
		hops := 99
		relayVia := ""
		if hasSummary {
			hops = hs.MinHops
			relayVia = hs.RecentRelay
		}

		result.Nodes = append(result.Nodes, HopNode{
			NodeID:      n.ID,
			Label:       label,
			ShortName:   n.ShortName,
			LongName:    n.LongName,
			Hops:        hops,
			BatteryPct:  n.BatteryLevel,
			LastSeenUTC: n.LastSeenUTC,
			RelayVia:    relayVia,
		})

		if !hasSummary {
			continue
		}
		if hs.MinHops <= 0 {
			result.Edges = append(result.Edges, HopEdge{From: LocalNodeID, To: hs.NodeID, Hops: 0})
			continue
		}
		if hs.RecentRelay == "" || hs.RecentRelay[0] != '!' {
			continue // unresolved partial marker, skipped
		}
		result.Edges = append(result.Edges, HopEdge{From: hs.RecentRelay, To: hs.NodeID, Hops: hs.MinHops})
	}

	return result, nil
}
