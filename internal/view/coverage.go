package view

import (
	"sort"
	"time"

	"github.com/loranexus/loranexus/internal/store"
)

// DirectEdge is one deduplicated direct-link entry in the coverage map.
type DirectEdge struct {
	NodeA, NodeB  string
	Observations  int
	SNRSum        float64
	SNRCount      int
	RSSISum       float64
	RSSICount     int
	Provenance    map[string]bool
	Confidence    string // high | medium | low
}

// IndirectCoverage is one relay's set of senders heard indirectly,
// bucketed by hop tier {1, 2, 3, "4+"}.
type IndirectCoverage struct {
	RelayNodeID string
	Tiers       map[string]map[string]bool // tier -> set of source node ids
}

// CoverageNode is one positioned node plotted on the coverage map,
// mirroring node_web_server.py's nodes_with_gps entries.
type CoverageNode struct {
	NodeID          string
	Name            string
	ShortName       string
	Latitude        float64
	Longitude       float64
	AltitudeM       *int32
	BatteryPct      *int32
	HardwareModel   string
	LastSeenUTC     time.Time
	TotalPackets    int64
	IsMQTT          bool
	DirectLinkCount int
}

// CoverageMap is the payload returned by the coverage view (spec.md §4.7).
type CoverageMap struct {
	Nodes            []CoverageNode
	DirectEdges      []DirectEdge
	IndirectCoverage []IndirectCoverage
	HopHistogram     map[int]int
}

type coverageStore interface {
	RelayPacketsSince(since time.Time) ([]store.RelayPacketSample, error)
	AttemptsSince(kind store.AttemptKind, since time.Time) ([]store.Attempt, error)
	TraceroutesSince(since time.Time) ([]store.Traceroute, error)
	ListNodes(includeIgnored bool) ([]store.Node, error)
}

func pairKey(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Coverage builds the coverage map over the window ending now, looking
// back `window` (default 24h per spec.md §4.7). Direct edges are sourced
// from relay-attributed packets with hops_away=0, completed telemetry
// attempts with a resolved relay and hops_away=0, and consecutive pairs
// in traceroute routes. hops_away>=1 entries credit the relay as center
// of an indirect coverage set bucketed by hop tier. The node list is
// position-filtered (GPS-having) and last-seen-within-window, each
// carrying its direct link count tallied from the edge set. Grounded on
// original_source/plugins/node_web_server.py:get_map_data()'s
// nodes_with_gps / direct_connections_map / indirect_coverage_map
// construction.
func Coverage(st coverageStore, window time.Duration, now time.Time) (CoverageMap, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	since := now.Add(-window)

	direct := map[[2]string]*DirectEdge{}
	indirect := map[string]*IndirectCoverage{}
	histogram := map[int]int{}

	addDirect := func(a, b string, snr *float64, rssi *int, provenance string) {
		if a == "" || b == "" || a == b {
			return
		}
		x, y := pairKey(a, b)
		key := [2]string{x, y}
		e, ok := direct[key]
		if !ok {
			e = &DirectEdge{NodeA: x, NodeB: y, Provenance: map[string]bool{}}
			direct[key] = e
		}
		e.Observations++
		e.Provenance[provenance] = true
		if snr != nil {
			e.SNRSum += *snr
			e.SNRCount++
		}
		if rssi != nil {
			e.RSSISum += float64(*rssi)
			e.RSSICount++
		}
	}

	addIndirect := func(relay, source string, hops int) {
		if relay == "" || relay[0] != '!' || source == "" {
			return
		}
		ic, ok := indirect[relay]
		if !ok {
			ic = &IndirectCoverage{RelayNodeID: relay, Tiers: map[string]map[string]bool{}}
			indirect[relay] = ic
		}
		tier := hopTier(hops)
		if ic.Tiers[tier] == nil {
			ic.Tiers[tier] = map[string]bool{}
		}
		ic.Tiers[tier][source] = true
	}

	packets, err := st.RelayPacketsSince(since)
	if err != nil {
		return CoverageMap{}, err
	}
	for _, p := range packets {
		histogram[p.HopsAway]++
		if p.RelayNodeID == "" || p.RelayNodeID[0] != '!' {
			continue // unresolved partial marker excluded from derived views
		}
		if p.HopsAway == 0 {
			addDirect(p.NodeID, p.RelayNodeID, p.RxSNR, p.RxRSSI, "relay-packet")
		} else {
			addIndirect(p.RelayNodeID, p.NodeID, p.HopsAway)
		}
	}

	telemetry, err := st.AttemptsSince(store.AttemptTelemetry, since)
	if err != nil {
		return CoverageMap{}, err
	}
	for _, a := range telemetry {
		if a.RelayNodeID == "" || a.RelayNodeID[0] != '!' {
			continue
		}
		hops := 0
		if a.HopsAway != nil {
			hops = *a.HopsAway
		}
		if hops == 0 {
			addDirect(a.TargetNodeID, a.RelayNodeID, a.RxSNR, a.RxRSSI, "telemetry")
		} else {
			addIndirect(a.RelayNodeID, a.TargetNodeID, hops)
		}
	}

	traceroutes, err := st.TraceroutesSince(since)
	if err != nil {
		return CoverageMap{}, err
	}
	for _, tr := range traceroutes {
		for i := 0; i+1 < len(tr.Route); i++ {
			var snr *float64
			if i < len(tr.SNRSeq) {
				v := tr.SNRSeq[i]
				snr = &v
			}
			addDirect(tr.Route[i], tr.Route[i+1], snr, nil, "traceroute")
		}
	}

	edges := make([]DirectEdge, 0, len(direct))
	for _, e := range direct {
		e.Confidence = confidenceTier(e.Observations)
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].NodeA != edges[j].NodeA {
			return edges[i].NodeA < edges[j].NodeA
		}
		return edges[i].NodeB < edges[j].NodeB
	})

	coverages := make([]IndirectCoverage, 0, len(indirect))
	for _, ic := range indirect {
		coverages = append(coverages, *ic)
	}
	sort.Slice(coverages, func(i, j int) bool { return coverages[i].RelayNodeID < coverages[j].RelayNodeID })

	linkCounts := map[string]int{}
	for _, e := range edges {
		linkCounts[e.NodeA]++
		linkCounts[e.NodeB]++
	}

	allNodes, err := st.ListNodes(true)
	if err != nil {
		return CoverageMap{}, err
	}
	nodes := make([]CoverageNode, 0, len(allNodes))
	for _, n := range allNodes {
		if n.Latitude == nil || n.Longitude == nil {
			continue
		}
		if n.LastSeenUTC.Before(since) {
			continue
		}
		name := n.LongName
		if name == "" {
			name = n.ShortName
		}
		if name == "" {
			name = n.ID
		}
		nodes = append(nodes, CoverageNode{
			NodeID:          n.ID,
			Name:            name,
			ShortName:       n.ShortName,
			Latitude:        *n.Latitude,
			Longitude:       *n.Longitude,
			AltitudeM:       n.AltitudeM,
			BatteryPct:      n.BatteryLevel,
			HardwareModel:   n.HardwareModel,
			LastSeenUTC:     n.LastSeenUTC,
			TotalPackets:    n.TotalPackets,
			IsMQTT:          n.IsMQTT,
			DirectLinkCount: linkCounts[n.ID],
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NodeID < nodes[j].NodeID })

	return CoverageMap{
		Nodes:            nodes,
		DirectEdges:      edges,
		IndirectCoverage: coverages,
		HopHistogram:     histogram,
	}, nil
}

func hopTier(hops int) string {
	switch {
	case hops <= 1:
		return "1"
	case hops == 2:
		return "2"
	case hops == 3:
		return "3"
	default:
		return "4+"
	}
}

// confidenceTier assigns a confidence tier from observation count per
// spec.md §4.7: >=20 high, >=5 medium, else low.
func confidenceTier(observations int) string {
	switch {
	case observations >= 20:
		return "high"
	case observations >= 5:
		return "medium"
	default:
		return "low"
	}
}
