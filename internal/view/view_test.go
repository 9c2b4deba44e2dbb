package view

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/loranexus/loranexus/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestHopGraph_SyntheticLocalNodeAndRelayEdges(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.UpsertNode("!11111111", store.NodeUpdate{Num: 0x11111111}, now))
	require.NoError(t, s.UpsertNode("!22222222", store.NodeUpdate{Num: 0x22222222}, now))

	require.NoError(t, s.InsertPacket(store.PacketEntry{
		NodeID: "!11111111", ReceivedUTC: now, Port: "text", HopStart: 3, HopLimit: 3, HopsAway: 0,
	}, 1000))
	require.NoError(t, s.InsertPacket(store.PacketEntry{
		NodeID: "!22222222", ReceivedUTC: now, Port: "text", HopStart: 3, HopLimit: 1, HopsAway: 2,
		RelayNodeID: "!11111111",
	}, 1000))

	graph, err := HopGraph(s)
	require.NoError(t, err)

	var sawLocal, sawRelay bool
	for _, e := range graph.Edges {
		if e.From == LocalNodeID && e.To == "!11111111" && e.Hops == 0 {
			sawLocal = true
		}
		if e.From == "!11111111" && e.To == "!22222222" && e.Hops == 2 {
			sawRelay = true
		}
	}
	assert.True(t, sawLocal, "direct node gets a synthetic LOCAL_NODE edge")
	assert.True(t, sawRelay, "indirect node gets a relay-sourced edge at its min hop count")

	var sawLocalNode, sawRelayNode bool
	for _, n := range graph.Nodes {
		if n.NodeID == LocalNodeID && n.Hops == -1 {
			sawLocalNode = true
		}
		if n.NodeID == "!22222222" && n.Hops == 2 && n.RelayVia == "!11111111" {
			sawRelayNode = true
		}
	}
	assert.True(t, sawLocalNode, "node list carries the synthetic LOCAL_NODE entry at hops=-1")
	assert.True(t, sawRelayNode, "node list carries the relayed node's min hops and relay-via identity")
}

func TestHopGraph_UnresolvedRelaySkipped(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.UpsertNode("!33333333", store.NodeUpdate{Num: 0x33333333}, now))
	require.NoError(t, s.InsertPacket(store.PacketEntry{
		NodeID: "!33333333", ReceivedUTC: now, Port: "text", HopStart: 3, HopLimit: 1, HopsAway: 2,
		RelayNodeID: "42", // unresolved partial, not "!"-prefixed
	}, 1000))

	graph, err := HopGraph(s)
	require.NoError(t, err)
	assert.Empty(t, graph.Edges, "unresolved partial relay marker produces no edge")
}

func TestCoverage_DirectAndIndirectFromRelayPackets(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.UpsertNode("!aaaaaaaa", store.NodeUpdate{Num: 0xaaaaaaaa}, now))
	require.NoError(t, s.UpsertNode("!bbbbbbbb", store.NodeUpdate{Num: 0xbbbbbbbb}, now))
	require.NoError(t, s.UpsertNode("!cccccccc", store.NodeUpdate{Num: 0xcccccccc}, now))

	require.NoError(t, s.InsertPacket(store.PacketEntry{
		NodeID: "!aaaaaaaa", ReceivedUTC: now, Port: "text", HopsAway: 0,
		RelayNodeID: "!bbbbbbbb", RxSNR: ptr(5.0), RxRSSI: ptr(-80),
	}, 1000))
	require.NoError(t, s.InsertPacket(store.PacketEntry{
		NodeID: "!cccccccc", ReceivedUTC: now, Port: "text", HopsAway: 2,
		RelayNodeID: "!bbbbbbbb",
	}, 1000))

	cov, err := Coverage(s, 24*time.Hour, now)
	require.NoError(t, err)

	require.Len(t, cov.DirectEdges, 1)
	edge := cov.DirectEdges[0]
	assert.ElementsMatch(t, []string{"!aaaaaaaa", "!bbbbbbbb"}, []string{edge.NodeA, edge.NodeB})
	assert.Equal(t, "low", edge.Confidence)
	assert.True(t, edge.Provenance["relay-packet"])

	require.Len(t, cov.IndirectCoverage, 1)
	ic := cov.IndirectCoverage[0]
	assert.Equal(t, "!bbbbbbbb", ic.RelayNodeID)
	assert.True(t, ic.Tiers["2"]["!cccccccc"])
}

func TestCoverage_ConfidenceTierFromObservationCount(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.UpsertNode("!d1111111", store.NodeUpdate{Num: 1}, now))
	require.NoError(t, s.UpsertNode("!d2222222", store.NodeUpdate{Num: 2}, now))
	for i := 0; i < 20; i++ {
		require.NoError(t, s.InsertPacket(store.PacketEntry{
			NodeID: "!d1111111", ReceivedUTC: now, Port: "text", HopsAway: 0,
			RelayNodeID: "!d2222222",
		}, 1000))
	}
	cov, err := Coverage(s, 24*time.Hour, now)
	require.NoError(t, err)
	require.Len(t, cov.DirectEdges, 1)
	assert.Equal(t, "high", cov.DirectEdges[0].Confidence)
}

func TestExport_GeoJSONSkipsUnpositionedNodes(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.UpsertNode("!e1111111", store.NodeUpdate{Num: 1, Latitude: ptr(45.0), Longitude: ptr(-122.0)}, now))
	require.NoError(t, s.UpsertNode("!e2222222", store.NodeUpdate{Num: 2}, now))

	fc, err := ExportGeoJSON(s)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, [2]float64{-122.0, 45.0}, fc.Features[0].Geometry.Coordinates)
}

func TestNetworkStats_PassesThrough(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.UpsertNode("!f1111111", store.NodeUpdate{Num: 1}, now))

	st, err := NetworkStats(s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalNodes)
}
