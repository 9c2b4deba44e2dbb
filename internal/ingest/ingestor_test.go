package ingest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/store"
	"github.com/loranexus/loranexus/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	packets chan radio.PacketRecord
	table   map[uint32]radio.DriverNodeInfo
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{packets: make(chan radio.PacketRecord, 8), table: map[uint32]radio.DriverNodeInfo{}}
}

func (f *fakeDriver) Packets() <-chan radio.PacketRecord                          { return f.packets }
func (f *fakeDriver) SendTraceroute(destNum uint32, hopLimit int, wantResponse bool) error { return nil }
func (f *fakeDriver) SendTelemetryRequest(destNum uint32, wantResponse bool) error { return nil }
func (f *fakeDriver) NodeTable() map[uint32]radio.DriverNodeInfo                   { return f.table }
func (f *fakeDriver) IsConnected() bool                                            { return true }

func newTestIngestor(t *testing.T) (*Ingestor, *store.Store, *fakeDriver) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	drv := newFakeDriver()
	engine := topology.New(st)
	return New(st, engine, drv, Config{}), st, drv
}

func ptr[T any](v T) *T { return &v }

func TestIngest_DirectTextMessage(t *testing.T) {
	ig, st, _ := newTestIngestor(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	pkt := radio.PacketRecord{
		From: 0x11111111, FromID: "!11111111",
		HopStart: 3, HopLimit: 3,
		RxSNR: ptr(4.0), RxRSSI: ptrInt(-80),
		Decoded:    &radio.DecodedPayload{Port: radio.PortText, Text: &radio.TextPayload{Text: "hi"}},
		ReceivedAt: now,
	}
	require.NoError(t, ig.Ingest(pkt))

	n, ok, err := st.GetNode("!11111111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), n.TotalPackets)

	packets, err := st.NodePackets("!11111111", 10)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, 0, packets[0].HopsAway)
	assert.Equal(t, "hi", packets[0].MessageText)

	edges, err := st.NeighborsOf("!11111111")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.InDelta(t, 4.0, *edges[0].AvgSNR, 1e-9)
	assert.InDelta(t, -80.0, *edges[0].AvgRSSI, 1e-9)
}

func TestIngest_RelayAttributionSingleCandidate(t *testing.T) {
	ig, st, drv := newTestIngestor(t)
	drv.table[0xaabbccdd] = radio.DriverNodeInfo{Num: 0xaabbccdd}

	relayByte := uint8(0xdd)
	pkt := radio.PacketRecord{
		From: 0x11111111, FromID: "!11111111",
		HopStart: 3, HopLimit: 1, RelayNode: &relayByte,
		Decoded:    &radio.DecodedPayload{Port: radio.PortText, Text: &radio.TextPayload{Text: "hi"}},
		ReceivedAt: time.Now(),
	}
	require.NoError(t, ig.Ingest(pkt))

	packets, err := st.NodePackets("!11111111", 10)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.Equal(t, "!aabbccdd", packets[0].RelayNodeID)
	assert.Equal(t, 2, packets[0].HopsAway)
}

func TestIngest_TracerouteCorrelation(t *testing.T) {
	ig, st, _ := newTestIngestor(t)
	now := time.Now().UTC()
	require.NoError(t, st.InsertAttempt(store.AttemptTraceroute, "!22222222", "", now))

	pkt := radio.PacketRecord{
		From: 0x22222222, FromID: "!22222222",
		Decoded: &radio.DecodedPayload{Port: radio.PortTraceroute, Traceroute: &radio.TraceroutePayload{
			Route:      []uint32{0x11111111, 0x33333333, 0x22222222},
			SNRTowards: []float64{5.0, 3.0},
		}},
		ReceivedAt: now.Add(time.Second),
	}
	require.NoError(t, ig.Ingest(pkt))

	trs, err := st.Traceroutes(10)
	require.NoError(t, err)
	require.Len(t, trs, 1)
	assert.Equal(t, 3, trs[0].HopCount)

	edges, err := st.NeighborsOf("!11111111")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.InDelta(t, 5.0, *edges[0].AvgSNR, 1e-9)

	edges2, err := st.NeighborsOf("!33333333")
	require.NoError(t, err)
	require.Len(t, edges2, 1)
	assert.InDelta(t, 3.0, *edges2[0].AvgSNR, 1e-9)

	pending, err := st.AttemptsByStatus(store.AttemptTraceroute, store.AttemptPending)
	require.NoError(t, err)
	assert.Len(t, pending, 0)
	completed, err := st.AttemptsByStatus(store.AttemptTraceroute, store.AttemptCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
}

func ptrInt(v int) *int { return &v }
