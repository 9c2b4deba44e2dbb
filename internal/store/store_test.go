package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestUpsertNode_InsertThenIncrement(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.UpsertNode("!11111111", NodeUpdate{Num: 0x11111111, ShortName: ptr("ABC")}, now)
	require.NoError(t, err)

	n, ok, err := s.GetNode("!11111111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), n.TotalPackets)
	assert.Equal(t, now, n.FirstSeenUTC)
	assert.Equal(t, now, n.LastSeenUTC)
	assert.Equal(t, "ABC", n.ShortName)

	later := now.Add(time.Minute)
	err = s.UpsertNode("!11111111", NodeUpdate{Num: 0x11111111, ShortName: ptr("XYZ")}, later)
	require.NoError(t, err)

	n2, ok, err := s.GetNode("!11111111")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), n2.TotalPackets)
	assert.Equal(t, now, n2.FirstSeenUTC, "first_seen must not change")
	assert.Equal(t, later, n2.LastSeenUTC)
	assert.Equal(t, "ABC", n2.ShortName, "name must not update within 24h")
}

func TestUpsertNode_NameUpdateAfter24h(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertNode("!11111111", NodeUpdate{Num: 1, ShortName: ptr("ABC")}, now))

	after := now.Add(25 * time.Hour)
	require.NoError(t, s.UpsertNode("!11111111", NodeUpdate{Num: 1, ShortName: ptr("XYZ")}, after))

	n, _, err := s.GetNode("!11111111")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", n.ShortName)
}

func TestUpsertNode_AirplaneFlag(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.UpsertNode("!aaaaaaaa", NodeUpdate{Num: 1, AltitudeM: ptr(int32(900))}, now))
	n, _, err := s.GetNode("!aaaaaaaa")
	require.NoError(t, err)
	assert.True(t, n.IsAirplane)

	require.NoError(t, s.UpsertNode("!aaaaaaaa", NodeUpdate{Num: 1, AltitudeM: ptr(int32(100))}, now.Add(time.Minute)))
	n2, _, err := s.GetNode("!aaaaaaaa")
	require.NoError(t, err)
	assert.False(t, n2.IsAirplane)
}

func TestInsertPacket_FIFOEviction(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertNode("!11111111", NodeUpdate{Num: 1}, base))

	for i := 0; i < 5; i++ {
		e := PacketEntry{NodeID: "!11111111", ReceivedUTC: base.Add(time.Duration(i) * time.Minute), Port: "TEXT_MESSAGE_APP"}
		require.NoError(t, s.InsertPacket(e, 3))
	}

	count, err := s.CountNodePackets("!11111111")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	packets, err := s.NodePackets("!11111111", 10)
	require.NoError(t, err)
	require.Len(t, packets, 3)
	// newest first: t5, t4, t3 remain (0-indexed minutes 4,3,2)
	assert.Equal(t, base.Add(4*time.Minute), packets[0].ReceivedUTC)
	assert.Equal(t, base.Add(2*time.Minute), packets[2].ReceivedUTC)
}

func TestInsertPacket_MaxPerNodeZeroRejects(t *testing.T) {
	s := openTestStore(t)
	e := PacketEntry{NodeID: "!11111111", ReceivedUTC: time.Now(), Port: "TEXT_MESSAGE_APP"}
	err := s.InsertPacket(e, 0)
	assert.Error(t, err)
}

func TestUpdateTopology_RunningMean(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.UpdateTopology("!11111111", "LOCAL_NODE", ptr(4.0), ptr(-80.0), 0, now))
	edges, err := s.Edges(false)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	e := edges[0]
	assert.InDelta(t, 4.0, *e.AvgSNR, 1e-9)
	assert.InDelta(t, -80.0, *e.AvgRSSI, 1e-9)
	assert.InDelta(t, 42.16, e.LinkQuality, 0.01)

	require.NoError(t, s.UpdateTopology("!11111111", "LOCAL_NODE", ptr(6.0), ptr(-70.0), 0, now.Add(time.Minute)))
	edges, err = s.Edges(false)
	require.NoError(t, err)
	e = edges[0]
	assert.InDelta(t, 5.0, *e.AvgSNR, 1e-9)
	assert.InDelta(t, -75.0, *e.AvgRSSI, 1e-9)
	assert.InDelta(t, 4.0, *e.MinSNR, 1e-9)
	assert.InDelta(t, 6.0, *e.MaxSNR, 1e-9)
	assert.Equal(t, int64(2), e.TotalPackets)
}

func TestLinkQuality_MissingComponentsContributeZero(t *testing.T) {
	q := LinkQuality(nil, nil, 0)
	assert.Equal(t, 0.0, q)
	q2 := LinkQuality(ptr(0.0), nil, 50)
	// snrComponent = (0+20)*2.5=50 -> 0.4*50=20; reliability=min(100,100)=100 -> 0.2*100=20
	assert.InDelta(t, 40.0, q2, 1e-9)
}

func TestMarkInactiveLinks(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.UpdateTopology("!11111111", "LOCAL_NODE", ptr(1.0), ptr(-90.0), 0, now.Add(-61*time.Minute)))
	require.NoError(t, s.UpdateTopology("!22222222", "LOCAL_NODE", ptr(1.0), ptr(-90.0), 0, now.Add(-59*time.Minute)))

	n, err := s.MarkInactiveLinks(60*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	edges, err := s.Edges(true)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "!22222222", edges[0].Source)
}

func TestCompleteAttempt_NoPendingIsNoop(t *testing.T) {
	s := openTestStore(t)
	ok, err := s.CompleteAttempt(AttemptTraceroute, "!11111111", AttemptCompletion{}, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompleteAttempt_ClosesMostRecentPending(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()
	require.NoError(t, s.InsertAttempt(AttemptTraceroute, "!11111111", "node-a", base))
	require.NoError(t, s.InsertAttempt(AttemptTraceroute, "!11111111", "node-a", base.Add(time.Second)))

	ok, err := s.CompleteAttempt(AttemptTraceroute, "!11111111", AttemptCompletion{}, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := s.AttemptsByStatus(AttemptTraceroute, AttemptPending)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, base, rows[0].RequestedUTC)
}

func TestTimeoutStaleAttempts(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.InsertAttempt(AttemptTraceroute, "!11111111", "node-a", now.Add(-200*time.Second)))
	require.NoError(t, s.InsertAttempt(AttemptTraceroute, "!22222222", "node-b", now.Add(-10*time.Second)))

	n, err := s.TimeoutStaleAttempts(AttemptTraceroute, 120*time.Second, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	timedOut, err := s.AttemptsByStatus(AttemptTraceroute, AttemptTimeout)
	require.NoError(t, err)
	require.Len(t, timedOut, 1)
	assert.Equal(t, "!11111111", timedOut[0].TargetNodeID)
}

func TestInsertTraceroute_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	id, err := s.InsertTraceroute("!11111111", "!22222222",
		[]string{"!11111111", "!33333333", "!22222222"}, []float64{5.0, 3.0}, 0, now)
	require.NoError(t, err)

	tr, ok, err := s.TracerouteByID(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, tr.HopCount)
	assert.Equal(t, []float64{5.0, 3.0}, tr.SNRSeq)
}
