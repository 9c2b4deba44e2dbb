package schedule

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	traceroutes int32
	telemetry   int32
}

func (f *fakeDriver) Packets() <-chan radio.PacketRecord { return nil }
func (f *fakeDriver) SendTraceroute(destNum uint32, hopLimit int, wantResponse bool) error {
	atomic.AddInt32(&f.traceroutes, 1)
	return nil
}
func (f *fakeDriver) SendTelemetryRequest(destNum uint32, wantResponse bool) error {
	atomic.AddInt32(&f.telemetry, 1)
	return nil
}
func (f *fakeDriver) NodeTable() map[uint32]radio.DriverNodeInfo { return nil }
func (f *fakeDriver) IsConnected() bool                          { return true }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestTelemetryScheduler_SkipsRecentTraceroute(t *testing.T) {
	st := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, st.UpsertNode("!44444444", store.NodeUpdate{Num: 0x44444444}, now.Add(-10*time.Minute)))
	_, err := st.InsertTraceroute("", "!44444444", []string{"!44444444"}, nil, 0, now.Add(-time.Hour))
	require.NoError(t, err)

	drv := &fakeDriver{}
	sched := NewTelemetryScheduler(st, drv, TelemetryConfig{
		ActiveThresholdMin:   2 * time.Hour,
		RequestAgeHours:      2 * time.Hour,
		SkipRecentTraceroute: true,
		TracerouteAgeHours:   4 * time.Hour,
	})
	sched.RunCycle()
	assert.Equal(t, int32(0), drv.telemetry, "node with a recent traceroute must be skipped")

	sched2 := NewTelemetryScheduler(st, drv, TelemetryConfig{
		ActiveThresholdMin:   2 * time.Hour,
		RequestAgeHours:      2 * time.Hour,
		SkipRecentTraceroute: false,
	})
	sched2.RunCycle()
	assert.Equal(t, int32(1), drv.telemetry, "with the skip flag off, the node is selected")
}

func TestTracerouteScheduler_BusyFlagDropsConcurrentCycle(t *testing.T) {
	st := openTestStore(t)
	drv := &fakeDriver{}
	sched := NewTracerouteScheduler(st, drv, TracerouteConfig{})

	sched.mu.Lock()
	sched.busy = true
	sched.mu.Unlock()

	sched.RunCycle() // must drop immediately, not block
	assert.Equal(t, int32(0), drv.traceroutes)

	sched.mu.Lock()
	sched.busy = false
	sched.mu.Unlock()
}
