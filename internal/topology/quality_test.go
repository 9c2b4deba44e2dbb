package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	lastSource, lastNeighbor string
	lastHop                  int
	calls                    int
}

func (f *fakeStore) UpdateTopology(source, neighbor string, snr, rssi *float64, hopCount int, now time.Time) error {
	f.lastSource, f.lastNeighbor, f.lastHop = source, neighbor, hopCount
	f.calls++
	return nil
}

func (f *fakeStore) MarkInactiveLinks(timeout time.Duration, now time.Time) (int64, error) {
	return 0, nil
}

func TestEngine_ObserveForwardsToStore(t *testing.T) {
	fs := &fakeStore{}
	e := New(fs)
	snr := 4.0
	rssi := -80.0
	err := e.Observe("!11111111", "LOCAL_NODE", &snr, &rssi, 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, fs.calls)
	assert.Equal(t, "!11111111", fs.lastSource)
	assert.Equal(t, "LOCAL_NODE", fs.lastNeighbor)
}

func TestSweeper_StartStopIsIdempotent(t *testing.T) {
	fs := &fakeStore{}
	sw := NewSweeper(fs, 10*time.Millisecond, time.Minute, nil)
	sw.Start()
	sw.Start() // no-op, must not deadlock or double-spawn
	time.Sleep(30 * time.Millisecond)
	sw.Stop()
	sw.Stop() // no-op
}
