package uploader

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loranexus/loranexus/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUploader_RunCycle_PostsSnapshotAndSkipsWhenEmpty(t *testing.T) {
	st := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, st.UpsertNode("!11111111", store.NodeUpdate{Num: 0x11111111}, now))

	var received payload
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up := New(st, zap.NewNop(), Config{URL: srv.URL, CollectorID: "test-collector", Lookback: time.Hour})
	up.RunCycle()

	require.Equal(t, 1, calls)
	assert.Equal(t, "test-collector", received.CollectorID)
	assert.Equal(t, schemaVersion, received.SchemaVersion)
	assert.Len(t, received.Data.Nodes, 1)
	assert.Equal(t, "!11111111", received.Data.Nodes[0].ID)

	up2 := New(st, zap.NewNop(), Config{URL: srv.URL, Lookback: time.Microsecond})
	time.Sleep(2 * time.Millisecond)
	up2.RunCycle()
	assert.Equal(t, 1, calls, "no new data in the lookback window must not trigger an upload")
}

func TestUploader_RunCycle_BusyGuardDropsConcurrentCycle(t *testing.T) {
	st := openTestStore(t)
	up := New(st, zap.NewNop(), Config{URL: "http://example.invalid"})

	up.mu.Lock()
	up.busy = true
	up.mu.Unlock()

	up.RunCycle() // must return immediately without dialing the invalid host
}

func TestUploader_Start_NoopWithoutURL(t *testing.T) {
	st := openTestStore(t)
	up := New(st, zap.NewNop(), Config{})
	up.Start()
	up.Stop()
}
