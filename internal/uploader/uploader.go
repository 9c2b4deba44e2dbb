// Package uploader implements the federated snapshot uploader SPEC_FULL.md
// §12 adds: a periodic loop shaped like internal/core/polling.go's
// PollingService (ticker, context cancellation, busy guard) that instead of
// polling a transport posts a JSON snapshot of recent nodes/packets/topology/
// traceroutes to a collector endpoint, grounded on
// original_source/plugins/federated_uploader.py's _export_loop/_run_export/
// _upload_batch payload contract (collector_id, schema_version, lookback
// window, {nodes, packets, topology, traceroutes} data envelope).
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loranexus/loranexus/internal/store"
)

// schemaVersion is the uploader payload's wire format version, grounded on
// federated_uploader.py's payload["schema_version"] = 1.
const schemaVersion = 1

// SnapshotStore is the narrow Store dependency the uploader needs.
type SnapshotStore interface {
	NodesSeenSince(since time.Time) ([]store.Node, error)
	PacketsSince(since time.Time, limit int) ([]store.PacketEntry, error)
	EdgesSince(since time.Time) ([]store.TopologyEdge, error)
	TraceroutesSince(since time.Time) ([]store.Traceroute, error)
}

// Snapshot is the upload payload body, mirroring federated_uploader.py's
// {nodes, packets, topology, traceroutes} data dict.
type Snapshot struct {
	Nodes       []store.Node         `json:"nodes"`
	Packets     []store.PacketEntry  `json:"packets"`
	Topology    []store.TopologyEdge `json:"topology"`
	Traceroutes []store.Traceroute   `json:"traceroutes"`
}

func (sn Snapshot) empty() bool {
	return len(sn.Nodes) == 0 && len(sn.Packets) == 0 && len(sn.Topology) == 0 && len(sn.Traceroutes) == 0
}

// payload is the envelope posted to the collector endpoint, grounded on
// federated_uploader.py's _upload_batch payload dict.
type payload struct {
	CollectorID   string    `json:"collector_id"`
	Timestamp     time.Time `json:"timestamp"`
	SchemaVersion int       `json:"schema_version"`
	Data          Snapshot  `json:"data"`
}

// Config holds the uploader's tunables (spec.md leaves federation
// unspecified in detail; these default from federated_uploader.py's config
// schema).
type Config struct {
	URL            string        // collector ingest endpoint
	CollectorID    string        // default "loranexus-collector"
	Interval       time.Duration // default 60 min
	Lookback       time.Duration // default 2 h
	PacketLimit    int           // default 5000, mirrors the Python LIMIT 5000
	RequestTimeout time.Duration // default 60 s
}

func (c Config) withDefaults() Config {
	if c.CollectorID == "" {
		c.CollectorID = "loranexus-collector"
	}
	if c.Interval <= 0 {
		c.Interval = 60 * time.Minute
	}
	if c.Lookback <= 0 {
		c.Lookback = 2 * time.Hour
	}
	if c.PacketLimit <= 0 {
		c.PacketLimit = 5000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	return c
}

// Uploader is the Federated Uploader component. Disabled unless cfg.URL is
// set; Start is then a no-op, matching federated_uploader.py's
// "if not self.enabled: return" bootstrap check.
type Uploader struct {
	store  SnapshotStore
	client *http.Client
	logger *zap.Logger
	cfg    Config

	mu      sync.Mutex
	busy    bool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds an Uploader with cfg's defaults applied.
func New(st SnapshotStore, logger *zap.Logger, cfg Config) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Uploader{
		store:  st,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
		cfg:    cfg,
	}
}

// Start begins the loop with a warm-up delay, matching
// federated_uploader.py's _export_loop's time.sleep(30) before the first
// run. A no-op when no collector URL is configured.
func (u *Uploader) Start() {
	if u.cfg.URL == "" {
		u.logger.Info("uploader disabled: no collector url configured")
		return
	}
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return
	}
	u.running = true
	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.mu.Unlock()

	u.wg.Add(1)
	go u.loop(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (u *Uploader) Stop() {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	u.running = false
	cancel := u.cancel
	u.mu.Unlock()

	cancel()
	u.wg.Wait()
}

func (u *Uploader) loop(ctx context.Context) {
	defer u.wg.Done()
	select {
	case <-time.After(30 * time.Second):
	case <-ctx.Done():
		return
	}
	u.RunCycle()

	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			u.RunCycle()
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle runs one export-and-upload pass. Skipped if the previous cycle
// is still in flight, matching the scheduler busy-flag idiom used
// elsewhere in this repo for reentrancy safety.
func (u *Uploader) RunCycle() {
	u.mu.Lock()
	if u.busy {
		u.mu.Unlock()
		return
	}
	u.busy = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.busy = false
		u.mu.Unlock()
	}()

	since := time.Now().UTC().Add(-u.cfg.Lookback)
	snap, err := u.buildSnapshot(since)
	if err != nil {
		u.logger.Warn("uploader: snapshot export failed", zap.Error(err))
		return
	}
	if snap.empty() {
		u.logger.Info("uploader: no new data to export", zap.Duration("lookback", u.cfg.Lookback))
		return
	}
	if err := u.upload(snap); err != nil {
		u.logger.Warn("uploader: upload failed", zap.Error(err))
		return
	}
	u.logger.Info("uploader: export completed",
		zap.Int("nodes", len(snap.Nodes)), zap.Int("packets", len(snap.Packets)),
		zap.Int("topology", len(snap.Topology)), zap.Int("traceroutes", len(snap.Traceroutes)))
}

func (u *Uploader) buildSnapshot(since time.Time) (Snapshot, error) {
	nodes, err := u.store.NodesSeenSince(since)
	if err != nil {
		return Snapshot{}, fmt.Errorf("uploader: nodes query: %w", err)
	}
	packets, err := u.store.PacketsSince(since, u.cfg.PacketLimit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("uploader: packets query: %w", err)
	}
	edges, err := u.store.EdgesSince(since)
	if err != nil {
		return Snapshot{}, fmt.Errorf("uploader: topology query: %w", err)
	}
	traceroutes, err := u.store.TraceroutesSince(since)
	if err != nil {
		return Snapshot{}, fmt.Errorf("uploader: traceroutes query: %w", err)
	}
	return Snapshot{Nodes: nodes, Packets: packets, Topology: edges, Traceroutes: traceroutes}, nil
}

func (u *Uploader) upload(snap Snapshot) error {
	body := payload{
		CollectorID:   u.cfg.CollectorID,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Data:          snap,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("uploader: marshal payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, u.cfg.URL, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("uploader: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("uploader: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("uploader: collector returned status %d", resp.StatusCode)
	}
	return nil
}
