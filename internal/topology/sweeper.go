// Package topology maintains per-edge running aggregates and link quality
// (spec.md §4.4) on top of the Store's UpdateTopology/MarkInactiveLinks
// commands, and runs the periodic staleness sweep as its own worker.
package topology

import (
	"context"
	"log"
	"sync"
	"time"

	"go.uber.org/zap"
)

// inactiveMarker is the narrow Store dependency the sweeper needs.
type inactiveMarker interface {
	MarkInactiveLinks(timeout time.Duration, now time.Time) (int64, error)
}

// Sweeper runs the staleness sweep on its own ticker, independent of either
// probe scheduler, per SPEC_FULL.md §13 (original_source/plugins/
// node_tracking.py:_start_topology_cleanup). Shape grounded on
// internal/core/polling.go's PollingService: ticker, context cancellation,
// mutex-guarded running flag.
type Sweeper struct {
	store    inactiveMarker
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSweeper builds a Sweeper that sweeps every interval, marking edges
// inactive once their last_heard is older than timeout.
func NewSweeper(store inactiveMarker, interval, timeout time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 60 * time.Minute
	}
	return &Sweeper{store: store, interval: interval, timeout: timeout, logger: logger}
}

// Start begins the sweep loop. Calling Start twice is a no-op.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = true
	ctx, cancel := context.WithCancel(context.Background())
	sw.cancel = cancel
	sw.mu.Unlock()

	sw.wg.Add(1)
	go sw.loop(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = false
	cancel := sw.cancel
	sw.mu.Unlock()

	cancel()
	sw.wg.Wait()
}

func (sw *Sweeper) loop(ctx context.Context) {
	defer sw.wg.Done()
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sw.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (sw *Sweeper) sweep() {
	n, err := sw.store.MarkInactiveLinks(sw.timeout, time.Now())
	if err != nil {
		log.Printf("[TOPOLOGY] staleness sweep failed: %v", err)
		return
	}
	if n > 0 && sw.logger != nil {
		sw.logger.Info("staleness sweep marked edges inactive", zap.Int64("count", n))
	}
}
