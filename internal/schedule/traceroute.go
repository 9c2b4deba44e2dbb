// Package schedule implements the two active probe schedulers (spec.md
// §2 rows E/F, §4.5, §4.6): periodic loops that select candidate nodes by
// staleness, send probes with pacing, track in-flight attempts, and time
// out stale ones. Both are shaped like internal/core/polling.go's
// PollingService: ticker, context cancellation, mutex-guarded busy flag.
package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/store"
)

// TracerouteStore is the narrow Store dependency the Traceroute Scheduler
// needs.
type TracerouteStore interface {
	TracerouteCandidates(activeThreshold time.Duration, excludeMQTT bool, traceAge time.Duration, limit int, now time.Time) ([]store.Node, error)
	InsertAttempt(kind store.AttemptKind, target, targetName string, now time.Time) error
	TimeoutStaleAttempts(kind store.AttemptKind, threshold time.Duration, now time.Time) (int64, error)
}

// TracerouteConfig holds the defaults named in spec.md §4.5.
type TracerouteConfig struct {
	Interval            time.Duration // default 30 min
	ActiveThresholdMin  time.Duration // default 60 min
	TracerouteAgeHours  time.Duration // default 4 h
	MaxPerCycle         int           // default 5
	DelaySeconds        time.Duration // default 10 s
	HopLimit            int           // default 7
	ExcludeMQTTRelayed  bool
	AttemptTimeout      time.Duration // default 120 s
}

func (c TracerouteConfig) withDefaults() TracerouteConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Minute
	}
	if c.ActiveThresholdMin <= 0 {
		c.ActiveThresholdMin = 60 * time.Minute
	}
	if c.TracerouteAgeHours <= 0 {
		c.TracerouteAgeHours = 4 * time.Hour
	}
	if c.MaxPerCycle <= 0 {
		c.MaxPerCycle = 5
	}
	if c.DelaySeconds <= 0 {
		c.DelaySeconds = 10 * time.Second
	}
	if c.HopLimit <= 0 {
		c.HopLimit = 7
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 120 * time.Second
	}
	return c
}

// TracerouteScheduler is the Traceroute Scheduler component (spec.md §4.5).
type TracerouteScheduler struct {
	store  TracerouteStore
	driver radio.Driver
	cfg    TracerouteConfig

	mu      sync.Mutex
	busy    bool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewTracerouteScheduler builds a scheduler with cfg's defaults applied.
func NewTracerouteScheduler(st TracerouteStore, driver radio.Driver, cfg TracerouteConfig) *TracerouteScheduler {
	return &TracerouteScheduler{store: st, driver: driver, cfg: cfg.withDefaults()}
}

// Start begins the loop with a one-interval warm-up delay before the first
// cycle, per spec.md §4.5.
func (ts *TracerouteScheduler) Start() {
	ts.mu.Lock()
	if ts.running {
		ts.mu.Unlock()
		return
	}
	ts.running = true
	ctx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel
	ts.mu.Unlock()

	ts.wg.Add(1)
	go ts.loop(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (ts *TracerouteScheduler) Stop() {
	ts.mu.Lock()
	if !ts.running {
		ts.mu.Unlock()
		return
	}
	ts.running = false
	cancel := ts.cancel
	ts.mu.Unlock()

	cancel()
	ts.wg.Wait()
}

func (ts *TracerouteScheduler) loop(ctx context.Context) {
	defer ts.wg.Done()
	timer := time.NewTimer(ts.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			ts.RunCycle()
			timer.Reset(ts.cfg.Interval)
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle performs one scheduler cycle. A cycle already in progress
// causes a new tick to be dropped, not queued (spec.md §5).
func (ts *TracerouteScheduler) RunCycle() {
	ts.mu.Lock()
	if ts.busy {
		ts.mu.Unlock()
		return
	}
	ts.busy = true
	ts.mu.Unlock()
	defer func() {
		ts.mu.Lock()
		ts.busy = false
		ts.mu.Unlock()
	}()

	now := time.Now().UTC()
	if _, err := ts.store.TimeoutStaleAttempts(store.AttemptTraceroute, ts.cfg.AttemptTimeout, now); err != nil {
		log.Printf("[TRACEROUTE] timeout sweep failed: %v", err)
	}

	candidates, err := ts.store.TracerouteCandidates(ts.cfg.ActiveThresholdMin, ts.cfg.ExcludeMQTTRelayed, ts.cfg.TracerouteAgeHours, ts.cfg.MaxPerCycle, now)
	if err != nil {
		log.Printf("[TRACEROUTE] candidate query failed: %v", err)
		return
	}

	for i, n := range candidates {
		if err := ts.driver.SendTraceroute(n.Num, ts.cfg.HopLimit, true); err != nil {
			log.Printf("[TRACEROUTE] send failed for %s: %v", n.ID, err)
		}
		// The attempt row is still inserted even on send failure, so the
		// scheduler's "sent" accounting remains honest (spec.md §7 class 3).
		if err := ts.store.InsertAttempt(store.AttemptTraceroute, n.ID, n.ShortName, time.Now().UTC()); err != nil {
			log.Printf("[TRACEROUTE] attempt insert failed for %s: %v", n.ID, err)
		}
		if i < len(candidates)-1 {
			time.Sleep(ts.cfg.DelaySeconds)
		}
	}
}
