package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/loranexus/loranexus/internal/radio"
	"github.com/loranexus/loranexus/internal/store"
)

// TelemetryStore is the narrow Store dependency the Telemetry Scheduler
// needs.
type TelemetryStore interface {
	TelemetryCandidates(activeThreshold, requestAge time.Duration, skipRecentTraceroute bool, traceAge time.Duration, limit int, now time.Time) ([]store.Node, error)
	InsertAttempt(kind store.AttemptKind, target, targetName string, now time.Time) error
	TimeoutStaleAttempts(kind store.AttemptKind, threshold time.Duration, now time.Time) (int64, error)
}

// TelemetryConfig holds the defaults named in spec.md §4.6.
type TelemetryConfig struct {
	Interval                  time.Duration // default 15 min
	ActiveThresholdMin        time.Duration // default 120 min
	RequestAgeHours           time.Duration // default 2 h
	MaxPerCycle               int           // default 10
	DelaySeconds              time.Duration // default 5 s
	SkipRecentTraceroute      bool          // default true
	TracerouteAgeHours        time.Duration // default 4 h, shared with the traceroute scheduler's own default
	AttemptTimeout            time.Duration // default 120 s
}

func (c TelemetryConfig) withDefaults() TelemetryConfig {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	if c.ActiveThresholdMin <= 0 {
		c.ActiveThresholdMin = 120 * time.Minute
	}
	if c.RequestAgeHours <= 0 {
		c.RequestAgeHours = 2 * time.Hour
	}
	if c.MaxPerCycle <= 0 {
		c.MaxPerCycle = 10
	}
	if c.DelaySeconds <= 0 {
		c.DelaySeconds = 5 * time.Second
	}
	if c.TracerouteAgeHours <= 0 {
		c.TracerouteAgeHours = 4 * time.Hour
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 120 * time.Second
	}
	return c
}

// TelemetryScheduler is the Telemetry Scheduler component (spec.md §4.6):
// same shape as TracerouteScheduler with a different cadence and an
// additional skip condition for nodes a recent traceroute already covers.
type TelemetryScheduler struct {
	store  TelemetryStore
	driver radio.Driver
	cfg    TelemetryConfig

	mu      sync.Mutex
	busy    bool
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewTelemetryScheduler builds a scheduler with cfg's defaults applied.
func NewTelemetryScheduler(st TelemetryStore, driver radio.Driver, cfg TelemetryConfig) *TelemetryScheduler {
	return &TelemetryScheduler{store: st, driver: driver, cfg: cfg.withDefaults()}
}

// Start begins the loop with a one-interval warm-up delay before the first
// cycle.
func (tes *TelemetryScheduler) Start() {
	tes.mu.Lock()
	if tes.running {
		tes.mu.Unlock()
		return
	}
	tes.running = true
	ctx, cancel := context.WithCancel(context.Background())
	tes.cancel = cancel
	tes.mu.Unlock()

	tes.wg.Add(1)
	go tes.loop(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (tes *TelemetryScheduler) Stop() {
	tes.mu.Lock()
	if !tes.running {
		tes.mu.Unlock()
		return
	}
	tes.running = false
	cancel := tes.cancel
	tes.mu.Unlock()

	cancel()
	tes.wg.Wait()
}

func (tes *TelemetryScheduler) loop(ctx context.Context) {
	defer tes.wg.Done()
	timer := time.NewTimer(tes.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			tes.RunCycle()
			timer.Reset(tes.cfg.Interval)
		case <-ctx.Done():
			return
		}
	}
}

// RunCycle performs one scheduler cycle, rejecting concurrent cycles with
// a busy flag (spec.md §9: "a mutual-exclusion flag, not a lock held
// across the whole cycle").
func (tes *TelemetryScheduler) RunCycle() {
	tes.mu.Lock()
	if tes.busy {
		tes.mu.Unlock()
		return
	}
	tes.busy = true
	tes.mu.Unlock()
	defer func() {
		tes.mu.Lock()
		tes.busy = false
		tes.mu.Unlock()
	}()

	now := time.Now().UTC()
	if _, err := tes.store.TimeoutStaleAttempts(store.AttemptTelemetry, tes.cfg.AttemptTimeout, now); err != nil {
		log.Printf("[TELEMETRY] timeout sweep failed: %v", err)
	}

	candidates, err := tes.store.TelemetryCandidates(tes.cfg.ActiveThresholdMin, tes.cfg.RequestAgeHours, tes.cfg.SkipRecentTraceroute, tes.cfg.TracerouteAgeHours, tes.cfg.MaxPerCycle, now)
	if err != nil {
		log.Printf("[TELEMETRY] candidate query failed: %v", err)
		return
	}

	for i, n := range candidates {
		if err := tes.driver.SendTelemetryRequest(n.Num, true); err != nil {
			log.Printf("[TELEMETRY] send failed for %s: %v", n.ID, err)
		}
		if err := tes.store.InsertAttempt(store.AttemptTelemetry, n.ID, n.ShortName, time.Now().UTC()); err != nil {
			log.Printf("[TELEMETRY] attempt insert failed for %s: %v", n.ID, err)
		}
		if i < len(candidates)-1 {
			time.Sleep(tes.cfg.DelaySeconds)
		}
	}
}
