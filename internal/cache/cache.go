// Package cache holds the latest scan result and keeps it fresh.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"driftwatch/pkg/sdk/types"

	"golang.org/x/sync/singleflight"
)

const DefaultInterval = 5 * time.Minute

// Scanner runs one complete scan pass.
type Scanner interface {
	Run(ctx context.Context) (*types.ScanResult, error)
}

// Observer is notified about every scan the cache runs.
type Observer interface {
	ScanStarted()
	ScanCompleted(result *types.ScanResult, took time.Duration)
	ScanFailed(err error, took time.Duration)
	// ScanDiscarded reports a pass that finished but was older than the
	// cached result, so it was never published.
	ScanDiscarded(took time.Duration)
}

type noopObserver struct{}

func (noopObserver) ScanStarted()                                   {}
func (noopObserver) ScanCompleted(*types.ScanResult, time.Duration) {}
func (noopObserver) ScanFailed(error, time.Duration)                {}
func (noopObserver) ScanDiscarded(time.Duration)                    {}

// Cache publishes the most recent complete scan result and schedules scans on
// a fixed interval. At most one scan runs at a time; concurrent triggers share
// it.
type Cache struct {
	scanner  Scanner
	interval time.Duration
	observer Observer
	log      *slog.Logger

	current atomic.Pointer[types.ScanResult]
	flight  singleflight.Group

	mu      sync.Mutex
	root    context.Context
	cancel  context.CancelFunc
	timer   *time.Timer
	gen     uint64
	running bool
}

type Option func(*Cache)

func WithObserver(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

func New(scanner Scanner, interval time.Duration, opts ...Option) *Cache {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Cache{
		scanner:  scanner,
		interval: interval,
		observer: noopObserver{},
		log:      slog.With("component", "cache"),
		root:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cached returns the latest published result, or nil before the first scan
// completes. The returned value must not be modified.
func (c *Cache) Cached() *types.ScanResult {
	return c.current.Load()
}

// Trigger runs a scan, or joins the one already in flight, and returns its
// result. The scan itself runs under the cache's lifetime context, so ctx
// only bounds how long the caller waits.
func (c *Cache) Trigger(ctx context.Context) (*types.ScanResult, error) {
	ch := c.flight.DoChan("scan", func() (any, error) {
		return c.scan(c.rootContext())
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.ScanResult), nil
	}
}

// TriggerAsync starts a scan in the background. Errors are logged.
func (c *Cache) TriggerAsync() {
	ctx := c.rootContext()
	go func() {
		if _, err := c.Trigger(ctx); err != nil && ctx.Err() == nil {
			c.log.Error("triggered scan failed", "err", err)
		}
	}()
}

// Start scans immediately and then every interval until ctx ends or Stop is
// called. Calling Start again replaces the previous schedule.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.root, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.armLocked()
	c.mu.Unlock()

	c.log.Info("scheduler started", "interval", c.interval)
	c.TriggerAsync()
}

// Postpone restarts the interval from now. It is a no-op when the scheduler
// is not running.
func (c *Cache) Postpone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.armLocked()
	c.log.Debug("next scan postponed", "in", c.interval)
}

// Stop cancels the schedule and any scan started by it.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancel()
	c.log.Info("scheduler stopped")
}

// armLocked replaces the tick handle. Older handles are invalidated by the
// generation counter even if their timer already fired.
func (c *Cache) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.interval, func() { c.tick(gen) })
}

func (c *Cache) tick(gen uint64) {
	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.armLocked()
	ctx := c.root
	c.mu.Unlock()

	if _, err := c.Trigger(ctx); err != nil && ctx.Err() == nil {
		c.log.Error("scheduled scan failed", "err", err)
	}
}

func (c *Cache) rootContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

func (c *Cache) scan(ctx context.Context) (*types.ScanResult, error) {
	c.observer.ScanStarted()
	start := time.Now()

	result, err := c.scanner.Run(ctx)
	took := time.Since(start)
	if err != nil {
		c.observer.ScanFailed(err, took)
		return nil, fmt.Errorf("run scan: %w", err)
	}

	if !c.publish(result) {
		c.observer.ScanDiscarded(took)
		return c.current.Load(), nil
	}
	c.observer.ScanCompleted(result, took)
	c.log.Info("scan published", "id", result.Metadata.ID, "units", len(result.Units), "took", took)
	return result, nil
}

// publish swaps in result unless a newer one is already cached. It reports
// whether result was published.
func (c *Cache) publish(result *types.ScanResult) bool {
	for {
		old := c.current.Load()
		if old != nil && result.Metadata.Datetime.Before(old.Metadata.Datetime) {
			c.log.Warn("discarding stale scan", "id", result.Metadata.ID, "cached_id", old.Metadata.ID)
			return false
		}
		if c.current.CompareAndSwap(old, result) {
			return true
		}
	}
}
