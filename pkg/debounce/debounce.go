// Package debounce provides a trailing-edge debouncer for coalescing
// rapid-fire triggers into a single delayed callback.
package debounce

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config holds debouncer configuration
type Config struct {
	// Name identifies the debouncer in logs and stats
	Name string
	// Interval is the quiet period required before the callback fires
	Interval time.Duration
}

// DefaultConfig returns defaults matching the consultation autosave window
func DefaultConfig(name string) Config {
	return Config{
		Name:     name,
		Interval: 800 * time.Millisecond,
	}
}

// Debouncer coalesces triggers: each Trigger re-arms the timer and cancels
// any pending fire, so only the last trigger within a quiet window runs the
// callback. Pending fires are cancelled, never in-flight callbacks.
type Debouncer struct {
	config Config
	fn     func()
	logger *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	armed   bool
	stopped bool

	// Metrics
	triggers  int64
	fires     int64
	coalesced int64
}

// New creates a debouncer. The callback runs on the timer goroutine.
func New(cfg Config, fn func(), logger *zap.Logger) (*Debouncer, error) {
	if fn == nil {
		return nil, fmt.Errorf("debounce callback is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig(cfg.Name).Interval
	}

	return &Debouncer{
		config: cfg,
		fn:     fn,
		logger: logger,
	}, nil
}

// Trigger arms the timer, cancelling any pending fire first.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	atomic.AddInt64(&d.triggers, 1)

	if d.armed {
		d.timer.Stop()
		atomic.AddInt64(&d.coalesced, 1)
	}

	d.armed = true
	d.timer = time.AfterFunc(d.config.Interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.armed = false
	d.mu.Unlock()

	atomic.AddInt64(&d.fires, 1)
	d.logger.Debug("debounce fired", zap.String("name", d.config.Name))
	d.fn()
}

// Pending reports whether a fire is currently armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Stop cancels any pending fire and rejects further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.armed {
		d.timer.Stop()
		d.armed = false
	}
}

// Stats holds debouncer counters
type Stats struct {
	Triggers  int64
	Fires     int64
	Coalesced int64
}

// Stats returns current counters
func (d *Debouncer) Stats() Stats {
	return Stats{
		Triggers:  atomic.LoadInt64(&d.triggers),
		Fires:     atomic.LoadInt64(&d.fires),
		Coalesced: atomic.LoadInt64(&d.coalesced),
	}
}
