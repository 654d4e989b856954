// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package refresh collapses bursts of realtime events into one delayed
// refetch per data domain.
//
// Scheduling is a debounce, not a throttle: each Schedule call for a domain
// replaces that domain's pending refresh, so the refresh runs once, delay
// after the last call of a burst. Domains are independent. A refresh that
// fails is logged and counted but never retried; surfacing the failure is the
// refresh function's job.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/metrics"
)

// Func performs one refresh. ctx is canceled when the owning scope or the
// coordinator is closed.
type Func func(ctx context.Context) error

// Config holds the per-domain delays used by Debounce.
type Config struct {
	// DefaultDelay applies to domains without an entry in Delays.
	DefaultDelay time.Duration

	// Delays maps a domain key to its debounce delay.
	Delays map[string]time.Duration
}

type pendingRefresh struct {
	gen   uint64
	timer *time.Timer
	owner *Scope
}

// Coordinator owns the pending refresh timers. It is safe for concurrent use.
type Coordinator struct {
	cfg    Config
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	pending map[string]*pendingRefresh
	closed  bool

	running sync.WaitGroup
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	if cfg.DefaultDelay <= 0 {
		cfg.DefaultDelay = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:     cfg,
		log:     logging.WithComponent("refresh"),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*pendingRefresh),
	}
}

// DelayFor returns the configured delay for domain.
func (c *Coordinator) DelayFor(domain string) time.Duration {
	if d, ok := c.cfg.Delays[domain]; ok && d > 0 {
		return d
	}
	return c.cfg.DefaultDelay
}

// Schedule runs fn delay after the last Schedule call for domain. A pending
// refresh for the same domain is canceled and replaced. Calls after Close
// are ignored.
func (c *Coordinator) Schedule(domain string, fn Func, delay time.Duration) {
	c.schedule(nil, domain, fn, delay)
}

// Debounce is Schedule with the configured delay for domain.
func (c *Coordinator) Debounce(domain string, fn Func) {
	c.schedule(nil, domain, fn, c.DelayFor(domain))
}

// Cancel drops the pending refresh for domain. It reports whether one existed.
func (c *Coordinator) Cancel(domain string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[domain]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(c.pending, domain)
	return true
}

// Pending reports whether a refresh for domain is waiting to fire.
func (c *Coordinator) Pending(domain string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[domain]
	return ok
}

// PendingCount returns the number of domains with a pending refresh.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close cancels every pending refresh and the context of running ones, then
// waits for running refreshes to return. Later Schedule calls are ignored.
// It must not be called from inside a refresh function.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for domain, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, domain)
	}
	c.mu.Unlock()

	c.cancel()
	c.running.Wait()
}

func (c *Coordinator) schedule(owner *Scope, domain string, fn Func, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if prev, ok := c.pending[domain]; ok {
		prev.timer.Stop()
		metrics.RefreshCollapsed.WithLabelValues(domain).Inc()
	}

	c.gen++
	gen := c.gen
	p := &pendingRefresh{gen: gen, owner: owner}
	p.timer = time.AfterFunc(delay, func() { c.fire(domain, gen, fn) })
	c.pending[domain] = p

	metrics.RefreshScheduled.WithLabelValues(domain).Inc()
}

// fire runs when a timer expires. A timer stopped too late to prevent the
// callback is detected by its stale generation.
func (c *Coordinator) fire(domain string, gen uint64, fn Func) {
	c.mu.Lock()
	p, ok := c.pending[domain]
	if !ok || p.gen != gen || c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.pending, domain)
	ctx := c.ctx
	if p.owner != nil {
		ctx = p.owner.ctx
	}
	c.running.Add(1)
	c.mu.Unlock()

	defer c.running.Done()

	start := time.Now()
	err := c.run(ctx, fn)
	metrics.RecordRefresh(domain, time.Since(start), err)

	if err != nil {
		c.log.Warn().Err(err).Str("domain", domain).Msg("Refresh failed")
		return
	}
	c.log.Debug().Str("domain", domain).Dur("duration", time.Since(start)).Msg("Refresh completed")
}

func (c *Coordinator) run(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("refresh panicked: %v", rec)
		}
	}()
	return fn(ctx)
}

// Scope returns a view whose scheduled refreshes can be canceled together,
// typically when the view that scheduled them is torn down.
func (c *Coordinator) Scope() *Scope {
	ctx, cancel := context.WithCancel(c.ctx)
	return &Scope{c: c, ctx: ctx, cancel: cancel}
}

// Scope schedules refreshes on behalf of one owner.
type Scope struct {
	c      *Coordinator
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Schedule is Coordinator.Schedule with the refresh owned by s.
func (s *Scope) Schedule(domain string, fn Func, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.c.schedule(s, domain, fn, delay)
}

// Debounce is Schedule with the configured delay for domain.
func (s *Scope) Debounce(domain string, fn Func) {
	s.Schedule(domain, fn, s.c.DelayFor(domain))
}

// Close cancels every pending refresh currently owned by s and the context
// of its running ones. Refreshes another owner has since rescheduled are
// left alone. It is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for domain, p := range s.c.pending {
		if p.owner == s {
			p.timer.Stop()
			delete(s.c.pending, domain)
		}
	}
}
