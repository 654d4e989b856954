// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder counts refresh invocations and their times.
type recorder struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (r *recorder) fn(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, time.Now())
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) at(i int) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func newCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := New(Config{})
	t.Cleanup(c.Close)
	return c
}

func TestSchedule_CollapsesBurst(t *testing.T) {
	c := newCoordinator(t)
	rec := &recorder{}

	var last time.Time
	for i := 0; i < 5; i++ {
		last = time.Now()
		c.Schedule("domain", rec.fn, 300*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(600 * time.Millisecond)

	if n := rec.count(); n != 1 {
		t.Fatalf("refresh ran %d times, want 1", n)
	}
	if gap := rec.at(0).Sub(last); gap < 300*time.Millisecond {
		t.Errorf("refresh ran %v after the last call, want >= 300ms", gap)
	}
	if c.Pending("domain") {
		t.Error("Pending() = true after the refresh ran")
	}
}

func TestSchedule_TimerRestartsOnEveryCall(t *testing.T) {
	c := newCoordinator(t)
	rec := &recorder{}

	start := time.Now()
	c.Schedule("focus", rec.fn, 250*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	c.Schedule("focus", rec.fn, 250*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	c.Schedule("focus", rec.fn, 250*time.Millisecond)

	time.Sleep(500 * time.Millisecond)

	if n := rec.count(); n != 1 {
		t.Fatalf("refresh ran %d times, want 1", n)
	}
	if elapsed := rec.at(0).Sub(start); elapsed < 450*time.Millisecond {
		t.Errorf("refresh ran at %v, want >= 450ms", elapsed)
	}
}

func TestSchedule_DomainsAreIndependent(t *testing.T) {
	c := newCoordinator(t)
	focus := &recorder{}
	insight := &recorder{}

	c.Schedule("focus", focus.fn, 100*time.Millisecond)
	c.Schedule("strategic-insight", insight.fn, 150*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	c.Schedule("focus", focus.fn, 100*time.Millisecond)

	if got := c.PendingCount(); got != 2 {
		t.Errorf("PendingCount() = %d, want 2", got)
	}

	time.Sleep(300 * time.Millisecond)

	if focus.count() != 1 {
		t.Errorf("focus refresh ran %d times, want 1", focus.count())
	}
	if insight.count() != 1 {
		t.Errorf("insight refresh ran %d times, want 1", insight.count())
	}
}

func TestSchedule_LatestFunctionWins(t *testing.T) {
	c := newCoordinator(t)
	first := &recorder{}
	second := &recorder{}

	c.Schedule("heatmap", first.fn, 50*time.Millisecond)
	c.Schedule("heatmap", second.fn, 50*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	if first.count() != 0 || second.count() != 1 {
		t.Errorf("first ran %d, second ran %d; want 0 and 1", first.count(), second.count())
	}
}

func TestSchedule_FailureNotRetried(t *testing.T) {
	c := newCoordinator(t)
	rec := &recorder{err: errors.New("fetch failed")}

	c.Schedule("analytics", rec.fn, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	if n := rec.count(); n != 1 {
		t.Errorf("failing refresh ran %d times, want 1", n)
	}
	if c.Pending("analytics") {
		t.Error("failed refresh left a pending record")
	}
}

func TestSchedule_PanicRecovered(t *testing.T) {
	c := newCoordinator(t)
	rec := &recorder{}

	c.Schedule("a", func(context.Context) error { panic("boom") }, 0)
	time.Sleep(50 * time.Millisecond)
	c.Schedule("a", rec.fn, 0)
	time.Sleep(50 * time.Millisecond)

	if rec.count() != 1 {
		t.Errorf("refresh after a panic ran %d times, want 1", rec.count())
	}
}

func TestSchedule_RescheduleDuringRun(t *testing.T) {
	c := newCoordinator(t)

	var runs atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	fn := func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}

	c.Schedule("goals", fn, 0)
	<-started

	// The running refresh has already cleared its record.
	if c.Pending("goals") {
		t.Fatal("Pending() = true while the refresh runs")
	}
	c.Schedule("goals", fn, 10*time.Millisecond)
	close(release)
	<-started

	if runs.Load() != 2 {
		t.Errorf("refresh ran %d times, want 2", runs.Load())
	}
}

func TestCancel(t *testing.T) {
	c := newCoordinator(t)
	rec := &recorder{}

	c.Schedule("focus", rec.fn, 50*time.Millisecond)
	if !c.Cancel("focus") {
		t.Fatal("Cancel() = false for a pending refresh")
	}
	if c.Cancel("focus") {
		t.Error("second Cancel() = true")
	}
	time.Sleep(150 * time.Millisecond)

	if rec.count() != 0 {
		t.Errorf("canceled refresh ran %d times", rec.count())
	}
}

func TestClose(t *testing.T) {
	c := New(Config{})
	rec := &recorder{}

	c.Schedule("focus", rec.fn, 50*time.Millisecond)
	c.Schedule("heatmap", rec.fn, 50*time.Millisecond)
	c.Close()
	c.Close()

	c.Schedule("focus", rec.fn, 0)
	time.Sleep(150 * time.Millisecond)

	if rec.count() != 0 {
		t.Errorf("refresh ran %d times after Close", rec.count())
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after Close", c.PendingCount())
	}
}

func TestClose_CancelsRunningRefresh(t *testing.T) {
	c := New(Config{})

	started := make(chan struct{})
	var sawCancel atomic.Bool
	c.Schedule("insight", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}, 0)

	<-started
	c.Close()

	if !sawCancel.Load() {
		t.Error("Close() returned before the running refresh observed cancellation")
	}
}

func TestScope_CloseCancelsOwnedTimers(t *testing.T) {
	c := newCoordinator(t)
	view := c.Scope()
	other := c.Scope()

	viewRec := &recorder{}
	otherRec := &recorder{}
	view.Schedule("focus", viewRec.fn, 50*time.Millisecond)
	view.Schedule("heatmap", viewRec.fn, 50*time.Millisecond)
	other.Schedule("analytics", otherRec.fn, 50*time.Millisecond)

	view.Close()
	view.Close()
	view.Schedule("focus", viewRec.fn, 0)

	time.Sleep(200 * time.Millisecond)

	if viewRec.count() != 0 {
		t.Errorf("closed scope's refresh ran %d times", viewRec.count())
	}
	if otherRec.count() != 1 {
		t.Errorf("other scope's refresh ran %d times, want 1", otherRec.count())
	}
}

func TestScope_ReplacedByAnotherOwner(t *testing.T) {
	c := newCoordinator(t)
	a := c.Scope()
	b := c.Scope()

	recA := &recorder{}
	recB := &recorder{}
	a.Schedule("focus", recA.fn, 50*time.Millisecond)
	b.Schedule("focus", recB.fn, 50*time.Millisecond)
	a.Close()

	time.Sleep(200 * time.Millisecond)

	if recA.count() != 0 || recB.count() != 1 {
		t.Errorf("a ran %d, b ran %d; want 0 and 1", recA.count(), recB.count())
	}
	b.Close()
}

func TestDelayFor(t *testing.T) {
	c := New(Config{
		DefaultDelay: 400 * time.Millisecond,
		Delays: map[string]time.Duration{
			"focus":             250 * time.Millisecond,
			"strategic-insight": 3 * time.Second,
			"broken":            0,
		},
	})
	defer c.Close()

	tests := []struct {
		domain string
		want   time.Duration
	}{
		{"focus", 250 * time.Millisecond},
		{"strategic-insight", 3 * time.Second},
		{"broken", 400 * time.Millisecond},
		{"unknown", 400 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := c.DelayFor(tt.domain); got != tt.want {
			t.Errorf("DelayFor(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}

	if New(Config{}).DelayFor("x") != 500*time.Millisecond {
		t.Error("zero DefaultDelay did not fall back to 500ms")
	}
}

func TestDebounce_UsesConfiguredDelay(t *testing.T) {
	c := New(Config{Delays: map[string]time.Duration{"focus": 30 * time.Millisecond}})
	defer c.Close()
	rec := &recorder{}

	start := time.Now()
	c.Debounce("focus", rec.fn)
	time.Sleep(150 * time.Millisecond)

	if rec.count() != 1 {
		t.Fatalf("refresh ran %d times, want 1", rec.count())
	}
	if elapsed := rec.at(0).Sub(start); elapsed < 30*time.Millisecond {
		t.Errorf("refresh ran after %v, want >= 30ms", elapsed)
	}
}
