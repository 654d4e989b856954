// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/tempo/internal/models"
)

// Snapshot is the last fetched value of a derived view. A failed refresh
// keeps the previous Value and sets Err until the next successful one.
type Snapshot[T any] struct {
	Value     T
	Loaded    bool
	UpdatedAt time.Time
	Err       error
}

// Stale reports whether the last refresh failed.
func (s Snapshot[T]) Stale() bool {
	return s.Err != nil
}

type analytics struct {
	mu        sync.RWMutex
	focus     Snapshot[models.FocusAnalytics]
	heatmap   Snapshot[models.HabitHeatmap]
	strategic Snapshot[models.StrategicInsight]
}

// FocusAnalytics returns the focus analytics snapshot.
func (p *Planner) FocusAnalytics() Snapshot[models.FocusAnalytics] {
	p.analytics.mu.RLock()
	defer p.analytics.mu.RUnlock()
	return p.analytics.focus
}

// HabitHeatmap returns the habit heatmap snapshot.
func (p *Planner) HabitHeatmap() Snapshot[models.HabitHeatmap] {
	p.analytics.mu.RLock()
	defer p.analytics.mu.RUnlock()
	return p.analytics.heatmap
}

// StrategicInsight returns the strategic insight snapshot.
func (p *Planner) StrategicInsight() Snapshot[models.StrategicInsight] {
	p.analytics.mu.RLock()
	defer p.analytics.mu.RUnlock()
	return p.analytics.strategic
}

// RefreshAnalytics fetches all derived views now, bypassing the debounce.
// A failing view does not stop the others; its snapshot carries the error.
func (p *Planner) RefreshAnalytics(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { return p.refreshFocus(ctx) })
	g.Go(func() error { return p.refreshHeatmap(ctx) })
	g.Go(func() error { return p.refreshStrategic(ctx) })
	_ = g.Wait()
}

// debounce schedules a refresh of domain with the coordinator's delay for it.
func (p *Planner) debounce(domain string) {
	switch domain {
	case DomainFocus:
		p.scope.Debounce(domain, p.refreshFocus)
	case DomainHeatmap:
		p.scope.Debounce(domain, p.refreshHeatmap)
	case DomainStrategic:
		p.scope.Debounce(domain, p.refreshStrategic)
	case DomainAnalytics:
		p.scope.Debounce(domain, p.resyncProgress)
	}
}

func (p *Planner) refreshFocus(ctx context.Context) error {
	v, err := p.backend.FocusAnalytics(ctx, p.cfg.FocusDays)
	return record(p, &p.analytics.focus, v, err, DomainFocus)
}

func (p *Planner) refreshHeatmap(ctx context.Context) error {
	to := p.cfg.Now()
	from := to.AddDate(0, 0, -(p.cfg.HeatmapDays - 1))
	v, err := p.backend.HabitHeatmap(ctx, from.Format(time.DateOnly), to.Format(time.DateOnly))
	return record(p, &p.analytics.heatmap, v, err, DomainHeatmap)
}

func (p *Planner) refreshStrategic(ctx context.Context) error {
	v, err := p.backend.StrategicInsight(ctx)
	return record(p, &p.analytics.strategic, v, err, DomainStrategic)
}

// resyncProgress re-reads goals and habits after an aggregate analytics
// update, since streaks and progress may have been recomputed server side.
func (p *Planner) resyncProgress(ctx context.Context) error {
	goals, err := p.backend.ListGoals(ctx)
	if err != nil {
		return fmt.Errorf("resync goals: %w", err)
	}
	habits, err := p.backend.ListHabits(ctx)
	if err != nil {
		return fmt.Errorf("resync habits: %w", err)
	}
	p.Goals.ReplaceAll(byID(goals, func(g models.Goal) string { return g.ID }))
	p.Habits.ReplaceAll(byID(habits, func(h models.Habit) string { return h.ID }))
	return nil
}

func record[T any](p *Planner, snap *Snapshot[T], v T, err error, domain string) error {
	// A refresh cut short by Close is not a backend failure.
	if err != nil && errors.Is(err, context.Canceled) && p.isClosed() {
		return err
	}

	p.analytics.mu.Lock()
	defer p.analytics.mu.Unlock()
	if err != nil {
		snap.Err = err
		p.log.Warn().Err(err).Str("domain", domain).Msg("Analytics refresh failed, keeping previous snapshot")
		return err
	}
	*snap = Snapshot[T]{
		Value:     v,
		Loaded:    true,
		UpdatedAt: p.cfg.Now(),
	}
	return nil
}
