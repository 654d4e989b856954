// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package planner holds the client-side planner state.
//
// A Planner keeps one optimistic store per entity kind (tasks, goals, habits,
// chat messages). User actions go through the stores so they show at once and
// revert if the backend rejects them. Realtime events from the router are
// reconciled into the same stores, and bursts of events schedule debounced
// re-fetches of the derived analytics views.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/tempo/internal/events"
	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/models"
	"github.com/tomtom215/tempo/internal/refresh"
	"github.com/tomtom215/tempo/internal/store"
)

// Refresh domain keys.
const (
	DomainFocus     = "focus"
	DomainAnalytics = "analytics"
	DomainHeatmap   = "heatmap"
	DomainStrategic = "strategic-insight"
)

var (
	// ErrNotFound is returned by actions on an entity the planner does not hold.
	ErrNotFound = errors.New("planner: entity not found")

	// ErrInvalidInput is returned for rejected action arguments.
	ErrInvalidInput = errors.New("planner: invalid input")

	// ErrClosed is returned by actions after Close.
	ErrClosed = errors.New("planner: closed")
)

// Backend is the subset of the REST API the planner uses. *api.Client
// satisfies it.
type Backend interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	ListGoals(ctx context.Context) ([]models.Goal, error)
	UpdateGoal(ctx context.Context, id string, patch models.GoalPatch) (models.Goal, error)

	ListHabits(ctx context.Context) ([]models.Habit, error)
	CompleteHabit(ctx context.Context, id string) (models.Habit, error)

	SendChatMessage(ctx context.Context, conversationID, content string) (models.ChatMessage, error)
	ListChatMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error)

	FocusAnalytics(ctx context.Context, days int) (models.FocusAnalytics, error)
	HabitHeatmap(ctx context.Context, from, to string) (models.HabitHeatmap, error)
	StrategicInsight(ctx context.Context) (models.StrategicInsight, error)
}

// Config configures a Planner. Zero values fall back to defaults.
type Config struct {
	// FocusDays is the focus analytics window. Default: 7
	FocusDays int

	// HeatmapDays is the habit heatmap range ending today. Default: 90
	HeatmapDays int

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Planner is safe for concurrent use.
type Planner struct {
	Tasks    *store.Store[models.Task]
	Goals    *store.Store[models.Goal]
	Habits   *store.Store[models.Habit]
	Messages *store.Store[models.ChatMessage]

	backend Backend
	router  *events.Router
	scope   *refresh.Scope
	cfg     Config
	log     zerolog.Logger

	analytics analytics

	subs      events.Group
	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Planner and subscribes it to router. Refreshes are scheduled
// on a scope of coord, so Close drops only this planner's pending refreshes.
func New(backend Backend, router *events.Router, coord *refresh.Coordinator, cfg Config) *Planner {
	if cfg.FocusDays <= 0 {
		cfg.FocusDays = 7
	}
	if cfg.HeatmapDays <= 0 {
		cfg.HeatmapDays = 90
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Planner{
		Tasks:    store.New[models.Task]("task"),
		Goals:    store.New[models.Goal]("goal"),
		Habits:   store.New[models.Habit]("habit"),
		Messages: store.New[models.ChatMessage]("chat_message"),
		backend:  backend,
		router:   router,
		scope:    coord.Scope(),
		cfg:      cfg,
		log:      logging.WithComponent("planner"),
		closed:   make(chan struct{}),
	}
	p.subscribe()
	return p
}

// Sync loads tasks, goals and habits from the backend and replaces the
// store contents. Pending optimistic changes stay visible. The analytics
// views are fetched as well; their failures are recorded on the snapshots
// and do not fail Sync.
func (p *Planner) Sync(ctx context.Context) error {
	if p.isClosed() {
		return ErrClosed
	}
	ctx = logging.ContextWithNewCorrelationID(ctx)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks, err := p.backend.ListTasks(gctx)
		if err != nil {
			return fmt.Errorf("sync tasks: %w", err)
		}
		p.Tasks.ReplaceAll(byID(tasks, func(t models.Task) string { return t.ID }))
		return nil
	})
	g.Go(func() error {
		goals, err := p.backend.ListGoals(gctx)
		if err != nil {
			return fmt.Errorf("sync goals: %w", err)
		}
		p.Goals.ReplaceAll(byID(goals, func(g models.Goal) string { return g.ID }))
		return nil
	})
	g.Go(func() error {
		habits, err := p.backend.ListHabits(gctx)
		if err != nil {
			return fmt.Errorf("sync habits: %w", err)
		}
		p.Habits.ReplaceAll(byID(habits, func(h models.Habit) string { return h.ID }))
		return nil
	})
	if err := g.Wait(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Planner sync failed")
		return err
	}

	p.RefreshAnalytics(ctx)

	logging.Ctx(ctx).Info().
		Int("tasks", p.Tasks.Len()).
		Int("goals", p.Goals.Len()).
		Int("habits", p.Habits.Len()).
		Dur("duration", time.Since(start)).
		Msg("Planner synced")
	return nil
}

// Close unsubscribes from the router and cancels this planner's pending
// refreshes. It is idempotent.
func (p *Planner) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.subs.Close()
		p.scope.Close()
	})
}

func (p *Planner) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func byID[T any](items []T, id func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[id(it)] = it
	}
	return m
}
