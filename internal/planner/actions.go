// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/tempo/internal/api"
	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/models"
)

// tempIDPrefix marks ids assigned locally before the backend responds.
const tempIDPrefix = "tmp-"

// IsTemporaryID reports whether id was assigned locally and has not yet been
// replaced by the backend's id.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

func newTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// CompleteTask marks a task completed. The change is visible immediately
// and reverted if the backend rejects it; the returned error is then a
// *store.MutationError.
func (p *Planner) CompleteTask(ctx context.Context, id string) (models.Task, error) {
	status := models.TaskCompleted
	return p.UpdateTask(ctx, id, models.TaskPatch{Status: &status})
}

// UpdateTask applies patch to a task optimistically.
func (p *Planner) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if p.isClosed() {
		return models.Task{}, ErrClosed
	}
	cur, ok := p.Tasks.Get(id)
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty: %w", ErrInvalidInput)
	}

	next := patch.ApplyTo(cur)
	next.UpdatedAt = p.cfg.Now()
	if next.Done() && !cur.Done() {
		completedAt := next.UpdatedAt
		next.CompletedAt = &completedAt
	}

	task, err := p.Tasks.Apply(ctx, id, next, func(ctx context.Context, _ models.Task) (*models.Task, error) {
		updated, err := p.backend.UpdateTask(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		return &updated, nil
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("task_id", id).Msg("Task update rejected")
		return models.Task{}, err
	}

	if next.Done() != cur.Done() {
		p.debounce(DomainFocus)
		p.debounce(DomainStrategic)
	}
	return task, nil
}

// CreateTask shows t under a temporary id until the backend assigns the
// real one, then moves it to that id.
func (p *Planner) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if p.isClosed() {
		return models.Task{}, ErrClosed
	}
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty: %w", ErrInvalidInput)
	}

	now := p.cfg.Now()
	t.ID = newTempID()
	if t.Status == "" {
		t.Status = models.TaskPending
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	tempID := t.ID

	created, err := p.Tasks.Apply(ctx, tempID, t, func(ctx context.Context, v models.Task) (*models.Task, error) {
		created, err := p.backend.CreateTask(ctx, v)
		if err != nil {
			return nil, err
		}
		return &created, nil
	})
	if err != nil {
		return models.Task{}, err
	}

	if created.ID != "" && created.ID != tempID {
		if err := p.Tasks.Rename(tempID, created.ID, created); err != nil {
			return created, fmt.Errorf("adopt task id %s: %w", created.ID, err)
		}
	}
	p.debounce(DomainStrategic)
	return created, nil
}

// DeleteTask removes a task optimistically. A task the backend no longer
// has counts as deleted.
func (p *Planner) DeleteTask(ctx context.Context, id string) error {
	if p.isClosed() {
		return ErrClosed
	}
	if _, ok := p.Tasks.Get(id); !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	err := p.Tasks.Remove(ctx, id, func(ctx context.Context) error {
		if err := p.backend.DeleteTask(ctx, id); err != nil && !api.IsNotFound(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.debounce(DomainFocus)
	p.debounce(DomainStrategic)
	return nil
}

// UpdateGoalProgress sets a goal's progress (0-100) optimistically.
func (p *Planner) UpdateGoalProgress(ctx context.Context, id string, progress float64) (models.Goal, error) {
	if p.isClosed() {
		return models.Goal{}, ErrClosed
	}
	if progress < 0 || progress > 100 {
		return models.Goal{}, fmt.Errorf("goal progress %.1f outside 0-100: %w", progress, ErrInvalidInput)
	}
	cur, ok := p.Goals.Get(id)
	if !ok {
		return models.Goal{}, fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}

	patch := models.GoalPatch{Progress: &progress}
	next := patch.ApplyTo(cur)
	next.UpdatedAt = p.cfg.Now()

	goal, err := p.Goals.Apply(ctx, id, next, func(ctx context.Context, _ models.Goal) (*models.Goal, error) {
		updated, err := p.backend.UpdateGoal(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		return &updated, nil
	})
	if err != nil {
		return models.Goal{}, err
	}
	p.debounce(DomainStrategic)
	return goal, nil
}

// CompleteHabit records today's completion optimistically. Completing a
// habit already completed today is a no-op.
func (p *Planner) CompleteHabit(ctx context.Context, id string) (models.Habit, error) {
	if p.isClosed() {
		return models.Habit{}, ErrClosed
	}
	cur, ok := p.Habits.Get(id)
	if !ok {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, ErrNotFound)
	}
	if cur.CompletedToday {
		return cur, nil
	}

	now := p.cfg.Now()
	next := cur
	next.CompletedToday = true
	next.LastCompletedAt = &now
	next.CurrentStreak++
	next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)

	habit, err := p.Habits.Apply(ctx, id, next, func(ctx context.Context, _ models.Habit) (*models.Habit, error) {
		updated, err := p.backend.CompleteHabit(ctx, id)
		if err != nil {
			return nil, err
		}
		return &updated, nil
	})
	if err != nil {
		return models.Habit{}, err
	}
	p.debounce(DomainHeatmap)
	p.debounce(DomainStrategic)
	return habit, nil
}

// SendChatMessage shows the user's message at once under a temporary id and
// replaces it with the stored message when the backend accepts it.
func (p *Planner) SendChatMessage(ctx context.Context, conversationID, content string) (models.ChatMessage, error) {
	if p.isClosed() {
		return models.ChatMessage{}, ErrClosed
	}
	if conversationID == "" {
		return models.ChatMessage{}, fmt.Errorf("conversation id is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(content) == "" {
		return models.ChatMessage{}, fmt.Errorf("message must not be empty: %w", ErrInvalidInput)
	}

	local := models.ChatMessage{
		ID:             newTempID(),
		ConversationID: conversationID,
		Role:           models.ChatRoleUser,
		Content:        content,
		CreatedAt:      p.cfg.Now(),
	}

	sent, err := p.Messages.Apply(ctx, local.ID, local, func(ctx context.Context, _ models.ChatMessage) (*models.ChatMessage, error) {
		sent, err := p.backend.SendChatMessage(ctx, conversationID, content)
		if err != nil {
			return nil, err
		}
		return &sent, nil
	})
	if err != nil {
		return models.ChatMessage{}, err
	}

	if sent.ID != "" && sent.ID != local.ID {
		if err := p.Messages.Rename(local.ID, sent.ID, sent); err != nil {
			return sent, fmt.Errorf("adopt message id %s: %w", sent.ID, err)
		}
	}
	return sent, nil
}
