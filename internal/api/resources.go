// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tomtom215/tempo/internal/models"
)

// Tasks

func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.Get(ctx, "/tasks", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates t and returns the stored task with its canonical ID.
// t.ID is not sent.
func (c *Client) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.ID = ""
	var created models.Task
	if err := c.Post(ctx, "/tasks", t, &created); err != nil {
		return models.Task{}, err
	}
	return created, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	var updated models.Task
	if err := c.Patch(ctx, "/tasks/"+url.PathEscape(id), patch, &updated); err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Delete(ctx, "/tasks/"+url.PathEscape(id))
}

// Goals

func (c *Client) ListGoals(ctx context.Context) ([]models.Goal, error) {
	var goals []models.Goal
	if err := c.Get(ctx, "/goals", &goals); err != nil {
		return nil, err
	}
	return goals, nil
}

func (c *Client) UpdateGoal(ctx context.Context, id string, patch models.GoalPatch) (models.Goal, error) {
	var updated models.Goal
	if err := c.Patch(ctx, "/goals/"+url.PathEscape(id), patch, &updated); err != nil {
		return models.Goal{}, err
	}
	return updated, nil
}

// Habits

func (c *Client) ListHabits(ctx context.Context) ([]models.Habit, error) {
	var habits []models.Habit
	if err := c.Get(ctx, "/habits", &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// CompleteHabit records today's completion and returns the habit with its
// updated streak.
func (c *Client) CompleteHabit(ctx context.Context, id string) (models.Habit, error) {
	var habit models.Habit
	if err := c.Post(ctx, "/habits/"+url.PathEscape(id)+"/complete", nil, &habit); err != nil {
		return models.Habit{}, err
	}
	return habit, nil
}

// Chat

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendChatMessage posts a user message and returns it as stored. The
// assistant reply arrives later as a chat:message:received event.
func (c *Client) SendChatMessage(ctx context.Context, conversationID, content string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.Post(ctx, path, sendMessageRequest{Content: content}, &msg); err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

func (c *Client) ListChatMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.Get(ctx, path, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Analytics

// FocusAnalytics returns deep work totals for the last days days.
func (c *Client) FocusAnalytics(ctx context.Context, days int) (models.FocusAnalytics, error) {
	if days <= 0 {
		return models.FocusAnalytics{}, fmt.Errorf("api: focus analytics: days must be positive, got %d", days)
	}
	q := url.Values{"days": {strconv.Itoa(days)}}

	var fa models.FocusAnalytics
	if err := c.Get(ctx, "/analytics/focus?"+q.Encode(), &fa); err != nil {
		return models.FocusAnalytics{}, err
	}
	return fa, nil
}

// HabitHeatmap returns completions per day between from and to (YYYY-MM-DD).
func (c *Client) HabitHeatmap(ctx context.Context, from, to string) (models.HabitHeatmap, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	path := "/analytics/habits/heatmap"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var hm models.HabitHeatmap
	if err := c.Get(ctx, path, &hm); err != nil {
		return models.HabitHeatmap{}, err
	}
	return hm, nil
}

func (c *Client) StrategicInsight(ctx context.Context) (models.StrategicInsight, error) {
	var si models.StrategicInsight
	if err := c.Get(ctx, "/insights/strategic", &si); err != nil {
		return models.StrategicInsight{}, err
	}
	return si, nil
}
