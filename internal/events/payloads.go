// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package events

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tempo/internal/models"
)

// Payload shapes per event. Events whose payload is a whole entity
// (task created, goal updated, ...) decode straight into the models type.

// TaskRemoved is the payload of TaskDeleted.
type TaskRemoved struct {
	ID string `json:"id"`
}

// HabitCompletion is the payload of HabitCompleted.
type HabitCompletion struct {
	HabitID       string    `json:"habitId"`
	CompletedAt   time.Time `json:"completedAt"`
	CurrentStreak int       `json:"currentStreak"`
}

// HabitStreak is the payload of HabitStreakUpdated.
type HabitStreak struct {
	HabitID       string `json:"habitId"`
	CurrentStreak int    `json:"currentStreak"`
	LongestStreak int    `json:"longestStreak"`
}

// GoalProgress is the payload of GoalProgressChanged.
type GoalProgress struct {
	GoalID           string  `json:"goalId"`
	Progress         float64 `json:"progress"`
	PreviousProgress float64 `json:"previousProgress"`
}

// GoalMilestone is the payload of GoalMilestoneReached.
type GoalMilestone struct {
	GoalID    string  `json:"goalId"`
	Milestone string  `json:"milestone"`
	Progress  float64 `json:"progress"`
}

// Plan is the payload of PlanGenerated.
type Plan struct {
	ID      string   `json:"id"`
	Date    string   `json:"date"` // YYYY-MM-DD
	TaskIDs []string `json:"taskIds"`
	Summary string   `json:"summary,omitempty"`
}

// Suggestion is the payload of AISuggestion.
type Suggestion struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"` // "create_task", "reschedule", "start_deepwork", ...
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Action      json.RawMessage `json:"action,omitempty"`
}

// ActionConfirmation is the payload of AIActionConfirmed.
type ActionConfirmation struct {
	SuggestionID string          `json:"suggestionId"`
	Kind         string          `json:"kind"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// Analytics is the payload of AnalyticsUpdate.
type Analytics struct {
	Domain  string             `json:"domain"` // "focus", "habits", "goals"
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// ConversationUpdate is the payload of ChatConversationUpdated.
type ConversationUpdate = models.Conversation
