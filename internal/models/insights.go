// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package models

import (
	"time"
)

// FocusAnalytics aggregates deep work over a rolling window.
//
// Example:
//
//	{
//	  "periodDays": 7,
//	  "totalFocusMinutes": 840,
//	  "sessions": 12,
//	  "averageFocusScore": 0.78,
//	  "bestHour": 9
//	}
type FocusAnalytics struct {
	PeriodDays        int       `json:"periodDays"`
	TotalFocusMinutes int       `json:"totalFocusMinutes"`
	Sessions          int       `json:"sessions"`
	AverageFocusScore float64   `json:"averageFocusScore"`
	BestHour          int       `json:"bestHour"`
	CompletedTasks    int       `json:"completedTasks"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// HabitHeatmap holds per-day completion counts for the habit calendar view.
type HabitHeatmap struct {
	From  string         `json:"from"` // YYYY-MM-DD
	To    string         `json:"to"`   // YYYY-MM-DD
	Days  map[string]int `json:"days"` // date -> completions
	Total int            `json:"total"`
}

// StrategicInsight is the expensive, model-generated summary of goals and habits.
type StrategicInsight struct {
	Summary         string    `json:"summary"`
	Recommendations []string  `json:"recommendations,omitempty"`
	AtRiskGoalIDs   []string  `json:"atRiskGoalIds,omitempty"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Insight is a short pushed observation.
type Insight struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // "focus", "habit", "goal", "strategic"
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is a user-facing notification pushed by the backend.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
