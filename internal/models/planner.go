// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package models

import (
	"time"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is a unit of planned work.
//
// Example:
//
//	{
//	  "id": "task-7",
//	  "title": "Draft quarterly review",
//	  "status": "pending",
//	  "priority": "high",
//	  "goalId": "goal-2",
//	  "estimatedMinutes": 90
//	}
type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Status           TaskStatus `json:"status,omitempty"`
	Priority         string     `json:"priority,omitempty"` // "low", "medium", "high", "urgent"
	GoalID           string     `json:"goalId,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	EstimatedMinutes int        `json:"estimatedMinutes,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt,omitempty"`
}

// Done reports whether the task is completed.
func (t Task) Done() bool {
	return t.Status == TaskCompleted
}

// TaskPatch is a partial task update. Nil fields are left unchanged.
type TaskPatch struct {
	Title            *string     `json:"title,omitempty"`
	Description      *string     `json:"description,omitempty"`
	Status           *TaskStatus `json:"status,omitempty"`
	Priority         *string     `json:"priority,omitempty"`
	DueDate          *time.Time  `json:"dueDate,omitempty"`
	EstimatedMinutes *int        `json:"estimatedMinutes,omitempty"`
}

// ApplyTo returns t with the patch applied.
func (p TaskPatch) ApplyTo(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.EstimatedMinutes != nil {
		t.EstimatedMinutes = *p.EstimatedMinutes
	}
	return t
}

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalArchived  GoalStatus = "archived"
)

// Goal is a longer-running objective with percentage progress.
//
// Progress is 0-100. StartDate and TargetDate bound the period used for
// pace estimation; either may be absent.
type Goal struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      GoalStatus  `json:"status,omitempty"`
	Progress    float64     `json:"progress"`
	Milestones  []Milestone `json:"milestones,omitempty"`
	StartDate   *time.Time  `json:"startDate,omitempty"`
	TargetDate  *time.Time  `json:"targetDate,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt,omitempty"`
}

// GoalPatch is a partial goal update. Nil fields are left unchanged.
type GoalPatch struct {
	Title    *string     `json:"title,omitempty"`
	Status   *GoalStatus `json:"status,omitempty"`
	Progress *float64    `json:"progress,omitempty"`
}

// ApplyTo returns g with the patch applied.
func (p GoalPatch) ApplyTo(g Goal) Goal {
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.Progress != nil {
		g.Progress = *p.Progress
	}
	return g
}

// Milestone is a named progress threshold of a goal.
type Milestone struct {
	Title     string     `json:"title"`
	Threshold float64    `json:"threshold"`
	ReachedAt *time.Time `json:"reachedAt,omitempty"`
}

// Habit is a recurring behavior with completion streaks.
type Habit struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Frequency       string     `json:"frequency,omitempty"` // "daily", "weekly"
	CurrentStreak   int        `json:"currentStreak"`
	LongestStreak   int        `json:"longestStreak"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
	CompletedToday  bool       `json:"completedToday"`
}

// DeepWorkSession is a focused work block, optionally tied to a task.
type DeepWorkSession struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"taskId,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	PlannedMinutes int        `json:"plannedMinutes,omitempty"`
	FocusScore     float64    `json:"focusScore,omitempty"`
	Interruptions  int        `json:"interruptions,omitempty"`
}
