// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package events

import (
	"sort"
)

// Name is a realtime event name from the backend's closed vocabulary.
type Name string

// Planner events.
const (
	TaskCreated Name = "planner:task:created"
	TaskUpdated Name = "planner:task:updated"
	TaskDeleted Name = "planner:task:deleted"

	DeepWorkStarted   Name = "planner:deepwork:started"
	DeepWorkCompleted Name = "planner:deepwork:completed"

	HabitCreated       Name = "planner:habit:created"
	HabitCompleted     Name = "planner:habit:completed"
	HabitStreakUpdated Name = "planner:habit:streak_updated"

	GoalCreated          Name = "planner:goal:created"
	GoalUpdated          Name = "planner:goal:updated"
	GoalProgressChanged  Name = "planner:goal:progress_changed"
	GoalMilestoneReached Name = "planner:goal:milestone_reached"
	GoalCompleted        Name = "planner:goal:completed"

	PlanGenerated Name = "planner:plan:generated"
)

// Assistant, analytics and notification events.
const (
	AISuggestion      Name = "ai:suggestion"
	AIActionConfirmed Name = "ai:action:confirmed"

	AnalyticsUpdate  Name = "analytics:update"
	InsightGenerated Name = "insight:generated"

	NotificationReceived Name = "notification:received"

	ChatMessageReceived     Name = "chat:message:received"
	ChatConversationUpdated Name = "chat:conversation:updated"
)

var vocabulary = map[Name]struct{}{
	TaskCreated:             {},
	TaskUpdated:             {},
	TaskDeleted:             {},
	DeepWorkStarted:         {},
	DeepWorkCompleted:       {},
	HabitCreated:            {},
	HabitCompleted:          {},
	HabitStreakUpdated:      {},
	GoalCreated:             {},
	GoalUpdated:             {},
	GoalProgressChanged:     {},
	GoalMilestoneReached:    {},
	GoalCompleted:           {},
	PlanGenerated:           {},
	AISuggestion:            {},
	AIActionConfirmed:       {},
	AnalyticsUpdate:         {},
	InsightGenerated:        {},
	NotificationReceived:    {},
	ChatMessageReceived:     {},
	ChatConversationUpdated: {},
}

// Names returns every known event name in lexical order.
func Names() []Name {
	out := make([]Name, 0, len(vocabulary))
	for n := range vocabulary {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether name belongs to the vocabulary. Unknown names are
// ignorable, never fatal.
func Known(name string) bool {
	_, ok := vocabulary[Name(name)]
	return ok
}

func (n Name) String() string {
	return string(n)
}
