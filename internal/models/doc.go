// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

/*
Package models defines the data structures shared by the Tempo realtime client.

The shapes mirror the backend contract: the same JSON documents arrive as
realtime event payloads and as REST response bodies, so one set of types
serves the event router, the optimistic stores and the REST client.

Key Components:

  - Task, Goal, Habit, DeepWorkSession: planner entities held in optimistic stores
  - ChatMessage, Conversation: assistant chat entities
  - FocusAnalytics, HabitHeatmap, StrategicInsight: derived views refreshed on demand
  - Insight, Notification: pushed informational entities
  - APIResponse, APIError: REST response envelope

Field naming follows the backend (camelCase JSON). Timestamps are RFC3339.
Optional fields are pointers or carry omitempty so that partial updates
round-trip without inventing zero values.
*/
package models
