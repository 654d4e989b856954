// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package events turns the raw realtime channel into a closed, typed
// vocabulary of domain events.
//
// Every OnX method registers one callback under the fixed event name, decodes
// the payload into its Go type and returns an Unsubscribe that removes
// exactly that callback. A callback that panics, or a payload that fails to
// decode, is logged and counted for that callback only; other callbacks for
// the same event still run and the failing one stays registered.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/metrics"
	"github.com/tomtom215/tempo/internal/models"
	"github.com/tomtom215/tempo/internal/transport"
)

// Source is the raw subscribe primitive. *transport.Client satisfies it.
type Source interface {
	On(event string, h transport.Handler) transport.SubscriptionID
	Off(event string, id transport.SubscriptionID) bool
}

// Unsubscribe removes one registration. Calling it more than once is a no-op.
type Unsubscribe func()

// Router exposes typed subscriptions over a Source.
type Router struct {
	src    Source
	log    zerolog.Logger
	active atomic.Int64
}

// NewRouter creates a Router over src.
func NewRouter(src Source) *Router {
	return &Router{
		src: src,
		log: logging.WithComponent("router"),
	}
}

// Subscriptions returns the number of live typed subscriptions.
func (r *Router) Subscriptions() int {
	return int(r.active.Load())
}

// Subscribe registers fn for name with payloads decoded into T. The OnX
// methods are thin wrappers around it.
func Subscribe[T any](r *Router, name Name, fn func(T)) Unsubscribe {
	event := string(name)

	id := r.src.On(event, func(msg transport.Message) {
		var payload T
		if len(msg.Data) > 0 && string(msg.Data) != "null" {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				metrics.RouterCallbackErrors.WithLabelValues(event, "decode").Inc()
				r.log.Warn().
					Err(err).
					Str("event", event).
					Str("type", fmt.Sprintf("%T", payload)).
					Msg("Payload does not match event type, callback skipped")
				return
			}
		}
		r.deliver(event, func() { fn(payload) })
	})

	r.active.Add(1)
	metrics.RouterSubscriptions.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			if r.src.Off(event, id) {
				r.active.Add(-1)
				metrics.RouterSubscriptions.Dec()
			}
		})
	}
}

// deliver runs one callback, isolating panics.
func (r *Router) deliver(event string, call func()) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RouterCallbackErrors.WithLabelValues(event, "panic").Inc()
			r.log.Error().
				Str("event", event).
				Interface("panic", rec).
				Msg("Subscriber callback panicked")
		}
	}()
	metrics.RouterDeliveries.WithLabelValues(event).Inc()
	call()
}

// Tasks

// OnTaskCreated subscribes fn to TaskCreated.
func (r *Router) OnTaskCreated(fn func(models.Task)) Unsubscribe {
	return Subscribe(r, TaskCreated, fn)
}

// OnTaskUpdated subscribes fn to TaskUpdated.
func (r *Router) OnTaskUpdated(fn func(models.Task)) Unsubscribe {
	return Subscribe(r, TaskUpdated, fn)
}

// OnTaskDeleted subscribes fn to TaskDeleted.
func (r *Router) OnTaskDeleted(fn func(TaskRemoved)) Unsubscribe {
	return Subscribe(r, TaskDeleted, fn)
}

// Deep work

// OnDeepWorkStarted subscribes fn to DeepWorkStarted.
func (r *Router) OnDeepWorkStarted(fn func(models.DeepWorkSession)) Unsubscribe {
	return Subscribe(r, DeepWorkStarted, fn)
}

// OnDeepWorkCompleted subscribes fn to DeepWorkCompleted.
func (r *Router) OnDeepWorkCompleted(fn func(models.DeepWorkSession)) Unsubscribe {
	return Subscribe(r, DeepWorkCompleted, fn)
}

// Habits

// OnHabitCreated subscribes fn to HabitCreated.
func (r *Router) OnHabitCreated(fn func(models.Habit)) Unsubscribe {
	return Subscribe(r, HabitCreated, fn)
}

// OnHabitCompleted subscribes fn to HabitCompleted.
func (r *Router) OnHabitCompleted(fn func(HabitCompletion)) Unsubscribe {
	return Subscribe(r, HabitCompleted, fn)
}

// OnHabitStreakUpdated subscribes fn to HabitStreakUpdated.
func (r *Router) OnHabitStreakUpdated(fn func(HabitStreak)) Unsubscribe {
	return Subscribe(r, HabitStreakUpdated, fn)
}

// Goals

// OnGoalCreated subscribes fn to GoalCreated.
func (r *Router) OnGoalCreated(fn func(models.Goal)) Unsubscribe {
	return Subscribe(r, GoalCreated, fn)
}

// OnGoalUpdated subscribes fn to GoalUpdated.
func (r *Router) OnGoalUpdated(fn func(models.Goal)) Unsubscribe {
	return Subscribe(r, GoalUpdated, fn)
}

// OnGoalProgressChanged subscribes fn to GoalProgressChanged.
func (r *Router) OnGoalProgressChanged(fn func(GoalProgress)) Unsubscribe {
	return Subscribe(r, GoalProgressChanged, fn)
}

// OnGoalMilestoneReached subscribes fn to GoalMilestoneReached.
func (r *Router) OnGoalMilestoneReached(fn func(GoalMilestone)) Unsubscribe {
	return Subscribe(r, GoalMilestoneReached, fn)
}

// OnGoalCompleted subscribes fn to GoalCompleted.
func (r *Router) OnGoalCompleted(fn func(models.Goal)) Unsubscribe {
	return Subscribe(r, GoalCompleted, fn)
}

// OnPlanGenerated subscribes fn to PlanGenerated.
func (r *Router) OnPlanGenerated(fn func(Plan)) Unsubscribe {
	return Subscribe(r, PlanGenerated, fn)
}

// Assistant

// OnAISuggestion subscribes fn to AISuggestion.
func (r *Router) OnAISuggestion(fn func(Suggestion)) Unsubscribe {
	return Subscribe(r, AISuggestion, fn)
}

// OnAIActionConfirmed subscribes fn to AIActionConfirmed.
func (r *Router) OnAIActionConfirmed(fn func(ActionConfirmation)) Unsubscribe {
	return Subscribe(r, AIActionConfirmed, fn)
}

// Analytics and notifications

// OnAnalyticsUpdate subscribes fn to AnalyticsUpdate.
func (r *Router) OnAnalyticsUpdate(fn func(Analytics)) Unsubscribe {
	return Subscribe(r, AnalyticsUpdate, fn)
}

// OnInsightGenerated subscribes fn to InsightGenerated.
func (r *Router) OnInsightGenerated(fn func(models.Insight)) Unsubscribe {
	return Subscribe(r, InsightGenerated, fn)
}

// OnNotificationReceived subscribes fn to NotificationReceived.
func (r *Router) OnNotificationReceived(fn func(models.Notification)) Unsubscribe {
	return Subscribe(r, NotificationReceived, fn)
}

// Chat

// OnChatMessageReceived subscribes fn to ChatMessageReceived.
func (r *Router) OnChatMessageReceived(fn func(models.ChatMessage)) Unsubscribe {
	return Subscribe(r, ChatMessageReceived, fn)
}

// OnChatConversationUpdated subscribes fn to ChatConversationUpdated.
func (r *Router) OnChatConversationUpdated(fn func(ConversationUpdate)) Unsubscribe {
	return Subscribe(r, ChatConversationUpdated, fn)
}
