// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package planner

import (
	"slices"

	"github.com/tomtom215/tempo/internal/events"
	"github.com/tomtom215/tempo/internal/models"
)

// subscribe wires realtime events into the stores and the refresh scope.
// Partial payloads patch the settled value through Store.Update so a pending
// optimistic change never leaks into it.
//
// Which views each event family invalidates:
//
//	tasks, deep work     -> focus
//	habits               -> heatmap
//	goals, tasks, habits -> strategic insight
//	analytics:update     -> the view named in the payload
func (p *Planner) subscribe() {
	r := p.router

	// Tasks
	p.subs.Add(r.OnTaskCreated(p.reconcileTask))
	p.subs.Add(r.OnTaskUpdated(p.reconcileTask))
	p.subs.Add(r.OnTaskDeleted(func(ev events.TaskRemoved) {
		p.Tasks.ReconcileRemoval(ev.ID)
		p.debounce(DomainFocus)
		p.debounce(DomainStrategic)
	}))

	// Deep work
	p.subs.Add(r.OnDeepWorkStarted(func(models.DeepWorkSession) {
		p.debounce(DomainFocus)
	}))
	p.subs.Add(r.OnDeepWorkCompleted(func(models.DeepWorkSession) {
		p.debounce(DomainFocus)
	}))

	// Habits
	p.subs.Add(r.OnHabitCreated(func(h models.Habit) {
		p.Habits.Reconcile(h.ID, h)
		p.debounce(DomainHeatmap)
	}))
	p.subs.Add(r.OnHabitCompleted(func(ev events.HabitCompletion) {
		completedAt := ev.CompletedAt
		p.Habits.Update(ev.HabitID, func(h models.Habit) models.Habit {
			h.CompletedToday = true
			h.LastCompletedAt = &completedAt
			h.CurrentStreak = ev.CurrentStreak
			h.LongestStreak = max(h.LongestStreak, ev.CurrentStreak)
			return h
		})
		p.debounce(DomainHeatmap)
		p.debounce(DomainStrategic)
	}))
	p.subs.Add(r.OnHabitStreakUpdated(func(ev events.HabitStreak) {
		p.Habits.Update(ev.HabitID, func(h models.Habit) models.Habit {
			h.CurrentStreak = ev.CurrentStreak
			h.LongestStreak = ev.LongestStreak
			return h
		})
	}))

	// Goals
	p.subs.Add(r.OnGoalCreated(p.reconcileGoal))
	p.subs.Add(r.OnGoalUpdated(p.reconcileGoal))
	p.subs.Add(r.OnGoalCompleted(p.reconcileGoal))
	p.subs.Add(r.OnGoalProgressChanged(func(ev events.GoalProgress) {
		p.Goals.Update(ev.GoalID, func(g models.Goal) models.Goal {
			g.Progress = ev.Progress
			return g
		})
		p.debounce(DomainStrategic)
	}))
	p.subs.Add(r.OnGoalMilestoneReached(func(ev events.GoalMilestone) {
		now := p.cfg.Now()
		p.Goals.Update(ev.GoalID, func(g models.Goal) models.Goal {
			g.Progress = ev.Progress
			g.Milestones = slices.Clone(g.Milestones)
			for i := range g.Milestones {
				if g.Milestones[i].Title == ev.Milestone && g.Milestones[i].ReachedAt == nil {
					g.Milestones[i].ReachedAt = &now
				}
			}
			return g
		})
		p.debounce(DomainStrategic)
	}))

	// Insights and aggregate analytics
	p.subs.Add(r.OnInsightGenerated(func(models.Insight) {
		p.debounce(DomainStrategic)
	}))
	p.subs.Add(r.OnAnalyticsUpdate(func(ev events.Analytics) {
		switch ev.Domain {
		case "focus":
			p.debounce(DomainFocus)
		case "habits":
			p.debounce(DomainHeatmap)
			p.debounce(DomainAnalytics)
		default:
			p.debounce(DomainAnalytics)
		}
	}))

	// Chat
	p.subs.Add(r.OnChatMessageReceived(func(m models.ChatMessage) {
		p.Messages.Reconcile(m.ID, m)
	}))
}

func (p *Planner) reconcileTask(t models.Task) {
	p.Tasks.Reconcile(t.ID, t)
	p.debounce(DomainFocus)
	p.debounce(DomainStrategic)
}

func (p *Planner) reconcileGoal(g models.Goal) {
	p.Goals.Reconcile(g.ID, g)
	p.debounce(DomainStrategic)
}
