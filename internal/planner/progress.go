// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package planner

import (
	"math"
	"time"

	"github.com/tomtom215/tempo/internal/models"
)

// paceTolerance is how many percentage points behind the linear pace a goal
// may fall and still count as on track.
const paceTolerance = 5.0

// Pace classifies a goal's progress against its schedule.
type Pace string

const (
	PaceUnscheduled Pace = "unscheduled"
	PaceAhead       Pace = "ahead"
	PaceOnTrack     Pace = "on_track"
	PaceBehind      Pace = "behind"
	PaceOverdue     Pace = "overdue"
	PaceComplete    Pace = "complete"
)

// ProgressMetrics compares a goal's progress with a linear pace between its
// start and target dates.
type ProgressMetrics struct {
	Actual   float64
	Expected float64
	Delta    float64 // Actual - Expected
	Pace     Pace

	DaysElapsed   int
	DaysRemaining int

	// RequiredDailyRate is the progress per day needed to finish on time.
	// Zero when complete or past the target date.
	RequiredDailyRate float64
}

// OnTrack reports whether the goal is complete or not behind schedule.
func (m ProgressMetrics) OnTrack() bool {
	switch m.Pace {
	case PaceAhead, PaceOnTrack, PaceComplete, PaceUnscheduled:
		return true
	}
	return false
}

// ComputeProgressMetrics estimates pace for g at now. A goal without both
// dates, or with a target before its start, is unscheduled.
func ComputeProgressMetrics(g models.Goal, now time.Time) ProgressMetrics {
	m := ProgressMetrics{Actual: clampPercent(g.Progress)}

	if m.Actual >= 100 || g.Status == models.GoalCompleted {
		m.Expected = 100
		m.Pace = PaceComplete
		return m
	}
	if g.StartDate == nil || g.TargetDate == nil || !g.TargetDate.After(*g.StartDate) {
		m.Pace = PaceUnscheduled
		return m
	}

	start, target := *g.StartDate, *g.TargetDate
	total := target.Sub(start)
	elapsed := now.Sub(start)

	fraction := math.Max(0, math.Min(1, float64(elapsed)/float64(total)))
	m.Expected = fraction * 100
	m.Delta = m.Actual - m.Expected
	m.DaysElapsed = max(0, int(elapsed.Hours()/24))

	if !now.Before(target) {
		m.Pace = PaceOverdue
		return m
	}

	m.DaysRemaining = int(math.Ceil(target.Sub(now).Hours() / 24))
	m.RequiredDailyRate = (100 - m.Actual) / float64(m.DaysRemaining)

	switch {
	case m.Delta > paceTolerance:
		m.Pace = PaceAhead
	case m.Delta >= -paceTolerance:
		m.Pace = PaceOnTrack
	default:
		m.Pace = PaceBehind
	}
	return m
}

// ProgressMetrics returns pace metrics for the goal with id as currently shown.
func (p *Planner) ProgressMetrics(id string) (ProgressMetrics, bool) {
	g, ok := p.Goals.Get(id)
	if !ok {
		return ProgressMetrics{}, false
	}
	return ComputeProgressMetrics(g, p.cfg.Now()), true
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
