// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tempo/internal/api"
	"github.com/tomtom215/tempo/internal/events"
	"github.com/tomtom215/tempo/internal/models"
	"github.com/tomtom215/tempo/internal/refresh"
	"github.com/tomtom215/tempo/internal/store"
	"github.com/tomtom215/tempo/internal/transport"
)

var _ Backend = (*api.Client)(nil)

var errBackend = errors.New("backend unavailable")

// fakeBackend records calls and returns canned data. Hooks override the
// default behavior of individual methods.
type fakeBackend struct {
	mu     sync.Mutex
	tasks  []models.Task
	goals  []models.Goal
	habits []models.Habit
	calls  map[string]int

	updateTask    func(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	createTask    func(ctx context.Context, t models.Task) (models.Task, error)
	deleteTask    func(ctx context.Context, id string) error
	updateGoal    func(ctx context.Context, id string, patch models.GoalPatch) (models.Goal, error)
	completeHabit func(ctx context.Context, id string) (models.Habit, error)
	sendChat      func(ctx context.Context, conv, content string) (models.ChatMessage, error)
	focusErr      error
	focusMinutes  atomic.Int64
	strategicText string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int), strategicText: "steady"}
}

func (f *fakeBackend) called(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) setFocusErr(err error) {
	f.mu.Lock()
	f.focusErr = err
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) ListTasks(context.Context) ([]models.Task, error) {
	f.called("ListTasks")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Task(nil), f.tasks...), nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	f.called("CreateTask")
	if f.createTask != nil {
		return f.createTask(ctx, t)
	}
	t.ID = "task-100"
	return t, nil
}

func (f *fakeBackend) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	f.called("UpdateTask")
	if f.updateTask != nil {
		return f.updateTask(ctx, id, patch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			return patch.ApplyTo(t), nil
		}
	}
	return models.Task{}, &api.StatusError{StatusCode: 404}
}

func (f *fakeBackend) DeleteTask(ctx context.Context, id string) error {
	f.called("DeleteTask")
	if f.deleteTask != nil {
		return f.deleteTask(ctx, id)
	}
	return nil
}

func (f *fakeBackend) ListGoals(context.Context) ([]models.Goal, error) {
	f.called("ListGoals")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Goal(nil), f.goals...), nil
}

func (f *fakeBackend) UpdateGoal(ctx context.Context, id string, patch models.GoalPatch) (models.Goal, error) {
	f.called("UpdateGoal")
	if f.updateGoal != nil {
		return f.updateGoal(ctx, id, patch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.goals {
		if g.ID == id {
			return patch.ApplyTo(g), nil
		}
	}
	return models.Goal{}, &api.StatusError{StatusCode: 404}
}

func (f *fakeBackend) ListHabits(context.Context) ([]models.Habit, error) {
	f.called("ListHabits")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Habit(nil), f.habits...), nil
}

func (f *fakeBackend) CompleteHabit(ctx context.Context, id string) (models.Habit, error) {
	f.called("CompleteHabit")
	if f.completeHabit != nil {
		return f.completeHabit(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.habits {
		if h.ID == id {
			h.CompletedToday = true
			h.CurrentStreak++
			return h, nil
		}
	}
	return models.Habit{}, &api.StatusError{StatusCode: 404}
}

func (f *fakeBackend) SendChatMessage(ctx context.Context, conv, content string) (models.ChatMessage, error) {
	f.called("SendChatMessage")
	if f.sendChat != nil {
		return f.sendChat(ctx, conv, content)
	}
	return models.ChatMessage{ID: "msg-1", ConversationID: conv, Role: models.ChatRoleUser, Content: content}, nil
}

func (f *fakeBackend) ListChatMessages(_ context.Context, conv string) ([]models.ChatMessage, error) {
	f.called("ListChatMessages")
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []models.ChatMessage{
		{ID: "m2", ConversationID: conv, Role: models.ChatRoleAssistant, Content: "hi", CreatedAt: t0.Add(time.Minute)},
		{ID: "m1", ConversationID: conv, Role: models.ChatRoleUser, Content: "hello", CreatedAt: t0},
	}, nil
}

func (f *fakeBackend) FocusAnalytics(_ context.Context, days int) (models.FocusAnalytics, error) {
	f.called("FocusAnalytics")
	f.mu.Lock()
	err := f.focusErr
	f.mu.Unlock()
	if err != nil {
		return models.FocusAnalytics{}, err
	}
	return models.FocusAnalytics{PeriodDays: days, TotalFocusMinutes: int(f.focusMinutes.Load())}, nil
}

func (f *fakeBackend) HabitHeatmap(_ context.Context, from, to string) (models.HabitHeatmap, error) {
	f.called("HabitHeatmap")
	return models.HabitHeatmap{From: from, To: to}, nil
}

func (f *fakeBackend) StrategicInsight(context.Context) (models.StrategicInsight, error) {
	f.called("StrategicInsight")
	return models.StrategicInsight{Summary: f.strategicText}, nil
}

// fakeSource dispatches emitted events synchronously to registered handlers.
type fakeSource struct {
	mu     sync.Mutex
	nextID transport.SubscriptionID
	subs   map[string]map[transport.SubscriptionID]transport.Handler
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[string]map[transport.SubscriptionID]transport.Handler)}
}

func (f *fakeSource) On(event string, h transport.Handler) transport.SubscriptionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	if f.subs[event] == nil {
		f.subs[event] = make(map[transport.SubscriptionID]transport.Handler)
	}
	f.subs[event][f.nextID] = h
	return f.nextID
}

func (f *fakeSource) Off(event string, id transport.SubscriptionID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[event][id]; !ok {
		return false
	}
	delete(f.subs[event], id)
	return true
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.subs {
		n += len(m)
	}
	return n
}

func (f *fakeSource) emit(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	f.mu.Lock()
	handlers := make([]transport.Handler, 0, len(f.subs[event]))
	for _, h := range f.subs[event] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(transport.Message{Event: event, Data: data})
	}
}

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	planner *Planner
	backend *fakeBackend
	source  *fakeSource
	coord   *refresh.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := newFakeBackend()
	backend.tasks = []models.Task{
		{ID: "task-7", Title: "Draft review", Status: models.TaskPending},
		{ID: "task-8", Title: "Plan sprint", Status: models.TaskInProgress},
	}
	backend.goals = []models.Goal{{ID: "goal-1", Title: "Ship v1", Progress: 20, Status: models.GoalActive}}
	backend.habits = []models.Habit{{ID: "habit-1", Name: "Read", CurrentStreak: 3, LongestStreak: 5}}

	source := newFakeSource()
	coord := refresh.New(refresh.Config{DefaultDelay: 30 * time.Millisecond})
	p := New(backend, events.NewRouter(source), coord, Config{Now: func() time.Time { return fixedNow }})
	t.Cleanup(func() {
		p.Close()
		coord.Close()
	})

	if err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	return &harness{planner: p, backend: backend, source: source, coord: coord}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSync_LoadsStoresAndAnalytics(t *testing.T) {
	h := newHarness(t)
	p := h.planner

	if p.Tasks.Len() != 2 || p.Goals.Len() != 1 || p.Habits.Len() != 1 {
		t.Fatalf("store sizes = %d/%d/%d", p.Tasks.Len(), p.Goals.Len(), p.Habits.Len())
	}

	focus := p.FocusAnalytics()
	if !focus.Loaded || focus.Value.PeriodDays != 7 || !focus.UpdatedAt.Equal(fixedNow) {
		t.Errorf("focus snapshot = %+v", focus)
	}
	heatmap := p.HabitHeatmap()
	if heatmap.Value.From != "2025-12-16" || heatmap.Value.To != "2026-03-15" {
		t.Errorf("heatmap range = %s..%s", heatmap.Value.From, heatmap.Value.To)
	}
	if p.StrategicInsight().Value.Summary != "steady" {
		t.Errorf("strategic = %+v", p.StrategicInsight())
	}
}

func TestSync_AnalyticsFailureDoesNotFailSync(t *testing.T) {
	backend := newFakeBackend()
	backend.focusErr = errBackend
	coord := refresh.New(refresh.Config{})
	defer coord.Close()
	p := New(backend, events.NewRouter(newFakeSource()), coord, Config{})
	defer p.Close()

	if err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	focus := p.FocusAnalytics()
	if focus.Loaded || !errors.Is(focus.Err, errBackend) || !focus.Stale() {
		t.Errorf("focus snapshot = %+v", focus)
	}
}

func TestRefreshAnalytics_FailingViewDoesNotStopOthers(t *testing.T) {
	h := newHarness(t)
	h.backend.setFocusErr(errBackend)
	heatmaps := h.backend.count("HabitHeatmap")
	insights := h.backend.count("StrategicInsight")

	h.planner.RefreshAnalytics(context.Background())

	if focus := h.planner.FocusAnalytics(); !focus.Loaded || !errors.Is(focus.Err, errBackend) {
		t.Errorf("focus snapshot = %+v", focus)
	}
	if n := h.backend.count("HabitHeatmap"); n != heatmaps+1 {
		t.Errorf("heatmap fetches = %d, want %d", n, heatmaps+1)
	}
	if n := h.backend.count("StrategicInsight"); n != insights+1 {
		t.Errorf("strategic fetches = %d, want %d", n, insights+1)
	}
	if got := h.planner.StrategicInsight(); got.Err != nil {
		t.Errorf("strategic snapshot = %+v", got)
	}
}

func TestCompleteTask_OptimisticThenRollback(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	h.backend.updateTask = func(context.Context, string, models.TaskPatch) (models.Task, error) {
		close(entered)
		<-release
		return models.Task{}, errBackend
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.planner.CompleteTask(context.Background(), "task-7")
		done <- err
	}()

	<-entered
	if task, _ := h.planner.Tasks.Get("task-7"); task.Status != models.TaskCompleted || task.CompletedAt == nil {
		t.Fatalf("during request: task = %+v, want completed", task)
	}

	close(release)
	err := <-done
	if !errors.Is(err, store.ErrMutationFailed) || !errors.Is(err, errBackend) {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if task, _ := h.planner.Tasks.Get("task-7"); task.Status != models.TaskPending || task.CompletedAt != nil {
		t.Errorf("after rollback: task = %+v, want pending", task)
	}
}

func TestCompleteTask_ServerValueWins(t *testing.T) {
	h := newHarness(t)
	h.backend.updateTask = func(_ context.Context, id string, _ models.TaskPatch) (models.Task, error) {
		return models.Task{ID: id, Title: "Draft review (final)", Status: models.TaskCompleted}, nil
	}

	task, err := h.planner.CompleteTask(context.Background(), "task-7")
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	got, _ := h.planner.Tasks.Get("task-7")
	if got.Title != "Draft review (final)" || task.Title != got.Title {
		t.Errorf("stored = %+v, returned = %+v", got, task)
	}
}

func TestUpdateTask_Validation(t *testing.T) {
	h := newHarness(t)
	empty := "  "

	if _, err := h.planner.UpdateTask(context.Background(), "missing", models.TaskPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing task: error = %v", err)
	}
	if _, err := h.planner.UpdateTask(context.Background(), "task-7", models.TaskPatch{Title: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty title: error = %v", err)
	}
	if h.backend.count("UpdateTask") != 0 {
		t.Error("backend called for rejected input")
	}
}

func TestCreateTask_TemporaryIDReplaced(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	var tempID string
	h.backend.createTask = func(_ context.Context, task models.Task) (models.Task, error) {
		tempID = task.ID
		<-release
		task.ID = "task-100"
		return task, nil
	}

	done := make(chan models.Task, 1)
	go func() {
		created, err := h.planner.CreateTask(context.Background(), models.Task{Title: "New task"})
		if err != nil {
			t.Errorf("CreateTask() error = %v", err)
		}
		done <- created
	}()

	waitFor(t, "optimistic task", func() bool { return h.planner.Tasks.Len() == 3 })
	var shown models.Task
	for _, task := range h.planner.Tasks.List() {
		if IsTemporaryID(task.ID) {
			shown = task
		}
	}
	if shown.Title != "New task" || shown.Status != models.TaskPending {
		t.Fatalf("optimistic task = %+v", shown)
	}

	close(release)
	created := <-done
	if created.ID != "task-100" {
		t.Fatalf("created.ID = %q", created.ID)
	}
	if _, ok := h.planner.Tasks.Get(tempID); ok {
		t.Error("temporary task still present")
	}
	if _, ok := h.planner.Tasks.Get("task-100"); !ok {
		t.Error("created task missing")
	}
	if h.planner.Tasks.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.planner.Tasks.Len())
	}
}

func TestCreateTask_FailureRemovesTemporary(t *testing.T) {
	h := newHarness(t)
	h.backend.createTask = func(context.Context, models.Task) (models.Task, error) {
		return models.Task{}, errBackend
	}

	if _, err := h.planner.CreateTask(context.Background(), models.Task{Title: "Doomed"}); !errors.Is(err, errBackend) {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if h.planner.Tasks.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.planner.Tasks.Len())
	}
}

func TestDeleteTask(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantExist bool
	}{
		{"success", nil, false, false},
		{"already gone", &api.StatusError{StatusCode: 404}, false, false},
		{"server error", &api.StatusError{StatusCode: 500}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.deleteTask = func(context.Context, string) error { return tt.err }

			err := h.planner.DeleteTask(context.Background(), "task-8")
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeleteTask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if _, ok := h.planner.Tasks.Get("task-8"); ok != tt.wantExist {
				t.Errorf("task exists = %v, want %v", ok, tt.wantExist)
			}
		})
	}
}

func TestUpdateGoalProgress(t *testing.T) {
	h := newHarness(t)

	for _, bad := range []float64{-1, 100.5} {
		if _, err := h.planner.UpdateGoalProgress(context.Background(), "goal-1", bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("progress %v: error = %v", bad, err)
		}
	}

	goal, err := h.planner.UpdateGoalProgress(context.Background(), "goal-1", 45)
	if err != nil {
		t.Fatalf("UpdateGoalProgress() error = %v", err)
	}
	if goal.Progress != 45 {
		t.Errorf("Progress = %v", goal.Progress)
	}
	if got, _ := h.planner.Goals.Get("goal-1"); got.Progress != 45 {
		t.Errorf("stored Progress = %v", got.Progress)
	}
}

func TestCompleteHabit(t *testing.T) {
	h := newHarness(t)

	habit, err := h.planner.CompleteHabit(context.Background(), "habit-1")
	if err != nil {
		t.Fatalf("CompleteHabit() error = %v", err)
	}
	if !habit.CompletedToday || habit.CurrentStreak != 4 {
		t.Errorf("habit = %+v", habit)
	}

	if _, err := h.planner.CompleteHabit(context.Background(), "habit-1"); err != nil {
		t.Fatalf("second CompleteHabit() error = %v", err)
	}
	if n := h.backend.count("CompleteHabit"); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
}

func TestSendChatMessage(t *testing.T) {
	h := newHarness(t)

	if _, err := h.planner.SendChatMessage(context.Background(), "conv-1", " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty content: error = %v", err)
	}

	msg, err := h.planner.SendChatMessage(context.Background(), "conv-1", "plan my week")
	if err != nil {
		t.Fatalf("SendChatMessage() error = %v", err)
	}
	conv := h.planner.Conversation("conv-1")
	if len(conv) != 1 || conv[0].ID != msg.ID || msg.ID != "msg-1" {
		t.Errorf("conversation = %+v", conv)
	}

	h.backend.sendChat = func(context.Context, string, string) (models.ChatMessage, error) {
		return models.ChatMessage{}, errBackend
	}
	if _, err := h.planner.SendChatMessage(context.Background(), "conv-1", "again"); !errors.Is(err, errBackend) {
		t.Fatalf("failed send: error = %v", err)
	}
	if n := len(h.planner.Conversation("conv-1")); n != 1 {
		t.Errorf("conversation length after failed send = %d, want 1", n)
	}
}

func TestLoadConversation_Ordered(t *testing.T) {
	h := newHarness(t)
	if err := h.planner.LoadConversation(context.Background(), "conv-9"); err != nil {
		t.Fatalf("LoadConversation() error = %v", err)
	}
	conv := h.planner.Conversation("conv-9")
	if len(conv) != 2 || conv[0].ID != "m1" || conv[1].ID != "m2" {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestRealtime_ReconcilesEntities(t *testing.T) {
	h := newHarness(t)
	p := h.planner

	h.source.emit(t, "planner:task:created", models.Task{ID: "task-9", Title: "From server"})
	if _, ok := p.Tasks.Get("task-9"); !ok {
		t.Error("created task not reconciled")
	}

	h.source.emit(t, "planner:task:deleted", events.TaskRemoved{ID: "task-8"})
	if _, ok := p.Tasks.Get("task-8"); ok {
		t.Error("deleted task still present")
	}

	h.source.emit(t, "planner:goal:progress_changed", events.GoalProgress{GoalID: "goal-1", Progress: 60, PreviousProgress: 20})
	if g, _ := p.Goals.Get("goal-1"); g.Progress != 60 {
		t.Errorf("goal progress = %v", g.Progress)
	}

	h.source.emit(t, "planner:habit:streak_updated", events.HabitStreak{HabitID: "habit-1", CurrentStreak: 9, LongestStreak: 9})
	if hb, _ := p.Habits.Get("habit-1"); hb.CurrentStreak != 9 || hb.LongestStreak != 9 {
		t.Errorf("habit = %+v", hb)
	}

	h.source.emit(t, "chat:message:received", models.ChatMessage{ID: "m5", ConversationID: "conv-1", Role: models.ChatRoleAssistant, Content: "Done"})
	if len(p.Conversation("conv-1")) != 1 {
		t.Error("chat message not reconciled")
	}
}

func TestRealtime_RemoteChangeDeferredWhilePending(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	h.backend.updateTask = func(context.Context, string, models.TaskPatch) (models.Task, error) {
		close(entered)
		<-release
		return models.Task{}, errBackend
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.planner.CompleteTask(context.Background(), "task-7")
	}()
	<-entered

	h.source.emit(t, "planner:task:updated", models.Task{ID: "task-7", Title: "Renamed remotely", Status: models.TaskPending})
	if task, _ := h.planner.Tasks.Get("task-7"); task.Status != models.TaskCompleted {
		t.Errorf("optimistic value overwritten: %+v", task)
	}

	close(release)
	<-done
	if task, _ := h.planner.Tasks.Get("task-7"); task.Title != "Renamed remotely" {
		t.Errorf("after rollback: task = %+v, want remote value", task)
	}
}

// blockUntil returns a backend hook that signals entered and fails once
// release is closed.
func blockUntil[T any](entered, release chan struct{}) func() (T, error) {
	return func() (T, error) {
		close(entered)
		<-release
		var zero T
		return zero, errBackend
	}
}

func TestRealtime_PartialEventWhilePendingRevertsOnRejection(t *testing.T) {
	t.Run("habit streak", func(t *testing.T) {
		h := newHarness(t)
		entered, release := make(chan struct{}), make(chan struct{})
		reject := blockUntil[models.Habit](entered, release)
		h.backend.completeHabit = func(context.Context, string) (models.Habit, error) { return reject() }

		done := make(chan error, 1)
		go func() {
			_, err := h.planner.CompleteHabit(context.Background(), "habit-1")
			done <- err
		}()
		<-entered

		h.source.emit(t, "planner:habit:streak_updated", events.HabitStreak{HabitID: "habit-1", CurrentStreak: 7, LongestStreak: 8})
		if hb, _ := h.planner.Habits.Get("habit-1"); !hb.CompletedToday || hb.CurrentStreak != 4 {
			t.Errorf("optimistic value overwritten: %+v", hb)
		}

		close(release)
		if err := <-done; !errors.Is(err, errBackend) {
			t.Fatalf("CompleteHabit() error = %v", err)
		}
		hb, _ := h.planner.Habits.Get("habit-1")
		if hb.CompletedToday || hb.LastCompletedAt != nil {
			t.Errorf("rejected completion survived rollback: %+v", hb)
		}
		if hb.CurrentStreak != 7 || hb.LongestStreak != 8 {
			t.Errorf("streak = %d/%d, want the remote 7/8", hb.CurrentStreak, hb.LongestStreak)
		}
	})

	t.Run("goal progress", func(t *testing.T) {
		h := newHarness(t)
		entered, release := make(chan struct{}), make(chan struct{})
		reject := blockUntil[models.Goal](entered, release)
		h.backend.updateGoal = func(context.Context, string, models.GoalPatch) (models.Goal, error) { return reject() }

		done := make(chan error, 1)
		go func() {
			_, err := h.planner.UpdateGoalProgress(context.Background(), "goal-1", 90)
			done <- err
		}()
		<-entered

		h.source.emit(t, "planner:goal:progress_changed", events.GoalProgress{GoalID: "goal-1", Progress: 35, PreviousProgress: 20})
		if g, _ := h.planner.Goals.Get("goal-1"); g.Progress != 90 {
			t.Errorf("optimistic progress overwritten: %v", g.Progress)
		}

		close(release)
		if err := <-done; !errors.Is(err, errBackend) {
			t.Fatalf("UpdateGoalProgress() error = %v", err)
		}
		if g, _ := h.planner.Goals.Get("goal-1"); g.Progress != 35 {
			t.Errorf("progress after rollback = %v, want the remote 35", g.Progress)
		}
	})
}

func TestRealtime_BurstCollapsesToOneRefresh(t *testing.T) {
	h := newHarness(t)
	before := h.backend.count("HabitHeatmap")

	for i := 0; i < 5; i++ {
		h.source.emit(t, "planner:habit:completed", events.HabitCompletion{HabitID: "habit-1", CurrentStreak: 4 + i})
	}

	waitFor(t, "heatmap refresh", func() bool { return h.backend.count("HabitHeatmap") > before })
	time.Sleep(100 * time.Millisecond)
	if got := h.backend.count("HabitHeatmap") - before; got != 1 {
		t.Errorf("heatmap fetches = %d, want 1", got)
	}
}

func TestRealtime_RefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t)
	prev := h.planner.FocusAnalytics()
	h.backend.setFocusErr(errBackend)

	h.source.emit(t, "planner:deepwork:completed", models.DeepWorkSession{ID: "dw-1"})
	waitFor(t, "failed focus refresh", func() bool { return h.planner.FocusAnalytics().Err != nil })

	got := h.planner.FocusAnalytics()
	if !got.Loaded || got.Value != prev.Value || !errors.Is(got.Err, errBackend) {
		t.Errorf("snapshot = %+v", got)
	}

	h.backend.setFocusErr(nil)
	h.backend.focusMinutes.Store(120)
	h.source.emit(t, "analytics:update", events.Analytics{Domain: "focus"})
	waitFor(t, "recovered focus refresh", func() bool { return h.planner.FocusAnalytics().Err == nil })
	if got := h.planner.FocusAnalytics(); got.Value.TotalFocusMinutes != 120 {
		t.Errorf("recovered snapshot = %+v", got)
	}
}

func TestClose_UnsubscribesAndCancelsRefreshes(t *testing.T) {
	h := newHarness(t)
	if h.source.total() == 0 {
		t.Fatal("planner did not subscribe")
	}

	h.source.emit(t, "insight:generated", models.Insight{ID: "i1"})
	if !h.coord.Pending(DomainStrategic) {
		t.Fatal("strategic refresh not scheduled")
	}
	before := h.backend.count("StrategicInsight")

	h.planner.Close()
	if n := h.source.total(); n != 0 {
		t.Errorf("subscriptions after Close = %d", n)
	}
	if h.coord.Pending(DomainStrategic) {
		t.Error("refresh still pending after Close")
	}
	time.Sleep(80 * time.Millisecond)
	if h.backend.count("StrategicInsight") != before {
		t.Error("refresh ran after Close")
	}

	if _, err := h.planner.CompleteTask(context.Background(), "task-7"); !errors.Is(err, ErrClosed) {
		t.Errorf("action after Close: error = %v", err)
	}
	if err := h.planner.Sync(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Sync after Close: error = %v", err)
	}
}
