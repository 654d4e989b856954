// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/tempo/internal/events"
	"github.com/tomtom215/tempo/internal/metrics"
	"github.com/tomtom215/tempo/internal/transport"
	"github.com/tomtom215/tempo/internal/transport/transporttest"
)

var _ events.Publisher = (*Bus)(nil)

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed")
		}
		msg.Ack()
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBus_Topic(t *testing.T) {
	tests := []struct {
		prefix string
		event  string
		want   string
	}{
		{"", "planner:task:created", "tempo.planner.task.created"},
		{"home.", "ai:suggestion", "home.ai.suggestion"},
		{"x", "analytics:update", "x.analytics.update"},
	}
	for _, tt := range tests {
		b := NewLocal(tt.prefix)
		if got := b.Topic(tt.event); got != tt.want {
			t.Errorf("Topic(%q) with prefix %q = %q, want %q", tt.event, tt.prefix, got, tt.want)
		}
		_ = b.Close()
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewLocal("")
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "planner:task:updated")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	before := testutil.ToFloat64(metrics.BusPublished.WithLabelValues("ok"))
	payload := []byte(`{"id":"t1","title":"Write report"}`)
	if err := b.Publish(ctx, "planner:task:updated", payload); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msg := receive(t, ch)
	if string(msg.Payload) != string(payload) {
		t.Errorf("payload = %s", msg.Payload)
	}
	if got := msg.Metadata.Get(MetadataEvent); got != "planner:task:updated" {
		t.Errorf("event metadata = %q", got)
	}
	if msg.UUID == "" {
		t.Error("message UUID is empty")
	}
	if got := testutil.ToFloat64(metrics.BusPublished.WithLabelValues("ok")); got != before+1 {
		t.Errorf("published ok = %v, want %v", got, before+1)
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	b := NewLocal("")
	defer b.Close()
	ctx := context.Background()

	created, err := b.Subscribe(ctx, "planner:task:created")
	if err != nil {
		t.Fatal(err)
	}
	deleted, err := b.Subscribe(ctx, "planner:task:deleted")
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Publish(ctx, "planner:task:deleted", []byte(`{"id":"t1"}`)); err != nil {
		t.Fatal(err)
	}
	receive(t, deleted)

	select {
	case msg := <-created:
		t.Fatalf("unexpected message on created topic: %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_Closed(t *testing.T) {
	b := NewLocal("")
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := b.Publish(context.Background(), "ai:suggestion", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() error = %v, want ErrClosed", err)
	}
	if _, err := b.Subscribe(context.Background(), "ai:suggestion"); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() error = %v, want ErrClosed", err)
	}
}

func TestNewNATS_RequiresURL(t *testing.T) {
	if _, err := NewNATS(Config{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

// Events received on the realtime connection are forwarded to the bus.
func TestBus_BridgedFromTransport(t *testing.T) {
	backend := transporttest.NewBackend(t, transporttest.AcceptAll)
	client := transport.New(transport.Config{
		URL:          backend.URL(),
		AuthTimeout:  2 * time.Second,
		PingInterval: time.Hour,
	})
	t.Cleanup(client.Disconnect)

	b := NewLocal("")
	defer b.Close()

	ch, err := b.Subscribe(context.Background(), "planner:goal:progress_changed")
	if err != nil {
		t.Fatal(err)
	}

	router := events.NewRouter(client)
	detach := router.Bridge(b)
	defer detach()

	if err := client.Connect(context.Background(), "user-42", ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	peer := backend.Accept(t)
	if err := peer.Send("planner:goal:progress_changed", events.GoalProgress{GoalID: "g1", Progress: 55}); err != nil {
		t.Fatal(err)
	}

	msg := receive(t, ch)
	var got events.GoalProgress
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.GoalID != "g1" || got.Progress != 55 {
		t.Errorf("payload = %+v", got)
	}
}
