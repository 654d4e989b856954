// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package transporttest provides an in-process websocket backend that speaks
// the realtime handshake, for tests of the transport and the layers above it.
package transporttest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Envelope is the wire frame exchanged with the client.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AuthRequest is the payload of the client's authenticate frame.
type AuthRequest struct {
	SubjectID string `json:"subjectId"`
	AuthToken string `json:"authToken,omitempty"`
}

// Responder decides how the backend answers the n-th handshake (1-based).
// Returning an empty event leaves the handshake unanswered.
type Responder func(n int, req AuthRequest) (event string, data any)

// AcceptAll acknowledges every handshake with connection ids conn-1, conn-2, ...
func AcceptAll(n int, req AuthRequest) (string, any) {
	return "authenticated", map[string]string{
		"connectionId": fmt.Sprintf("conn-%d", n),
		"subjectId":    req.SubjectID,
	}
}

// RejectAll rejects every handshake.
func RejectAll(_ int, _ AuthRequest) (string, any) {
	return "auth_error", map[string]string{"message": "invalid credentials"}
}

// Silent never answers the handshake.
func Silent(_ int, _ AuthRequest) (string, any) {
	return "", nil
}

// Backend is a websocket server standing in for the realtime backend.
type Backend struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	peers    chan *Peer

	mu        sync.Mutex
	respond   Responder
	preAuth   []Envelope
	requests  []AuthRequest
	handshake int
}

// NewBackend starts a backend that answers handshakes with respond.
// The server is closed when the test finishes.
func NewBackend(t testing.TB, respond Responder) *Backend {
	t.Helper()

	b := &Backend{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		peers:   make(chan *Peer, 16),
		respond: respond,
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.Close)
	return b
}

// URL returns the ws:// URL of the backend.
func (b *Backend) URL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/realtime"
}

// Close shuts the server down.
func (b *Backend) Close() {
	b.server.CloseClientConnections()
	b.server.Close()
}

// SetResponder replaces the handshake policy for later connections.
func (b *Backend) SetResponder(respond Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.respond = respond
}

// SendBeforeAuth queues frames sent to each new peer before the handshake answer.
func (b *Backend) SendBeforeAuth(event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preAuth = append(b.preAuth, Envelope{Event: event, Data: mustMarshal(data)})
}

// Requests returns the handshakes received so far.
func (b *Backend) Requests() []AuthRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]AuthRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// Handshakes returns the number of connections that sent a handshake.
func (b *Backend) Handshakes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handshake
}

// Accept waits for the next connection that completed the handshake exchange.
func (b *Backend) Accept(t testing.TB) *Peer {
	t.Helper()
	select {
	case p := <-b.peers:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("backend: no connection within 5s")
		return nil
	}
}

func (b *Backend) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	peer := &Peer{conn: conn}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil || env.Event != "authenticate" {
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	var req AuthRequest
	_ = json.Unmarshal(env.Data, &req)

	b.mu.Lock()
	b.handshake++
	n := b.handshake
	b.requests = append(b.requests, req)
	respond := b.respond
	preAuth := append([]Envelope(nil), b.preAuth...)
	b.mu.Unlock()

	for _, e := range preAuth {
		_ = peer.write(e)
	}
	if respond != nil {
		if event, data := respond(n, req); event != "" {
			_ = peer.Send(event, data)
		}
	}

	b.peers <- peer
}

// Peer is the server side of one client connection.
type Peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send writes an event frame to the client.
func (p *Peer) Send(event string, data any) error {
	return p.write(Envelope{Event: event, Data: mustMarshal(data)})
}

// SendRaw writes an arbitrary text frame to the client.
func (p *Peer) SendRaw(frame string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Read waits for the next frame from the client, skipping keep-alive pings.
func (p *Peer) Read(t testing.TB) Envelope {
	t.Helper()
	for {
		_ = p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			t.Fatalf("peer read failed: %v", err)
		}
		if env.Event != "ping" {
			return env
		}
	}
}

// Close drops the connection without a close handshake.
func (p *Peer) Close() {
	_ = p.conn.Close()
}

func (p *Peer) write(env Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(env)
}

func mustMarshal(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("transporttest: marshal %T: %v", v, err))
	}
	return data
}
