// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

// Package transport owns the single realtime websocket connection to the
// backend: dial, authenticate, keep alive, reconnect with capped backoff,
// and fan inbound named events out to raw subscribers.
//
// Frames are JSON text messages of the form {"event": "...", "data": ...}.
// After dialing, the client sends an "authenticate" frame carrying
// {"subjectId", "authToken"} and waits for "authenticated" (success) or
// "auth_error" / "unauthorized" (rejection). No event is delivered to
// subscribers before the acknowledgment, and every reconnect repeats the
// handshake before delivery resumes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tempo/internal/logging"
	"github.com/tomtom215/tempo/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // 1 MB
)

// Wire event names used by the transport itself.
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventAuthError     = "auth_error"
	EventUnauthorized  = "unauthorized"
	EventPing          = "ping"
	EventPong          = "pong"
)

// Config configures a Client. Zero durations fall back to defaults.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// SubjectID and AuthToken are the credentials used by Run.
	SubjectID string
	AuthToken string

	// AuthTimeout bounds the wait for the authenticated acknowledgment.
	AuthTimeout time.Duration

	// ReconnectInitialDelay doubles per failed attempt up to ReconnectMaxDelay.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration

	// MaxReconnectAttempts bounds consecutive failed reconnects (0 = unlimited).
	MaxReconnectAttempts int

	PingInterval time.Duration
	ReadTimeout  time.Duration

	// CheckTokenClaims refuses expired or foreign JWTs before dialing.
	CheckTokenClaims bool

	// Header is sent with the websocket upgrade request.
	Header http.Header
}

func (c Config) withDefaults() Config {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.ReconnectInitialDelay <= 0 {
		c.ReconnectInitialDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay < c.ReconnectInitialDelay {
		c.ReconnectMaxDelay = 32 * time.Second
		if c.ReconnectMaxDelay < c.ReconnectInitialDelay {
			c.ReconnectMaxDelay = c.ReconnectInitialDelay
		}
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.ReadTimeout <= c.PingInterval {
		c.ReadTimeout = c.PingInterval * 2
	}
	return c
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type authRequest struct {
	SubjectID string `json:"subjectId"`
	AuthToken string `json:"authToken,omitempty"`
}

type authAck struct {
	ConnectionID string `json:"connectionId"`
	SubjectID    string `json:"subjectId"`
}

type authFailure struct {
	Message string `json:"message"`
}

// Client is the transport adapter. Create one per signed-in session with New
// and hand it to the components that need it; it is not a global.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	subs   *registry
	log    zerolog.Logger
	now    func() time.Time

	state atomic.Int32

	// connectMu serializes Connect calls.
	connectMu sync.Mutex

	// mu guards the fields below.
	mu           sync.Mutex
	conn         *websocket.Conn
	connectionID string
	subjectID    string
	authToken    string
	attempts     int
	lastErr      error
	cancel       context.CancelFunc
	done         chan struct{}
	stateHooks   []func(State)

	// writeMu serializes frame writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a disconnected Client.
func New(cfg Config) *Client {
	return &Client{
		cfg: cfg.withDefaults(),
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  10 * time.Second,
			EnableCompression: true,
		},
		subs: newRegistry(),
		log:  logging.WithComponent("transport"),
		now:  time.Now,
	}
}

// Connect dials the backend and performs the authentication handshake.
//
// It returns nil once the backend acknowledges authentication. It returns
// ErrInvalidSubject for an empty subject, an *AuthenticationError when the
// token pre-check or the backend rejects the credentials, ErrAuthTimeout when
// no acknowledgment arrives within AuthTimeout, or a wrapped dial error.
// ctx bounds only the handshake; the established session lives until
// Disconnect. Calling Connect on a live session is a no-op for the same
// subject and returns ErrSubjectMismatch for another one; switching subjects
// requires Disconnect first.
func (c *Client) Connect(ctx context.Context, subjectID, authToken string) error {
	if subjectID == "" {
		return ErrInvalidSubject
	}
	if c.cfg.CheckTokenClaims {
		if err := CheckToken(authToken, subjectID, c.now()); err != nil {
			c.setLastErr(err)
			return err
		}
	}

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		current := c.subjectID
		c.mu.Unlock()
		if current != subjectID {
			return ErrSubjectMismatch
		}
		return nil
	}
	c.subjectID = subjectID
	c.authToken = authToken
	c.mu.Unlock()

	c.log.Info().
		Str("url", c.cfg.URL).
		Str("subject", logging.SanitizeID(subjectID)).
		Msg("Connecting")

	c.setState(StateConnecting)
	conn, ack, err := c.handshake(ctx, subjectID, authToken)
	if err != nil {
		c.setLastErr(err)
		c.setState(StateDisconnected)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.connectionID = ack.ConnectionID
	c.attempts = 0
	c.lastErr = nil
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.setState(StateAuthenticated)
	c.log.Info().Str("connection_id", ack.ConnectionID).Msg("Authenticated")

	c.wg.Add(2)
	go c.readLoop(runCtx, cancel, done)
	go c.pingLoop(runCtx)

	return nil
}

// Disconnect closes the connection and stops the reconnect loop. It is
// idempotent. Subscriptions are kept; they belong to the callers.
// It must not be called from inside a subscriber callback.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connectionID = ""
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.wg.Wait()
	c.setState(StateDisconnected)
	c.log.Info().Msg("Disconnected")
}

// Run connects with the configured credentials and blocks until ctx is
// canceled or the session ends for good (authentication revoked or
// reconnects exhausted). It always disconnects before returning.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(ctx, c.cfg.SubjectID, c.cfg.AuthToken); err != nil {
		return err
	}

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.Disconnect()
		return ctx.Err()
	case <-done:
		c.Disconnect()
		if err := c.LastError(); err != nil {
			return err
		}
		return errors.New("transport: session ended")
	}
}

// On registers h for every future occurrence of event.
func (c *Client) On(event string, h Handler) SubscriptionID {
	return c.subs.add(event, h)
}

// Off removes the registration made by On. After Off returns, no new
// invocation of that handler starts. It reports whether id was registered.
func (c *Client) Off(event string, id SubscriptionID) bool {
	return c.subs.remove(event, id)
}

// OnAny registers h for every delivered event regardless of name.
func (c *Client) OnAny(h Handler) SubscriptionID {
	return c.subs.add(anyEvent, h)
}

// OffAny removes a registration made by OnAny.
func (c *Client) OffAny(id SubscriptionID) bool {
	return c.subs.remove(anyEvent, id)
}

// Subscribers returns the number of handlers registered for event.
func (c *Client) Subscribers(event string) int {
	return c.subs.count(event)
}

// OnStateChange registers fn to be called on every state transition.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHooks = append(c.stateHooks, fn)
}

// Emit sends an outbound event on the authenticated connection.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.State() != StateAuthenticated {
		return ErrNotConnected
	}
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	return c.writeTo(conn, event, payload)
}

// IsConnected reports whether an authenticated connection is up.
func (c *Client) IsConnected() bool {
	return c.State() == StateAuthenticated
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// ConnectionID returns the backend-assigned id of the current connection,
// or "" when not connected.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Attempts returns the current consecutive reconnect attempt (0 when stable).
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// LastError returns the most recent connection or authentication failure.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// handshake dials and authenticates one connection.
func (c *Client) handshake(ctx context.Context, subjectID, authToken string) (*websocket.Conn, authAck, error) {
	start := time.Now()

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, authAck{}, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, authAck{}, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	c.setState(StateConnected)

	// Closing the socket unblocks the handshake read when ctx ends first.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := c.writeTo(conn, EventAuthenticate, authRequest{SubjectID: subjectID, AuthToken: authToken}); err != nil {
		_ = conn.Close()
		return nil, authAck{}, fmt.Errorf("send authenticate: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.AuthTimeout)); err != nil {
		_ = conn.Close()
		return nil, authAck{}, fmt.Errorf("set handshake deadline: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, authAck{}, ctxErr
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, authAck{}, ErrAuthTimeout
			}
			return nil, authAck{}, fmt.Errorf("handshake read failed: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			metrics.MessagesReceived.WithLabelValues("malformed").Inc()
			continue
		}

		switch env.Event {
		case EventAuthenticated:
			var ack authAck
			if len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &ack); err != nil {
					c.log.Warn().Err(err).Msg("Malformed authentication acknowledgment")
				}
			}
			_ = conn.SetReadDeadline(time.Time{})
			metrics.HandshakeDuration.Observe(time.Since(start).Seconds())
			return conn, ack, nil

		case EventAuthError, EventUnauthorized:
			_ = conn.Close()
			return nil, authAck{}, &AuthenticationError{Reason: failureReason(env)}

		default:
			// Inert until authenticated.
			metrics.MessagesReceived.WithLabelValues("unauthenticated").Inc()
			c.log.Debug().Str("event", env.Event).Msg("Dropping event received before authentication")
		}
	}
}

// readLoop delivers inbound events and reconnects on failure. It ends the
// session (cancel) when it gives up.
func (c *Client) readLoop(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer c.wg.Done()
	defer func() {
		cancel()
		c.mu.Lock()
		if c.done == done {
			c.cancel = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	for {
		conn := c.currentConn()
		if conn == nil {
			return
		}

		err := c.receive(conn)
		if ctx.Err() != nil {
			return
		}
		c.dropConnection(conn)

		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			c.log.Warn().Err(err).Msg("Backend revoked authentication, not reconnecting")
			c.setLastErr(err)
			c.setState(StateDisconnected)
			return
		}

		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.log.Info().Msg("Connection closed by backend")
		} else {
			c.log.Warn().Err(err).Msg("Connection lost")
		}
		c.setLastErr(err)

		if !c.reconnect(ctx) {
			return
		}
	}
}

// receive reads frames from conn until it fails.
func (c *Client) receive(conn *websocket.Conn) error {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			metrics.MessagesReceived.WithLabelValues("malformed").Inc()
			c.log.Debug().Int("bytes", len(data)).Msg("Dropping malformed frame")
			continue
		}

		switch env.Event {
		case EventPong, EventAuthenticated:
			continue
		case EventAuthError, EventUnauthorized:
			return &AuthenticationError{Reason: failureReason(env)}
		}

		if c.State() != StateAuthenticated {
			metrics.MessagesReceived.WithLabelValues("unauthenticated").Inc()
			continue
		}

		metrics.MessagesReceived.WithLabelValues("delivered").Inc()
		c.subs.dispatch(Message{Event: env.Event, Data: env.Data})
	}
}

// reconnect retries the handshake with capped exponential backoff. It
// returns false when the session should end.
func (c *Client) reconnect(ctx context.Context) bool {
	delay := c.cfg.ReconnectInitialDelay

	for attempt := 1; ; attempt++ {
		if maxAttempts := c.cfg.MaxReconnectAttempts; maxAttempts > 0 && attempt > maxAttempts {
			c.log.Error().Int("attempts", maxAttempts).Msg("Giving up reconnecting")
			c.setLastErr(ErrReconnectExhausted)
			c.setState(StateDisconnected)
			return false
		}

		c.mu.Lock()
		c.attempts = attempt
		subjectID, authToken := c.subjectID, c.authToken
		c.mu.Unlock()

		c.setState(StateConnecting)
		c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		conn, ack, err := c.handshake(ctx, subjectID, authToken)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			c.setLastErr(err)

			var authErr *AuthenticationError
			if errors.As(err, &authErr) {
				metrics.ReconnectAttempts.WithLabelValues("auth_rejected").Inc()
				c.log.Error().Err(err).Msg("Re-authentication rejected, not retrying")
				c.setState(StateDisconnected)
				return false
			}

			metrics.ReconnectAttempts.WithLabelValues("failure").Inc()
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("Reconnection failed")
			c.setState(StateConnecting)

			delay *= 2
			if delay > c.cfg.ReconnectMaxDelay {
				delay = c.cfg.ReconnectMaxDelay
			}
			continue
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return false
		}
		c.conn = conn
		c.connectionID = ack.ConnectionID
		c.attempts = 0
		c.lastErr = nil
		c.mu.Unlock()

		metrics.ReconnectAttempts.WithLabelValues("success").Inc()
		c.setState(StateAuthenticated)
		c.log.Info().Str("connection_id", ack.ConnectionID).Int("attempt", attempt).Msg("Reconnected")
		return true
	}
}

// pingLoop sends periodic keep-alive frames.
func (c *Client) pingLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() != StateAuthenticated {
				continue
			}
			conn := c.currentConn()
			if conn == nil {
				continue
			}
			if err := c.writeTo(conn, EventPing, nil); err != nil {
				c.log.Warn().Err(err).Msg("Keep-alive failed")
				// The read loop notices the closed socket and reconnects.
				_ = conn.Close()
			}
		}
	}
}

func (c *Client) writeTo(conn *websocket.Conn, event string, payload any) error {
	env := envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	metrics.MessagesSent.Inc()
	return nil
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connectionID = ""
	}
	c.mu.Unlock()

	_ = conn.Close()
	c.setState(StateDisconnected)
}

func (c *Client) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// setState records a transition and notifies hooks. Callers must not hold mu.
func (c *Client) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old == s {
		return
	}
	metrics.ConnectionState.Set(float64(s))

	c.mu.Lock()
	hooks := make([]func(State), len(c.stateHooks))
	copy(hooks, c.stateHooks)
	c.mu.Unlock()

	for _, h := range hooks {
		h(s)
	}
}

func failureReason(env envelope) string {
	var f authFailure
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &f)
	}
	if f.Message == "" {
		return env.Event
	}
	return logging.SanitizeError(f.Message)
}
