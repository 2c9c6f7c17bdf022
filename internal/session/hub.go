// Package session manages the pharmacy-side WebSocket connections: at most
// one live session per TelematikID, registered in a hub and fed from the
// mailbox registry.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"psprelay/internal/relay"
)

// MailboxStore is the queue surface the hub drains messages from.
// Implemented by mailbox.Registry.
type MailboxStore interface {
	DrainAll(id string) []relay.Message
	RequeueFront(id string, msgs []relay.Message)
	Clear(id string)
}

// MetricsRecorder is an optional interface for recording session metrics.
type MetricsRecorder interface {
	RecordSessionConnected(ctx context.Context)
	RecordSessionDisconnected(ctx context.Context)
	RecordSessionReplaced(ctx context.Context)
	RecordPushed(ctx context.Context, count int)
}

// Config holds hub configuration.
type Config struct {
	// AuthRequired demands an X-Authorization handshake header matching
	// Token. Plain-ws test deployments leave it off.
	AuthRequired bool
	Token        string
}

// Hub is the connection registry: a map from TelematikID to the single live
// session for that pharmacy. A new connection for an id that already has a
// session replaces it (last-connect-wins).
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session

	queues  MailboxStore
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder

	connected    atomic.Int64
	replaced     atomic.Int64
	pushed       atomic.Int64
	pushFailures atomic.Int64

	closed atomic.Bool
}

// Stats holds hub counters since process start.
type Stats struct {
	Active       int   // currently connected sessions
	Connected    int64 // total successful connects
	Replaced     int64 // sessions displaced by a reconnect
	Pushed       int64 // messages written to sockets
	PushFailures int64 // messages requeued after a failed write
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The consumer is a backend application, not a browser; origin
	// checking adds nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewHub creates a session hub. metrics may be nil.
func NewHub(queues MailboxStore, cfg Config, metrics MetricsRecorder) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		queues:   queues,
		config:   cfg,
		logger:   slog.With("component", "session"),
		metrics:  metrics,
	}
}

// HandleConnect handles GET /ws/{ti_id}: authenticates when required,
// upgrades the connection and registers the session.
func (h *Hub) HandleConnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("ti_id")
	if id == "" {
		http.Error(w, "no telematikID", http.StatusNotFound)
		return
	}

	if h.config.AuthRequired {
		token := r.Header.Get("X-Authorization")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.config.Token)) != 1 {
			h.logger.Warn("WebSocket auth rejected", "telematikId", id)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	if h.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("WebSocket upgrade failed", "telematikId", id, "error", err)
		return
	}

	s := newSession(h, id, conn)
	h.register(s)
	s.start()
}

// register installs s as the session for its id, displacing any prior one.
// The replaced session is closed outside the lock.
func (h *Hub) register(s *Session) {
	h.mu.Lock()
	prev := h.sessions[s.telematikID]
	h.sessions[s.telematikID] = s
	h.mu.Unlock()

	h.connected.Add(1)
	if h.metrics != nil {
		h.metrics.RecordSessionConnected(context.Background())
	}
	h.logger.Info("Consumer connected", "telematikId", s.telematikID)

	if prev != nil {
		h.replaced.Add(1)
		if h.metrics != nil {
			h.metrics.RecordSessionReplaced(context.Background())
		}
		h.logger.Info("Prior session replaced", "telematikId", s.telematikID)
		prev.stop()
	}
}

// unregister removes s if it is still the registered session for its id.
// A stale disconnect from an already-replaced session is a no-op.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	current, ok := h.sessions[s.telematikID]
	if ok && current == s {
		delete(h.sessions, s.telematikID)
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok {
		if h.metrics != nil {
			h.metrics.RecordSessionDisconnected(context.Background())
		}
		h.logger.Info("Consumer disconnected", "telematikId", s.telematikID)
	}
}

// Notify kicks the live session for id, if any, to drain and push its
// mailbox. Returns false when no session is registered. The message itself
// is already enqueued by the caller, so a session vanishing concurrently
// loses nothing: the next drain finds it.
func (h *Hub) Notify(id string) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		return false
	}
	s.kickPush()
	return true
}

// Connected reports whether a session is currently registered for id.
func (h *Hub) Connected(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[id]
	return ok
}

// Ready implements the health readiness check.
func (h *Hub) Ready(ctx context.Context) error {
	if h.closed.Load() {
		return errors.New("session hub is shut down")
	}
	return nil
}

// Stats returns current hub statistics.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	active := len(h.sessions)
	h.mu.Unlock()
	return Stats{
		Active:       active,
		Connected:    h.connected.Load(),
		Replaced:     h.replaced.Load(),
		Pushed:       h.pushed.Load(),
		PushFailures: h.pushFailures.Load(),
	}
}

// Close rejects new connections and closes all live sessions. Queued
// messages stay in their mailboxes.
func (h *Hub) Close(ctx context.Context) error {
	if h.closed.Swap(true) {
		return nil
	}

	h.mu.Lock()
	open := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	h.logger.Info("Hub shutting down", "sessions", len(open))
	for _, s := range open {
		s.stop()
	}

	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for _, s := range open {
		s.awaitStopped(time.Until(deadline))
	}
	return nil
}
