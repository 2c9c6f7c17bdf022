package session

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxCommandSize = 1 << 10
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
)

// Session is one live WebSocket connection for a pharmacy. The read loop
// handles client commands; the pump goroutine is the single writer, pushing
// drained mailbox messages as individual frames and sending keepalive pings.
type Session struct {
	telematikID string
	hub         *Hub
	conn        *websocket.Conn
	logger      *slog.Logger

	kick chan struct{} // signals the pump to drain and push
	done chan struct{} // closed when the pump exits

	stopOnce sync.Once
}

func newSession(h *Hub, id string, conn *websocket.Conn) *Session {
	return &Session{
		telematikID: id,
		hub:         h,
		conn:        conn,
		logger:      h.logger.With("telematikId", id),
		kick:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// start launches the pump and runs the read loop on the caller's goroutine
// (the HTTP handler, which must not return before the connection dies).
func (s *Session) start() {
	go s.pump()
	s.readLoop()
}

// kickPush signals the pump to drain the mailbox. Coalescing via the
// buffered channel is fine: one drain observes all messages enqueued so far.
func (s *Session) kickPush() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// stop closes the connection, which unblocks both loops.
func (s *Session) stop() {
	s.stopOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

// awaitStopped blocks until the pump has exited or the timeout elapses.
func (s *Session) awaitStopped(timeout time.Duration) {
	select {
	case <-s.done:
	case <-time.After(timeout):
	}
}

// readLoop consumes client command frames until the connection dies, then
// unregisters the session.
func (s *Session) readLoop() {
	defer func() {
		s.hub.unregister(s)
		s.stop()
	}()

	s.conn.SetReadLimit(maxCommandSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.logger.Warn("Consumer read deadline exceeded")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Consumer read error", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleCommand(strings.TrimSpace(string(data)))
	}
}

// handleCommand dispatches a client-initiated command frame.
func (s *Session) handleCommand(cmd string) {
	switch cmd {
	case CommandRequestQueued:
		s.kickPush()
	case CommandClearQueue:
		s.hub.queues.Clear(s.telematikID)
	default:
		s.logger.Warn("Unknown consumer command", "command", cmd)
	}
}

// pump is the single writer for the connection. It drains the mailbox when
// kicked and pings the consumer periodically.
func (s *Session) pump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.stop()
		close(s.done)
	}()

	for {
		select {
		case <-s.kick:
			if !s.push() {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Warn("Ping failed", "error", err)
				s.hub.unregister(s)
				return
			}
		}
	}
}

// push drains the mailbox and writes each message as one frame, oldest
// first. On a write failure the undelivered remainder (including the failed
// message) is requeued at the front so nothing is lost; the session then
// tears itself down. Returns false when the connection is dead.
func (s *Session) push() bool {
	msgs := s.hub.queues.DrainAll(s.telematikID)
	for i, m := range msgs {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteJSON(NewEnvelope(m)); err != nil {
			s.hub.queues.RequeueFront(s.telematikID, msgs[i:])
			s.hub.pushFailures.Add(int64(len(msgs) - i))
			s.logger.Warn("Push failed, messages requeued",
				"delivered", i,
				"requeued", len(msgs)-i,
				"error", err,
			)
			s.hub.unregister(s)
			return false
		}
		s.hub.pushed.Add(1)
	}
	if len(msgs) > 0 && s.hub.metrics != nil {
		s.hub.metrics.RecordPushed(context.Background(), len(msgs))
	}
	return true
}
