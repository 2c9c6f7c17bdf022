package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"psprelay/internal/apperrors"
)

// Queue is the mailbox surface the service enqueues into.
// Implemented by mailbox.Registry.
type Queue interface {
	Enqueue(id string, m Message)
	Len(id string) int
}

// Notifier is the session surface the service pushes through.
// Implemented by session.Hub.
type Notifier interface {
	// Notify kicks the live session for id, if any, returning whether one
	// was registered at the time of the call.
	Notify(id string) bool
}

// Service accepts delivery notifications and routes them to mailboxes and
// live sessions. It is stateless; all message state lives in the mailbox
// registry.
type Service struct {
	queue    Queue
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a relay service.
func NewService(queue Queue, notifier Notifier) *Service {
	return &Service{
		queue:    queue,
		notifier: notifier,
		logger:   slog.With("component", "relay"),
	}
}

// IngestRequest is one producer notification, already resolved to a
// delivery option by the HTTP layer.
type IngestRequest struct {
	TelematikID   string
	TransactionID string
	Option        DeliveryOption
	Payload       []byte
}

// IngestResult reports how a notification was handled.
type IngestResult struct {
	Message Message
	// Connected is true when a live session was kicked to push the
	// message immediately. False means the message waits in the mailbox
	// for the next drain request.
	Connected bool
}

// Ingest enqueues the notification and pushes it if the recipient has a
// live session. The message is always enqueued first: a session vanishing
// between the registry lookup and the push loses nothing, the next drain
// finds the message.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.TelematikID == "" {
		return nil, apperrors.Missing("telematikID", "no telematikID")
	}
	if len(req.Payload) == 0 {
		return nil, apperrors.Missing("body", "blob == null or empty")
	}

	m := Message{
		ID:            uuid.NewString(),
		TelematikID:   req.TelematikID,
		TransactionID: req.TransactionID,
		Option:        req.Option,
		Payload:       req.Payload,
		Note:          "arrived @ " + string(req.Option),
		EnqueuedAt:    time.Now(),
	}

	s.queue.Enqueue(m.TelematikID, m)
	connected := s.notifier.Notify(m.TelematikID)

	s.logger.Info("Notification ingested",
		"messageId", m.ID,
		"telematikId", m.TelematikID,
		"transactionId", m.TransactionID,
		"option", m.Option,
		"bytes", len(m.Payload),
		"connected", connected,
	)

	return &IngestResult{Message: m, Connected: connected}, nil
}
