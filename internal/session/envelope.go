package session

import "psprelay/internal/relay"

// Client-initiated text commands of the consumer subprotocol.
const (
	CommandRequestQueued = "request queued"
	CommandClearQueue    = "clear queue"
)

// Envelope is the server-to-client wire frame, one per delivered message.
// Payload is base64-encoded by encoding/json.
type Envelope struct {
	MessageID      string `json:"messageId"`
	DeliveryOption string `json:"deliveryOption"`
	TransactionID  string `json:"transactionId,omitempty"`
	Note           string `json:"note,omitempty"`
	Payload        []byte `json:"payload"`
}

// NewEnvelope builds the wire frame for a message.
func NewEnvelope(m relay.Message) Envelope {
	return Envelope{
		MessageID:      m.ID,
		DeliveryOption: string(m.Option),
		TransactionID:  m.TransactionID,
		Note:           m.Note,
		Payload:        m.Payload,
	}
}
