// Package relay contains the core domain types of the PSP message relay:
// delivery notifications, delivery options and the route resolver.
package relay

import "time"

// DeliveryOption is the fulfillment channel a prescription takes.
type DeliveryOption string

const (
	Shipment  DeliveryOption = "SHIPMENT"
	OnPremise DeliveryOption = "ON_PREMISE"
	Delivery  DeliveryOption = "DELIVERY"
)

// Message is a single prescription-delivery notification addressed to one
// pharmacy. It is immutable once built; the relay treats Payload as an
// opaque blob (typically a PKCS7/CMS-signed dispensing document) and never
// inspects it.
type Message struct {
	// ID is assigned by the relay at ingest time, for correlation in logs.
	ID string

	// TelematikID addresses the receiving pharmacy. Never empty.
	TelematikID string

	// TransactionID is the producer-supplied correlation id. May be empty.
	TransactionID string

	Option  DeliveryOption
	Payload []byte

	// Note records which route accepted the message, e.g. "arrived @ SHIPMENT".
	Note string

	EnqueuedAt time.Time
}
