package relay

import "psprelay/internal/apperrors"

// Resolution is the outcome of mapping an inbound route name to a delivery
// option. Relay=false marks the "accepted but not relayed" routes: the
// request is answered 200 but the message is never enqueued. This mirrors a
// gap in the historical route table and is kept for compatibility; do not
// extend it to new names.
type Resolution struct {
	Option DeliveryOption
	Relay  bool
}

// optionNames maps the {option} segment of /pspmock/{option}/{ti_id} routes.
var optionNames = map[string]Resolution{
	"shipment": {Option: Shipment, Relay: true},
	"versand":  {Option: Shipment, Relay: true},
	"liefern":  {Option: Delivery, Relay: false},
	"pick_up":  {Option: OnPremise, Relay: true},
	"abholen":  {Option: OnPremise, Relay: true},
	"abholung": {Option: OnPremise, Relay: true},
}

// ResolveOption maps an {option} route segment to a Resolution. Unmapped
// names are a hard failure, never a default option.
func ResolveOption(name string) (Resolution, error) {
	res, ok := optionNames[name]
	if !ok {
		return Resolution{}, apperrors.UnknownOption(name)
	}
	return res, nil
}
