// Package observability provides metrics and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"psprelay/internal/relay"
)

// Attribute keys
const (
	attrMethod = "method"
	attrPath   = "path"
	attrStatus = "status"
	attrOption = "delivery_option"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func optionAttr(option relay.DeliveryOption) attribute.KeyValue {
	return attribute.String(attrOption, string(option))
}

// normalizePath collapses TelematikIDs and option segments so metric
// cardinality stays bounded: /delivery_only/ABC123 -> /delivery_only/{ti_id},
// /pspmock/versand/ABC123 -> /pspmock/{option}/{ti_id}, /500/X -> /{code}/{ti_id}.
func normalizePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return path
	}

	switch segments[0] {
	case "info", "livez", "readyz", "metrics":
		return path
	case "delivery_only", "local_delivery", "pick_up":
		return "/" + segments[0] + "/{ti_id}"
	case "ws":
		return "/ws/{ti_id}"
	case "pspmock":
		return "/pspmock/{option}/{ti_id}"
	default:
		return "/{code}/{ti_id}"
	}
}
