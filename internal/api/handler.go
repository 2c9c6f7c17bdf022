// Package api provides the HTTP handlers and routing for the PSP relay's
// producer-facing surface. Response bodies on this surface are plain text;
// their exact wording is part of the wire contract with the prescription
// backend.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"psprelay/internal/apperrors"
	"psprelay/internal/health"
	"psprelay/internal/relay"
)

// maxPayloadSize limits ingest bodies to 10MB. Dispensing documents are a
// few KB; this only guards against memory exhaustion.
const maxPayloadSize = 10 << 20

// statusSimCodes are the HTTP codes the status-simulation surface mirrors.
var statusSimCodes = map[int]bool{
	200: true, 201: true, 300: true, 401: true,
	408: true, 409: true, 410: true, 500: true,
}

// Handler contains the HTTP handlers for the relay API.
type Handler struct {
	svc     *relay.Service
	health  *health.Checker
	version string
}

// NewHandler creates a new API handler.
func NewHandler(svc *relay.Service, healthChecker *health.Checker, version string) *Handler {
	return &Handler{
		svc:     svc,
		health:  healthChecker,
		version: version,
	}
}

// IngestShipment handles POST /delivery_only/{ti_id}.
func (h *Handler) IngestShipment(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, relay.Shipment)
}

// IngestDelivery handles POST /local_delivery/{ti_id}.
func (h *Handler) IngestDelivery(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, relay.Delivery)
}

// IngestOnPremise handles POST /pick_up/{ti_id}.
func (h *Handler) IngestOnPremise(w http.ResponseWriter, r *http.Request) {
	h.ingest(w, r, relay.OnPremise)
}

// IngestNamedOption handles POST /pspmock/{option}/{ti_id}: the option is
// resolved from its route segment, and unmapped names are a hard 404.
func (h *Handler) IngestNamedOption(w http.ResponseWriter, r *http.Request) {
	res, err := relay.ResolveOption(r.PathValue("option"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if !res.Relay {
		// Accepted but not relayed: a deliberate compatibility gap,
		// distinct from the unknown-option 404.
		h.writeText(w, http.StatusOK, "")
		return
	}
	h.ingest(w, r, res.Option)
}

// ingest reads the payload and hands the notification to the relay service.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, option relay.DeliveryOption) {
	payload, err := readPayload(w, r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	result, err := h.svc.Ingest(r.Context(), relay.IngestRequest{
		TelematikID:   r.PathValue("ti_id"),
		TransactionID: r.URL.Query().Get("req"),
		Option:        option,
		Payload:       payload,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if !result.Connected {
		h.writeText(w, http.StatusOK, "no fitted receiver connected @ specific TelematikId: "+result.Message.TelematikID)
		return
	}
	h.writeText(w, http.StatusOK, "fitted receiver connected @ specific TelematikId: "+result.Message.TelematikID)
}

// IngestMissingID answers ingest routes that lack the ti_id path segment.
// The body enumerates every missing part of the request, most to least
// specific, each clause a strict superset of the previous one.
func (h *Handler) IngestMissingID(w http.ResponseWriter, r *http.Request) {
	payload, _ := readPayload(w, r)
	h.writeText(w, http.StatusNotFound, missingClauses(false, r.URL.Query().Get("req") != "", len(payload) > 0))
}

// StatusSimulation handles POST /{code}/{ti_id}: it mirrors the requested
// status code with a deterministic diagnostic body, independent of the
// mailbox machinery. A missing body forces 404 regardless of the requested
// code.
func (h *Handler) StatusSimulation(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || !statusSimCodes[code] {
		http.NotFound(w, r)
		return
	}

	payload, _ := readPayload(w, r)
	hasID := r.PathValue("ti_id") != ""
	hasTx := r.URL.Query().Get("req") != ""
	hasBody := len(payload) > 0

	body := "erfolgreiche Datenübermittlung"
	if clauses := missingClauses(hasID, hasTx, hasBody); clauses != "" {
		body += ", " + clauses
	}

	status := code
	if !hasBody {
		status = http.StatusNotFound
	}
	h.writeText(w, status, body)
}

// Info handles GET /info.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	h.writeText(w, http.StatusOK, "actual Version: "+h.version)
}

// Livez handles GET /livez - liveness probe.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 once shutdown has begun or the session hub is closed.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}

// readPayload reads the raw notification body.
func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadSize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apperrors.Internal("api.readPayload", err)
	}
	return payload, nil
}

// missingClauses builds the diagnostic clause chain for absent request
// parts, in fixed order: telematikID, transactionID, body.
func missingClauses(hasID, hasTx, hasBody bool) string {
	var clauses []string
	if !hasID {
		clauses = append(clauses, "no telematikID")
	}
	if !hasTx {
		clauses = append(clauses, "no transactionID arrived")
	}
	if !hasBody {
		clauses = append(clauses, "no body arrived")
	}
	return strings.Join(clauses, ", ")
}

// writeText writes a plain-text response.
func (h *Handler) writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// writeJSON writes a JSON response (probe endpoints only).
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleError renders a service error with its mapped status code.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeText(w, status, err.Error())
}
