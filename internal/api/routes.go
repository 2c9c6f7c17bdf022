package api

import (
	"net/http"

	"psprelay/internal/health"
	"psprelay/internal/observability"
	"psprelay/internal/relay"
	"psprelay/internal/session"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	RelayService  *relay.Service
	Hub           *session.Hub
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIToken      string
	Version       string
}

// NewRouter creates a new HTTP router with all routes configured.
//
// Literal route prefixes (delivery_only, local_delivery, pick_up, pspmock)
// take precedence over the /{code}/{ti_id} status-simulation wildcard; the
// bare and trailing-slash variants of each ingest route feed the missing-id
// diagnostics.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.RelayService, cfg.HealthChecker, cfg.Version)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Version endpoint - no auth required
	mux.HandleFunc("GET /info", handler.Info)

	// Consumer-facing WebSocket endpoint - the hub authenticates itself
	mux.HandleFunc("GET /ws/{ti_id}", cfg.Hub.HandleConnect)

	// Producer-facing ingest and status-simulation routes - auth required
	auth := AuthMiddleware(cfg.APIToken)
	post := func(pattern string, fn http.HandlerFunc) {
		mux.Handle("POST "+pattern, auth(fn))
	}

	post("/delivery_only/{ti_id}", handler.IngestShipment)
	post("/local_delivery/{ti_id}", handler.IngestDelivery)
	post("/pick_up/{ti_id}", handler.IngestOnPremise)
	post("/pspmock/{option}/{ti_id}", handler.IngestNamedOption)

	for _, route := range []string{"/delivery_only", "/local_delivery", "/pick_up", "/pspmock", "/pspmock/{option}"} {
		post(route, handler.IngestMissingID)
		post(route+"/{$}", handler.IngestMissingID)
	}

	post("/{code}/{ti_id}", handler.StatusSimulation)
	post("/{code}", handler.StatusSimulation)
	post("/{code}/{$}", handler.StatusSimulation)

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
