package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"psprelay/internal/relay"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests take
// - Traffic: Request/message throughput
// - Errors: Rate of failures
// - Saturation: Queued messages and open sessions
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Relay metrics (Traffic, Saturation)
	MessagesEnqueued metric.Int64Counter
	MessagesPushed   metric.Int64Counter
	MessagesDrained  metric.Int64Counter
	MessagesCleared  metric.Int64Counter
	MailboxDepth     metric.Int64Gauge

	// Session metrics (Traffic, Saturation)
	SessionsActive   metric.Int64UpDownCounter
	SessionsReplaced metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("psprelay")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Relay metrics
	m.MessagesEnqueued, err = meter.Int64Counter(
		"relay_messages_enqueued_total",
		metric.WithDescription("Total notifications accepted into mailboxes"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.MessagesPushed, err = meter.Int64Counter(
		"relay_messages_pushed_total",
		metric.WithDescription("Total messages written to consumer sockets"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.MessagesDrained, err = meter.Int64Counter(
		"relay_messages_drained_total",
		metric.WithDescription("Total messages removed from mailboxes by drains"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.MessagesCleared, err = meter.Int64Counter(
		"relay_messages_cleared_total",
		metric.WithDescription("Total messages discarded by clear requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.MailboxDepth, err = meter.Int64Gauge(
		"relay_mailbox_depth",
		metric.WithDescription("Messages currently queued across all mailboxes (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Session metrics
	m.SessionsActive, err = meter.Int64UpDownCounter(
		"relay_sessions_active",
		metric.WithDescription("Currently connected consumer sessions (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SessionsReplaced, err = meter.Int64Counter(
		"relay_sessions_replaced_total",
		metric.WithDescription("Sessions displaced by a reconnect for the same TelematikID"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordEnqueued records a notification accepted into a mailbox.
func (m *Metrics) RecordEnqueued(ctx context.Context, option relay.DeliveryOption) {
	m.MessagesEnqueued.Add(ctx, 1, metric.WithAttributes(optionAttr(option)))
}

// RecordPushed records messages written to a consumer socket.
func (m *Metrics) RecordPushed(ctx context.Context, count int) {
	m.MessagesPushed.Add(ctx, int64(count))
}

// RecordDrained records messages removed from a mailbox by a drain.
func (m *Metrics) RecordDrained(ctx context.Context, count int) {
	m.MessagesDrained.Add(ctx, int64(count))
}

// RecordCleared records messages discarded by a clear request.
func (m *Metrics) RecordCleared(ctx context.Context, count int) {
	m.MessagesCleared.Add(ctx, int64(count))
}

// RecordMailboxDepth records the total queued message count.
func (m *Metrics) RecordMailboxDepth(ctx context.Context, depth int64) {
	m.MailboxDepth.Record(ctx, depth)
}

// RecordSessionConnected records a consumer session opening.
func (m *Metrics) RecordSessionConnected(ctx context.Context) {
	m.SessionsActive.Add(ctx, 1)
}

// RecordSessionDisconnected records a consumer session closing.
func (m *Metrics) RecordSessionDisconnected(ctx context.Context) {
	m.SessionsActive.Add(ctx, -1)
}

// RecordSessionReplaced records a session displaced by a reconnect.
func (m *Metrics) RecordSessionReplaced(ctx context.Context) {
	m.SessionsReplaced.Add(ctx, 1)
}
