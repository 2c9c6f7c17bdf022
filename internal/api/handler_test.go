package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"psprelay/internal/health"
	"psprelay/internal/mailbox"
	"psprelay/internal/relay"
	"psprelay/internal/session"
)

type testRelay struct {
	router http.Handler
	boxes  *mailbox.Registry
	hub    *session.Hub
}

func newTestRelay(t *testing.T, apiToken string) *testRelay {
	t.Helper()

	boxes := mailbox.NewRegistry(nil)
	t.Cleanup(boxes.Close)
	hub := session.NewHub(boxes, session.Config{}, nil)

	router := NewRouter(RouterConfig{
		RelayService:  relay.NewService(boxes, hub),
		Hub:           hub,
		HealthChecker: health.NewChecker(hub),
		APIToken:      apiToken,
		Version:       "test",
	})
	return &testRelay{router: router, boxes: boxes, hub: hub}
}

func (tr *testRelay) post(t *testing.T, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/pkcs7-mime")
	w := httptest.NewRecorder()
	tr.router.ServeHTTP(w, req)
	return w
}

func TestIngest_NoReceiverConnected(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	payload := bytes.Repeat([]byte("x"), 10050)
	w := tr.post(t, "/delivery_only/ABC123?req=T1", payload)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if got := w.Body.String(); got != "no fitted receiver connected @ specific TelematikId: ABC123" {
		t.Errorf("unexpected body: %q", got)
	}
	if tr.boxes.Len("ABC123") != 1 {
		t.Errorf("expected 1 queued message, got %d", tr.boxes.Len("ABC123"))
	}
}

func TestIngest_FixedRouteOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		route  string
		option relay.DeliveryOption
	}{
		{"/delivery_only/ABC123", relay.Shipment},
		{"/local_delivery/ABC123", relay.Delivery},
		{"/pick_up/ABC123", relay.OnPremise},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			t.Parallel()
			tr := newTestRelay(t, "")

			w := tr.post(t, tt.route, []byte("blob"))
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			msgs := tr.boxes.DrainAll("ABC123")
			if len(msgs) != 1 {
				t.Fatalf("expected 1 message, got %d", len(msgs))
			}
			if msgs[0].Option != tt.option {
				t.Errorf("expected option %s, got %s", tt.option, msgs[0].Option)
			}
		})
	}
}

func TestIngest_MissingParts(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	tests := []struct {
		name string
		path string
		body []byte
		want string
	}{
		{"id only missing", "/delivery_only?req=T1", []byte("blob"), "no telematikID"},
		{"id and tx missing", "/delivery_only", []byte("blob"), "no telematikID, no transactionID arrived"},
		{"all missing", "/delivery_only", nil, "no telematikID, no transactionID arrived, no body arrived"},
		{"trailing slash", "/pick_up/", nil, "no telematikID, no transactionID arrived, no body arrived"},
		{"pspmock no id", "/pspmock/versand", nil, "no telematikID, no transactionID arrived, no body arrived"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tr.post(t, tt.path, tt.body)
			if w.Code != http.StatusNotFound {
				t.Fatalf("Expected status 404, got %d", w.Code)
			}
			if got := w.Body.String(); got != tt.want {
				t.Errorf("expected body %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIngest_EmptyBody(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	w := tr.post(t, "/delivery_only/ABC123?req=T1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	if got := w.Body.String(); got != "blob == null or empty" {
		t.Errorf("unexpected body: %q", got)
	}
	if tr.boxes.Len("ABC123") != 0 {
		t.Error("expected no side effect on rejected ingest")
	}
}

func TestIngest_UnknownOption(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	w := tr.post(t, "/pspmock/shopping/X", []byte("blob"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "InvalidDeliveryOptionException") {
		t.Errorf("expected InvalidDeliveryOptionException in body, got %q", w.Body.String())
	}
	if tr.boxes.Len("X") != 0 {
		t.Error("expected no mailbox side effect for unknown option")
	}
}

func TestIngest_NamedOptions(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	w := tr.post(t, "/pspmock/versand/ABC123", []byte("blob"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	msgs := tr.boxes.DrainAll("ABC123")
	if len(msgs) != 1 || msgs[0].Option != relay.Shipment {
		t.Fatalf("expected one SHIPMENT message, got %v", msgs)
	}
}

func TestIngest_AcceptedNotRelayed(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	// The liefern synonym answers 200 but never enqueues: a compatibility
	// gap distinct from the unknown-option 404.
	w := tr.post(t, "/pspmock/liefern/ABC123", []byte("blob"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if tr.boxes.Len("ABC123") != 0 {
		t.Errorf("expected no mailbox side effect, got depth %d", tr.boxes.Len("ABC123"))
	}
}

func TestStatusSimulation(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	tests := []struct {
		name       string
		path       string
		body       []byte
		wantStatus int
		wantBody   string
	}{
		{
			"mirror 500", "/500/X?req=T1", []byte("blob"),
			500, "erfolgreiche Datenübermittlung",
		},
		{
			"mirror 200", "/200/X?req=T1", []byte("blob"),
			200, "erfolgreiche Datenübermittlung",
		},
		{
			"mirror 408", "/408/X?req=T1", []byte("blob"),
			408, "erfolgreiche Datenübermittlung",
		},
		{
			"missing tx", "/200/X", []byte("blob"),
			200, "erfolgreiche Datenübermittlung, no transactionID arrived",
		},
		{
			"missing id", "/201?req=T1", []byte("blob"),
			201, "erfolgreiche Datenübermittlung, no telematikID",
		},
		{
			"missing body forces 404", "/200/X?req=T1", nil,
			404, "erfolgreiche Datenübermittlung, no body arrived",
		},
		{
			"all missing forces 404", "/500", nil,
			404, "erfolgreiche Datenübermittlung, no telematikID, no transactionID arrived, no body arrived",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tr.post(t, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Body.String(); got != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, got)
			}
		})
	}
}

func TestStatusSimulation_UnknownCode(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	for _, path := range []string{"/404/X", "/999/X", "/foo/X"} {
		w := tr.post(t, path, []byte("blob"))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, w.Code)
		}
	}
}

func TestStatusSimulation_NoMailboxSideEffect(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	w := tr.post(t, "/200/ABC123?req=T1", []byte("blob"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if tr.boxes.Len("ABC123") != 0 {
		t.Errorf("status simulation must bypass the mailbox, got depth %d", tr.boxes.Len("ABC123"))
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	w := httptest.NewRecorder()
	tr.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "actual Version: test" {
		t.Errorf("unexpected body: %q", got)
	}
}

func TestProbes(t *testing.T) {
	t.Parallel()
	tr := newTestRelay(t, "")

	for _, path := range []string{"/livez", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		tr.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}
	}
}
