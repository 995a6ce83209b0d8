package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/ticket-webhook/internal/handler"
	"github.com/psds-microservice/ticket-webhook/internal/metrics"
	"github.com/psds-microservice/ticket-webhook/internal/service"
)

func newTestRouter() http.Handler {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	return New(Deps{
		Tickets:  handler.NewTicketHandler(service.NewTicketService(nil, nil, m, nil), nil),
		Relay:    handler.NewRelayHandler(nil, nil, "en", m, nil),
		Health:   handler.NewHealthHandler(map[string]bool{"store": false}),
		Metrics:  m,
		Gatherer: reg,
	})
}

func do(r http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRoutes(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/webhook", "/create", "/check_status", "/check"} {
		w := do(r, http.MethodPost, path, "application/json", `{"sessionInfo":{"parameters":{}}}`)
		if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "Server configuration error") {
			t.Errorf("%s: got %d %s", path, w.Code, w.Body)
		}
	}

	w := do(r, http.MethodPost, "/twilio-dialogflowcx", "application/x-www-form-urlencoded", "Body=hi")
	if w.Code != http.StatusBadRequest {
		t.Errorf("relay: status = %d", w.Code)
	}
}

func TestAuxiliaryRoutes(t *testing.T) {
	r := newTestRouter()

	if w := do(r, http.MethodGet, "/", "", ""); w.Code != http.StatusOK {
		t.Errorf("home: %d", w.Code)
	}
	if w := do(r, http.MethodGet, paths.PathHealth, "", ""); w.Code != http.StatusOK {
		t.Errorf("health: %d", w.Code)
	}
	if w := do(r, http.MethodGet, paths.PathReady, "", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready: %d", w.Code)
	}
	w := do(r, http.MethodGet, paths.PathSwagger+"/openapi.json", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/twilio-dialogflowcx") {
		t.Errorf("openapi: %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter()
	do(r, http.MethodPost, "/check", "application/json", `{}`)

	w := do(r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `ticket_webhook_requests_total{route="/check",status="500"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", w.Body)
	}
}
