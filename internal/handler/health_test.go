package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReady(t *testing.T) {
	tests := []struct {
		components map[string]bool
		want       int
	}{
		{map[string]bool{"store": true, "agent": true, "transport": true}, http.StatusOK},
		{map[string]bool{"store": false, "agent": true, "transport": true}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/ready", NewHealthHandler(tt.components).Ready)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if w.Code != tt.want {
			t.Errorf("components %v: status = %d, want %d", tt.components, w.Code, tt.want)
		}
	}
}

func TestHome(t *testing.T) {
	r := gin.New()
	r.GET("/", Home)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Twilio Dialogflow Whatsapp Integration") {
		t.Errorf("got %d %q", w.Code, w.Body)
	}
}
