package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/psds-microservice/ticket-webhook/internal/metrics"
)

type fakeAgent struct {
	replies []string
	err     error

	calls    int
	session  string
	message  string
	language string
}

func (a *fakeAgent) Send(_ context.Context, sessionID, message, language string) ([]string, error) {
	a.calls++
	a.session, a.message, a.language = sessionID, message, language
	return a.replies, a.err
}

type sentMessage struct{ to, from, body string }

type fakeSender struct {
	sent   []sentMessage
	failOn map[string]bool
}

func (s *fakeSender) Send(_ context.Context, to, from, body string) error {
	if s.failOn[body] {
		return errors.New("twilio: 21610 unsubscribed recipient")
	}
	s.sent = append(s.sent, sentMessage{to, from, body})
	return nil
}

func newRelayEngine(h *RelayHandler) *gin.Engine {
	r := gin.New()
	r.POST("/twilio-dialogflowcx", h.Relay)
	return r
}

func postForm(r http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/twilio-dialogflowcx", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func inbound(body string) url.Values {
	return url.Values{
		"Body": {body},
		"From": {"whatsapp:+15550100"},
		"To":   {"whatsapp:+15550199"},
	}
}

func TestRelayMissingFields(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"body", url.Values{"From": {"a"}, "To": {"b"}}, "Missing required form fields: Body"},
		{"to", url.Values{"Body": {"hi"}, "From": {"a"}}, "Missing required form fields: To"},
		{"from and to", url.Values{"Body": {"hi"}}, "Missing required form fields: From, To"},
		{"all", url.Values{}, "Missing required form fields: Body, From, To"},
		{"empty value", url.Values{"Body": {""}, "From": {"a"}, "To": {"b"}}, "Missing required form fields: Body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ag := &fakeAgent{}
			snd := &fakeSender{}
			w := postForm(newRelayEngine(NewRelayHandler(ag, snd, "en", nil, nil)), tt.form)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
			if w.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.want)
			}
			if ag.calls != 0 || len(snd.sent) != 0 {
				t.Error("no downstream call expected")
			}
		})
	}
}

func TestRelayForwardsToAgent(t *testing.T) {
	ag := &fakeAgent{replies: []string{"Hi there", "How can I help?"}}
	snd := &fakeSender{}
	w := postForm(newRelayEngine(NewRelayHandler(ag, snd, "", nil, nil)), inbound("hello"))

	if w.Code != http.StatusOK || w.Body.String() != "" {
		t.Fatalf("got %d %q", w.Code, w.Body)
	}
	if ag.session != "whatsapp:+15550100" || ag.message != "hello" || ag.language != "en" {
		t.Errorf("agent got session=%q message=%q language=%q", ag.session, ag.message, ag.language)
	}
	if len(snd.sent) != 2 || snd.sent[0].body != "Hi there" || snd.sent[1].body != "How can I help?" {
		t.Fatalf("sent = %+v", snd.sent)
	}
	if snd.sent[0].to != "whatsapp:+15550100" || snd.sent[0].from != "whatsapp:+15550199" {
		t.Errorf("addresses = %+v", snd.sent[0])
	}
}

func TestRelaySkipsEmptyFragments(t *testing.T) {
	snd := &fakeSender{}
	w := postForm(newRelayEngine(NewRelayHandler(&fakeAgent{replies: []string{"", "hello"}}, snd, "en", nil, nil)), inbound("hi"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(snd.sent) != 1 || snd.sent[0].body != "hello" {
		t.Errorf("sent = %+v, want exactly one send of %q", snd.sent, "hello")
	}
}

func TestRelayAgentFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	snd := &fakeSender{}
	h := NewRelayHandler(&fakeAgent{err: errors.New("rpc error: code = Unavailable")}, snd, "en", metrics.New(reg), nil)

	w := postForm(newRelayEngine(h), inbound("hi"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if len(snd.sent) != 1 || snd.sent[0].body != AgentErrorReply {
		t.Errorf("sent = %+v, want one apology", snd.sent)
	}
}

func TestRelayAgentUnavailable(t *testing.T) {
	snd := &fakeSender{}
	w := postForm(newRelayEngine(NewRelayHandler(nil, snd, "en", nil, nil)), inbound("hi"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if len(snd.sent) != 1 || snd.sent[0].body != AgentErrorReply {
		t.Errorf("sent = %+v", snd.sent)
	}
}

func TestRelayTransportUnavailable(t *testing.T) {
	ag := &fakeAgent{replies: []string{"x"}}
	w := postForm(newRelayEngine(NewRelayHandler(ag, nil, "en", nil, nil)), inbound("hi"))
	if w.Code != http.StatusInternalServerError || w.Body.String() != "Twilio service not configured." {
		t.Errorf("got %d %q", w.Code, w.Body)
	}
	if ag.calls != 0 {
		t.Error("agent should not be called without a transport")
	}
}

func TestRelayNoUsableText(t *testing.T) {
	for name, replies := range map[string][]string{"none": nil, "blank": {"", "  "}} {
		t.Run(name, func(t *testing.T) {
			snd := &fakeSender{}
			w := postForm(newRelayEngine(NewRelayHandler(&fakeAgent{replies: replies}, snd, "en", nil, nil)), inbound("hi"))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if len(snd.sent) != 1 || snd.sent[0].body != RephraseReply {
				t.Errorf("sent = %+v", snd.sent)
			}
		})
	}
}

func TestRelayContinuesPastSendFailure(t *testing.T) {
	snd := &fakeSender{failOn: map[string]bool{"first": true}}
	w := postForm(newRelayEngine(NewRelayHandler(&fakeAgent{replies: []string{"first", "second"}}, snd, "en", nil, nil)), inbound("hi"))
	if w.Code != http.StatusOK || w.Body.String() != "" {
		t.Fatalf("got %d %q", w.Code, w.Body)
	}
	if len(snd.sent) != 1 || snd.sent[0].body != "second" {
		t.Errorf("sent = %+v", snd.sent)
	}

	snd = &fakeSender{failOn: map[string]bool{"first": true}}
	w = postForm(newRelayEngine(NewRelayHandler(&fakeAgent{replies: []string{"first"}}, snd, "en", nil, nil)), inbound("hi"))
	if w.Code != http.StatusOK || w.Body.String() != "No messages were sent." {
		t.Errorf("got %d %q", w.Code, w.Body)
	}
}
