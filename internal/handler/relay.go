package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/ticket-webhook/internal/agent"
	"github.com/psds-microservice/ticket-webhook/internal/errs"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/psds-microservice/ticket-webhook/internal/messaging"
	"github.com/psds-microservice/ticket-webhook/internal/metrics"
	"go.uber.org/zap"
)

const (
	AgentErrorReply = "Sorry, I encountered an error. Please try again later."
	RephraseReply   = "I'm not sure how to respond to that. Can you try rephrasing?"
)

// relayFields are the Twilio webhook form fields the relay requires, in the
// order they are reported when missing.
var relayFields = []string{"Body", "From", "To"}

// RelayHandler forwards inbound Twilio messages to the conversational agent
// and sends the agent's replies back to the user.
type RelayHandler struct {
	agent    agent.Agent
	sender   messaging.Sender
	language string
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewRelayHandler accepts nil agent or sender when the client could not be
// built at startup.
func NewRelayHandler(a agent.Agent, s messaging.Sender, language string, m *metrics.Metrics, log *zap.Logger) *RelayHandler {
	if log == nil {
		log = logger.Discard()
	}
	if language == "" {
		language = agent.DefaultLanguage
	}
	return &RelayHandler{agent: a, sender: s, language: language, metrics: m, log: log}
}

// Relay godoc
// @Summary Twilio inbound message webhook
// @Accept x-www-form-urlencoded
// @Produce plain
// @Router /twilio-dialogflowcx [post]
func (h *RelayHandler) Relay(c *gin.Context) {
	form := make(map[string]string, len(relayFields))
	var missing []string
	for _, f := range relayFields {
		v := c.PostForm(f)
		if v == "" {
			missing = append(missing, f)
			continue
		}
		form[f] = v
	}
	if len(missing) > 0 {
		h.log.Warn("relay request missing form fields", zap.Strings("fields", missing))
		c.String(http.StatusBadRequest, "Missing required form fields: %s", strings.Join(missing, ", "))
		return
	}
	body, user, number := form["Body"], form["From"], form["To"]
	h.log.Info("relay message received", zap.String("from", user), zap.String("to", number), zap.String("body", body))

	if h.sender == nil {
		h.log.Error("relay rejected", zap.Error(errs.ErrTransportUnavailable))
		c.String(http.StatusInternalServerError, "Twilio service not configured.")
		return
	}

	fragments, err := h.ask(c, user, body)
	if err != nil {
		h.log.Error("agent request failed", zap.String("session", user), zap.Error(err))
		h.send(c, user, number, AgentErrorReply)
		c.String(http.StatusInternalServerError, "Error communicating with Dialogflow.")
		return
	}

	texts := usable(fragments)
	h.log.Info("agent replied", zap.String("session", user), zap.Int("fragments", len(fragments)), zap.Int("usable", len(texts)))
	if len(texts) == 0 {
		h.send(c, user, number, RephraseReply)
		c.String(http.StatusOK, "No message content from Dialogflow.")
		return
	}

	sent := 0
	for _, text := range texts {
		if h.send(c, user, number, text) {
			sent++
		}
	}
	if sent == 0 {
		h.log.Warn("no relay messages delivered", zap.String("session", user))
		c.String(http.StatusOK, "No messages were sent.")
		return
	}
	h.log.Info("relay complete", zap.String("session", user), zap.Int("sent", sent))
	c.String(http.StatusOK, "")
}

func (h *RelayHandler) ask(c *gin.Context, sessionID, message string) ([]string, error) {
	if h.agent == nil {
		return nil, errs.ErrAgentUnavailable
	}
	start := time.Now()
	fragments, err := h.agent.Send(c.Request.Context(), sessionID, message, h.language)
	h.metrics.ObserveCall("agent", start, err)
	return fragments, err
}

// send delivers one message and reports whether it went out. Failures are
// logged and swallowed so later fragments still go out.
func (h *RelayHandler) send(c *gin.Context, to, from, body string) bool {
	start := time.Now()
	err := h.sender.Send(c.Request.Context(), to, from, body)
	h.metrics.ObserveCall("transport", start, err)
	h.metrics.RelaySend(err)
	if err != nil {
		h.log.Error("relay send failed", zap.String("to", to), zap.Error(err))
		return false
	}
	return true
}

func usable(fragments []string) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}
