package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/ticket-webhook/internal/errs"
	"github.com/psds-microservice/ticket-webhook/internal/fulfillment"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"github.com/psds-microservice/ticket-webhook/internal/service"
	"go.uber.org/zap"
)

const (
	CreateApology = "An error occurred while processing your request"
	StatusApology = "An error occurred while checking your ticket status."
	NotFoundText  = "No ticket found with the provided ID."
)

// TicketHandler serves the agent's fulfillment webhooks for ticket creation
// and status lookup.
type TicketHandler struct {
	svc service.TicketServicer
	log *zap.Logger
}

func NewTicketHandler(svc service.TicketServicer, log *zap.Logger) *TicketHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &TicketHandler{svc: svc, log: log}
}

// Create godoc
// @Summary Create a ticket from agent session parameters
// @Accept json
// @Produce json
// @Success 200 {object} fulfillment.WebhookResponse
// @Router /webhook [post]
// @Router /create [post]
func (h *TicketHandler) Create(ch model.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fulfillment.WebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.log.Warn("invalid fulfillment request", zap.String("channel", string(ch)), zap.Error(err))
			c.JSON(http.StatusBadRequest, fulfillment.Reply(CreateApology, nil))
			return
		}
		p := req.SessionInfo.Parameters
		in := service.CreateTicketInput{}
		in.Email, _ = p.String("Email", "email")
		in.Issue, _ = p.String("Issue", "issue")
		in.Name, _ = p.Name("Name", "name")
		in.Phone, _ = p.String("Phone", "phone")
		h.log.Info("create ticket request", zap.String("channel", string(ch)), zap.String("session", req.SessionInfo.Session))

		t, err := h.svc.Create(c.Request.Context(), ch, in)
		if err != nil {
			h.log.Error("create ticket failed", zap.String("channel", string(ch)), zap.Error(err))
			status, msg := storeFailure(err)
			c.JSON(status, gin.H{"error": msg})
			return
		}

		params := map[string]string{
			"ticket_id":     t.TicketID,
			"status":        string(t.Status),
			"email_address": t.EmailAddress,
		}
		if ch.StoresPhone() {
			params["phone_number"] = t.PhoneNumber
		}
		c.JSON(http.StatusOK, fulfillment.Reply(TicketSummary(ch, t), params))
	}
}

// Status godoc
// @Summary Look up a ticket's status by id
// @Accept json
// @Produce json
// @Success 200 {object} fulfillment.WebhookResponse
// @Router /check_status [post]
// @Router /check [post]
func (h *TicketHandler) Status(ch model.Channel) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req fulfillment.WebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.log.Warn("invalid fulfillment request", zap.String("channel", string(ch)), zap.Error(err))
			c.JSON(http.StatusBadRequest, fulfillment.Reply(StatusApology, nil))
			return
		}
		id, ok := req.SessionInfo.Parameters.String("ticketid", "ticket_id", "TicketID")
		if !ok {
			id = model.NotAvailable
		}
		h.log.Info("ticket status request", zap.String("channel", string(ch)), zap.String("ticket_id", id))

		text := NotFoundText
		status := string(model.TicketStatusNotFound)
		view, err := h.svc.Status(c.Request.Context(), ch, id)
		switch {
		case err == nil:
			text = StatusText(ch, view)
			status = view.Status
		case errors.Is(err, errs.ErrTicketNotFound):
		default:
			h.log.Error("ticket status lookup failed", zap.String("channel", string(ch)), zap.String("ticket_id", id), zap.Error(err))
			code, msg := storeFailure(err)
			c.JSON(code, gin.H{"error": msg})
			return
		}

		c.JSON(http.StatusOK, fulfillment.Reply(text, map[string]string{
			"ticketid": id,
			"status":   status,
		}))
	}
}

// storeFailure maps a store error to the status and operator-neutral message
// returned to the agent platform.
func storeFailure(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrStoreUnavailable):
		return http.StatusInternalServerError, "Server configuration error"
	case errors.Is(err, errs.ErrInsertRejected):
		return http.StatusInternalServerError, "Database insertion failed"
	default:
		return http.StatusInternalServerError, "Database error"
	}
}

// TicketSummary is the confirmation shown after a ticket is created.
func TicketSummary(ch model.Channel, t *model.Ticket) string {
	em := emphasize(ch)
	var b strings.Builder
	b.WriteString("Ticket Summary:\n \n")
	fmt.Fprintf(&b, "Ticket ID: %s \n", em(t.TicketID))
	fmt.Fprintf(&b, "Name: %s \n", em(t.Name))
	if ch.StoresPhone() {
		fmt.Fprintf(&b, "Phone Number: %s \n", em(t.PhoneNumber))
	}
	fmt.Fprintf(&b, "Email address: %s \n", em(t.EmailAddress))
	fmt.Fprintf(&b, "Issue: %s \n \n", em(t.Issue))
	b.WriteString("Your ticket has been created. A confirmation email has been sent. \n")
	return b.String()
}

// StatusText renders a found ticket. WhatsApp replies drop the heading.
func StatusText(ch model.Channel, v *model.TicketStatusView) string {
	em := emphasize(ch)
	var b strings.Builder
	if ch == model.ChannelVoice {
		b.WriteString("Ticket Status:\n\n")
	}
	fmt.Fprintf(&b, "Ticket ID: %s\n", em(v.TicketID))
	fmt.Fprintf(&b, "Created At: %s\n", em(v.CreatedAt))
	fmt.Fprintf(&b, "Issue: %s\n", em(v.Issue))
	fmt.Fprintf(&b, "Status: %s\n", em(v.Status))
	return b.String()
}

func emphasize(ch model.Channel) func(string) string {
	mark := ch.Emphasis()
	return func(s string) string { return mark + s + mark }
}
