package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/ticket-webhook/internal/errs"
	"github.com/psds-microservice/ticket-webhook/internal/kafka"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/psds-microservice/ticket-webhook/internal/metrics"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"github.com/psds-microservice/ticket-webhook/internal/store"
	"go.uber.org/zap"
)

// TicketServicer is what the webhook handlers depend on.
type TicketServicer interface {
	Create(ctx context.Context, ch model.Channel, in CreateTicketInput) (*model.Ticket, error)
	Status(ctx context.Context, ch model.Channel, ticketID string) (*model.TicketStatusView, error)
}

// CreateTicketInput holds the user fields collected by the agent. Empty
// fields are stored as model.NotAvailable.
type CreateTicketInput struct {
	Name  string
	Email string
	Issue string
	Phone string
}

type TicketService struct {
	store    store.Store
	producer kafka.TicketEventProducer
	metrics  *metrics.Metrics
	log      *zap.Logger

	newID func(model.Channel) string
	now   func() time.Time
}

// NewTicketService wires the service. st may be nil when the store could not
// be initialised; every call then fails with errs.ErrStoreUnavailable.
func NewTicketService(st store.Store, producer kafka.TicketEventProducer, m *metrics.Metrics, log *zap.Logger) *TicketService {
	if log == nil {
		log = logger.Discard()
	}
	return &TicketService{
		store:    st,
		producer: producer,
		metrics:  m,
		log:      log,
		newID:    NewTicketID,
		now:      time.Now,
	}
}

// NewTicketID returns a random id of the channel's length: a truncated UUID
// for voice, the full UUID string for WhatsApp.
func NewTicketID(ch model.Channel) string {
	id := uuid.NewString()
	if n := ch.TicketIDLength(); n > 0 && n < len(id) {
		return id[:n]
	}
	return id
}

// NewTicket builds the record for an insert, substituting defaults.
func (s *TicketService) NewTicket(ch model.Channel, in CreateTicketInput) *model.Ticket {
	t := &model.Ticket{
		TicketID:          s.newID(ch),
		CreatedAt:         s.now().UTC(),
		Issue:             orNA(in.Issue),
		Status:            model.TicketStatusOpen,
		Name:              orNA(in.Name),
		EmailAddress:      orNA(in.Email),
		TicketHistoryFile: "",
	}
	if ch.StoresPhone() {
		t.PhoneNumber = orNA(in.Phone)
	}
	return t
}

func (s *TicketService) Create(ctx context.Context, ch model.Channel, in CreateTicketInput) (*model.Ticket, error) {
	if s.store == nil {
		return nil, errs.ErrStoreUnavailable
	}
	t := s.NewTicket(ch, in)
	s.log.Info("creating ticket",
		zap.String("channel", string(ch)), zap.String("ticket_id", t.TicketID),
		zap.String("name", t.Name), zap.String("email", t.EmailAddress),
		zap.String("issue", t.Issue), zap.String("phone", t.PhoneNumber))

	start := time.Now()
	err := s.store.Insert(ctx, ch, t)
	s.metrics.ObserveCall("store", start, err)
	if err != nil {
		return nil, fmt.Errorf("insert ticket %s: %w", t.TicketID, err)
	}
	s.metrics.TicketCreated(string(ch))

	if s.producer != nil {
		// Fire-and-forget: the event must go out even if the request is canceled.
		go func() {
			eventCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.producer.ProduceTicketEvent(eventCtx, kafka.EventTicketCreated, ch, t)
		}()
	}
	return t, nil
}

func (s *TicketService) Status(ctx context.Context, ch model.Channel, ticketID string) (*model.TicketStatusView, error) {
	if s.store == nil {
		return nil, errs.ErrStoreUnavailable
	}
	start := time.Now()
	view, err := s.store.GetByID(ctx, ch, ticketID)
	if errors.Is(err, errs.ErrTicketNotFound) {
		s.metrics.ObserveCall("store", start, nil)
	} else {
		s.metrics.ObserveCall("store", start, err)
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return model.NotAvailable
	}
	return s
}
