package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const EventTicketCreated = "ticket.created"

// TicketEventProducer publishes ticket events; tests replace it with a fake.
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, ch model.Channel, t *model.Ticket)
}

// Producer writes ticket events to a Kafka topic. Delivery is best-effort:
// failures are logged and never reach the webhook caller.
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *zap.Logger
}

// NewProducer returns a no-op producer when brokers or topic are empty.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log}
	}
	return &Producer{
		topic: topic,
		log:   log,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether events are actually written anywhere.
func (p *Producer) Enabled() bool { return p.writer != nil }

type ticketEvent struct {
	Event        string `json:"event"`
	Channel      string `json:"channel"`
	TicketID     string `json:"ticket_id"`
	CreatedAt    string `json:"created_at"`
	Status       string `json:"status"`
	Issue        string `json:"issue"`
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number,omitempty"`
}

func newTicketEvent(event string, ch model.Channel, t *model.Ticket) ticketEvent {
	ev := ticketEvent{
		Event:        event,
		Channel:      string(ch),
		TicketID:     t.TicketID,
		CreatedAt:    t.CreatedAtString(),
		Status:       string(t.Status),
		Issue:        t.Issue,
		Name:         t.Name,
		EmailAddress: t.EmailAddress,
	}
	if ch.StoresPhone() {
		ev.PhoneNumber = t.PhoneNumber
	}
	return ev
}

// ProduceTicketEvent writes one event keyed by ticket id.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, ch model.Channel, t *model.Ticket) {
	if p.writer == nil || t == nil {
		return
	}
	body, err := json.Marshal(newTicketEvent(event, ch, t))
	if err != nil {
		p.log.Error("kafka: marshal ticket event", zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(t.TicketID), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("kafka: write ticket event", zap.String("topic", p.topic), zap.String("ticket_id", t.TicketID), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
