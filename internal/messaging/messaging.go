package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/twilio/twilio-go"
	"go.uber.org/zap"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers one text message to one channel address. Failures are
// returned to the caller and never retried here.
type Sender interface {
	Send(ctx context.Context, to, from, body string) error
}

// messageCreator is the slice of the Twilio REST client this package uses.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Twilio sends WhatsApp and SMS messages through the Twilio Messages API.
// Addresses keep their channel prefix, e.g. "whatsapp:+15550100".
type Twilio struct {
	api messageCreator
	log *zap.Logger
}

func NewTwilio(accountSID, authToken string, log *zap.Logger) (*Twilio, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio: account sid and auth token are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilio(client.Api, log), nil
}

func newTwilio(api messageCreator, log *zap.Logger) *Twilio {
	if log == nil {
		log = logger.Discard()
	}
	return &Twilio{api: api, log: log}
}

func (t *Twilio) Send(ctx context.Context, to, from, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio: create message to %s: %w", to, err)
	}
	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	t.log.Info("message sent", zap.String("to", to), zap.String("sid", sid))
	return nil
}
