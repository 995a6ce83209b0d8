package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cx "cloud.google.com/go/dialogflow/cx/apiv3"
	"cloud.google.com/go/dialogflow/cx/apiv3/cxpb"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// DefaultLanguage is used when no language code is configured.
const DefaultLanguage = "en"

// Agent sends one user message to a hosted conversational agent. The agent
// platform keeps multi-turn context keyed by sessionID; callers pass a
// stable id per user.
type Agent interface {
	Send(ctx context.Context, sessionID, message, language string) ([]string, error)
}

type Settings struct {
	ProjectID string
	AgentID   string
	Location  string
}

func (s Settings) validate() error {
	var missing []string
	if s.ProjectID == "" {
		missing = append(missing, "project id")
	}
	if s.AgentID == "" {
		missing = append(missing, "agent id")
	}
	if s.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return fmt.Errorf("dialogflow: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Endpoint is the regional API endpoint for the agent's location.
func (s Settings) Endpoint() string {
	if s.Location == "global" {
		return "dialogflow.googleapis.com:443"
	}
	return s.Location + "-dialogflow.googleapis.com:443"
}

// SessionPath is the full resource name of a session of this agent.
func (s Settings) SessionPath(sessionID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/agents/%s/sessions/%s",
		s.ProjectID, s.Location, s.AgentID, sessionID)
}

// Dialogflow talks to a Dialogflow CX agent through one shared sessions client.
type Dialogflow struct {
	settings Settings
	client   *cx.SessionsClient
	log      *zap.Logger
}

func NewDialogflow(ctx context.Context, s Settings, log *zap.Logger, opts ...option.ClientOption) (*Dialogflow, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	opts = append([]option.ClientOption{option.WithEndpoint(s.Endpoint())}, opts...)
	client, err := cx.NewSessionsClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialogflow: sessions client: %w", err)
	}
	log.Info("dialogflow client ready", zap.String("endpoint", s.Endpoint()), zap.String("agent", s.AgentID))
	return &Dialogflow{settings: s, client: client, log: log}, nil
}

func (d *Dialogflow) Send(ctx context.Context, sessionID, message, language string) ([]string, error) {
	if sessionID == "" {
		return nil, errors.New("dialogflow: empty session id")
	}
	if language == "" {
		language = DefaultLanguage
	}
	req := &cxpb.DetectIntentRequest{
		Session: d.settings.SessionPath(sessionID),
		QueryInput: &cxpb.QueryInput{
			Input:        &cxpb.QueryInput_Text{Text: &cxpb.TextInput{Text: message}},
			LanguageCode: language,
		},
	}
	d.log.Debug("detect intent", zap.String("session", req.Session), zap.String("language", language))

	resp, err := d.client.DetectIntent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("dialogflow: detect intent: %w", err)
	}
	qr := resp.GetQueryResult()
	d.log.Info("detect intent ok",
		zap.String("session", sessionID),
		zap.String("intent", qr.GetMatch().GetIntent().GetDisplayName()),
		zap.String("page", qr.GetCurrentPage().GetDisplayName()),
		zap.Int("messages", len(qr.GetResponseMessages())),
	)
	return Fragments(resp), nil
}

func (d *Dialogflow) Close() error {
	return d.client.Close()
}

// Fragments returns one entry per response message: the first text of a
// text message, or "" for messages that carry no text (payloads, handoffs).
func Fragments(resp *cxpb.DetectIntentResponse) []string {
	msgs := resp.GetQueryResult().GetResponseMessages()
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts := m.GetText().GetText()
		if len(texts) == 0 {
			out = append(out, "")
			continue
		}
		out = append(out, texts[0])
	}
	return out
}
