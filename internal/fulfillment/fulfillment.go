// Package fulfillment models the JSON envelope the conversational agent sends
// to, and expects back from, a fulfillment webhook.
package fulfillment

import (
	"bytes"
	"encoding/json"
	"strings"
)

// WebhookRequest is the part of the agent's webhook request this service reads.
type WebhookRequest struct {
	SessionInfo struct {
		Session    string     `json:"session,omitempty"`
		Parameters Parameters `json:"parameters"`
	} `json:"sessionInfo"`
}

type WebhookResponse struct {
	FulfillmentResponse FulfillmentResponse `json:"fulfillmentResponse"`
	SessionInfo         *SessionInfo        `json:"sessionInfo,omitempty"`
}

type FulfillmentResponse struct {
	Messages []ResponseMessage `json:"messages"`
}

type ResponseMessage struct {
	Text Text `json:"text"`
}

type Text struct {
	Text []string `json:"text"`
}

// SessionInfo carries parameters the agent keeps in session state.
type SessionInfo struct {
	Parameters map[string]string `json:"parameters"`
}

// Reply builds a response with one text message and optional session parameters.
func Reply(text string, params map[string]string) WebhookResponse {
	resp := WebhookResponse{
		FulfillmentResponse: FulfillmentResponse{
			Messages: []ResponseMessage{{Text: Text{Text: []string{text}}}},
		},
	}
	if params != nil {
		resp.SessionInfo = &SessionInfo{Parameters: params}
	}
	return resp
}

// Parameters is the loosely typed session parameter bag. Different agent
// flows spell the same parameter differently, so lookups try several keys in order.
type Parameters map[string]json.RawMessage

// String returns the first non-empty string value among keys. Numbers are
// accepted and rendered as written; anything else is skipped.
func (p Parameters) String(keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := p[k]
		if !ok {
			continue
		}
		if s := scalarString(raw); s != "" {
			return s, true
		}
	}
	return "", false
}

// Name resolves a person's name from keys that may hold either a plain
// string or a {"name": "..."} object. The first key holding a string or an
// object decides the result, even when it carries no usable name.
func (p Parameters) Name(keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := p[k]
		if !ok {
			continue
		}
		var n PersonName
		if err := json.Unmarshal(raw, &n); err != nil || n.Kind == NameAbsent {
			continue
		}
		s := n.Canonical()
		return s, s != ""
	}
	return "", false
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	}
	return ""
}

type NameKind int

const (
	NameAbsent NameKind = iota
	NamePlain
	NameObject
)

// PersonName is a name parameter that arrives either as a plain string or as
// an entity object with a "name" field.
type PersonName struct {
	Kind  NameKind
	Value string
}

func (n *PersonName) UnmarshalJSON(data []byte) error {
	*n = PersonName{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = PersonName{Kind: NamePlain, Value: s}
	case '{':
		var obj struct {
			Name json.RawMessage `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*n = PersonName{Kind: NameObject, Value: scalarString(obj.Name)}
	}
	return nil
}

// Canonical is the trimmed name, or "" when absent.
func (n PersonName) Canonical() string {
	if n.Kind == NameAbsent {
		return ""
	}
	return strings.TrimSpace(n.Value)
}
