package model

import "fmt"

// Channel selects one of the two ticket flows. They write to different
// tables and generate ids of different lengths; they are not interchangeable.
type Channel string

const (
	ChannelVoice    Channel = "voice"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every known channel in a stable order.
var Channels = []Channel{ChannelVoice, ChannelWhatsApp}

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelVoice, ChannelWhatsApp:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q (want voice or whatsapp)", s)
}

// TicketIDLength is the id length for the channel; 0 means the full UUID.
func (c Channel) TicketIDLength() int {
	if c == ChannelVoice {
		return 8
	}
	return 0
}

// StoresPhone reports whether the channel's table has a phone_number column.
func (c Channel) StoresPhone() bool {
	return c == ChannelWhatsApp
}

// Emphasis is the markup used to highlight values in replies: the voice/web
// agent renders markdown, WhatsApp uses single asterisks.
func (c Channel) Emphasis() string {
	if c == ChannelWhatsApp {
		return "*"
	}
	return "**"
}
