package delivery

import (
	"context"
	"fmt"
	"strings"
)

// Channel is an outreach delivery channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

func ParseChannel(raw string) (Channel, error) {
	normalized := Channel(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case ChannelSMS, ChannelEmail:
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported delivery channel: %s", raw)
	}
}

func (c Channel) String() string {
	return string(c)
}

// Message is one outbound delivery instruction. The engine never authors
// Body; it arrives from the message generator via the action context.
type Message struct {
	ContactID      string
	OrganizationID string
	Channel        Channel
	To             string
	Subject        string
	Body           string
}

// Adapter is a single-channel transport implementation.
type Adapter interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) error
}

// Sender is the narrow contract the executor depends on. It treats the
// transport as a black box and only classifies returned error text.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
