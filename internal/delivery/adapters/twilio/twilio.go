package twilio

import (
	"context"
	"fmt"
	"strings"

	twiliosdk "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/adamsch0100/leadsynergy-sub002/internal/delivery"
)

// Config holds the Twilio credentials and sending number.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Adapter sends SMS through the Twilio REST API.
type Adapter struct {
	client *twiliosdk.RestClient
	from   string
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("twilio from number is required")
	}
	client := twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Adapter{client: client, from: cfg.From}, nil
}

func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelSMS
}

func (a *Adapter) Send(ctx context.Context, msg delivery.Message) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(a.from)
	params.SetBody(msg.Body)
	if _, err := a.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}
