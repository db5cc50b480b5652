package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Dispatcher routes outbound messages to the adapter registered for their
// channel. It implements Sender.
type Dispatcher struct {
	adapters map[Channel]Adapter
	logger   *slog.Logger
}

func NewDispatcher(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		adapters: map[Channel]Adapter{},
		logger:   log.With(slog.String("component", "delivery")),
	}
}

func (d *Dispatcher) RegisterAdapter(adapter Adapter) {
	if adapter == nil {
		return
	}
	d.adapters[adapter.Channel()] = adapter
	d.logger.Info("delivery adapter registered", slog.String("channel", adapter.Channel().String()))
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	adapter := d.adapters[msg.Channel]
	if adapter == nil {
		return fmt.Errorf("unsupported delivery channel: %s", msg.Channel)
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("delivery target is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return fmt.Errorf("message body is required")
	}
	d.logger.Info("send outbound",
		slog.String("channel", msg.Channel.String()),
		slog.String("contact_id", msg.ContactID),
		slog.String("organization_id", msg.OrganizationID))
	err := adapter.Send(ctx, msg)
	if err != nil {
		d.logger.Error("send outbound failed",
			slog.String("channel", msg.Channel.String()),
			slog.String("contact_id", msg.ContactID),
			slog.Any("error", err))
	}
	return err
}
