package delivery

import (
	"context"
	"fmt"
	"testing"
)

type mockAdapter struct {
	channel Channel
	sent    []Message
	err     error
}

func (m *mockAdapter) Channel() Channel { return m.channel }
func (m *mockAdapter) Send(ctx context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return m.err
}

func TestDispatcherRoutesByChannel(t *testing.T) {
	t.Parallel()

	sms := &mockAdapter{channel: ChannelSMS}
	email := &mockAdapter{channel: ChannelEmail}
	d := NewDispatcher(nil)
	d.RegisterAdapter(sms)
	d.RegisterAdapter(email)

	err := d.Send(context.Background(), Message{
		ContactID: "c-1",
		Channel:   ChannelSMS,
		To:        "+13035550100",
		Body:      "hello",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(sms.sent) != 1 || len(email.sent) != 0 {
		t.Fatalf("message routed to wrong adapter: sms=%d email=%d", len(sms.sent), len(email.sent))
	}
}

func TestDispatcherRejectsUnknownChannel(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil)
	err := d.Send(context.Background(), Message{Channel: Channel("fax"), To: "x", Body: "y"})
	if err == nil {
		t.Fatal("expected error for unregistered channel")
	}
}

func TestDispatcherRequiresTargetAndBody(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil)
	d.RegisterAdapter(&mockAdapter{channel: ChannelSMS})

	if err := d.Send(context.Background(), Message{Channel: ChannelSMS, Body: "y"}); err == nil {
		t.Fatal("expected error for missing target")
	}
	if err := d.Send(context.Background(), Message{Channel: ChannelSMS, To: "x"}); err == nil {
		t.Fatal("expected error for missing body")
	}
}

func TestDispatcherSurfacesAdapterError(t *testing.T) {
	t.Parallel()

	sms := &mockAdapter{channel: ChannelSMS, err: fmt.Errorf("login failed: suspicious activity")}
	d := NewDispatcher(nil)
	d.RegisterAdapter(sms)

	err := d.Send(context.Background(), Message{Channel: ChannelSMS, To: "x", Body: "y"})
	if err == nil {
		t.Fatal("expected adapter error to surface")
	}
}
