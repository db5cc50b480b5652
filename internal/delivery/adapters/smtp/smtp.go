package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/adamsch0100/leadsynergy-sub002/internal/delivery"
)

// Config holds SMTP relay credentials for the email channel.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Adapter sends re-engagement email through a plain SMTP relay.
type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Adapter{cfg: cfg}, nil
}

func (a *Adapter) Channel() delivery.Channel {
	return delivery.ChannelEmail
}

func (a *Adapter) Send(ctx context.Context, msg delivery.Message) error {
	subject := msg.Subject
	if subject == "" {
		subject = "Checking in"
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		a.cfg.From, msg.To, subject, msg.Body)
	addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
	var auth smtp.Auth
	if a.cfg.Username != "" {
		auth = smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, a.cfg.From, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
