// Package smtp implements a Provider that relays messages to an upstream
// SMTP server.
package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/formmail-lite/internal/email"
)

var (
	// ErrHostRequired is returned when no relay host is configured.
	ErrHostRequired = errors.New("smtp relay host is required")
	// ErrNoRecipients is returned when a message has no recipients.
	ErrNoRecipients = errors.New("no recipients provided")
	// ErrNoSender is returned when neither the message nor the config has a sender.
	ErrNoSender = errors.New("no sender provided")
)

// RelayConfig holds the configuration for creating a RelayProvider.
type RelayConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Sender overrides the envelope sender (MAIL FROM) when set.
	Sender string
	// ImplicitTLS dials with TLS from the first byte (port 465 style).
	// Otherwise STARTTLS is used when the server offers it.
	ImplicitTLS bool
}

// sendFunc matches gosmtp.SendMail and gosmtp.SendMailTLS.
type sendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// RelayProvider delivers messages through an authenticated SMTP relay.
type RelayProvider struct {
	addr   string
	sender string
	auth   sasl.Client
	send   sendFunc
}

// New creates a RelayProvider. PLAIN authentication is used when both
// username and password are set.
func New(cfg RelayConfig) (*RelayProvider, error) {
	if cfg.Host == "" {
		return nil, ErrHostRequired
	}

	port := cfg.Port
	if port == 0 {
		port = 587
		if cfg.ImplicitTLS {
			port = 465
		}
	}

	var auth sasl.Client
	if cfg.Username != "" && cfg.Password != "" {
		auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}

	send := gosmtp.SendMail
	if cfg.ImplicitTLS {
		send = gosmtp.SendMailTLS
	}

	return &RelayProvider{
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		sender: cfg.Sender,
		auth:   auth,
		send:   send,
	}, nil
}

// Send relays the raw MIME message. A single attempt is made.
func (p *RelayProvider) Send(ctx context.Context, msg *email.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	from := p.sender
	if from == "" {
		from = msg.From
	}
	if from == "" {
		return ErrNoSender
	}

	if err := p.send(p.addr, p.auth, from, msg.To, bytes.NewReader(msg.Raw())); err != nil {
		return fmt.Errorf("smtp relay %s: %w", p.addr, err)
	}

	slog.Debug("message relayed", "addr", p.addr, "from", from, "to", msg.To)
	return nil
}

// Name returns the provider name.
func (p *RelayProvider) Name() string {
	return "smtp"
}
