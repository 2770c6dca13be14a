// Package provider defines the interface for mail delivery backends.
package provider

import (
	"context"

	"github.com/shineum/formmail-lite/internal/email"
)

// Provider is the interface that mail delivery backends must implement.
// Each provider hands a fully built message to one transport
// (stdout, SES, Microsoft Graph, SMTP).
type Provider interface {
	// Send delivers the message in a single attempt.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this provider.
	Name() string
}
