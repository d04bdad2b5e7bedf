// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"

	"github.com/shineum/email-api-lite/internal/email"
)

// Provider is the interface that email delivery backends must implement.
// A backend performs the full delivery of one built message per call and
// returns a classified error (see internal/apperr) when delivery fails.
// Backends hold no per-request state; one call is one independent attempt.
type Provider interface {
	// Send delivers an email message through this backend.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this backend.
	Name() string
}
