// Package relay ties request validation, message construction, and provider
// delivery into a single send pipeline.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/shineum/email-api-lite/internal/apperr"
	"github.com/shineum/email-api-lite/internal/email"
	"github.com/shineum/email-api-lite/internal/provider"
)

// Result describes a successfully relayed email. EmailID echoes the primary
// recipient address so callers can correlate responses to requests.
type Result struct {
	EmailID    string     `json:"emailId"`
	Subject    string     `json:"subject"`
	Timestamp  string     `json:"timestamp"`
	Status     string     `json:"status"`
	Recipients Recipients `json:"recipients"`
}

// Recipients echoes back where the message was addressed. Cc and Bcc are
// always present in the JSON, as empty lists when unused.
type Recipients struct {
	To  string   `json:"to"`
	Cc  []string `json:"cc"`
	Bcc []string `json:"bcc"`
}

// Dispatcher validates send requests, builds MIME messages, and hands them
// to the configured provider backend.
type Dispatcher struct {
	sender            string
	maxAttachmentSize int64
	backend           provider.Provider
}

// New creates a Dispatcher that sends from the given address through backend.
func New(sender string, maxAttachmentSize int64, backend provider.Provider) *Dispatcher {
	return &Dispatcher{
		sender:            sender,
		maxAttachmentSize: maxAttachmentSize,
		backend:           backend,
	}
}

// Send runs the full pipeline for one request. Errors carry a classification
// so the HTTP layer can map them to status codes without inspecting the
// provider.
func (d *Dispatcher) Send(ctx context.Context, req *email.Request) (*Result, error) {
	if err := req.Validate(d.maxAttachmentSize); err != nil {
		return nil, err
	}

	msg, err := email.Build(req, d.sender)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := d.backend.Send(ctx, msg); err != nil {
		slog.Error("email send failed",
			"provider", d.backend.Name(),
			"to", req.ToEmail,
			"error", apperr.Public(err),
		)
		return nil, err
	}

	slog.Info("email sent",
		"provider", d.backend.Name(),
		"to", req.ToEmail,
		"message_id", msg.MessageID,
		"duration", time.Since(start),
	)

	return &Result{
		EmailID:    req.ToEmail,
		Subject:    msg.Subject,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Status:     "sent",
		Recipients: Recipients{
			To:  req.ToEmail,
			Cc:  orEmpty(req.Cc),
			Bcc: orEmpty(req.Bcc),
		},
	}, nil
}

// Provider returns the name of the configured backend.
func (d *Dispatcher) Provider() string {
	return d.backend.Name()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
