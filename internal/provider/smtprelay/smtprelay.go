// Package smtprelay implements a Provider that relays messages through an
// upstream SMTP server, one fresh session per message.
package smtprelay

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/shineum/email-api-lite/internal/apperr"
	"github.com/shineum/email-api-lite/internal/email"
)

// dialTimeout bounds the TCP connection attempt to the SMTP server.
const dialTimeout = 10 * time.Second

// tlsPort is the conventional port for implicit TLS (SMTPS).
const tlsPort = 465

// Config holds the upstream SMTP server settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// UseTLS enables transport encryption: implicit TLS on port 465,
	// STARTTLS on any other port.
	UseTLS bool
}

// session is the subset of *smtp.Client the relay drives. Each session is
// used for exactly one message and released exactly once, on every exit path.
type session interface {
	Auth(a smtp.Auth) error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// dialFunc opens a new SMTP session. Swapped for a fake in tests.
type dialFunc func(ctx context.Context, cfg Config) (session, error)

// Provider relays email through an SMTP server. Sessions are never reused or
// cached; every Send dials, authenticates, submits, and disconnects.
type Provider struct {
	cfg  Config
	dial dialFunc
}

// New creates an SMTP relay provider with the given configuration.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg, dial: dialSMTP}
}

// newWithDialer creates a Provider with a custom dialer, used for testing.
func newWithDialer(cfg Config, dial dialFunc) *Provider {
	return &Provider{cfg: cfg, dial: dial}
}

// Send performs one full SMTP transaction: connect, authenticate, submit,
// quit. Failures are classified by the step they occur in: connection and
// TLS failures are transport errors, credential rejection is an auth error,
// recipient rejection is a send-rejected error, and DATA-phase failures are
// send-failed errors. The session is released on every path, success or not.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	raw, err := email.Encode(msg)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to encode message", err)
	}

	sess, err := p.dial(ctx, p.cfg)
	if err != nil {
		return apperr.Wrap(apperr.KindTransport, "unable to connect to SMTP server", err)
	}

	released := false
	defer func() {
		if !released {
			_ = sess.Close()
		}
	}()

	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	if err := sess.Auth(auth); err != nil {
		return apperr.Wrap(apperr.KindAuth, "SMTP authentication failed", err)
	}

	if err := sess.Mail(envelopeFrom(msg.From, p.cfg.Username)); err != nil {
		return apperr.Wrap(apperr.KindSendFailed, "SMTP server rejected the sender", err)
	}

	for _, rcpt := range msg.Recipients() {
		if err := sess.Rcpt(rcpt); err != nil {
			return apperr.Wrap(apperr.KindSendRejected,
				fmt.Sprintf("SMTP server rejected recipient %s", rcpt), err)
		}
	}

	writer, err := sess.Data()
	if err != nil {
		return apperr.Wrap(apperr.KindSendFailed, "SMTP server rejected the message", err)
	}
	if _, err := writer.Write(raw); err != nil {
		_ = writer.Close()
		return apperr.Wrap(apperr.KindSendFailed, "failed to transmit the message", err)
	}
	if err := writer.Close(); err != nil {
		return apperr.Wrap(apperr.KindSendFailed, "SMTP server rejected the message", err)
	}

	released = true
	if err := sess.Quit(); err != nil {
		// The message was accepted; some servers drop the connection
		// right after DATA, so a failed QUIT is not a delivery failure.
		// A QUIT that errors leaves the connection open, so close it.
		slog.Debug("SMTP QUIT failed after accepted message", "error", err)
		_ = sess.Close()
	}

	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

// envelopeFrom extracts the bare address from the From header for MAIL FROM.
// Falls back to the authenticated username when the header is absent or
// unparseable.
func envelopeFrom(from, username string) string {
	if from == "" {
		return username
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return username
	}
	return addr.Address
}

// dialSMTP opens a TCP (or implicit-TLS) connection to the configured server
// and upgrades to STARTTLS when TLS is requested on a non-SMTPS port.
func dialSMTP(ctx context.Context, cfg Config) (session, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	tlsConfig := &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	if cfg.UseTLS && cfg.Port == tlsPort {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open SMTP session: %w", err)
	}

	if cfg.UseTLS && cfg.Port != tlsPort {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	return client, nil
}
