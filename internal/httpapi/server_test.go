package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shineum/email-api-lite/internal/apperr"
	"github.com/shineum/email-api-lite/internal/email"
	"github.com/shineum/email-api-lite/internal/relay"
)

// stubProvider implements provider.Provider with a fixed outcome.
type stubProvider struct {
	err  error
	sent []*email.Email
}

func (s *stubProvider) Send(ctx context.Context, msg *email.Email) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *stubProvider) Name() string {
	return "stub"
}

func newTestServer(backend *stubProvider) *Server {
	return New(ServerConfig{
		ListenAddr:     ":0",
		Dispatcher:     relay.New("noreply@example.com", 1<<20, backend),
		MaxRequestSize: 1 << 20,
		AllowOrigins:   []string{"*"},
	})
}

func postSendEmail(t *testing.T, srv *Server, body string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/send-email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.Routes().ServeHTTP(rec, req)

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not valid JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, env
}

func TestSendEmailSuccess(t *testing.T) {
	t.Parallel()

	backend := &stubProvider{}
	srv := newTestServer(backend)

	rec, env := postSendEmail(t, srv,
		`{"to_email":"a@b.com","subject":"Hi","body":"hello","body_type":"plain"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if env.Version != "1.0.0.0" {
		t.Errorf("version = %q, want %q", env.Version, "1.0.0.0")
	}
	if env.StatusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", env.StatusCode, http.StatusOK)
	}
	if env.Message != "Email sent successfully" {
		t.Errorf("message = %q, want %q", env.Message, "Email sent successfully")
	}
	if env.IsError != nil {
		t.Errorf("isError = %v, want null", *env.IsError)
	}
	if env.ResponseException != nil {
		t.Errorf("responseException = %v, want null", *env.ResponseException)
	}

	result, ok := env.Result.(map[string]any)
	if !ok {
		t.Fatalf("result = %v, want object", env.Result)
	}
	if got := result["emailId"]; got != "a@b.com" {
		t.Errorf("result.emailId = %v, want %q", got, "a@b.com")
	}
	if got := result["status"]; got != "sent" {
		t.Errorf("result.status = %v, want %q", got, "sent")
	}
	if got := result["subject"]; got != "Hi" {
		t.Errorf("result.subject = %v, want %q", got, "Hi")
	}

	if len(backend.sent) != 1 {
		t.Errorf("backend received %d messages, want 1", len(backend.sent))
	}
}

func TestSendEmailValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing to_email", `{"subject":"Hi","body":"hello","body_type":"plain"}`},
		{"malformed to_email", `{"to_email":"not-an-address","subject":"Hi","body":"x","body_type":"plain"}`},
		{"malformed cc entry", `{"to_email":"a@b.com","subject":"Hi","body":"x","body_type":"plain","cc":["bad"]}`},
		{"malformed bcc entry", `{"to_email":"a@b.com","subject":"Hi","body":"x","body_type":"plain","bcc":["bad"]}`},
		{"malformed reply_to", `{"to_email":"a@b.com","subject":"Hi","body":"x","body_type":"plain","reply_to":"bad"}`},
		{"unknown body_type", `{"to_email":"a@b.com","subject":"Hi","body":"x","body_type":"markdown"}`},
		{"invalid attachment base64", `{"to_email":"a@b.com","subject":"Hi","body":"x","body_type":"plain","attachments":[{"filename":"f.txt","content":"%%%"}]}`},
		{"malformed JSON", `{"to_email":`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := &stubProvider{}
			srv := newTestServer(backend)

			rec, env := postSendEmail(t, srv, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d\nbody: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			if env.IsError == nil || !*env.IsError {
				t.Error("isError should be true")
			}
			if env.ResponseException == nil || *env.ResponseException == "" {
				t.Error("responseException should be set")
			}
			if env.Result != nil {
				t.Errorf("result = %v, want null", env.Result)
			}
			if len(backend.sent) != 0 {
				t.Errorf("backend received %d messages, want 0", len(backend.sent))
			}
		})
	}
}

func TestSendEmailAuthFailure(t *testing.T) {
	t.Parallel()

	backend := &stubProvider{err: apperr.New(apperr.KindAuth, "SMTP authentication failed")}
	srv := newTestServer(backend)

	rec, env := postSendEmail(t, srv,
		`{"to_email":"a@b.com","subject":"Hi","body":"hello","body_type":"plain"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if env.Result != nil {
		t.Errorf("result = %v, want null", env.Result)
	}
	if env.ResponseException == nil {
		t.Fatal("responseException should be set")
	}
	if *env.ResponseException != "SMTP authentication failed" {
		t.Errorf("responseException = %q, want %q", *env.ResponseException, "SMTP authentication failed")
	}
}

func TestSendEmailTransportFailure(t *testing.T) {
	t.Parallel()

	backend := &stubProvider{err: apperr.New(apperr.KindTransport, "failed to connect to SMTP server")}
	srv := newTestServer(backend)

	rec, env := postSendEmail(t, srv,
		`{"to_email":"a@b.com","subject":"Hi","body":"hello","body_type":"plain"}`)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if env.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("statusCode = %d, want %d", env.StatusCode, http.StatusServiceUnavailable)
	}
	if env.Message != "Failed to send email" {
		t.Errorf("message = %q, want %q", env.Message, "Failed to send email")
	}
}

func TestSendEmailSendFailure(t *testing.T) {
	t.Parallel()

	backend := &stubProvider{err: apperr.New(apperr.KindSendFailed, "SMTP server rejected the message")}
	srv := newTestServer(backend)

	rec, env := postSendEmail(t, srv,
		`{"to_email":"a@b.com","subject":"Hi","body":"hello","body_type":"plain"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	// A classified send failure keeps the send summary even at 500
	if env.Message != "Failed to send email" {
		t.Errorf("message = %q, want %q", env.Message, "Failed to send email")
	}
	if env.ResponseException == nil || *env.ResponseException != "SMTP server rejected the message" {
		t.Errorf("responseException = %v, want the classified message", env.ResponseException)
	}
}

func TestSendEmailUnclassifiedError(t *testing.T) {
	t.Parallel()

	backend := &stubProvider{err: context.DeadlineExceeded}
	srv := newTestServer(backend)

	rec, env := postSendEmail(t, srv,
		`{"to_email":"a@b.com","subject":"Hi","body":"hello","body_type":"plain"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if env.Message != "Internal server error" {
		t.Errorf("message = %q, want %q", env.Message, "Internal server error")
	}
	if env.ResponseException == nil || *env.ResponseException != "internal server error" {
		t.Errorf("responseException = %v, want sanitized internal message", env.ResponseException)
	}
}

func TestSendEmailBodyTooLarge(t *testing.T) {
	t.Parallel()

	srv := New(ServerConfig{
		ListenAddr:     ":0",
		Dispatcher:     relay.New("noreply@example.com", 1<<20, &stubProvider{}),
		MaxRequestSize: 64,
	})

	body := `{"to_email":"a@b.com","subject":"Hi","body":"` + strings.Repeat("x", 200) + `","body_type":"plain"}`
	rec, env := postSendEmail(t, srv, body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if env.ResponseException == nil || *env.ResponseException != "request body too large" {
		t.Errorf("responseException = %v, want %q", env.ResponseException, "request body too large")
	}
}

func TestRootEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if env.Message != "Email API is running" {
		t.Errorf("message = %q, want %q", env.Message, "Email API is running")
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	result, ok := env.Result.(map[string]any)
	if !ok {
		t.Fatalf("result = %v, want object", env.Result)
	}
	if got := result["status"]; got != "healthy" {
		t.Errorf("result.status = %v, want %q", got, "healthy")
	}
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProvider{})

	req := httptest.NewRequest(http.MethodOptions, "/send-email", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST included", got)
	}
}

func TestCORSSpecificOrigin(t *testing.T) {
	t.Parallel()

	srv := New(ServerConfig{
		ListenAddr:   ":0",
		Dispatcher:   relay.New("noreply@example.com", 1<<20, &stubProvider{}),
		AllowOrigins: []string{"https://allowed.example.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://allowed.example.com")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the request origin echoed", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want unset for disallowed origin", got)
	}
}
