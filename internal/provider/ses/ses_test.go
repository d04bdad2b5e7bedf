package ses

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/email-api-lite/internal/apperr"
	"github.com/shineum/email-api-lite/internal/email"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func TestName(t *testing.T) {
	t.Parallel()
	p := NewWithClient(&mockSESClient{})
	if got := p.Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSend_SimpleTextEmail(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     "Relay <relay@example.com>",
		To:       []string{"to@example.com"},
		Cc:       []string{"cc@example.com"},
		Bcc:      []string{"bcc@example.com"},
		Subject:  "Test Subject",
		TextBody: "Hello, World!",
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if input.Content.Simple == nil {
		t.Fatal("expected simple email content, got nil")
	}
	if got := *input.FromEmailAddress; got != "Relay <relay@example.com>" {
		t.Errorf("FromEmailAddress: got %q, want the built From value", got)
	}
	if got := *input.Content.Simple.Subject.Data; got != "Test Subject" {
		t.Errorf("Subject: got %q, want %q", got, "Test Subject")
	}
	if got := *input.Content.Simple.Body.Text.Data; got != "Hello, World!" {
		t.Errorf("TextBody: got %q, want %q", got, "Hello, World!")
	}
	if input.Content.Simple.Body.Html != nil {
		t.Error("expected no HTML body")
	}
	if len(input.Destination.BccAddresses) != 1 || input.Destination.BccAddresses[0] != "bcc@example.com" {
		t.Errorf("BccAddresses: got %v, want [bcc@example.com]", input.Destination.BccAddresses)
	}
}

func TestSend_ReplyToAddress(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     "relay@example.com",
		To:       []string{"to@example.com"},
		ReplyTo:  "replies@example.com",
		Subject:  "s",
		HtmlBody: "<p>hi</p>",
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.lastInput
	if len(input.ReplyToAddresses) != 1 || input.ReplyToAddresses[0] != "replies@example.com" {
		t.Errorf("ReplyToAddresses: got %v, want [replies@example.com]", input.ReplyToAddresses)
	}
	if got := *input.Content.Simple.Body.Html.Data; got != "<p>hi</p>" {
		t.Errorf("HtmlBody: got %q, want %q", got, "<p>hi</p>")
	}
}

func TestSend_AttachmentsUseRawMessage(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     "relay@example.com",
		To:       []string{"to@example.com"},
		Bcc:      []string{"bcc@example.com"},
		Subject:  "With Attachment",
		TextBody: "see attached",
		Attachments: []email.Attachment{
			{Filename: "test.txt", ContentType: "text/plain", Content: []byte("file content")},
		},
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := mock.lastInput
	if input.Content.Raw == nil {
		t.Fatal("expected raw email content, got nil")
	}

	rawStr := string(input.Content.Raw.Data)
	if !strings.Contains(rawStr, "multipart/mixed") {
		t.Error("raw message missing multipart content type")
	}
	if !strings.Contains(rawStr, "test.txt") {
		t.Error("raw message missing attachment filename")
	}
	if strings.Contains(rawStr, "bcc@example.com") {
		t.Error("bcc address leaked into the raw message headers")
	}
	if len(input.Destination.BccAddresses) != 1 {
		t.Errorf("BccAddresses: got %v, want the bcc recipient in the envelope", input.Destination.BccAddresses)
	}
}

func TestSend_RetryOnTransientError(t *testing.T) {
	t.Parallel()

	callCount := 0
	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			callCount++
			if callCount <= 1 {
				return nil, errors.New("transient error")
			}
			return &sesv2.SendEmailOutput{MessageId: aws.String("ok")}, nil
		},
	}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     "relay@example.com",
		To:       []string{"to@example.com"},
		Subject:  "Retry Test",
		TextBody: "Hello",
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if callCount != 2 {
		t.Errorf("call count: got %d, want 2", callCount)
	}
}

func TestSend_RejectionIsNotRetried(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, &types.MessageRejected{Message: aws.String("Email address is not verified")}
		},
	}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     "relay@example.com",
		To:       []string{"to@example.com"},
		Subject:  "Reject Test",
		TextBody: "Hello",
	}

	err := p.Send(context.Background(), msg)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1 (no retry on rejection)", mock.callCount)
	}
	if got := apperr.StatusCode(err); got != 400 {
		t.Errorf("status: got %d, want 400", got)
	}
}

func TestSend_ContextCancelledDuringRetry(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			cancel()
			return nil, errors.New("transient error")
		},
	}
	p := NewWithClient(mock)

	msg := &email.Email{
		From:     "relay@example.com",
		To:       []string{"to@example.com"},
		Subject:  "Cancel Test",
		TextBody: "Hello",
	}

	err := p.Send(ctx, msg)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(%d): got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
