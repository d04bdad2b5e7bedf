package email

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shineum/email-api-lite/internal/apperr"
)

// Body type values accepted in a send request.
const (
	BodyTypePlain = "plain"
	BodyTypeHTML  = "html"
)

// defaultAttachmentContentType is used when a request omits the content type.
const defaultAttachmentContentType = "application/octet-stream"

// Request is the JSON payload of a send-email call.
type Request struct {
	ToEmail     string              `json:"to_email"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	BodyType    string              `json:"body_type"`
	FromName    string              `json:"from_name,omitempty"`
	ReplyTo     string              `json:"reply_to,omitempty"`
	Cc          []string            `json:"cc,omitempty"`
	Bcc         []string            `json:"bcc,omitempty"`
	Attachments []RequestAttachment `json:"attachments,omitempty"`
}

// RequestAttachment is a single attachment in a send request.
// Content carries the base64-encoded payload.
type RequestAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// Validate checks the request shape: required fields, address syntax for
// to/reply_to/cc/bcc, recognized body type, and decodable base64 attachment
// content no larger than maxAttachmentSize bytes when decoded. It has no
// side effects; the first violation is returned as a validation error naming
// the offending field.
func (r *Request) Validate(maxAttachmentSize int64) error {
	if r.ToEmail == "" {
		return apperr.New(apperr.KindValidation, "to_email is required")
	}
	if !validAddress(r.ToEmail) {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("to_email is not a valid email address: %s", r.ToEmail))
	}
	if r.Subject == "" {
		return apperr.New(apperr.KindValidation, "subject is required")
	}
	if r.Body == "" {
		return apperr.New(apperr.KindValidation, "body is required")
	}

	switch NormalizeBodyType(r.BodyType) {
	case BodyTypePlain, BodyTypeHTML:
	default:
		return apperr.New(apperr.KindValidation, fmt.Sprintf("body_type must be %q or %q", BodyTypeHTML, BodyTypePlain))
	}

	if r.ReplyTo != "" && !validAddress(r.ReplyTo) {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("reply_to is not a valid email address: %s", r.ReplyTo))
	}

	for _, addr := range r.Cc {
		if !validAddress(addr) {
			return apperr.New(apperr.KindValidation, fmt.Sprintf("cc contains an invalid email address: %s", addr))
		}
	}
	for _, addr := range r.Bcc {
		if !validAddress(addr) {
			return apperr.New(apperr.KindValidation, fmt.Sprintf("bcc contains an invalid email address: %s", addr))
		}
	}

	for i, att := range r.Attachments {
		if att.Filename == "" {
			return apperr.New(apperr.KindValidation, fmt.Sprintf("attachment %d is missing a filename", i))
		}
		decoded, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			return apperr.Wrap(apperr.KindValidation,
				fmt.Sprintf("attachment %q content is not valid base64", att.Filename), err)
		}
		if int64(len(decoded)) > maxAttachmentSize {
			return apperr.New(apperr.KindValidation,
				fmt.Sprintf("attachment %q exceeds the maximum size of %d bytes", att.Filename, maxAttachmentSize))
		}
	}

	return nil
}

// NormalizeBodyType lowercases the body type and applies the plain default.
func NormalizeBodyType(bodyType string) string {
	if bodyType == "" {
		return BodyTypePlain
	}
	return strings.ToLower(bodyType)
}

// validAddress reports whether s is a bare, syntactically valid email address.
// Display-name forms ("Name <a@b.com>") are rejected; the API expects plain
// addresses in recipient fields.
func validAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s
}
