package email

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/shineum/email-api-lite/internal/apperr"
)

// Build assembles a transport-ready Email from a validated request.
// The sender is the configured account address; when the request carries a
// from_name it becomes the display name on the From header. Attachments are
// base64-decoded here. Build performs no network I/O.
func Build(req *Request, sender string) (*Email, error) {
	msg := &Email{
		From:      formatFrom(req.FromName, sender),
		To:        []string{req.ToEmail},
		Cc:        append([]string(nil), req.Cc...),
		Bcc:       append([]string(nil), req.Bcc...),
		ReplyTo:   req.ReplyTo,
		Subject:   req.Subject,
		MessageID: newMessageID(sender),
	}

	if NormalizeBodyType(req.BodyType) == BodyTypeHTML {
		msg.HtmlBody = req.Body
	} else {
		msg.TextBody = req.Body
	}

	for _, att := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			// Validate already checked this; a failure here means the
			// request was not validated first.
			return nil, apperr.Wrap(apperr.KindInternal,
				fmt.Sprintf("attachment %q could not be decoded", att.Filename), err)
		}
		contentType := att.ContentType
		if contentType == "" {
			contentType = defaultAttachmentContentType
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    att.Filename,
			ContentType: contentType,
			Content:     content,
		})
	}

	return msg, nil
}

// formatFrom renders the From header value: "Name <sender>" when a display
// name is present, the bare sender address otherwise.
func formatFrom(name, sender string) string {
	if name == "" {
		return sender
	}
	addr := mail.Address{Name: name, Address: sender}
	return addr.String()
}

// newMessageID generates a unique Message-ID scoped to the sender's domain.
func newMessageID(sender string) string {
	domain := "localhost"
	if at := strings.LastIndex(sender, "@"); at >= 0 && at < len(sender)-1 {
		domain = sender[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
