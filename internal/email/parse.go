package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// Parse reads raw RFC 5322 bytes back into an Email. It is the inverse of
// Encode for the shapes this service produces: single text parts and
// multipart/mixed messages with base64 attachments. Bcc is populated only if
// the raw message carries a Bcc header, which Encode never writes.
func Parse(raw []byte) (*Email, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &Email{
		From:      msg.Header.Get("From"),
		ReplyTo:   msg.Header.Get("Reply-To"),
		MessageID: msg.Header.Get("Message-Id"),
		To:        parseAddressList(msg.Header.Get("To")),
		Cc:        parseAddressList(msg.Header.Get("Cc")),
		Bcc:       parseAddressList(msg.Header.Get("Bcc")),
	}

	if subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject")); err == nil {
		result.Subject = subject
	} else {
		result.Subject = msg.Header.Get("Subject")
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseParts(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	setBody(result, mediaType, body)
	return result, nil
}

// parseParts walks the parts of a multipart body, filling in text/html bodies
// and decoding attachment parts.
func parseParts(body io.Reader, boundary string, result *Email) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}

		content, err := readPartContent(part)
		if err != nil {
			return fmt.Errorf("failed to read part content: %w", err)
		}

		if strings.HasPrefix(part.Header.Get("Content-Disposition"), "attachment") {
			result.Attachments = append(result.Attachments, Attachment{
				Filename:    part.FileName(),
				ContentType: mediaType,
				Content:     content,
			})
			continue
		}

		setBody(result, mediaType, content)
	}

	return nil
}

// readPartContent reads a MIME part, decoding base64 transfer encoding.
func readPartContent(part *multipart.Part) ([]byte, error) {
	raw, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}

	encoding := strings.ToLower(strings.TrimSpace(part.Header.Get("Content-Transfer-Encoding")))
	if encoding != "base64" {
		return raw, nil
	}

	cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 content: %w", err)
	}
	return decoded, nil
}

func setBody(result *Email, mediaType string, content []byte) {
	switch mediaType {
	case "text/html":
		if result.HtmlBody == "" {
			result.HtmlBody = string(content)
		}
	default:
		if result.TextBody == "" {
			result.TextBody = string(content)
		}
	}
}

// parseAddressList splits a comma-separated address header into bare addresses.
func parseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}
