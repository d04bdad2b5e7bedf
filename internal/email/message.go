// Package email defines the email data model, request validation, and
// message construction used throughout the relay API.
package email

// Email is a transport-ready message assembled from a validated request.
// Bcc recipients are part of the delivery envelope only and must never be
// written into message headers.
type Email struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	ReplyTo     string
	Subject     string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment
	MessageID   string
}

// Attachment is a decoded file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Recipients returns the full delivery list: to, cc, and bcc addresses in
// first-occurrence order with duplicates removed.
func (e *Email) Recipients() []string {
	seen := make(map[string]bool, len(e.To)+len(e.Cc)+len(e.Bcc))
	out := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))

	for _, group := range [][]string{e.To, e.Cc, e.Bcc} {
		for _, addr := range group {
			if seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}

	return out
}
