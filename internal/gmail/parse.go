package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"
	"google.golang.org/api/gmail/v1"
)

func parseMessage(msg *gmail.Message) Message {
	out := Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}

	if msg.InternalDate > 0 {
		out.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "subject":
				out.Subject = header.Value
			case "from":
				out.FromEmail = parseFromEmail(header.Value)
			case "message-id":
				out.MessageIDHeader = header.Value
			case "references":
				out.ReferencesHeader = header.Value
			}
		}
		out.BodyText = extractBodyText(msg.Payload)
	}

	return out
}

// parseFromEmail pulls the bare address out of a From header like
// `Bob Smith <bob@acme.com>`.
func parseFromEmail(fromHeader string) string {
	fromHeader = strings.TrimSpace(fromHeader)
	if fromHeader == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(fromHeader); err == nil {
		return strings.ToLower(addr.Address)
	}
	// Malformed header, fall back to angle-bracket extraction.
	if start := strings.Index(fromHeader, "<"); start >= 0 {
		if end := strings.Index(fromHeader[start:], ">"); end > 0 {
			return strings.ToLower(strings.TrimSpace(fromHeader[start+1 : start+end]))
		}
	}
	return strings.ToLower(fromHeader)
}

// extractBodyText walks all MIME parts and returns the text/plain content,
// or a text rendering of the HTML content when no plain part exists.
func extractBodyText(payload *gmail.MessagePart) string {
	var textPlain, textHTML []string
	collectParts(payload, &textPlain, &textHTML)

	if len(textPlain) > 0 {
		return strings.TrimSpace(strings.Join(textPlain, "\n"))
	}
	if len(textHTML) > 0 {
		text, err := html2text.FromString(strings.Join(textHTML, "\n"), html2text.Options{TextOnly: true})
		if err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	}
	return ""
}

func collectParts(part *gmail.MessagePart, textPlain, textHTML *[]string) {
	if part == nil {
		return
	}

	if part.Body != nil && part.Body.Data != "" {
		if decoded := decodeBase64URL(part.Body.Data); decoded != "" {
			switch strings.ToLower(part.MimeType) {
			case "text/plain":
				*textPlain = append(*textPlain, decoded)
			case "text/html":
				*textHTML = append(*textHTML, decoded)
			}
		}
	}

	for _, child := range part.Parts {
		collectParts(child, textPlain, textHTML)
	}
}

// decodeBase64URL tolerates both padded and unpadded input; Gmail sends
// unpadded.
func decodeBase64URL(data string) string {
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}
