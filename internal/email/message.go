// Package email defines the outbound message handed to delivery providers.
package email

import (
	"encoding/base64"
	"strings"
)

// Header is a single message header line.
type Header struct {
	Name  string
	Value string
}

// Email is a fully built outbound message: envelope addresses, ordered
// headers and the MIME body.
type Email struct {
	From      string
	ReplyTo   string
	To        []string
	Subject   string
	MessageID string
	Headers   []Header
	Body      string

	// Attachments lists what the body carries, for logging and previews.
	Attachments []Attachment
}

// Attachment describes a file encoded into the message body.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int
}

// Header returns the value of the first header named name, case-insensitively.
func (e *Email) Header(name string) string {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// EncodedSubject returns the subject as an RFC 2047 UTF-8 B-encoded word.
func (e *Email) EncodedSubject() string {
	return EncodeSubject(e.Subject)
}

// HeaderBlock renders the envelope headers joined by CRLF, without a
// trailing line break.
func (e *Email) HeaderBlock() string {
	lines := make([]string, 0, len(e.Headers))
	for _, h := range e.Headers {
		lines = append(lines, h.Name+": "+h.Value)
	}
	return strings.Join(lines, "\r\n")
}

// Raw renders the complete RFC 5322 message, including To and Subject.
func (e *Email) Raw() []byte {
	var b strings.Builder

	b.WriteString("To: " + strings.Join(e.To, ", ") + "\r\n")
	b.WriteString("Subject: " + e.EncodedSubject() + "\r\n")
	if block := e.HeaderBlock(); block != "" {
		b.WriteString(block + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(e.Body)

	return []byte(b.String())
}

// EncodeSubject encodes s as "=?UTF-8?B?<base64>?=".
func EncodeSubject(s string) string {
	return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
}
