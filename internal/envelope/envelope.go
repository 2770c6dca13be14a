// Package envelope builds MIME headers and bodies for outgoing form mail.
package envelope

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/shineum/formmail-lite/internal/email"
	"github.com/shineum/formmail-lite/internal/submission"
)

// Content types of the two message shapes.
const (
	ContentTypeHTML      = "text/html; charset=UTF-8"
	ContentTypeMultipart = "multipart/mixed"
)

// DateFormat is RFC 2822 with the zone abbreviation appended.
const DateFormat = "Mon, 02 Jan 2006 15:04:05 -0700 (MST)"

// base64LineLength is the RFC 2045 line length for base64 bodies.
const base64LineLength = 76

// ErrUnsafeHeader is returned when an address would break the header block.
var ErrUnsafeHeader = errors.New("header value contains line breaks")

// Config holds the static parts of every envelope.
type Config struct {
	// MessageIDDomain is the right-hand side of generated Message-IDs.
	MessageIDDomain string
	// Mailer is the X-Mailer header value.
	Mailer string
	// Site is sent as X-Formmail-Site when set.
	Site string
}

// Builder creates envelopes. It holds no per-message state.
type Builder struct {
	cfg  Config
	now  func() time.Time
	seed func() string
}

// New creates a Builder.
func New(cfg Config) *Builder {
	if cfg.MessageIDDomain == "" {
		cfg.MessageIDDomain = "localhost"
	}
	return &Builder{
		cfg:  cfg,
		now:  time.Now,
		seed: uuid.NewString,
	}
}

// Input is everything a single envelope is built from.
type Input struct {
	From    string
	ReplyTo string
	To      string
	Subject string
	HTML    string
	Uploads []submission.Upload
}

// Build assembles the message for in. From and ReplyTo must already be
// validated addresses; line breaks in either are rejected.
func (b *Builder) Build(in Input) (*email.Email, error) {
	for _, v := range []string{in.From, in.ReplyTo, in.To} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrUnsafeHeader, v)
		}
	}

	uploads := lo.Filter(in.Uploads, func(u submission.Upload, _ int) bool { return u.OK() })
	boundary := b.UniqueBoundary()
	messageID := b.MessageID()

	body, attachments := Parts(in.HTML, uploads, boundary)

	return &email.Email{
		From:        in.From,
		ReplyTo:     in.ReplyTo,
		To:          []string{in.To},
		Subject:     in.Subject,
		MessageID:   messageID,
		Headers:     b.Headers(in.From, in.ReplyTo, boundary, messageID, len(uploads) > 0),
		Body:        body,
		Attachments: attachments,
	}, nil
}

// ContentType returns the top-level Content-Type value.
func ContentType(hasAttachments bool, boundary string) string {
	if !hasAttachments {
		return ContentTypeHTML
	}
	return ContentTypeMultipart + `; boundary="` + boundary + `"`
}

// Headers returns the ordered envelope headers.
func (b *Builder) Headers(from, replyTo, boundary, messageID string, hasAttachments bool) []email.Header {
	headers := []email.Header{
		{Name: "From", Value: from},
		{Name: "Reply-To", Value: replyTo},
		{Name: "MIME-Version", Value: "1.0"},
		{Name: "Content-Type", Value: ContentType(hasAttachments, boundary)},
		{Name: "Message-ID", Value: messageID},
		{Name: "Date", Value: b.now().Format(DateFormat)},
	}
	if b.cfg.Mailer != "" {
		headers = append(headers, email.Header{Name: "X-Mailer", Value: headerSafe(b.cfg.Mailer)})
	}
	if b.cfg.Site != "" {
		headers = append(headers, email.Header{Name: "X-Formmail-Site", Value: headerSafe(b.cfg.Site)})
	}
	return headers
}

// MessageID returns a new "<hash@domain>" message identifier.
func (b *Builder) MessageID() string {
	return "<" + b.hash() + "@" + b.cfg.MessageIDDomain + ">"
}

// UniqueBoundary returns a new multipart boundary token.
func (b *Builder) UniqueBoundary() string {
	return b.hash()
}

// hash digests the current time and a random seed into 32 hex characters.
func (b *Builder) hash() string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(b.now().UnixNano(), 10) + b.seed()))
	return hex.EncodeToString(sum[:16])
}

// Parts renders the message body. Without uploads the body is the bare HTML
// payload; otherwise the HTML and each upload become boundary-delimited parts.
// Only uploads with status ok are attached.
func Parts(bodyHTML string, uploads []submission.Upload, boundary string) (string, []email.Attachment) {
	uploads = lo.Filter(uploads, func(u submission.Upload, _ int) bool { return u.OK() })

	var sb strings.Builder
	sb.WriteString("\r\n")

	if len(uploads) == 0 {
		sb.WriteString(bodyHTML)
		sb.WriteString("\r\n")
		return sb.String(), nil
	}

	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString("Content-Type: " + ContentTypeHTML + "\r\n")
	sb.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	sb.WriteString(bodyHTML)
	sb.WriteString("\r\n")

	attachments := make([]email.Attachment, 0, len(uploads))
	for _, u := range uploads {
		name := attachmentName(u.Name)
		contentType := attachmentType(u.ContentType)

		sb.WriteString("--" + boundary + "\r\n")
		sb.WriteString("Content-Type: " + contentType + `; name="` + name + `"` + "\r\n")
		sb.WriteString(`Content-Disposition: attachment; filename="` + name + `"` + "\r\n")
		sb.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		sb.WriteString(encodeBase64WithLineBreaks(u.Content))
		sb.WriteString("\r\n")

		attachments = append(attachments, email.Attachment{
			Filename:    u.Name,
			ContentType: contentType,
			Size:        len(u.Content),
		})
	}
	sb.WriteString("--" + boundary + "--\r\n")

	return sb.String(), attachments
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	lines := make([]string, 0, len(encoded)/base64LineLength+1)
	for i := 0; i < len(encoded); i += base64LineLength {
		end := min(i+base64LineLength, len(encoded))
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}

// attachmentName makes a filename safe for a quoted header parameter.
func attachmentName(name string) string {
	name = strings.NewReplacer("\r", "", "\n", "", `"`, "", `\`, "").Replace(name)
	if name == "" {
		return "attachment"
	}
	return mime.QEncoding.Encode("UTF-8", name)
}

// attachmentType returns the bare media type of a declared content type,
// falling back to application/octet-stream when it does not parse.
func attachmentType(declared string) string {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.Contains(mediaType, "/") {
		return "application/octet-stream"
	}
	return mediaType
}

func headerSafe(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
