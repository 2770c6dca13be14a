package form

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/shineum/formmail-lite/internal/submission"
)

// MarketingConsentLabel marks the row that is always rendered last.
const MarketingConsentLabel = "Marketing Consent"

// Control fields read by the pipeline and never rendered into the message.
const (
	FieldReplyTo      = "replyto"
	FieldSubject      = "subject"
	FieldRecipient    = "recipient"
	FieldEmail        = "email"
	FieldCaptcha      = "frc-captcha-solution"
	FieldLabels       = "formLabels"
	FieldTypeMappings = "formLabelsTypeMappings"
)

// DefaultInternalFields is the control field set used when none is configured.
var DefaultInternalFields = []string{
	FieldReplyTo,
	FieldSubject,
	FieldRecipient,
	FieldEmail,
	FieldCaptcha,
	FieldLabels,
	FieldTypeMappings,
}

var newlinePattern = regexp.MustCompile("\r\n|\n\r|\n|\r")

// Row is one visible field of a submission. Label and Value are HTML-escaped.
type Row struct {
	// Key is the decoded submitted key.
	Key string
	// Label is the escaped display label.
	Label string
	// Value is the escaped value with line breaks as <br />.
	Value string
}

// Extractor selects and escapes the visible fields of a submission.
type Extractor struct {
	internal  map[string]struct{}
	skipEmpty bool
}

// NewExtractor creates an Extractor that drops the given internal fields and,
// when skipEmpty is set, fields with empty values.
func NewExtractor(internalFields []string, skipEmpty bool) *Extractor {
	return &Extractor{
		internal:  lo.SliceToMap(internalFields, func(k string) (string, struct{}) { return k, struct{}{} }),
		skipEmpty: skipEmpty,
	}
}

// IsInternal reports whether key is a control field.
func (e *Extractor) IsInternal(key string) bool {
	_, ok := e.internal[key]
	return ok
}

// Extract returns the visible rows of fields in arrival order, except that
// the first row whose label contains "Marketing Consent" is moved to the end.
func (e *Extractor) Extract(fields []submission.Field, labels LabelManifest) []Row {
	rows := make([]Row, 0, len(fields))

	for _, f := range fields {
		if e.IsInternal(f.Key) {
			continue
		}
		if e.skipEmpty && f.Value == "" {
			continue
		}

		key := decodeKey(f.Key)
		rows = append(rows, Row{
			Key:   key,
			Label: html.EscapeString(upperFirst(labels.Resolve(key))),
			Value: nl2br(html.EscapeString(f.Value)),
		})
	}

	return MoveMarketingConsentLast(rows)
}

// MoveMarketingConsentLast moves the first row whose label contains
// MarketingConsentLabel to the end, keeping the order of the others.
func MoveMarketingConsentLast(rows []Row) []Row {
	_, idx, found := lo.FindIndexOf(rows, func(r Row) bool {
		return strings.Contains(r.Label, MarketingConsentLabel)
	})
	if !found || idx == len(rows)-1 {
		return rows
	}

	consent := rows[idx]
	out := make([]Row, 0, len(rows))
	out = append(out, rows[:idx]...)
	out = append(out, rows[idx+1:]...)
	return append(out, consent)
}

func decodeKey(key string) string {
	decoded, err := url.PathUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func nl2br(s string) string {
	return newlinePattern.ReplaceAllStringFunc(s, func(nl string) string {
		return "<br />" + nl
	})
}
