// Package htmlbody renders form rows into the HTML body of the outgoing mail.
package htmlbody

import (
	"html"
	"regexp"
	"strings"

	"github.com/shineum/formmail-lite/internal/form"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*(>|$)`)
	schemePattern = regexp.MustCompile(`^https?://`)
)

// RenderValue returns the display form of an escaped field value: a mailto:,
// tel: or web link for typed fields, plain text otherwise. Markup tags are
// stripped first, so the result is plain text or a single anchor.
func RenderValue(value string, t form.FieldType) string {
	var prefix string

	switch t {
	case form.TypeEmail:
		prefix = "mailto:"
	case form.TypePhone:
		prefix = "tel:"
	case form.TypeURL:
		prefix = "https://"
		if scheme := schemePattern.FindString(value); scheme != "" {
			prefix = scheme
			value = strings.TrimPrefix(value, scheme)
		}
	}

	value = StripTags(value)
	if prefix == "" {
		return value
	}
	return `<a href="` + prefix + value + `">` + value + `</a>`
}

// StripTags removes markup tags from s, including an unterminated trailing tag.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// fieldType looks a row up by display label first, then by submitted key.
func fieldType(types form.TypeManifest, row form.Row) form.FieldType {
	return types.TypeOf(row.Label, html.UnescapeString(row.Label), row.Key)
}
