package htmlbody

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/shineum/formmail-lite/internal/form"
)

// DefaultWrapThreshold is the label/value length above which every row
// switches to the two-line layout.
const DefaultWrapThreshold = 60

const (
	rowStyle   = `margin: 4px;`
	labelStyle = `margin: 0 4px 0; min-width: 135px; font-weight: bolder;`
	valueStyle = `margin: 0 4px 0;`
)

// Builder assembles the HTML document for a set of rows.
type Builder struct {
	maxLen int
}

// NewBuilder creates a Builder. A non-positive maxLen uses DefaultWrapThreshold.
func NewBuilder(maxLen int) *Builder {
	if maxLen <= 0 {
		maxLen = DefaultWrapThreshold
	}
	return &Builder{maxLen: maxLen}
}

// ShouldWrap reports whether any row's label or value is longer than the
// threshold. The decision applies to the whole table, not to single rows.
func (b *Builder) ShouldWrap(rows []form.Row) bool {
	return lo.SomeBy(rows, func(r form.Row) bool {
		return utf8.RuneCountInString(r.Label) > b.maxLen || utf8.RuneCountInString(r.Value) > b.maxLen
	})
}

// Table renders rows as a presentation table. Wrapped tables put the label
// and the value on separate rows.
func (b *Builder) Table(rows []form.Row, wrapped bool, types form.TypeManifest) string {
	var sb strings.Builder

	sb.WriteString(`<table role="presentation"><tbody>`)
	for _, row := range rows {
		value := RenderValue(row.Value, fieldType(types, row))

		sb.WriteString(`<tr style="` + rowStyle + `">`)
		sb.WriteString(`<td style="` + labelStyle + `">` + row.Label + `: </td>`)
		if wrapped {
			sb.WriteString(`</tr><tr style="` + rowStyle + `">`)
		}
		sb.WriteString(`<td style="` + valueStyle + `"> ` + value + ` </td>`)
		sb.WriteString(`</tr>`)
	}
	sb.WriteString(`</tbody></table>`)

	return sb.String()
}

// Document renders the full HTML body: the banner paragraph followed by the
// field table.
func (b *Builder) Document(topText string, rows []form.Row, types form.TypeManifest) string {
	return `<html>` +
		`<head><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>` +
		`<body>` +
		`<p>` + html.EscapeString(topText) + `</p><br />` +
		b.Table(rows, b.ShouldWrap(rows), types) +
		`</body>` +
		`</html>`
}
