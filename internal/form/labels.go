// Package form turns submitted fields into ordered, escaped message rows.
package form

import (
	"regexp"
	"strings"
	"unicode"
)

// LabelDelimiter separates labels in a label manifest.
const LabelDelimiter = "===="

var (
	keyCharPattern = regexp.MustCompile(`[\s.]`)
	keyRunPattern  = regexp.MustCompile(`[\s.]+`)
)

// LabelManifest maps normalized field keys back to the labels the form
// was rendered with.
type LabelManifest struct {
	labels map[string]string
}

// ParseLabelManifest builds a manifest from a "===="-separated label list.
// An empty input yields an empty manifest.
func ParseLabelManifest(raw string) LabelManifest {
	m := LabelManifest{labels: make(map[string]string)}
	if raw == "" {
		return m
	}

	for _, label := range strings.Split(raw, LabelDelimiter) {
		trimmed := strings.TrimLeftFunc(label, unicode.IsSpace)
		// Later labels win on collisions; the per-character form is the one
		// form encoders produce, the collapsed form is registered only if free.
		m.labels[keyCharPattern.ReplaceAllString(trimmed, "_")] = label
		if run := keyRunPattern.ReplaceAllString(trimmed, "_"); m.labels[run] == "" {
			m.labels[run] = label
		}
	}
	return m
}

// Len returns the number of distinct keys in the manifest.
func (m LabelManifest) Len() int {
	return len(m.labels)
}

// Resolve returns the label for key. Unknown keys resolve to themselves.
func (m LabelManifest) Resolve(key string) string {
	if label, ok := m.labels[key]; ok && label != "" {
		return label
	}
	normalized := keyCharPattern.ReplaceAllString(strings.TrimLeftFunc(key, unicode.IsSpace), "_")
	if label, ok := m.labels[normalized]; ok && label != "" {
		return label
	}
	return key
}

// ResolveLabel resolves a single key against a raw label manifest. With no
// manifest the key is returned unchanged.
func ResolveLabel(key, rawManifest string) string {
	if rawManifest == "" {
		return key
	}
	return ParseLabelManifest(rawManifest).Resolve(key)
}
