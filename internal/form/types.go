package form

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// FieldType is the semantic type of a field value.
type FieldType int

const (
	// TypeNone means the field has no declared type.
	TypeNone FieldType = iota
	// TypeEmail renders as a mailto: link.
	TypeEmail
	// TypePhone renders as a tel: link.
	TypePhone
	// TypeURL renders as a web link.
	TypeURL
)

// String returns the manifest tag for t.
func (t FieldType) String() string {
	switch t {
	case TypeEmail:
		return "email"
	case TypePhone:
		return "phone"
	case TypeURL:
		return "url"
	default:
		return "none"
	}
}

// ParseFieldType maps a manifest tag to a FieldType. Unknown tags are TypeNone.
func ParseFieldType(tag string) FieldType {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "email":
		return TypeEmail
	case "phone":
		return TypePhone
	case "url":
		return TypeURL
	default:
		return TypeNone
	}
}

// TypeManifest maps field names to their declared types.
type TypeManifest map[string]FieldType

// ParseTypeManifest decodes a JSON object of field name to type tag.
// A missing or malformed manifest yields an empty one.
func ParseTypeManifest(raw string) TypeManifest {
	m := make(TypeManifest)
	if strings.TrimSpace(raw) == "" {
		return m
	}

	var tags map[string]any
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		slog.Debug("ignoring malformed type manifest", "error", err)
		return m
	}

	for name, tag := range tags {
		s, ok := tag.(string)
		if !ok {
			continue
		}
		if t := ParseFieldType(s); t != TypeNone {
			m[name] = t
		}
	}
	return m
}

// TypeOf returns the type of the first name found in the manifest.
func (m TypeManifest) TypeOf(names ...string) FieldType {
	for _, name := range names {
		if t, ok := m[name]; ok {
			return t
		}
	}
	return TypeNone
}
