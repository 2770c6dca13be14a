// Package submission defines the web-form submission data model and the
// decoders that read it from an HTTP request body in arrival order.
package submission

import "fmt"

// UploadStatus describes the outcome of receiving an uploaded file.
type UploadStatus int

const (
	// UploadOK means the file was received completely.
	UploadOK UploadStatus = iota
	// UploadNoFile means the file input was submitted empty.
	UploadNoFile
	// UploadTooLarge means the file exceeded the configured size limit.
	UploadTooLarge
	// UploadPartial means reading the file failed part-way.
	UploadPartial
)

// String returns the status name.
func (s UploadStatus) String() string {
	switch s {
	case UploadOK:
		return "ok"
	case UploadNoFile:
		return "no_file"
	case UploadTooLarge:
		return "too_large"
	case UploadPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s UploadStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name. An empty value means ok.
func (s *UploadStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "ok":
		*s = UploadOK
	case "no_file":
		*s = UploadNoFile
	case "too_large":
		*s = UploadTooLarge
	case "partial":
		*s = UploadPartial
	default:
		return fmt.Errorf("unknown upload status %q", text)
	}
	return nil
}

// Field is a single submitted form field.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Upload is a single uploaded file.
type Upload struct {
	Name        string       `json:"name"`
	ContentType string       `json:"content_type"`
	Content     []byte       `json:"content"`
	Status      UploadStatus `json:"status"`
}

// OK reports whether the upload was received completely.
func (u Upload) OK() bool {
	return u.Status == UploadOK
}

// Submission is a form submission: fields and uploads in the order they
// arrived. It is not modified after decoding.
type Submission struct {
	Fields  []Field  `json:"fields"`
	Uploads []Upload `json:"uploads"`
}

// Get returns the value of the first field named key.
func (s *Submission) Get(key string) (string, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of the first field named key, or "".
func (s *Submission) Value(key string) string {
	v, _ := s.Get(key)
	return v
}
