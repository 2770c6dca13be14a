package submission

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
)

// maxFieldBytes bounds a single non-file multipart field (1 MB).
const maxFieldBytes = 1 << 20

// ErrUnsupportedContentType is returned for bodies that are neither
// urlencoded nor multipart form data.
var ErrUnsupportedContentType = errors.New("unsupported form content type")

// Decode reads a form body in arrival order. contentType is the request's
// Content-Type header. Files larger than maxFileSize are kept as uploads with
// status UploadTooLarge and no content.
func Decode(contentType string, body io.Reader, maxFileSize int64) (*Submission, error) {
	if contentType == "" {
		return &Submission{}, nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read form body: %w", err)
		}
		return &Submission{Fields: ParseQuery(string(raw))}, nil
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart form missing boundary")
		}
		return decodeMultipart(multipart.NewReader(body, boundary), maxFileSize)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}
}

// ParseQuery decodes an application/x-www-form-urlencoded string, keeping
// pairs in order. Pairs that fail to unescape keep their raw text.
func ParseQuery(query string) []Field {
	var fields []Field
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		fields = append(fields, Field{
			Key:   unescape(key),
			Value: unescape(value),
		})
	}
	return fields
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func decodeMultipart(reader *multipart.Reader, maxFileSize int64) (*Submission, error) {
	result := &Submission{}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read next part: %w", err)
		}

		name := part.FormName()
		if name == "" {
			slog.Warn("multipart part without form name, skipping")
			part.Close()
			continue
		}

		filename, isFile := partFilename(part)
		if isFile {
			result.Uploads = append(result.Uploads, readUpload(part, filename, maxFileSize))
			part.Close()
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read field %q: %w", name, err)
		}
		result.Fields = append(result.Fields, Field{Key: name, Value: string(value)})
	}

	return result, nil
}

// partFilename reports whether the part is a file input, and its filename.
// A file input submitted without a selection carries an empty filename.
func partFilename(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	if _, ok := params["filename"]; !ok {
		return "", false
	}
	return part.FileName(), true
}

func readUpload(part *multipart.Part, filename string, maxFileSize int64) Upload {
	upload := Upload{
		Name:        filename,
		ContentType: part.Header.Get("Content-Type"),
	}
	if upload.ContentType == "" {
		upload.ContentType = "application/octet-stream"
	}

	if filename == "" {
		upload.Status = UploadNoFile
		return upload
	}

	content, err := io.ReadAll(io.LimitReader(part, maxFileSize+1))
	switch {
	case err != nil:
		slog.Warn("failed to read upload", "filename", filename, "error", err)
		upload.Status = UploadPartial
	case int64(len(content)) > maxFileSize:
		slog.Warn("upload exceeds size limit", "filename", filename, "limit", maxFileSize)
		upload.Status = UploadTooLarge
	default:
		upload.Content = content
		upload.Status = UploadOK
	}
	return upload
}
