// Package formdata decodes a file part out of a raw multipart/form-data
// request body without relying on a framework. It extracts at most one file
// per request: the first part whose headers carry a non-empty filename.
package formdata

import (
	"bytes"
	"regexp"
	"strings"
)

// FilePart is one extracted file: the client-supplied filename and the raw
// part content.
type FilePart struct {
	Filename string
	Content  []byte
}

var filenamePattern = regexp.MustCompile(`filename="([^"]*)"`)

// Boundary extracts the boundary parameter from a Content-Type header value.
// Returns false when the header is not multipart/form-data or carries no
// boundary.
func Boundary(contentType string) (string, bool) {
	if !strings.Contains(contentType, "multipart/form-data") {
		return "", false
	}
	idx := strings.Index(contentType, "boundary=")
	if idx < 0 {
		return "", false
	}
	boundary := contentType[idx+len("boundary="):]
	// The boundary may be quoted and may be followed by further parameters.
	if i := strings.IndexByte(boundary, ';'); i >= 0 {
		boundary = boundary[:i]
	}
	boundary = strings.Trim(strings.TrimSpace(boundary), `"`)
	if boundary == "" {
		return "", false
	}
	return boundary, true
}

// Extract returns the first file part found in body, split on the given
// boundary. Malformed input of any kind yields (nil, false), never a panic.
func Extract(body []byte, boundary string) (*FilePart, bool) {
	if boundary == "" {
		return nil, false
	}

	delimiter := []byte("--" + boundary)
	parts := bytes.Split(body, delimiter)

	for _, part := range parts {
		trimmed := bytes.TrimSpace(part)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("--")) {
			continue
		}

		// Headers end at the first blank line; parts without one are skipped.
		headerEnd := bytes.Index(part, []byte("\r\n\r\n"))
		if headerEnd < 0 {
			continue
		}

		headers := string(part[:headerEnd])
		content := part[headerEnd+4:]

		// The CRLF that precedes the next boundary belongs to the framing,
		// not the content.
		content = bytes.TrimSuffix(content, []byte("\r\n"))

		if !strings.Contains(headers, "Content-Disposition: form-data") {
			continue
		}
		if !strings.Contains(headers, "filename=") {
			continue
		}

		match := filenamePattern.FindStringSubmatch(headers)
		if match == nil || match[1] == "" {
			continue
		}

		return &FilePart{Filename: match[1], Content: content}, true
	}

	return nil, false
}
