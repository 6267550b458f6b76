package upload

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/uploadkit/uploader/internal/transport"
)

// Response is the server's reply to a completed upload.
//
// The status code is not interpreted: a 413 is as much a Response as a 200.
type Response struct {
	// Status is the HTTP status code.
	Status int

	// StatusText is the reason phrase, such as "OK".
	StatusText string

	// Header maps each header name to its value. Repeated headers are
	// merged into one comma-separated value.
	Header map[string]string

	// Body is the entire response body.
	Body []byte
}

// Get returns the value of a header, ignoring the case of the name.
func (r *Response) Get(name string) string {
	if value, ok := r.Header[name]; ok {
		return value
	}
	for key, value := range r.Header {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("upload: decoding %d response: %v", r.Status, err)
	}
	return nil
}

// newResponse converts the transport's completion into a Response.
func newResponse(c *transport.Completion) *Response {
	return &Response{
		Status:     c.Status,
		StatusText: c.StatusText,
		Header:     ParseRawHeaders(c.RawHeaders),
		Body:       c.Body,
	}
}

// ParseRawHeaders parses newline-delimited "Name: Value" lines.
//
// Each line is split at its first ": " and the rest of the line is the
// value, which may contain more colons. A line without ": " is a header
// with an empty value. Names keep their spelling; a name repeated with any
// casing is merged into the first one, joining values with ", ".
func ParseRawHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	firstSpelling := make(map[string]string)

	lines := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	for _, line := range lines {
		name, value, _ := strings.Cut(line, ": ")

		key := strings.ToLower(name)
		if first, ok := firstSpelling[key]; ok {
			headers[first] += ", " + value
			continue
		}

		firstSpelling[key] = name
		headers[name] = value
	}

	return headers
}
