package hassapi

import (
	"errors"
	"fmt"

	"github.com/uploadkit/uploader/internal/upload"
)

var (
	// ErrTooLarge is returned when the server rejects a file as too large.
	ErrTooLarge = errors.New("hassapi: uploaded file is too large")

	// ErrInvalidBackup is returned when the server cannot read a backup.
	ErrInvalidBackup = errors.New("hassapi: backup file is invalid")

	// ErrUnsupportedFormat is returned for images of an unknown type.
	ErrUnsupportedFormat = errors.New("hassapi: unsupported image format")
)

// StatusError is an unexpected response status.
type StatusError struct {
	Status     int
	StatusText string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hassapi: unexpected status %d %s", e.Status, e.StatusText)
	}
	return fmt.Sprintf(
		"hassapi: unexpected status %d %s: %s",
		e.Status, e.StatusText, e.Body)
}

func newStatusError(resp *upload.Response) *StatusError {
	body := string(resp.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return &StatusError{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Body:       body,
	}
}
