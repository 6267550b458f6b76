// Package hassapi uploads images and backups to a Home Assistant server.
package hassapi

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/uploadkit/uploader/internal/auth"
	"github.com/uploadkit/uploader/internal/observability"
	"github.com/uploadkit/uploader/internal/transport"
	"github.com/uploadkit/uploader/internal/upload"
)

// Client creates authenticated uploads to a server.
type Client struct {
	baseURL string
	tokens  *auth.TokenSource

	transport transport.Transport
	logger    *observability.CoreLogger
	observer  upload.Observer
}

type ClientOption func(*Client)

// WithTransport sets the transport used by the client's uploads.
func WithTransport(t transport.Transport) ClientOption {
	return func(c *Client) { c.transport = t }
}

func WithLogger(logger *observability.CoreLogger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithObserver reports every upload to the observer.
func WithObserver(observer upload.Observer) ClientOption {
	return func(c *Client) { c.observer = observer }
}

func NewClient(
	baseURL string,
	tokens *auth.TokenSource,
	opts ...ClientOption,
) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.NewNoOpLogger()
	}
	return c
}

// URL resolves a server path, leaving absolute URLs unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// NewUpload prepares an authenticated upload of the payload to a path.
//
// The access token is refreshed first if it expired. The upload is not
// started.
func (c *Client) NewUpload(
	ctx context.Context,
	path string,
	payload upload.Payload,
) (*upload.Upload, error) {
	return c.NewUploadWithHeaders(ctx, path, payload, nil)
}

// NewUploadWithHeaders is like NewUpload but also sends the given headers.
//
// An "authorization" header in headers, in any casing, replaces the
// client's credentials.
func (c *Client) NewUploadWithHeaders(
	ctx context.Context,
	path string,
	payload upload.Payload,
	headers map[string]string,
) (*upload.Upload, error) {
	all := make(map[string]string, len(headers)+1)
	maps.Copy(all, headers)

	if c.tokens != nil && !hasHeader(headers, "authorization") {
		authHeaders, err := c.tokens.Headers(ctx)
		if err != nil {
			return nil, fmt.Errorf("hassapi: authenticating upload: %w", err)
		}
		maps.Copy(all, authHeaders)
	}

	opts := []upload.Option{upload.WithLogger(c.logger)}
	if c.transport != nil {
		opts = append(opts, upload.WithTransport(c.transport))
	}
	if c.observer != nil {
		opts = append(opts, upload.WithObserver(c.observer))
	}

	return upload.New(c.URL(path), payload, all, opts...), nil
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// NewFileUpload prepares an authenticated upload of a multipart form with
// the file in its "file" field.
func (c *Client) NewFileUpload(
	ctx context.Context,
	path string,
	file File,
) (*upload.Upload, error) {
	payload, err := upload.NewForm().
		AddFile("file", file.Name, file.Content, file.Size, file.ContentType).
		Payload()
	if err != nil {
		return nil, err
	}
	return c.NewUpload(ctx, path, payload)
}
