package retryableclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/uploadkit/uploader/internal/httplayers"
	"github.com/uploadkit/uploader/internal/observability"
)

// NewRetryClient returns a retryablehttp.Client configured by the options.
func NewRetryClient(opts ...RetryClientOption) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	for _, opt := range opts {
		opt(retryClient)
	}
	return retryClient
}

// NewUploadClient returns a client for uploads.
//
// Uploads are single-shot: the client makes exactly one attempt, reports
// transport errors as-is and never turns a status code into an error.
func NewUploadClient(opts ...RetryClientOption) *retryablehttp.Client {
	opts = append([]RetryClientOption{
		WithRetryClientRetryMax(0),
		WithRetryClientRetryPolicy(NoRetryPolicy),
		WithRetryClientErrorHandler(retryablehttp.PassthroughErrorHandler),
	}, opts...)
	return NewRetryClient(opts...)
}

// NoRetryPolicy never retries and only reports transport errors.
func NoRetryPolicy(
	ctx context.Context,
	resp *http.Response,
	err error,
) (bool, error) {
	return false, err
}

type RetryClientOption func(rc *retryablehttp.Client)

func WithRetryClientLogger(logger *observability.CoreLogger) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.Logger = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
	}
}

func WithRetryClientRetryMax(retryMax int) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.RetryMax = retryMax
	}
}

func WithRetryClientHttpTransport(transport http.RoundTripper) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.HTTPClient.Transport = transport
	}
}

// WithRetryClientHTTPWrapper applies middleware to the client's transport.
func WithRetryClientHTTPWrapper(wrapper httplayers.HTTPWrapper) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.HTTPClient.Transport = httplayers.WrapRoundTripper(
			rc.HTTPClient.Transport,
			wrapper,
		)
	}
}

func WithRetryClientHttpTimeout(timeout time.Duration) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.HTTPClient.Timeout = timeout
	}
}

func WithRetryClientRetryPolicy(retryPolicy retryablehttp.CheckRetry) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.CheckRetry = retryPolicy
	}
}

func WithRetryClientErrorHandler(handler retryablehttp.ErrorHandler) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.ErrorHandler = handler
	}
}
