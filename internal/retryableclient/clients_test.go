package retryableclient_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadkit/uploader/internal/httplayers"
	"github.com/uploadkit/uploader/internal/observability"
	"github.com/uploadkit/uploader/internal/retryableclient"
)

func TestUploadClient_DoesNotRetryServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
	defer server.Close()

	client := retryableclient.NewUploadClient(
		retryableclient.WithRetryClientLogger(observability.NewNoOpLogger()),
	)
	req, err := retryablehttp.NewRequest(http.MethodPost, server.URL, []byte("x"))
	require.NoError(t, err)

	resp, err := client.Do(req)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestUploadClient_ReturnsTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()

	client := retryableclient.NewUploadClient()
	req, err := retryablehttp.NewRequest(http.MethodPost, serverURL, []byte("x"))
	require.NoError(t, err)

	resp, err := client.Do(req)

	assert.Nil(t, resp)
	assert.Error(t, err)
}

func TestWithRetryClientHTTPWrapper(t *testing.T) {
	var userAgent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userAgent.Store(r.Header.Get("User-Agent"))
		}))
	defer server.Close()

	client := retryableclient.NewUploadClient(
		retryableclient.WithRetryClientHTTPWrapper(
			httplayers.ExtraHeaders(http.Header{"User-Agent": {"uploader/test"}}),
		),
	)
	req, err := retryablehttp.NewRequest(http.MethodPost, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)

	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "uploader/test", userAgent.Load())
}
