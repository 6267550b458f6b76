package transferstats_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadkit/uploader/internal/transferstats"
	"github.com/uploadkit/uploader/internal/transport"
	"github.com/uploadkit/uploader/internal/transporttest"
	"github.com/uploadkit/uploader/internal/upload"
)

func TestProgressReplacesPreviousValues(t *testing.T) {
	stats, err := transferstats.New(nil)
	require.NoError(t, err)

	stats.UploadProgress("a", 10, 100)
	stats.UploadProgress("b", 5, 50)
	stats.UploadProgress("a", 40, 100)

	assert.Equal(t,
		transferstats.Stats{SentBytes: 45, TotalBytes: 150},
		stats.GetStats())
	assert.Equal(t, 2, stats.InFlight())
}

func TestOutcomesAreCountedOnce(t *testing.T) {
	stats, err := transferstats.New(nil)
	require.NoError(t, err)

	stats.UploadFinished("a", upload.OutcomeSucceeded)
	stats.UploadFinished("a", upload.OutcomeSucceeded)
	stats.UploadFinished("b", upload.OutcomeAborted)
	stats.UploadFinished("c", upload.OutcomeFailed)

	assert.Equal(t,
		transferstats.Outcomes{Succeeded: 1, Aborted: 1, Failed: 1},
		stats.GetOutcomes())
	assert.Zero(t, stats.InFlight())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats, err := transferstats.New(reg)
	require.NoError(t, err)

	fake := transporttest.NewFakeTransport()
	u := upload.New("https://example.com/upload",
		upload.BytesPayload(make([]byte, 64), ""), nil,
		upload.WithTransport(fake),
		upload.WithObserver(stats))
	future := u.Start()
	fake.Last().Progress(32, 64)
	fake.Last().Load(&transport.Completion{Status: 200, StatusText: "OK"})
	_, err = future.Wait()
	require.NoError(t, err)

	expected := `
# HELP uploader_bytes_sent Bytes sent so far, summed over uploads.
# TYPE uploader_bytes_sent gauge
uploader_bytes_sent 64
# HELP uploader_bytes_total Bytes to send, summed over uploads.
# TYPE uploader_bytes_total gauge
uploader_bytes_total 64
# HELP uploader_uploads_total Number of finished uploads by outcome.
# TYPE uploader_uploads_total counter
uploader_uploads_total{outcome="succeeded"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(
		reg,
		strings.NewReader(expected),
		"uploader_bytes_sent",
		"uploader_bytes_total",
		"uploader_uploads_total",
	))
}

func TestNew_RegisteringTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := transferstats.New(reg)
	require.NoError(t, err)

	_, err = transferstats.New(reg)

	assert.ErrorContains(t, err, "registering metric")
}

func TestPush(t *testing.T) {
	pushed := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			pushed <- r.Method + " " + r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	stats, err := transferstats.New(reg)
	require.NoError(t, err)
	stats.UploadFinished("a", upload.OutcomeFailed)

	err = transferstats.Push(context.Background(), server.URL, "uploader", reg)

	require.NoError(t, err)
	assert.Equal(t, "PUT /metrics/job/uploader", <-pushed)
}

func TestPush_NoURL(t *testing.T) {
	err := transferstats.Push(
		context.Background(), "", "uploader", prometheus.NewRegistry())

	assert.Error(t, err)
}
