package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/uploadkit/uploader/internal/httplayers"
	"github.com/uploadkit/uploader/internal/observability"
)

// HTTPTransport sends requests with a retryablehttp.Client.
//
// The client should make a single attempt per request, see
// retryableclient.NewUploadClient. Retrying would rewind the body and
// make progress go backwards.
type HTTPTransport struct {
	client *retryablehttp.Client
	logger *observability.CoreLogger
}

func NewHTTPTransport(
	client *retryablehttp.Client,
	logger *observability.CoreLogger,
) *HTTPTransport {
	return &HTTPTransport{client: client, logger: logger}
}

// Send implements Transport.Send.
func (t *HTTPTransport) Send(req *Request, events Events) Handle {
	ctx, cancel := context.WithCancel(context.Background())
	x := &exchange{events: events, cancel: cancel}

	go func() {
		defer t.logger.Reraise()
		defer cancel()
		x.run(ctx, t, req)
	}()

	return x
}

// exchange is one request sent by HTTPTransport.
type exchange struct {
	events Events
	cancel context.CancelFunc

	// aborted is set by Abort.
	aborted atomic.Bool

	// deliverMu serializes event delivery.
	//
	// Progress is reported from net/http's body writing goroutine while
	// terminal events come from the exchange's own goroutine.
	deliverMu sync.Mutex
	finished  bool
}

// Abort implements Handle.Abort.
func (x *exchange) Abort() {
	if x.aborted.CompareAndSwap(false, true) {
		x.cancel()
	}
}

func (x *exchange) run(ctx context.Context, t *HTTPTransport, req *Request) {
	var body any
	if req.Body != nil && req.Size > 0 {
		body = NewProgressReader(req.Body, req.Size, x.progress)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		x.fail(err)
		return
	}
	if body != nil {
		httpReq.ContentLength = req.Size
	}
	for _, h := range req.Header {
		httpReq.Header[h.Name] = append(httpReq.Header[h.Name], h.Value)
	}
	if req.ContentType != "" && !req.HasHeader("Content-Type") {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	t.logger.Debug(
		"transport: sending request",
		"method", req.Method,
		"url", req.URL,
		"size", req.Size,
	)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		x.fail(httplayers.URLError(httpReq.Request, err))
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Debug("transport: error closing response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		x.fail(httplayers.URLError(httpReq.Request, err))
		return
	}

	// An abort requested while the response was being read wins over it.
	if x.aborted.Load() {
		x.finish(x.events.OnAbort)
		return
	}

	completion := &Completion{
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		RawHeaders: RawHeaders(resp.Header),
		Body:       respBody,
	}
	x.finish(func() { x.events.OnLoad(completion) })
}

// progress reports body progress unless the request is over.
func (x *exchange) progress(loaded, total int64) {
	x.deliverMu.Lock()
	defer x.deliverMu.Unlock()

	if x.finished || x.aborted.Load() {
		return
	}
	x.events.OnProgress(loaded, total)
}

// fail delivers OnAbort if the failure was caused by Abort, and OnError
// otherwise.
func (x *exchange) fail(err error) {
	if x.aborted.Load() || errors.Is(err, context.Canceled) {
		x.finish(x.events.OnAbort)
		return
	}
	x.finish(func() { x.events.OnError(err) })
}

// finish delivers a terminal event unless one was already delivered.
func (x *exchange) finish(deliver func()) {
	x.deliverMu.Lock()
	defer x.deliverMu.Unlock()

	if x.finished {
		return
	}
	x.finished = true
	deliver()
}

// RawHeaders formats headers as newline-delimited "Name: Value" lines,
// one line per value, sorted by name.
func RawHeaders(header http.Header) string {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		for _, value := range header[name] {
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

// statusText returns the reason phrase of the response, such as "OK".
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text, ok := strings.CutPrefix(resp.Status, code+" "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
