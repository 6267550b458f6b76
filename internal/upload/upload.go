// Package upload sends a payload in an HTTP POST request while reporting
// progress, and allows cancelling it midway.
package upload

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/uploadkit/uploader/internal/observability"
	"github.com/uploadkit/uploader/internal/retryableclient"
	"github.com/uploadkit/uploader/internal/transport"
)

// ProgressListener is called with the number of bytes sent so far and the
// total number of bytes to send.
//
// It runs on a transport goroutine and must not block.
type ProgressListener func(sent, total int64)

type state int

const (
	stateIdle state = iota
	stateInFlight
	stateSucceeded
	stateAborted
	stateFailed
)

// Upload is a single attempt at uploading a payload.
//
// An Upload is started at most once. After it succeeds, fails or is aborted,
// it only serves to read the final byte counts.
type Upload struct {
	id          string
	destination string
	payload     Payload
	headers     []transport.Header

	transport transport.Transport
	logger    *observability.CoreLogger
	observer  Observer

	// deliverMu serializes calls to the listener and terminal transitions.
	//
	// It is acquired before mu when both are needed.
	deliverMu sync.Mutex

	mu             sync.Mutex
	state          state
	listener       ProgressListener
	sent, total    int64
	handle         transport.Handle
	future         *Future
	abortRequested bool
}

type Option func(*Upload)

// WithTransport sets the transport used to send the request.
func WithTransport(t transport.Transport) Option {
	return func(u *Upload) { u.transport = t }
}

// WithLogger sets the logger, which otherwise discards messages.
func WithLogger(logger *observability.CoreLogger) Option {
	return func(u *Upload) { u.logger = logger }
}

// WithObserver reports the upload's progress and outcome to an observer.
func WithObserver(observer Observer) Option {
	return func(u *Upload) { u.observer = observer }
}

// defaultTransport is used by uploads created without WithTransport.
var defaultTransport = sync.OnceValue(func() transport.Transport {
	logger := observability.NewNoOpLogger()
	return transport.NewHTTPTransport(retryableclient.NewUploadClient(), logger)
})

// New prepares an upload of the payload to the destination URL.
//
// The headers are sent exactly as given. Nothing is sent until Start.
func New(
	destination string,
	payload Payload,
	headers map[string]string,
	opts ...Option,
) *Upload {
	u := &Upload{
		id:          uuid.NewString(),
		destination: destination,
		payload:     payload,
		headers:     sortedHeaders(headers),
	}

	for _, opt := range opts {
		opt(u)
	}

	if u.transport == nil {
		u.transport = defaultTransport()
	}
	if u.logger == nil {
		u.logger = observability.NewNoOpLogger()
	}
	u.logger = u.logger.With("upload_id", u.id)

	return u
}

func sortedHeaders(headers map[string]string) []transport.Header {
	result := make([]transport.Header, 0, len(headers))
	for name, value := range headers {
		result = append(result, transport.Header{Name: name, Value: value})
	}
	slices.SortFunc(result, func(a, b transport.Header) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return result
}

// ID identifies the upload in logs and metrics.
func (u *Upload) ID() string {
	return u.id
}

// SetListener registers the progress listener, replacing any previous one.
//
// To see every progress event, call it before Start.
func (u *Upload) SetListener(listener ProgressListener) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listener = listener
}

// SentBytes returns the number of bytes sent as of the last progress event.
func (u *Upload) SentBytes() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sent
}

// TotalBytes returns the number of bytes to send as of the last progress
// event, or the payload size once started if no event arrived yet.
func (u *Upload) TotalBytes() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.total
}

// Start sends the request in the background and returns its future.
//
// The future resolves with the response for any status code, or is
// rejected with ErrAborted or a *TransportError. Calling Start again returns
// the same future.
func (u *Upload) Start() *Future {
	u.mu.Lock()
	if u.future != nil {
		defer u.mu.Unlock()
		return u.future
	}
	u.future = newFuture()
	u.state = stateInFlight
	u.total = u.payload.size
	future := u.future
	u.mu.Unlock()

	u.logger.Debug(
		"upload: starting",
		"url", u.destination,
		"size", u.payload.size,
	)

	// Holding deliverMu makes events wait until the handle is recorded.
	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()

	handle := u.transport.Send(
		&transport.Request{
			Method:      "POST",
			URL:         u.destination,
			Header:      u.headers,
			Body:        u.payload.body,
			Size:        u.payload.size,
			ContentType: u.payload.contentType,
		},
		(*events)(u),
	)

	u.mu.Lock()
	u.handle = handle
	abortRequested := u.abortRequested
	u.mu.Unlock()

	if abortRequested {
		handle.Abort()
	}

	return future
}

// Abort cancels the upload.
//
// If the upload is in flight, its future is rejected with ErrAborted unless
// the transport completed first, and the listener is not called again.
// Otherwise, Abort does nothing.
//
// Abort may be called from any goroutine, including from the listener.
func (u *Upload) Abort() {
	u.mu.Lock()
	if u.state != stateInFlight || u.abortRequested {
		u.mu.Unlock()
		return
	}
	u.abortRequested = true
	handle := u.handle
	u.mu.Unlock()

	u.logger.Debug("upload: aborting")

	// If the handle is not recorded yet, Start aborts it.
	if handle != nil {
		handle.Abort()
	}
}

// events adapts transport events to the upload's state machine.
type events Upload

// OnProgress implements transport.Events.OnProgress.
func (e *events) OnProgress(loaded, total int64) {
	u := (*Upload)(e)

	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()

	u.mu.Lock()
	if u.state != stateInFlight || u.abortRequested {
		u.mu.Unlock()
		return
	}
	if total > 0 {
		loaded = min(loaded, total)
	}
	if total == u.total {
		loaded = max(loaded, u.sent)
	}
	u.sent, u.total = loaded, total
	listener := u.listener
	u.mu.Unlock()

	if u.observer != nil {
		u.observer.UploadProgress(u.id, loaded, total)
	}
	if listener != nil {
		listener(loaded, total)
	}
}

// OnLoad implements transport.Events.OnLoad.
func (e *events) OnLoad(completion *transport.Completion) {
	u := (*Upload)(e)

	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()

	u.mu.Lock()
	if u.state != stateInFlight {
		u.mu.Unlock()
		return
	}
	if u.handle == nil {
		u.mu.Unlock()
		u.logger.CaptureFatalAndPanic(
			errors.New("upload: request completed without a transport handle"))
	}
	u.state = stateSucceeded
	u.handle = nil
	u.sent = u.total
	sent, total := u.sent, u.total
	listener := u.listener
	u.mu.Unlock()

	if u.observer != nil {
		u.observer.UploadProgress(u.id, sent, total)
	}
	if listener != nil {
		listener(sent, total)
	}

	u.logger.Debug(
		"upload: finished",
		"status", completion.Status,
		"bytes", total,
	)
	u.settle(OutcomeSucceeded, newResponse(completion), nil)
}

// OnError implements transport.Events.OnError.
func (e *events) OnError(err error) {
	u := (*Upload)(e)

	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()

	if !u.finish(stateFailed) {
		return
	}

	u.logger.CaptureError(
		fmt.Errorf("upload: failed: %v", err),
		"url", u.destination,
	)
	u.settle(OutcomeFailed, nil, &TransportError{Err: err})
}

// OnAbort implements transport.Events.OnAbort.
func (e *events) OnAbort() {
	u := (*Upload)(e)

	u.deliverMu.Lock()
	defer u.deliverMu.Unlock()

	if !u.finish(stateAborted) {
		return
	}

	u.logger.Debug("upload: aborted", "sent", u.SentBytes())
	u.settle(OutcomeAborted, nil, ErrAborted)
}

// finish moves an in-flight upload to a terminal state.
//
// Returns false if the upload was not in flight.
func (u *Upload) finish(terminal state) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state != stateInFlight {
		return false
	}
	u.state = terminal
	u.handle = nil
	return true
}

func (u *Upload) settle(outcome Outcome, resp *Response, err error) {
	if !u.future.settle(resp, err) {
		u.logger.CaptureWarn("upload: future settled twice", "outcome", outcome)
		return
	}

	if u.observer != nil {
		u.observer.UploadFinished(u.id, outcome)
	}
}
