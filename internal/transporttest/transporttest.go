// Testability for the transport package.
package transporttest

import (
	"slices"
	"sync"

	"github.com/uploadkit/uploader/internal/transport"
)

// FakeTransport records requests and lets tests deliver their events.
type FakeTransport struct {
	mu      sync.Mutex
	handles []*FakeHandle

	// ManualAbort makes Abort only record the call; the test delivers the
	// abort event with FakeHandle.DeliverAbort.
	ManualAbort bool
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// Handles returns a handle per request sent so far.
func (t *FakeTransport) Handles() []*FakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.handles)
}

// Last returns the handle of the most recent request, or nil.
func (t *FakeTransport) Last() *FakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.handles) == 0 {
		return nil
	}
	return t.handles[len(t.handles)-1]
}

// Send implements transport.Transport.Send.
func (t *FakeTransport) Send(
	req *transport.Request,
	events transport.Events,
) transport.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := &FakeHandle{
		Request:     req,
		events:      events,
		manualAbort: t.ManualAbort,
	}
	t.handles = append(t.handles, h)
	return h
}

// FakeHandle is a request sent through a FakeTransport.
//
// Event methods deliver straight to the sender without any checks, so
// tests can simulate misbehaving transports.
type FakeHandle struct {
	Request *transport.Request

	events      transport.Events
	manualAbort bool

	mu         sync.Mutex
	abortCalls int
}

// AbortCalls returns the number of times Abort was called.
func (h *FakeHandle) AbortCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.abortCalls
}

// Abort implements transport.Handle.Abort.
func (h *FakeHandle) Abort() {
	h.mu.Lock()
	h.abortCalls++
	first := h.abortCalls == 1
	h.mu.Unlock()

	if first && !h.manualAbort {
		go h.events.OnAbort()
	}
}

func (h *FakeHandle) Progress(loaded, total int64) { h.events.OnProgress(loaded, total) }
func (h *FakeHandle) Load(c *transport.Completion) { h.events.OnLoad(c) }
func (h *FakeHandle) Error(err error)              { h.events.OnError(err) }
func (h *FakeHandle) DeliverAbort()                { h.events.OnAbort() }
