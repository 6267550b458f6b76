// Package transport is a low-level, event-driven HTTP request primitive.
//
// A request is sent in the background and reports what happens to it through
// discrete events: any number of progress events followed by exactly one of
// load, error or abort.
package transport

import (
	"fmt"
	"io"
	"strings"
)

// Events receives notifications about a request sent by a Transport.
//
// Methods are called from goroutines owned by the transport, one at a time.
// After OnLoad, OnError or OnAbort is called, no more methods are called.
type Events interface {
	// OnProgress reports the number of request body bytes sent so far and
	// the total number of bytes to send.
	OnProgress(loaded, total int64)

	// OnLoad reports that a response was received, whatever its status.
	OnLoad(completion *Completion)

	// OnError reports a failure at the network level.
	OnError(err error)

	// OnAbort reports that the request was cancelled with Handle.Abort.
	OnAbort()
}

// Transport sends requests.
type Transport interface {
	// Send starts sending the request and returns immediately.
	Send(req *Request, events Events) Handle
}

// Handle controls a request that is being sent.
type Handle interface {
	// Abort cancels the request.
	//
	// If no terminal event was delivered yet, OnAbort is delivered next,
	// asynchronously. Calling Abort more than once has no further effect.
	Abort()
}

// Header is a single request header, sent exactly as given.
type Header struct {
	Name  string
	Value string
}

// Request describes an outgoing request.
type Request struct {
	// Method is the HTTP method, such as "POST".
	Method string

	// URL is the destination of the request.
	URL string

	// Header lists the headers to send, in order. Names are not canonicalized.
	Header []Header

	// Body is the request body, or nil if there is none.
	//
	// It is rewound to the start before sending.
	Body io.ReadSeeker

	// Size is the number of bytes in Body.
	Size int64

	// ContentType is sent as the Content-Type header unless Header already
	// contains one.
	ContentType string
}

// HasHeader reports whether the request has a header with the given name,
// ignoring case.
func (r *Request) HasHeader(name string) bool {
	for _, h := range r.Header {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// Completion is the transport's view of a received response.
type Completion struct {
	// Status is the numeric HTTP status code.
	Status int

	// StatusText is the reason phrase, such as "OK".
	StatusText string

	// RawHeaders is every response header as newline-delimited
	// "Name: Value" lines.
	RawHeaders string

	// Body is the entire response body.
	Body []byte
}

func (c *Completion) String() string {
	return fmt.Sprintf("Completion{Status: %d %s, Body: %d bytes}",
		c.Status, c.StatusText, len(c.Body))
}
