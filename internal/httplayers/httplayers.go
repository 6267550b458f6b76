// Package httplayers composes middleware around outgoing HTTP requests.
package httplayers

import "net/http"

// HTTPDoFunc sends a request and returns its response.
type HTTPDoFunc func(req *http.Request) (*http.Response, error)

// HTTPWrapper adds behavior around sending a request.
type HTTPWrapper interface {
	// WrapHTTP returns a function that does some work around send.
	WrapHTTP(send HTTPDoFunc) HTTPDoFunc
}

// Compose combines wrappers so that the first one is outermost.
func Compose(wrappers ...HTTPWrapper) HTTPWrapper {
	return composed(wrappers)
}

type composed []HTTPWrapper

// WrapHTTP implements HTTPWrapper.WrapHTTP.
func (c composed) WrapHTTP(send HTTPDoFunc) HTTPDoFunc {
	for i := len(c) - 1; i >= 0; i-- {
		send = c[i].WrapHTTP(send)
	}
	return send
}
