package httplayers

import (
	"net/http"
	"net/url"
	"strings"
)

// LimitTo returns a wrapper that only applies to requests under a base URL.
//
// If the given URL is nil, returns the wrapper.
//
// Requests must match the base URL's scheme and host (including port),
// and their path must start with its path.
func LimitTo(u *url.URL, wrapper HTTPWrapper) HTTPWrapper {
	if u == nil {
		return wrapper
	}

	return urlFilteredWrapper{u, wrapper}
}

type urlFilteredWrapper struct {
	url     *url.URL
	wrapper HTTPWrapper
}

// WrapHTTP implements HTTPWrapper.WrapHTTP.
func (w urlFilteredWrapper) WrapHTTP(send HTTPDoFunc) HTTPDoFunc {
	wrappedSend := w.wrapper.WrapHTTP(send)

	return func(req *http.Request) (*http.Response, error) {
		if !w.matches(req.URL) {
			return send(req)
		}
		return wrappedSend(req)
	}
}

func (w urlFilteredWrapper) matches(u *url.URL) bool {
	return u.Scheme == w.url.Scheme &&
		u.Host == w.url.Host &&
		strings.HasPrefix(u.Path, w.url.Path)
}
