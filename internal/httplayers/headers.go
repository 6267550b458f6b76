package httplayers

import (
	"net/http"
	"strings"
)

// ExtraHeaders adds the given headers to every request that doesn't
// already set them.
func ExtraHeaders(headers http.Header) HTTPWrapper {
	return extraHeaders{headers}
}

type extraHeaders struct {
	headers http.Header
}

// WrapHTTP implements HTTPWrapper.WrapHTTP.
func (h extraHeaders) WrapHTTP(send HTTPDoFunc) HTTPDoFunc {
	return func(req *http.Request) (*http.Response, error) {
		for name, values := range h.headers {
			if !hasHeader(req.Header, name) {
				req.Header[name] = values
			}
		}
		return send(req)
	}
}

// hasHeader reports whether the header has a value under any spelling of
// name, including non-canonical keys set directly on the map.
func hasHeader(header http.Header, name string) bool {
	for key, values := range header {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return true
		}
	}
	return false
}
