package httplayers

import (
	"errors"
	"net/http"
	"net/url"
)

// URLError wraps an error in a *url.Error for a request.
//
// Neither the request nor the error may be nil.
//
// If the error already contains a *url.Error, that one is returned.
// Otherwise, the request's method and URL become the Op and URL.
func URLError(req *http.Request, err error) *url.Error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr
	}

	return &url.Error{
		Op:  req.Method,
		URL: req.URL.String(),
		Err: err,
	}
}
