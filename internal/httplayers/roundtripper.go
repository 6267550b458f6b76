package httplayers

import "net/http"

// WrapRoundTripper applies an HTTPWrapper to a RoundTripper.
//
// RoundTrippers are not supposed to inspect responses, but HTTPWrappers
// may. This is acceptable here because the retryablehttp.Client used for
// uploads only exposes its Transport as an extension point.
func WrapRoundTripper(
	rt http.RoundTripper,
	wrapper HTTPWrapper,
) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return wrappedRoundTripper{wrapper.WrapHTTP(rt.RoundTrip)}
}

type wrappedRoundTripper struct {
	fn HTTPDoFunc
}

// RoundTrip implements http.RoundTripper.RoundTrip.
func (rt wrappedRoundTripper) RoundTrip(
	req *http.Request,
) (*http.Response, error) {
	return rt.fn(req)
}
