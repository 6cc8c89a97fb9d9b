package gemini

import (
	"net/http"
)

// authTransport attaches credentials to requests bound for the resolved
// endpoint and passes every other request through untouched. It is
// installed on a per-endpoint http.Client rather than on any shared
// transport, so two in-flight calls with different credentials can never
// see each other's headers.
type authTransport struct {
	endpoint ResolvedEndpoint
	base     http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != t.endpoint.Host() {
		return t.base.RoundTrip(req)
	}

	// RoundTrippers must not mutate the caller's request.
	clone := req.Clone(req.Context())

	// Both conventions are set additively: proxies want the bearer form,
	// the provider behind them still accepts its native header, and a
	// header already present always wins. The bearer header is sent even
	// with an empty key, since some proxies authenticate by other means
	// but still reject requests missing the Authorization header.
	if clone.Header.Get("Authorization") == "" {
		clone.Header.Set("Authorization", "Bearer "+t.endpoint.Key)
	}
	if t.endpoint.Key != "" && clone.Header.Get("x-goog-api-key") == "" {
		clone.Header.Set("x-goog-api-key", t.endpoint.Key)
	}

	// The SDK appends the key as a query parameter in some code paths.
	// Proxies log URLs, so the credential rides in headers only.
	if q := clone.URL.Query(); q.Has("key") {
		q.Del("key")
		clone.URL.RawQuery = q.Encode()
	}

	return t.base.RoundTrip(clone)
}

// httpClient builds the *http.Client for an endpoint. The native scheme
// without a base URL override needs no interception at all: the SDK
// carries the key itself.
func httpClient(endpoint ResolvedEndpoint) *http.Client {
	if endpoint.Scheme == AuthNative && endpoint.BaseURL == "" {
		return &http.Client{}
	}
	return &http.Client{
		Transport: &authTransport{
			endpoint: endpoint,
			base:     http.DefaultTransport,
		},
	}
}
