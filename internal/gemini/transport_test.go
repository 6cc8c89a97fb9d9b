package gemini

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportInjectsBothHeadersForMatchingHost(t *testing.T) {
	var seen *http.Request
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
	}))
	defer live.Close()

	endpoint := Resolve(Credentials{Key: "sk-secret", BaseURL: live.URL})

	req, err := http.NewRequest(http.MethodGet, live.URL+"/v1beta/models?key=abc", nil)
	require.NoError(t, err)
	res, err := httpClient(endpoint).Do(req)
	require.NoError(t, err)
	res.Body.Close()

	require.NotNil(t, seen)
	assert.Equal(t, "Bearer sk-secret", seen.Header.Get("Authorization"))
	assert.Equal(t, "sk-secret", seen.Header.Get("x-goog-api-key"))
	assert.False(t, seen.URL.Query().Has("key"), "redundant key query parameter must be stripped")
}

func TestTransportLeavesUnrelatedHostsAlone(t *testing.T) {
	var seen *http.Request
	unrelated := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
	}))
	defer unrelated.Close()

	// Endpoint resolves to a different host than the one being called.
	endpoint := Resolve(Credentials{Key: "sk-secret", BaseURL: "https://proxy.example"})

	req, err := http.NewRequest(http.MethodGet, unrelated.URL+"/other?key=keep", nil)
	require.NoError(t, err)
	res, err := httpClient(endpoint).Do(req)
	require.NoError(t, err)
	res.Body.Close()

	require.NotNil(t, seen)
	assert.Empty(t, seen.Header.Get("Authorization"))
	assert.Empty(t, seen.Header.Get("x-goog-api-key"))
	assert.Equal(t, "keep", seen.URL.Query().Get("key"))
}

func TestTransportDoesNotClobberExistingHeaders(t *testing.T) {
	var seen *http.Request
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
	}))
	defer live.Close()

	endpoint := Resolve(Credentials{Key: "sk-secret", BaseURL: live.URL})

	req, err := http.NewRequest(http.MethodGet, live.URL+"/v1beta/models", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer already-there")
	req.Header.Set("x-goog-api-key", "already-there")

	res, err := httpClient(endpoint).Do(req)
	require.NoError(t, err)
	res.Body.Close()

	require.NotNil(t, seen)
	assert.Equal(t, "Bearer already-there", seen.Header.Get("Authorization"))
	assert.Equal(t, "already-there", seen.Header.Get("x-goog-api-key"))
}

func TestTransportBearerHeaderSentEvenWithEmptyKey(t *testing.T) {
	var seen *http.Request
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
	}))
	defer live.Close()

	endpoint := Resolve(Credentials{Key: "", BaseURL: live.URL})
	assert.Equal(t, AuthBearerProxy, endpoint.Scheme)

	req, err := http.NewRequest(http.MethodGet, live.URL+"/v1beta/models", nil)
	require.NoError(t, err)
	res, err := httpClient(endpoint).Do(req)
	require.NoError(t, err)
	res.Body.Close()

	require.NotNil(t, seen)
	assert.Equal(t, "Bearer ", seen.Header.Get("Authorization"))
	assert.Empty(t, seen.Header.Get("x-goog-api-key"))
}

func TestHTTPClientNativeWithoutBaseURLIsPlain(t *testing.T) {
	client := httpClient(Resolve(Credentials{Key: "AIzaX"}))
	assert.Nil(t, client.Transport, "native scheme without base URL must not install an interceptor")
}
