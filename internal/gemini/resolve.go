package gemini

import (
	"strings"
)

// DefaultHost is the host the genai SDK talks to when no base URL override
// is configured.
const DefaultHost = "generativelanguage.googleapis.com"

// AuthScheme selects which authentication convention requests carry.
type AuthScheme int

const (
	// AuthNative uses the provider's own x-goog-api-key convention.
	AuthNative AuthScheme = iota
	// AuthBearerProxy uses Authorization: Bearer, required by most
	// OpenAI-compatible relay proxies.
	AuthBearerProxy
)

func (s AuthScheme) String() string {
	if s == AuthBearerProxy {
		return "bearer-proxy"
	}
	return "native"
}

// proxyKeyPrefix is the key shape handed out by relay proxies. Native
// Gemini keys start with "AIza", so the prefix is an unambiguous signal
// that bearer auth is expected even without a base URL override.
const proxyKeyPrefix = "sk-"

// versionSegments are trailing path segments stripped from a configured
// base URL so the client does not end up with e.g. /v1beta/v1beta/models.
var versionSegments = []string{"/v1beta", "/v1alpha", "/v1"}

// Credentials is the raw pair the settings layer hands us.
type Credentials struct {
	Key     string
	BaseURL string
}

// Empty reports whether there is nothing to authenticate with.
func (c Credentials) Empty() bool {
	return strings.TrimSpace(c.Key) == "" && strings.TrimSpace(c.BaseURL) == ""
}

// ResolvedEndpoint is the normalized form of Credentials. It is cheap to
// compute and recomputed on every call, since settings can change between
// calls.
type ResolvedEndpoint struct {
	Key     string
	BaseURL string // empty means the provider default endpoint
	Scheme  AuthScheme
}

// Host returns the host requests will actually hit.
func (r ResolvedEndpoint) Host() string {
	if r.BaseURL == "" {
		return DefaultHost
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(r.BaseURL, "https://"), "http://")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// Resolve normalizes raw credentials into an endpoint. It never fails:
// malformed input degrades to best-effort normalization. The returned
// Scheme is an auto-detected default; callers that know better may
// overwrite it before building a client.
func Resolve(creds Credentials) ResolvedEndpoint {
	key := strings.TrimSpace(creds.Key)
	base := strings.TrimSpace(creds.BaseURL)

	if base != "" {
		if !strings.Contains(base, "://") {
			base = "https://" + base
		}
		base = strings.TrimSuffix(base, "/")
		for _, seg := range versionSegments {
			if strings.HasSuffix(base, seg) {
				base = strings.TrimSuffix(base, seg)
				break
			}
		}
	}

	scheme := AuthNative
	if base != "" || strings.HasPrefix(key, proxyKeyPrefix) {
		scheme = AuthBearerProxy
	}

	return ResolvedEndpoint{Key: key, BaseURL: base, Scheme: scheme}
}
