package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

// Substring tables for error-shape sniffing. Provider error text is not a
// stable contract, so every match lives here and nowhere else.
var (
	rateLimitMarkers = []string{"429", "resource_exhausted", "rate limit", "quota"}
	serverMarkers    = []string{"500", "502", "503", "504", "internal error", "overloaded", "unavailable"}
	networkMarkers   = []string{"connection reset", "connection refused", "broken pipe", "no such host", "eof", "timeout", "network"}
	authMarkers      = []string{"api key", "api_key_invalid", "unauthorized", "unauthenticated", "permission"}
	refusalMarkers   = []string{"cannot", "can't", "unable", "policy", "refus", "not able"}
)

func matchesAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// ClassifyError maps an arbitrary failure from the provider call path to a
// typed Error. Already-classified errors pass through unchanged. First
// match wins: rate limit, then server, then network; everything else is
// non-retriable and keeps its original text.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	msg := err.Error()
	code := 0

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
		if m := envelopeMessage(apiErr.Message); m != "" {
			msg = m
		} else if apiErr.Message != "" {
			msg = apiErr.Message
		}
	}

	lower := strings.ToLower(msg)

	switch {
	case code == 429 || matchesAny(lower, rateLimitMarkers):
		return newError(ErrRateLimit, fmt.Sprintf("rate limited by provider: %s", msg), true)
	case code >= 500 || matchesAny(lower, serverMarkers):
		return newError(ErrServerError, fmt.Sprintf("provider server error: %s", msg), true)
	case isNetworkError(err) || matchesAny(lower, networkMarkers):
		return newError(ErrNetwork, fmt.Sprintf("network failure: %s", msg), true)
	case code == 401 || code == 403 || matchesAny(lower, authMarkers):
		return newError(ErrAuth, msg, false)
	default:
		return newError(ErrUnknown, msg, false)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// envelopeMessage digs the human-readable message out of a JSON error
// envelope ({"error":{"message":...}}), which some proxies return as the
// whole body. Returns "" when the text is not such an envelope.
func envelopeMessage(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return ""
	}
	if m := gjson.Get(trimmed, "error.message"); m.Exists() {
		return m.String()
	}
	return ""
}

var htmlTitleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// extractHTMLTitle pulls the <title> text out of an HTML error page.
func extractHTMLTitle(body string) string {
	m := htmlTitleRe.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ParseAnalysis parses the model's structured-output text into an
// Analysis. A body that is not the expected JSON is classified rather
// than surfaced raw: HTML means some intermediary answered instead of the
// provider, and an empty body is a failure, never a vacuous success.
func ParseAnalysis(text string) (*Analysis, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return nil, newError(ErrMalformedResponse, "empty response from provider", false)
	}

	var a Analysis
	if err := json.Unmarshal([]byte(trimmed), &a); err != nil {
		if strings.HasPrefix(trimmed, "<") {
			if title := extractHTMLTitle(trimmed); title != "" {
				return nil, newError(ErrMalformedResponse,
					fmt.Sprintf("proxy returned an error page: %s", title), false)
			}
			return nil, newError(ErrMalformedResponse, "proxy returned an HTML error page", false)
		}
		return nil, newError(ErrMalformedResponse,
			fmt.Sprintf("response is not valid analysis JSON: %v", err), false)
	}

	return &a, nil
}

// classifyImageOutcome turns an image response without inline data into
// the right failure: refusal text means content filtering, anything else
// means the provider answered with the wrong shape.
func classifyImageOutcome(responseText string) *Error {
	lower := strings.ToLower(strings.TrimSpace(responseText))
	if lower != "" && matchesAny(lower, refusalMarkers) {
		return newError(ErrSafetyRefusal,
			fmt.Sprintf("image generation refused: %s", strings.TrimSpace(responseText)), false)
	}
	return newError(ErrMalformedResponse, "no image data in provider response", false)
}
