package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisJSON = `{"visualDescription":"rainy alley","shotSize":"wide shot",` +
	`"cameraMovement":"slow dolly","lightingAndColor":"cold neon","soundAtmosphere":"rain",` +
	`"aiPrompt":"neo-noir alley in the rain"}`

func analysisResponseBody() string {
	// The model's structured output rides inside a text part.
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}}]}`, analysisJSON)
}

func testFrame() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
}

func testClient(baseURL string, attempts int) *Client {
	return NewClient(ClientOpts{
		Credentials:  Credentials{Key: "sk-test", BaseURL: baseURL},
		MaxAttempts:  attempts,
		InitialDelay: 5 * time.Millisecond,
		MinSpacing:   time.Millisecond,
	})
}

func TestAnalyzeFailsFastWithoutCredentials(t *testing.T) {
	client := NewClient(ClientOpts{})

	start := time.Now()
	_, err := client.Analyze(context.Background(), testFrame())
	require.Error(t, err)

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ErrAuth, classified.Kind)
	assert.False(t, classified.Retriable)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "must not attempt network")
}

func TestGenerateImageFailsFastWithoutCredentials(t *testing.T) {
	client := NewClient(ClientOpts{})
	_, err := client.GenerateImage(context.Background(), "a hallway")

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ErrAuth, classified.Kind)
}

func TestAnalyzeEndToEndThroughProxy(t *testing.T) {
	var requests atomic.Int32
	var auth, apiKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		auth = r.Header.Get("Authorization")
		apiKey = r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, analysisResponseBody())
	}))
	defer ts.Close()

	client := testClient(ts.URL, 1)
	analysis, err := client.Analyze(context.Background(), testFrame())
	require.NoError(t, err)

	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "sk-test", apiKey)
	assert.Equal(t, "wide shot", analysis.ShotSize)
	assert.Equal(t, "neo-noir alley in the rain", analysis.AIPrompt)
}

func TestAnalyzeRetriesRateLimitThenSucceeds(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
			return
		}
		fmt.Fprint(w, analysisResponseBody())
	}))
	defer ts.Close()

	client := testClient(ts.URL, 3)
	analysis, err := client.Analyze(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, "rainy alley", analysis.VisualDescription)
}

func TestAnalyzeDoesNotRetryAuthError(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer ts.Close()

	client := testClient(ts.URL, 3)
	_, err := client.Analyze(context.Background(), testFrame())
	require.Error(t, err)

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ErrAuth, classified.Kind)
	assert.Equal(t, int32(1), requests.Load(), "non-retriable errors must not be retried")
}

func TestGenerateImageEndToEnd(t *testing.T) {
	imageBytes := []byte("png-bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[`+
			`{"inlineData":{"mimeType":"image/png","data":%q}}]}}]}`,
			base64.StdEncoding.EncodeToString(imageBytes))
	}))
	defer ts.Close()

	client := testClient(ts.URL, 1)
	uri, err := client.GenerateImage(context.Background(), "neo-noir alley")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(imageBytes), uri)
}

func TestGenerateImageSafetyRefusal(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[`+
			`{"text":"I cannot generate this image due to content policy."}]}}]}`)
	}))
	defer ts.Close()

	client := testClient(ts.URL, 3)
	_, err := client.GenerateImage(context.Background(), "something grim")
	require.Error(t, err)

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ErrSafetyRefusal, classified.Kind)
	assert.Equal(t, int32(1), requests.Load(), "refusals must not be retried")
}

func TestGenerateImageEmptyResponseIsMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer ts.Close()

	client := testClient(ts.URL, 1)
	_, err := client.GenerateImage(context.Background(), "anything")

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, ErrMalformedResponse, classified.Kind)
}

func TestSplitDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("img"))

	mimeType, data, err := splitDataURI("data:image/png;base64," + payload)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, []byte("img"), data)

	// Bare base64 defaults to JPEG.
	mimeType, data, err = splitDataURI(payload)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mimeType)
	assert.Equal(t, []byte("img"), data)

	_, _, err = splitDataURI("data:image/png;base64")
	assert.Error(t, err)

	_, _, err = splitDataURI("data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)
}

func TestAuthSchemeOverride(t *testing.T) {
	scheme := AuthNative
	client := NewClient(ClientOpts{
		Credentials: Credentials{Key: "sk-looks-like-proxy"},
		AuthScheme:  &scheme,
	})
	assert.Equal(t, AuthNative, client.resolve().Scheme)
}
