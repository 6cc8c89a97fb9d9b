package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/okarvi/cinelens/internal/requestq"
	"github.com/okarvi/cinelens/internal/retry"
)

const (
	defaultAnalysisModel = "gemini-3-flash-preview"
	defaultImageModel    = "gemini-2.5-flash-image"
)

var analysisPrompt = strings.TrimSpace(dedent.Dedent(`
	You are a film director and cinematographer. Analyze this single frame
	sampled from a video and describe it in cinematographic terms.

	Respond in JSON with these fields:
	- visualDescription: what is in the frame, composition and subject
	- shotSize: the shot size (e.g. extreme close-up, close-up, medium shot, full shot, wide shot)
	- cameraMovement: the most plausible camera movement for this shot (e.g. static, pan, tilt, dolly, handheld)
	- lightingAndColor: lighting setup, color palette and mood
	- soundAtmosphere: the sound and atmosphere this frame implies
	- aiPrompt: a single self-contained text-to-image prompt that would recreate this frame in a stylized form

	Respond ONLY with the JSON object, no markdown or other text.`))

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"visualDescription": {Type: genai.TypeString},
		"shotSize":          {Type: genai.TypeString},
		"cameraMovement":    {Type: genai.TypeString},
		"lightingAndColor":  {Type: genai.TypeString},
		"soundAtmosphere":   {Type: genai.TypeString},
		"aiPrompt":          {Type: genai.TypeString},
	},
	Required: []string{
		"visualDescription", "shotSize", "cameraMovement",
		"lightingAndColor", "soundAtmosphere", "aiPrompt",
	},
}

// Film stills legitimately contain violence and suggestive content, so
// every category is set to its most permissive threshold. A refusal that
// still gets through is surfaced as a safety error, never retried.
var permissiveSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
}

// ClientOpts configures a Client. Zero values get sensible defaults.
type ClientOpts struct {
	Credentials Credentials

	// AuthScheme overrides auto-detection when set. Detection is a
	// heuristic (proxy key prefix sniffing), so callers who know their
	// deployment can pin the scheme.
	AuthScheme *AuthScheme

	MaxConcurrency int
	MinSpacing     time.Duration
	MaxAttempts    int
	InitialDelay   time.Duration

	AnalysisModel string
	ImageModel    string
}

// Client issues analysis and image-generation calls against Gemini or a
// user-configured proxy. Every call goes queue -> retry -> intercepted
// HTTP, and every failure comes back as a classified *Error.
type Client struct {
	opts  ClientOpts
	queue *requestq.Queue

	analyzePolicy retry.Policy
	imagePolicy   retry.Policy
}

// NewClient creates a client. Credentials are re-resolved on each call so
// settings changes take effect without rebuilding the client.
func NewClient(opts ClientOpts) *Client {
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = 2
	}
	if opts.MinSpacing == 0 {
		opts.MinSpacing = 500 * time.Millisecond
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay == 0 {
		opts.InitialDelay = 2 * time.Second
	}
	if opts.AnalysisModel == "" {
		opts.AnalysisModel = defaultAnalysisModel
	}
	if opts.ImageModel == "" {
		opts.ImageModel = defaultImageModel
	}

	return &Client{
		opts:  opts,
		queue: requestq.New(opts.MaxConcurrency, opts.MinSpacing),
		analyzePolicy: retry.Policy{
			MaxAttempts:  opts.MaxAttempts,
			InitialDelay: opts.InitialDelay,
			Exponential:  true,
		},
		// Image generation retries on a fixed cadence: its transient
		// failures are capacity blips, not sustained rate limiting.
		imagePolicy: retry.Policy{
			MaxAttempts:  opts.MaxAttempts,
			InitialDelay: opts.InitialDelay,
			Exponential:  false,
		},
	}
}

func (c *Client) resolve() ResolvedEndpoint {
	resolved := Resolve(c.opts.Credentials)
	if c.opts.AuthScheme != nil {
		resolved.Scheme = *c.opts.AuthScheme
	}
	return resolved
}

// genaiClient builds a per-endpoint SDK client whose HTTP path runs
// through the auth interceptor. The SDK refuses to construct without an
// API key; when only a proxy base URL is configured the real credential
// situation is handled by the interceptor, so a placeholder satisfies the
// constructor.
func (c *Client) genaiClient(ctx context.Context, resolved ResolvedEndpoint) (*genai.Client, error) {
	apiKey := resolved.Key
	if apiKey == "" {
		apiKey = "unused"
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient(resolved),
	}
	if resolved.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = resolved.BaseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}
	return client, nil
}

// Analyze sends one frame (a base64 data URI) for cinematographic
// analysis and returns the parsed six-field record.
func (c *Client) Analyze(ctx context.Context, frame string) (*Analysis, error) {
	if c.opts.Credentials.Empty() {
		return nil, newError(ErrAuth, "no API key or proxy base URL configured", false)
	}
	resolved := c.resolve()

	result, err := requestq.Do(ctx, c.queue, func() (*Analysis, error) {
		return retry.Do(ctx, c.analyzePolicy, func() (*Analysis, error) {
			a, err := c.analyzeOnce(ctx, resolved, frame)
			if err != nil {
				return nil, ClassifyError(err)
			}
			return a, nil
		})
	})
	if err != nil {
		classified := ClassifyError(err)
		log.Error().Str("kind", classified.Kind.String()).Err(classified).Msg("frame analysis failed")
		return nil, classified
	}
	return result, nil
}

func (c *Client) analyzeOnce(ctx context.Context, resolved ResolvedEndpoint, frame string) (*Analysis, error) {
	mimeType, data, err := splitDataURI(frame)
	if err != nil {
		return nil, newError(ErrMalformedResponse, fmt.Sprintf("bad frame payload: %v", err), false)
	}

	client, err := c.genaiClient(ctx, resolved)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(analysisPrompt),
		{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
	}

	result, err := client.Models.GenerateContent(ctx, c.opts.AnalysisModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, err
	}

	return ParseAnalysis(result.Text())
}

// GenerateImage regenerates a stylized frame from an analysis prompt and
// returns it as a base64 data URI. A response without inline image data
// is a failure, not an empty success.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if c.opts.Credentials.Empty() {
		return "", newError(ErrAuth, "no API key or proxy base URL configured", false)
	}
	resolved := c.resolve()

	result, err := requestq.Do(ctx, c.queue, func() (string, error) {
		return retry.Do(ctx, c.imagePolicy, func() (string, error) {
			uri, err := c.generateImageOnce(ctx, resolved, prompt)
			if err != nil {
				return "", ClassifyError(err)
			}
			return uri, nil
		})
	})
	if err != nil {
		classified := ClassifyError(err)
		log.Error().Str("kind", classified.Kind.String()).Err(classified).Msg("image generation failed")
		return "", classified
	}
	return result, nil
}

func (c *Client) generateImageOnce(ctx context.Context, resolved ResolvedEndpoint, prompt string) (string, error) {
	client, err := c.genaiClient(ctx, resolved)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		SafetySettings: permissiveSafetySettings,
		ImageConfig:    &genai.ImageConfig{AspectRatio: "16:9"},
	}

	result, err := client.Models.GenerateContent(ctx, c.opts.ImageModel,
		[]*genai.Content{genai.NewContentFromParts(
			[]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser)}, config)
	if err != nil {
		return "", err
	}

	// The image can arrive in any candidate part; the first one wins.
	for _, cand := range result.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return fmt.Sprintf("data:%s;base64,%s", mimeType,
					base64.StdEncoding.EncodeToString(part.InlineData.Data)), nil
			}
		}
	}

	return "", classifyImageOutcome(result.Text())
}

// CheckAccess issues a cheap models-list probe with the configured
// credentials. It reports nil when the endpoint answers, and a classified
// error otherwise.
func (c *Client) CheckAccess(ctx context.Context) error {
	if c.opts.Credentials.Empty() {
		return newError(ErrAuth, "no API key or proxy base URL configured", false)
	}
	resolved := c.resolve()

	baseURL := resolved.BaseURL
	if baseURL == "" {
		baseURL = "https://" + DefaultHost
	}

	httpc := resty.NewWithClient(httpClient(resolved)).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")

	res, err := httpc.NewRequest().
		SetContext(ctx).
		SetQueryParam("pageSize", "1").
		Get("/v1beta/models")
	if err != nil {
		return ClassifyError(err)
	}
	if res.IsError() {
		return ClassifyError(fmt.Errorf("models probe failed (status %d): %s",
			res.StatusCode(), res.String()))
	}
	return nil
}

// splitDataURI strips the data:<mime>;base64, prefix off a frame payload.
// A bare base64 string is accepted and assumed to be JPEG, since that is
// what frame sampling produces.
func splitDataURI(frame string) (mimeType string, data []byte, err error) {
	mimeType = "image/jpeg"
	payload := frame

	if strings.HasPrefix(frame, "data:") {
		rest := strings.TrimPrefix(frame, "data:")
		meta, b64, ok := strings.Cut(rest, ",")
		if !ok {
			return "", nil, fmt.Errorf("data URI has no payload")
		}
		if m := strings.TrimSuffix(meta, ";base64"); m != "" {
			mimeType = m
		}
		payload = b64
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("frame payload is not valid base64: %w", err)
	}
	return mimeType, data, nil
}
