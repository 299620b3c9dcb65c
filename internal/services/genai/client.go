package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tinytales/internal/logging"
)

const (
	defaultHTTPTimeout      = 60 * time.Second
	defaultBaseURL          = "https://generativelanguage.googleapis.com/v1beta"
	defaultTransportRetries = 3
	defaultRetryBaseDelay   = 500 * time.Millisecond
	defaultRetryMaxDelay    = 8 * time.Second
)

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	APIKey           string
	BaseURL          string
	StoryModel       string
	ImageModel       string
	TimeoutSeconds   int
	TransportRetries int
}

// Client wraps the Gemini generateContent API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBackOff overrides the transport retry schedule (useful for tests).
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// WithLogger attaches a logger for retry notices.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a generation client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TransportRetries < 0 {
		cfg.TransportRetries = 0
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	client.newBackOff = func() backoff.BackOff {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = defaultRetryBaseDelay
		exp.MaxInterval = defaultRetryMaxDelay
		exp.MaxElapsedTime = 0
		return exp
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.logger == nil {
		client.logger = logging.NewNop()
	}
	return client
}

// StoryResult is the decoded narrative payload.
type StoryResult struct {
	Story string `json:"story"`
}

// Image is one generated illustration. Text carries any commentary the model
// returned alongside the image.
type Image struct {
	MimeType string
	Data     []byte
	Text     string
}

// DataURI renders the image as an inline data URI.
func (img Image) DataURI() string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// GenerateStory requests a story for prompt written in languageName.
func (c *Client) GenerateStory(ctx context.Context, prompt, languageName string) (StoryResult, error) {
	var empty StoryResult
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return empty, errors.New("genai story: prompt required")
	}
	if c.cfg.APIKey == "" {
		return empty, errors.New("genai story: api key required")
	}
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: StoryPrompt(prompt, languageName)}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			Temperature:      floatPtr(0.9),
		},
	}
	resp, err := c.generate(ctx, c.cfg.StoryModel, req, "genai story")
	if err != nil {
		return empty, err
	}
	text := resp.text()
	if text == "" {
		return empty, fmt.Errorf("genai story: empty response (%s)", resp.describe())
	}
	parsed, err := parseStory(text)
	if err != nil {
		return empty, fmt.Errorf("genai story: %w", err)
	}
	if parsed.Story == "" {
		return empty, errors.New("genai story: payload missing story")
	}
	return parsed, nil
}

// GenerateImage requests one illustration for sentence.
func (c *Client) GenerateImage(ctx context.Context, sentence string) (Image, error) {
	var empty Image
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return empty, errors.New("genai image: sentence required")
	}
	if c.cfg.APIKey == "" {
		return empty, errors.New("genai image: api key required")
	}
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: IllustrationPrompt(sentence)}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	resp, err := c.generate(ctx, c.cfg.ImageModel, req, "genai image")
	if err != nil {
		return empty, err
	}
	inline := resp.inlineImage()
	if inline == nil {
		detail := "no additional text provided by the provider"
		if text := resp.text(); text != "" {
			detail = fmt.Sprintf("provider text: %q", snippet(text))
		}
		return empty, fmt.Errorf("genai image: image generation returned no media: %s", detail)
	}
	data, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return empty, fmt.Errorf("genai image: decode inline data: %w", err)
	}
	mimeType := strings.TrimSpace(inline.MimeType)
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return Image{MimeType: mimeType, Data: data, Text: resp.text()}, nil
}

// HealthCheck verifies the API key by fetching the story model metadata.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("genai health: api key required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", c.cfg.StoryModel)
	if err != nil {
		return fmt.Errorf("genai health: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("genai health: new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genai health: http error: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return newStatusError(resp, body)
	}
	return nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r generateResponse) text() string {
	var b strings.Builder
	for _, candidate := range r.Candidates {
		for _, p := range candidate.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func (r generateResponse) inlineImage() *inlineData {
	for _, candidate := range r.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return p.InlineData
			}
		}
	}
	return nil
}

func (r generateResponse) describe() string {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "blocked: " + r.PromptFeedback.BlockReason
	}
	for _, candidate := range r.Candidates {
		if candidate.FinishReason != "" {
			return "finish_reason=" + candidate.FinishReason
		}
	}
	return "no candidates"
}

func (c *Client) generate(ctx context.Context, model string, payload generateRequest, op string) (generateResponse, error) {
	var result generateResponse
	if strings.TrimSpace(model) == "" {
		return result, fmt.Errorf("%s: model required", op)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("%s: encode body: %w", op, err)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "models", model+":generateContent")
	if err != nil {
		return result, fmt.Errorf("%s: build url: %w", op, err)
	}

	attempt := 0
	operation := func() error {
		attempt++
		resp, err := c.postOnce(ctx, endpoint, encoded)
		if err != nil {
			if ctx.Err() != nil || !transient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = resp
		return nil
	}
	notify := func(err error, delay time.Duration) {
		c.logger.Debug("retrying provider request",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	schedule := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.cfg.TransportRetries)), ctx)
	if err := backoff.RetryNotify(operation, schedule, notify); err != nil {
		return generateResponse{}, err
	}
	return result, nil
}

func (c *Client) postOnce(ctx context.Context, endpoint string, body []byte) (generateResponse, error) {
	var decoded generateResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return decoded, fmt.Errorf("genai request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decoded, fmt.Errorf("genai request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decoded, fmt.Errorf("genai request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decoded, newStatusError(resp, payload)
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return decoded, fmt.Errorf("genai request: decode response: %w", err)
	}
	return decoded, nil
}

func floatPtr(v float64) *float64 {
	return &v
}
