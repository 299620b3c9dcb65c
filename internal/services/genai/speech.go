package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tinytales/internal/story"
)

const (
	defaultSpeechBaseURL = "https://texttospeech.googleapis.com/v1"
	defaultSpeechTimeout = 30 * time.Second
)

// SpeechConfig captures settings for the Cloud Text-to-Speech API.
type SpeechConfig struct {
	APIKey         string
	BaseURL        string
	AudioEncoding  string
	SampleRateHz   int
	TimeoutSeconds int
}

// SpeechClient synthesizes narration audio.
type SpeechClient struct {
	cfg        SpeechConfig
	httpClient *http.Client
}

// NewSpeechClient constructs a speech client. Zero values fall back to
// LINEAR16 at 24 kHz.
func NewSpeechClient(cfg SpeechConfig, httpClient *http.Client) *SpeechClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSpeechBaseURL
	}
	cfg.AudioEncoding = strings.ToUpper(strings.TrimSpace(cfg.AudioEncoding))
	if cfg.AudioEncoding == "" {
		cfg.AudioEncoding = "LINEAR16"
	}
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 24000
	}
	if httpClient == nil {
		timeout := defaultSpeechTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &SpeechClient{cfg: cfg, httpClient: httpClient}
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding   string `json:"audioEncoding"`
		SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize returns narration for text as a data:audio URI. languageTag is a
// BCP 47 tag such as "hi-IN"; the voice is chosen from it.
func (c *SpeechClient) Synthesize(ctx context.Context, text, languageTag string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("speech synthesize: text required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("speech synthesize: api key required")
	}
	var payload synthesizeRequest
	payload.Input.Text = text
	payload.Voice.LanguageCode = languageTag
	payload.Voice.Name = story.VoiceFor(languageTag)
	payload.AudioConfig.AudioEncoding = c.cfg.AudioEncoding
	payload.AudioConfig.SampleRateHertz = c.cfg.SampleRateHz

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("speech synthesize: encode body: %w", err)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "text:synthesize")
	if err != nil {
		return "", fmt.Errorf("speech synthesize: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("speech synthesize: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech synthesize: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("speech synthesize: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", newStatusError(resp, body)
	}
	var decoded synthesizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("speech synthesize: decode response: %w", err)
	}
	if decoded.AudioContent == "" {
		return "", nil
	}
	if _, err := base64.StdEncoding.DecodeString(decoded.AudioContent); err != nil {
		return "", fmt.Errorf("speech synthesize: invalid audio content: %w", err)
	}
	return "data:" + audioMimeType(c.cfg.AudioEncoding) + ";base64," + decoded.AudioContent, nil
}

func audioMimeType(encoding string) string {
	switch encoding {
	case "MP3":
		return "audio/mpeg"
	case "OGG_OPUS":
		return "audio/ogg"
	default:
		// LINEAR16 responses carry a WAV header.
		return "audio/wav"
	}
}
