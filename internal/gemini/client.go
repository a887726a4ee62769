// Package gemini talks to the Gemini generateContent REST API for text
// segmentation, word lookups and speech synthesis.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Defaults for Config.
const (
	DefaultBaseURL           = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTextModel         = "gemini-3-flash-preview"
	DefaultSpeechModel       = "gemini-2.5-flash-preview-tts"
	DefaultTargetLanguage    = "Chinese (Simplified)"
	DefaultRequestsPerMinute = 60
	DefaultTimeout           = 60 * time.Second
)

var (
	// ErrNoAPIKey is returned by NewClient without an API key.
	ErrNoAPIKey = errors.New("gemini API key required")

	// ErrEmptyResponse is returned when a response has no usable content.
	ErrEmptyResponse = errors.New("no response from gemini")

	// ErrNoAudio is returned when a speech response carries no audio.
	ErrNoAudio = errors.New("no audio data received")
)

// APIError is a non-200 response.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini API returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini API returned %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Config configures a Client.
type Config struct {
	APIKey            string
	BaseURL           string
	TextModel         string
	SpeechModel       string
	TargetLanguage    string
	RequestsPerMinute int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client is a Gemini REST client. It implements reader.Segmenter,
// reader.Dictionary and reader.Synthesizer.
type Client struct {
	apiKey      string
	baseURL     string
	textModel   string
	speechModel string
	language    string
	http        *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a client, filling unset fields with defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = DefaultSpeechModel
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = DefaultTargetLanguage
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		textModel:   cfg.TextModel,
		speechModel: cfg.SpeechModel,
		language:    cfg.TargetLanguage,
		http:        cfg.HTTPClient,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}, nil
}

// TargetLanguage is the language meanings are translated into.
func (c *Client) TargetLanguage() string { return c.language }

// generate calls models/{model}:generateContent.
func (c *Client) generate(ctx context.Context, model string, body *generateRequest) (*generateResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("unable to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("X-Request-Id", reqID)

	start := time.Now()
	log.Debug("Gemini request", "id", reqID, "model", model, "bytes", len(payload))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug("Gemini response", "id", reqID, "status", resp.StatusCode, "bytes", len(data), "took", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb apiErrorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Status = eb.Error.Status
			apiErr.Message = eb.Error.Message
		}
		return nil, apiErr
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse gemini response: %w", err)
	}
	return &out, nil
}

// generateJSON runs a structured-output request and decodes the reply
// text into v.
func (c *Client) generateJSON(ctx context.Context, body *generateRequest, v any) error {
	resp, err := c.generate(ctx, c.textModel, body)
	if err != nil {
		return err
	}
	text := stripFences(resp.text())
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("failed to parse gemini response as JSON: %w", err)
	}
	return nil
}
