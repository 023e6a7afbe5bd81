// Package speechkit wraps the Yandex SpeechKit long-running recognition API.
package speechkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRecognizeURL = "https://transcribe.api.cloud.yandex.net/speech/stt/v2/longRunningRecognize"
	defaultOperationURL = "https://operation.api.cloud.yandex.net/operations"
	defaultLanguage     = "ru-RU"
	defaultPollInterval = 2 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
)

// Client wraps the asynchronous speech recognition API.
type Client struct {
	apiKey       string
	recognizeURL string
	operationURL string
	language     string
	pollInterval time.Duration
	httpClient   *http.Client
}

// Option customizes the SpeechKit client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRecognizeURL overrides the submission endpoint (useful for tests/mocks).
func WithRecognizeURL(raw string) Option {
	return func(c *Client) {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			c.recognizeURL = strings.TrimRight(raw, "/")
		}
	}
}

// WithOperationURL overrides the operation status endpoint.
func WithOperationURL(raw string) Option {
	return func(c *Client) {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			c.operationURL = strings.TrimRight(raw, "/")
		}
	}
}

// WithLanguage sets the recognition language code.
func WithLanguage(code string) Option {
	return func(c *Client) {
		code = strings.TrimSpace(code)
		if code != "" {
			c.language = code
		}
	}
}

// WithPollInterval sets the delay between operation status checks.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient constructs a SpeechKit API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		recognizeURL: defaultRecognizeURL,
		operationURL: defaultOperationURL,
		language:     defaultLanguage,
		pollInterval: defaultPollInterval,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type recognitionSpec struct {
	LanguageCode    string `json:"languageCode"`
	Model           string `json:"model"`
	LiteratureText  bool   `json:"literature_text"`
	ProfanityFilter bool   `json:"profanity_filter"`
	AudioEncoding   string `json:"audioEncoding,omitempty"`
}

type recognitionRequest struct {
	Config struct {
		Specification recognitionSpec `json:"specification"`
	} `json:"config"`
	Audio struct {
		URI string `json:"uri"`
	} `json:"audio"`
}

type operationResponse struct {
	ID       string `json:"id"`
	Done     bool   `json:"done"`
	Response struct {
		Chunks []struct {
			Alternatives []struct {
				Text string `json:"text"`
			} `json:"alternatives"`
		} `json:"chunks"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit starts asynchronous recognition of the audio at audioURL and
// returns the operation ID to poll.
func (c *Client) Submit(ctx context.Context, audioURL string) (string, error) {
	audioURL = strings.TrimSpace(audioURL)
	if audioURL == "" {
		return "", errors.New("speechkit submit: audio url required")
	}
	if c.apiKey == "" {
		return "", errors.New("speechkit submit: api key required")
	}

	var request recognitionRequest
	request.Config.Specification = recognitionSpec{
		LanguageCode:    c.language,
		Model:           "general:rc",
		LiteratureText:  true,
		ProfanityFilter: false,
		AudioEncoding:   encodingForURL(audioURL),
	}
	request.Audio.URI = audioURL

	encoded, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("speechkit submit: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recognizeURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("speechkit submit: request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speechkit submit: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("speechkit submit: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("speechkit submit: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var operation operationResponse
	if err := json.Unmarshal(body, &operation); err != nil {
		return "", fmt.Errorf("speechkit submit: decode response: %w", err)
	}
	if operation.ID == "" {
		return "", errors.New("speechkit submit: response missing operation id")
	}
	return operation.ID, nil
}

// Poll checks a recognition operation once. done is false while the
// operation is still running; text carries the concatenated transcript
// once it finishes.
func (c *Client) Poll(ctx context.Context, operationID string) (text string, done bool, err error) {
	operationID = strings.TrimSpace(operationID)
	if operationID == "" {
		return "", false, errors.New("speechkit poll: operation id required")
	}
	endpoint, err := url.JoinPath(c.operationURL, operationID)
	if err != nil {
		return "", false, fmt.Errorf("speechkit poll: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("speechkit poll: request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("speechkit poll: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("speechkit poll: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", false, fmt.Errorf("speechkit poll: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var operation operationResponse
	if err := json.Unmarshal(body, &operation); err != nil {
		return "", false, fmt.Errorf("speechkit poll: decode response: %w", err)
	}
	if !operation.Done {
		return "", false, nil
	}
	if operation.Error != nil {
		return "", true, fmt.Errorf("speechkit poll: operation failed: %s", operation.Error.Message)
	}

	parts := make([]string, 0, len(operation.Response.Chunks))
	for _, chunk := range operation.Response.Chunks {
		if len(chunk.Alternatives) == 0 {
			continue
		}
		if t := chunk.Alternatives[0].Text; t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), true, nil
}

// WaitForCompletion polls the operation until it finishes or ctx is
// cancelled. Recognition of long recordings has no hard upper bound, so the
// caller's context is the only deadline.
func (c *Client) WaitForCompletion(ctx context.Context, operationID string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		text, done, err := c.Poll(ctx, operationID)
		if err != nil {
			return "", err
		}
		if done {
			return text, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("speechkit wait: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// encodingForURL maps the file extension to the API's audioEncoding value.
// Unknown extensions are left unset so the service auto-detects.
func encodingForURL(audioURL string) string {
	lowered := strings.ToLower(audioURL)
	switch {
	case strings.HasSuffix(lowered, ".mp3"):
		return "MP3"
	case strings.HasSuffix(lowered, ".ogg"), strings.HasSuffix(lowered, ".opus"):
		return "OGG_OPUS"
	default:
		return ""
	}
}
