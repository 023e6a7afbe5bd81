// Package yandexgpt wraps the YandexGPT foundation-model completion API used
// to analyze call transcripts.
package yandexgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	defaultModel       = "yandexgpt/latest"
	defaultTemperature = 0.1
	defaultMaxTokens   = 2000
	defaultHTTPTimeout = 120 * time.Second
)

// Client wraps the YandexGPT completion API.
type Client struct {
	apiKey      string
	folderID    string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Option customizes the YandexGPT client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the completion endpoint (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel selects the model identifier appended to the folder URI.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(c *Client) {
		if temperature >= 0 {
			c.temperature = temperature
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// WithTimeout overrides the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs a YandexGPT API client bound to a cloud folder.
func NewClient(apiKey, folderID string, opts ...Option) *Client {
	client := &Client{
		apiKey:      strings.TrimSpace(apiKey),
		folderID:    strings.TrimSpace(folderID),
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type completionMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionRequest struct {
	ModelURI          string              `json:"modelUri"`
	CompletionOptions completionOptions   `json:"completionOptions"`
	Messages          []completionMessage `json:"messages"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message completionMessage `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// Analyze submits the transcript for structured analysis and returns the raw
// model response. Callers parse it defensively; the model does not always
// honor the requested format.
func (c *Client) Analyze(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errors.New("yandexgpt analyze: transcript required")
	}
	if c.apiKey == "" {
		return "", errors.New("yandexgpt analyze: api key required")
	}
	if c.folderID == "" {
		return "", errors.New("yandexgpt analyze: folder id required")
	}

	request := completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", c.folderID, c.model),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: c.temperature,
			MaxTokens:   strconv.Itoa(c.maxTokens),
		},
		Messages: []completionMessage{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: buildAnalysisPrompt(transcript)},
		},
	}
	encoded, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("yandexgpt analyze: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("yandexgpt analyze: request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-folder-id", c.folderID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("yandexgpt analyze: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("yandexgpt analyze: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("yandexgpt analyze: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion completionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("yandexgpt analyze: decode response: %w", err)
	}
	if len(completion.Result.Alternatives) == 0 {
		return "", errors.New("yandexgpt analyze: response has no alternatives")
	}
	text := completion.Result.Alternatives[0].Message.Text
	if strings.TrimSpace(text) == "" {
		return "", errors.New("yandexgpt analyze: response text is empty")
	}
	return text, nil
}
