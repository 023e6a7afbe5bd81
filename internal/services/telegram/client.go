// Package telegram is a minimal Bot API client covering the calls the
// pipeline needs: fetching uploaded files and delivering reports.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.telegram.org"
	defaultHTTPTimeout = 30 * time.Second
	// Bot API rejects captions above 1024 chars; callers check the lower
	// report threshold themselves.
	maxCaptionRunes = 1024
)

// Client wraps the Telegram Bot API for a single bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the Telegram client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a Bot API client.
func NewClient(token string, opts ...Option) *Client {
	client := &Client{
		token:      strings.TrimSpace(token),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Button is one inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type fileInfo struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// SendMessage delivers an HTML-formatted message, optionally with an inline
// keyboard row of buttons.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, buttons ...Button) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if len(buttons) > 0 {
		payload["reply_markup"] = inlineKeyboard{InlineKeyboard: [][]Button{buttons}}
	}
	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

// SendDocument uploads a local file to a chat. caption may be empty; when set
// it is rendered as HTML and truncated to the API limit.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filePath, caption string, buttons ...Button) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	if caption != "" {
		if runes := []rune(caption); len(runes) > maxCaptionRunes {
			caption = string(runes[:maxCaptionRunes])
		}
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("telegram send document: %w", err)
		}
		if err := writer.WriteField("parse_mode", "HTML"); err != nil {
			return fmt.Errorf("telegram send document: %w", err)
		}
	}
	if len(buttons) > 0 {
		markup, err := json.Marshal(inlineKeyboard{InlineKeyboard: [][]Button{buttons}})
		if err != nil {
			return fmt.Errorf("telegram send document: %w", err)
		}
		if err := writer.WriteField("reply_markup", string(markup)); err != nil {
			return fmt.Errorf("telegram send document: %w", err)
		}
	}
	part, err := writer.CreateFormFile("document", filepath.Base(filePath))
	if err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}

	endpoint, err := c.methodURL("sendDocument")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send document: %w", err)
	}
	defer resp.Body.Close()
	_, err = decodeResponse(resp)
	return err
}

// DownloadFile fetches the file identified by fileID into destPath.
func (c *Client) DownloadFile(ctx context.Context, fileID, destPath string) error {
	raw, err := c.call(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return err
	}
	var info fileInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return fmt.Errorf("telegram get file: decode response: %w", err)
	}
	if info.FilePath == "" {
		return errors.New("telegram get file: response missing file_path")
	}

	endpoint, err := url.JoinPath(c.baseURL, "file", "bot"+c.token, info.FilePath)
	if err != nil {
		return fmt.Errorf("telegram download: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("telegram download: request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram download: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("telegram download: http %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("telegram download: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("telegram download: write %s: %w", destPath, err)
	}
	return nil
}

// GetMe verifies the token against the API.
func (c *Client) GetMe(ctx context.Context) error {
	_, err := c.call(ctx, "getMe", map[string]any{})
	return err
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	if c.token == "" {
		return nil, fmt.Errorf("telegram %s: bot token required", method)
	}
	endpoint, err := c.methodURL(method)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: encode request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: request failed: %w", method, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func (c *Client) methodURL(method string) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, "bot"+c.token, method)
	if err != nil {
		return "", fmt.Errorf("telegram %s: build url: %w", method, err)
	}
	return endpoint, nil
}

func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram: read body: %w", err)
	}
	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("telegram: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram: api error: %s", api.Description)
	}
	return api.Result, nil
}
