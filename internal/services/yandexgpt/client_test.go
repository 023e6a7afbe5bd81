package yandexgpt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"callscribe/internal/services/yandexgpt"
)

func TestAnalyzeSendsCompletionRequest(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Api-Key test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("x-folder-id"); got != "folder-1" {
			t.Errorf("unexpected folder header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"result": {"alternatives": [{"message": {"role": "assistant", "text": "{\"summary\": \"ок\"}"}}]}}`))
	}))
	defer server.Close()

	client := yandexgpt.NewClient("test-key", "folder-1",
		yandexgpt.WithBaseURL(server.URL),
		yandexgpt.WithModel("yandexgpt-lite/latest"),
		yandexgpt.WithMaxTokens(500))
	text, err := client.Analyze(context.Background(), "диспетчер: слушаю вас")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if text != `{"summary": "ок"}` {
		t.Fatalf("unexpected text %q", text)
	}

	if captured["modelUri"] != "gpt://folder-1/yandexgpt-lite/latest" {
		t.Fatalf("unexpected modelUri: %v", captured["modelUri"])
	}
	opts := captured["completionOptions"].(map[string]any)
	if opts["maxTokens"] != "500" {
		t.Fatalf("expected maxTokens as string, got %v", opts["maxTokens"])
	}
	messages := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(messages))
	}
	user := messages[1].(map[string]any)
	if !strings.Contains(user["text"].(string), "диспетчер: слушаю вас") {
		t.Fatal("expected transcript embedded in user prompt")
	}
	if !strings.Contains(user["text"].(string), "is_relevant_hard") {
		t.Fatal("expected JSON schema described in user prompt")
	}
}

func TestAnalyzeRejectsEmptyTranscript(t *testing.T) {
	client := yandexgpt.NewClient("test-key", "folder-1")
	if _, err := client.Analyze(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestAnalyzeRequiresCredentials(t *testing.T) {
	client := yandexgpt.NewClient("", "folder-1")
	if _, err := client.Analyze(context.Background(), "текст"); err == nil {
		t.Fatal("expected error without api key")
	}
	client = yandexgpt.NewClient("test-key", "")
	if _, err := client.Analyze(context.Background(), "текст"); err == nil {
		t.Fatal("expected error without folder id")
	}
}

func TestAnalyzeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := yandexgpt.NewClient("test-key", "folder-1", yandexgpt.WithBaseURL(server.URL))
	_, err := client.Analyze(context.Background(), "текст")
	if err == nil || !strings.Contains(err.Error(), "http 429") {
		t.Fatalf("expected http 429 error, got %v", err)
	}
}

func TestAnalyzeRejectsEmptyAlternatives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": {"alternatives": []}}`))
	}))
	defer server.Close()

	client := yandexgpt.NewClient("test-key", "folder-1", yandexgpt.WithBaseURL(server.URL))
	if _, err := client.Analyze(context.Background(), "текст"); err == nil {
		t.Fatal("expected error for empty alternatives")
	}
}
