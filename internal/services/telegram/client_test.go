package telegram_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"callscribe/internal/services/telegram"
)

func TestSendMessageWithKeyboard(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"ok": true, "result": {}}`))
	}))
	defer server.Close()

	client := telegram.NewClient("test-token", telegram.WithBaseURL(server.URL))
	err := client.SendMessage(context.Background(), -100123, "<b>отчет</b>",
		telegram.Button{Text: "Взять в работу", CallbackData: "take_task_7"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if captured["parse_mode"] != "HTML" {
		t.Fatalf("expected HTML parse mode, got %v", captured["parse_mode"])
	}
	if captured["chat_id"] != float64(-100123) {
		t.Fatalf("unexpected chat_id: %v", captured["chat_id"])
	}
	markup := captured["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	button := rows[0].([]any)[0].(map[string]any)
	if button["callback_data"] != "take_task_7" {
		t.Fatalf("unexpected callback data: %v", button["callback_data"])
	}
}

func TestSendMessageSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
	}))
	defer server.Close()

	client := telegram.NewClient("test-token", telegram.WithBaseURL(server.URL))
	err := client.SendMessage(context.Background(), 1, "текст")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestSendDocumentUploadsMultipart(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "transcript-7.txt")
	if err := os.WriteFile(doc, []byte("диалог"), 0o644); err != nil {
		t.Fatal(err)
	}

	var caption, parseMode, fileName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendDocument" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		caption = r.FormValue("caption")
		parseMode = r.FormValue("parse_mode")
		if files := r.MultipartForm.File["document"]; len(files) == 1 {
			fileName = files[0].Filename
		}
		w.Write([]byte(`{"ok": true, "result": {}}`))
	}))
	defer server.Close()

	client := telegram.NewClient("test-token", telegram.WithBaseURL(server.URL))
	if err := client.SendDocument(context.Background(), 42, doc, "<b>Файл:</b> call.mp3"); err != nil {
		t.Fatalf("SendDocument failed: %v", err)
	}
	if caption != "<b>Файл:</b> call.mp3" || parseMode != "HTML" {
		t.Fatalf("unexpected caption %q mode %q", caption, parseMode)
	}
	if fileName != "transcript-7.txt" {
		t.Fatalf("unexpected file name %q", fileName)
	}
}

func TestDownloadFileResolvesPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getFile":
			w.Write([]byte(`{"ok": true, "result": {"file_id": "abc", "file_path": "voice/call.ogg"}}`))
		case "/file/bottest-token/voice/call.ogg":
			w.Write([]byte("audio-bytes"))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "call.ogg")
	client := telegram.NewClient("test-token", telegram.WithBaseURL(server.URL))
	if err := client.DownloadFile(context.Background(), "abc", dest); err != nil {
		t.Fatalf("DownloadFile failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestCallRequiresToken(t *testing.T) {
	client := telegram.NewClient("")
	if err := client.SendMessage(context.Background(), 1, "текст"); err == nil {
		t.Fatal("expected error without token")
	}
}
