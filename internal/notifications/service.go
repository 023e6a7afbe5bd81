// Package notifications delivers task status updates and call reports over
// the Telegram Bot API.
package notifications

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"callscribe/internal/analysis"
	"callscribe/internal/config"
	"callscribe/internal/services/telegram"
)

// Captions above this length go out as a separate message instead.
const captionLimitRunes = 1000

// Report is the per-call summary posted to the report chat.
type Report struct {
	TaskID     int64
	FileName   string
	Summary    string
	Sentiment  string
	Address    string
	DialogType string
	Markers    []analysis.Marker
	Transcript string
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyTaskCompleted(ctx context.Context, ownerID, taskID int64, displayName string) error
	NotifyArchiveExpanded(ctx context.Context, ownerID, taskID int64, count int) error
	SendReport(ctx context.Context, report Report) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by the Telegram Bot API
// when a token is configured. Otherwise a noop implementation is returned.
// opts are forwarded to the underlying client.
func NewService(cfg *config.Config, opts ...telegram.Option) Service {
	if !cfg.TelegramEnabled() {
		return noopService{}
	}

	timeout := time.Duration(cfg.Telegram.RequestTimeout) * time.Second
	if timeout > 0 {
		opts = append([]telegram.Option{telegram.WithHTTPClient(&http.Client{Timeout: timeout})}, opts...)
	}
	return &telegramService{
		client:       telegram.NewClient(cfg.Telegram.BotToken, opts...),
		reportChatID: cfg.Telegram.ReportChatID,
		stagingDir:   cfg.Paths.StagingDir,
	}
}

type telegramService struct {
	client       *telegram.Client
	reportChatID int64
	stagingDir   string
}

func (s *telegramService) NotifyTaskCompleted(ctx context.Context, ownerID, taskID int64, displayName string) error {
	text := fmt.Sprintf("✅ Задача #%d выполнена! (%s)", taskID, html.EscapeString(displayName))
	return s.client.SendMessage(ctx, ownerID, text)
}

func (s *telegramService) NotifyArchiveExpanded(ctx context.Context, ownerID, taskID int64, count int) error {
	text := fmt.Sprintf("📦 Архив #%d распакован. Добавлено %d задач в очередь.", taskID, count)
	return s.client.SendMessage(ctx, ownerID, text)
}

// SendReport posts the report to the report chat with the full transcript
// attached as a text document. The transcript artifact is removed on every
// path, including send failures.
func (s *telegramService) SendReport(ctx context.Context, report Report) error {
	if s.reportChatID == 0 {
		return nil
	}

	text := formatReport(report)
	button := telegram.Button{
		Text:         "✅ Взять в работу",
		CallbackData: fmt.Sprintf("take_task_%d", report.TaskID),
	}

	artifact := filepath.Join(s.stagingDir, fmt.Sprintf("transcript-%d.txt", report.TaskID))
	if err := os.WriteFile(artifact, []byte(report.Transcript), 0o644); err != nil {
		return fmt.Errorf("notifications report: write transcript: %w", err)
	}
	defer os.Remove(artifact)

	var err error
	if len([]rune(text)) < captionLimitRunes {
		err = s.client.SendDocument(ctx, s.reportChatID, artifact, text, button)
	} else {
		if err = s.client.SendDocument(ctx, s.reportChatID, artifact, ""); err == nil {
			err = s.client.SendMessage(ctx, s.reportChatID, text, button)
		}
	}
	if err != nil {
		fallback := fmt.Sprintf("📁 #%d Ошибка отправки отчета: %s", report.TaskID, html.EscapeString(err.Error()))
		if sendErr := s.client.SendMessage(ctx, s.reportChatID, fallback, button); sendErr != nil {
			return fmt.Errorf("notifications report: %w", sendErr)
		}
		return fmt.Errorf("notifications report: %w", err)
	}
	return nil
}

func (s *telegramService) TestNotification(ctx context.Context) error {
	if s.reportChatID == 0 {
		return s.client.GetMe(ctx)
	}
	return s.client.SendMessage(ctx, s.reportChatID, "🔔 Проверка уведомлений: бот на связи.")
}

var sentimentTagPattern = regexp.MustCompile(`[^a-zA-Zа-яА-Я0-9]`)

func formatReport(report Report) string {
	var alert strings.Builder
	if len(report.Markers) > 0 {
		fmt.Fprintf(&alert, "\n⚠️ <b>ВЫЯВЛЕНЫ НАРУШЕНИЯ (%d):</b>", len(report.Markers))
		for _, m := range report.Markers {
			fmt.Fprintf(&alert, "\n- 🔴 %s: &quot;%s&quot;", html.EscapeString(m.Type), html.EscapeString(m.Phrase))
		}
	}

	sentimentTag := sentimentTagPattern.ReplaceAllString(report.Sentiment, "")
	return fmt.Sprintf(
		"📁 <b>Файл:</b> %s (#%d)\n"+
			"🏠 <b>Адрес:</b> %s\n"+
			"📞 <b>Тип:</b> %s\n"+
			"%s\n\n"+
			"📋 <b>Саммари:</b> %s\n"+
			"🎭 <b>Тон:</b> #%s",
		html.EscapeString(report.FileName), report.TaskID,
		html.EscapeString(report.Address),
		html.EscapeString(report.DialogType),
		alert.String(),
		html.EscapeString(report.Summary),
		html.EscapeString(sentimentTag),
	)
}

type noopService struct{}

func (noopService) NotifyTaskCompleted(context.Context, int64, int64, string) error { return nil }

func (noopService) NotifyArchiveExpanded(context.Context, int64, int64, int) error { return nil }

func (noopService) SendReport(context.Context, Report) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
