// Package testsupport provides shared helpers for package tests: temp
// configs, queue stores, and fixture files.
package testsupport

import (
	"path/filepath"
	"testing"

	"callscribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories and dummy
// credentials per test. It applies any provided options last.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DatabasePath = filepath.Join(base, "queue.db")
	cfg.Storage.Bucket = "test-bucket"
	cfg.Storage.AccessKeyID = "test-access"
	cfg.Storage.SecretAccessKey = "test-secret"
	cfg.SpeechKit.APIKey = "test-speech"
	cfg.Analysis.APIKey = "test-llm"
	cfg.Analysis.FolderID = "test-folder"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithBotToken sets the Telegram bot token on the test config.
func WithBotToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Telegram.BotToken = token
	}
}

// WithReportChat sets the report chat on the test config.
func WithReportChat(chatID int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Telegram.ReportChatID = chatID
	}
}
