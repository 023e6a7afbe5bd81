package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizeStorage()
	c.normalizeSpeechKit()
	c.normalizeAnalysis()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if c.Telegram.BotToken == "" {
		if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			c.Telegram.BotToken = strings.TrimSpace(value)
		}
	}
	if c.Telegram.RequestTimeout <= 0 {
		c.Telegram.RequestTimeout = defaultTelegramTimeout
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	if c.Storage.Endpoint == "" {
		c.Storage.Endpoint = defaultStorageEndpoint
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultStorageRegion
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	if c.Storage.AccessKeyID == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.Storage.AccessKeyID = strings.TrimSpace(value)
		}
	}
	c.Storage.SecretAccessKey = strings.TrimSpace(c.Storage.SecretAccessKey)
	if c.Storage.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.Storage.SecretAccessKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeSpeechKit() {
	c.SpeechKit.APIKey = strings.TrimSpace(c.SpeechKit.APIKey)
	if c.SpeechKit.APIKey == "" {
		if value, ok := os.LookupEnv("YANDEX_API_KEY"); ok {
			c.SpeechKit.APIKey = strings.TrimSpace(value)
		}
	}
	c.SpeechKit.RecognizeURL = strings.TrimSpace(c.SpeechKit.RecognizeURL)
	if c.SpeechKit.RecognizeURL == "" {
		c.SpeechKit.RecognizeURL = defaultRecognizeURL
	}
	c.SpeechKit.OperationURL = strings.TrimSpace(c.SpeechKit.OperationURL)
	if c.SpeechKit.OperationURL == "" {
		c.SpeechKit.OperationURL = defaultOperationURL
	}
	c.SpeechKit.Language = strings.TrimSpace(c.SpeechKit.Language)
	if c.SpeechKit.Language == "" {
		c.SpeechKit.Language = defaultSpeechLanguage
	}
	if c.SpeechKit.PollInterval <= 0 {
		c.SpeechKit.PollInterval = defaultSpeechPollInterval
	}
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.APIKey = strings.TrimSpace(c.Analysis.APIKey)
	if c.Analysis.APIKey == "" {
		// The analysis endpoint accepts the same API key as SpeechKit.
		if value, ok := os.LookupEnv("YANDEX_API_KEY"); ok {
			c.Analysis.APIKey = strings.TrimSpace(value)
		}
	}
	c.Analysis.FolderID = strings.TrimSpace(c.Analysis.FolderID)
	if c.Analysis.FolderID == "" {
		if value, ok := os.LookupEnv("YANDEX_FOLDER_ID"); ok {
			c.Analysis.FolderID = strings.TrimSpace(value)
		}
	}
	c.Analysis.BaseURL = strings.TrimSpace(c.Analysis.BaseURL)
	if c.Analysis.BaseURL == "" {
		c.Analysis.BaseURL = defaultAnalysisBaseURL
	}
	c.Analysis.Model = strings.TrimSpace(c.Analysis.Model)
	if c.Analysis.Model == "" {
		c.Analysis.Model = defaultAnalysisModel
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 1 {
		c.Analysis.Temperature = 0.1
	}
	if c.Analysis.MaxTokens <= 0 {
		c.Analysis.MaxTokens = defaultAnalysisMaxTokens
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		c.Analysis.TimeoutSeconds = defaultAnalysisTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
