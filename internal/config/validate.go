package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateSpeechKit(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateTelegram(); err != nil {
		return err
	}
	return c.validateWorkflow()
}

func (c *Config) validateStorage() error {
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
		return errors.New("storage credentials are required. Set storage.access_key_id and storage.secret_access_key or the AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY env vars")
	}
	return nil
}

func (c *Config) validateSpeechKit() error {
	if c.SpeechKit.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/callscribe/config.toml"
		}
		return fmt.Errorf("speechkit.api_key is required. Set YANDEX_API_KEY env var or edit %s (create with 'callscribe config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.APIKey == "" {
		return errors.New("analysis.api_key is required (or set YANDEX_API_KEY)")
	}
	if c.Analysis.FolderID == "" {
		return errors.New("analysis.folder_id is required (or set YANDEX_FOLDER_ID)")
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if c.Telegram.ReportChatID != 0 && strings.TrimSpace(c.Telegram.BotToken) == "" {
		return errors.New("telegram.bot_token must be set when telegram.report_chat_id is configured")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"telegram.request_timeout":      c.Telegram.RequestTimeout,
		"speechkit.poll_interval":       c.SpeechKit.PollInterval,
		"analysis.timeout_seconds":      c.Analysis.TimeoutSeconds,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
