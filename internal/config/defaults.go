package config

const (
	defaultStagingDir         = "~/.local/share/callscribe/staging"
	defaultLogDir             = "~/.local/share/callscribe/logs"
	defaultDatabasePath       = "~/.local/share/callscribe/queue.db"
	defaultStorageEndpoint    = "storage.yandexcloud.net"
	defaultStorageRegion      = "ru-central1"
	defaultRecognizeURL       = "https://transcribe.api.cloud.yandex.net/speech/stt/v2/longRunningRecognize"
	defaultOperationURL       = "https://operation.api.cloud.yandex.net/operations"
	defaultSpeechLanguage     = "ru-RU"
	defaultSpeechPollInterval = 2
	defaultAnalysisBaseURL    = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	defaultAnalysisModel      = "yandexgpt/latest"
	defaultAnalysisMaxTokens  = 2000
	defaultAnalysisTimeout    = 120
	defaultTelegramTimeout    = 30
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:   defaultStagingDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Telegram: Telegram{
			RequestTimeout: defaultTelegramTimeout,
		},
		Storage: Storage{
			Endpoint: defaultStorageEndpoint,
			Region:   defaultStorageRegion,
		},
		SpeechKit: SpeechKit{
			RecognizeURL: defaultRecognizeURL,
			OperationURL: defaultOperationURL,
			Language:     defaultSpeechLanguage,
			PollInterval: defaultSpeechPollInterval,
		},
		Analysis: Analysis{
			BaseURL:        defaultAnalysisBaseURL,
			Model:          defaultAnalysisModel,
			Temperature:    0.1,
			MaxTokens:      defaultAnalysisMaxTokens,
			TimeoutSeconds: defaultAnalysisTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
