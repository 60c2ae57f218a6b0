package config

const (
	defaultDataDir                 = "~/.local/share/classcoach"
	defaultUploadDir               = "~/.local/share/classcoach/uploads"
	defaultLogDir                  = "~/.local/share/classcoach/logs"
	defaultAPIBind                 = "127.0.0.1:7510"
	defaultOpenAIBaseURL           = "https://api.openai.com/v1"
	defaultTranscriptionModel      = "whisper-1"
	defaultTranscriptionLanguage   = "es"
	defaultTranscriptionTimeout    = 300
	defaultProsodyTimeout          = 120
	defaultProsodySilenceDB        = -40.0
	defaultProsodyMinPauseMS       = 250
	defaultProsodyFrameMS          = 20
	defaultLLMModel                = "gpt-4o"
	defaultLLMTemperature          = 0.7
	defaultLLMTimeoutSeconds       = 90
	defaultLLMStageTimeoutSeconds  = 180
	defaultLLMRetryAttempts        = 3
	defaultPollIntervalSeconds     = 2
	defaultErrorRetryInterval      = 10
	defaultMaxConcurrent           = 4
	defaultStallTimeoutSeconds     = 1800
	defaultWatchdogIntervalSeconds = 60
	defaultUploadMaxSizeMB         = 100
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultEnvFile                 = ".env"
	defaultConfigPath              = "~/.config/classcoach/config.toml"
	projectConfigName              = "classcoach.toml"
	envOpenAIKey                   = "OPENAI_API_KEY"
	envTranscriptionKey            = "CLASSCOACH_TRANSCRIPTION_API_KEY"
	envLLMKey                      = "CLASSCOACH_LLM_API_KEY"
	envLogLevel                    = "CLASSCOACH_LOG_LEVEL"
	envLogFormat                   = "CLASSCOACH_LOG_FORMAT"
	envNtfyTopic                   = "CLASSCOACH_NTFY_TOPIC"
	envAPIToken                    = "CLASSCOACH_API_TOKEN"
	envConfigDotenv                = "CLASSCOACH_ENV_FILE"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			UploadDir: defaultUploadDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Transcription: Transcription{
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultTranscriptionModel,
			Language:       defaultTranscriptionLanguage,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Prosody: Prosody{
			TimeoutSeconds:     defaultProsodyTimeout,
			SilenceThresholdDB: defaultProsodySilenceDB,
			MinPauseMS:         defaultProsodyMinPauseMS,
			FrameMS:            defaultProsodyFrameMS,
		},
		LLM: LLM{
			BaseURL:             defaultOpenAIBaseURL,
			Model:               defaultLLMModel,
			Temperature:         defaultLLMTemperature,
			TimeoutSeconds:      defaultLLMTimeoutSeconds,
			StageTimeoutSeconds: defaultLLMStageTimeoutSeconds,
			RetryAttempts:       defaultLLMRetryAttempts,
		},
		Workflow: Workflow{
			PollIntervalSeconds:       defaultPollIntervalSeconds,
			ErrorRetryIntervalSeconds: defaultErrorRetryInterval,
			MaxConcurrent:             defaultMaxConcurrent,
			StallTimeoutSeconds:       defaultStallTimeoutSeconds,
			WatchdogIntervalSeconds:   defaultWatchdogIntervalSeconds,
		},
		Upload: Upload{
			MaxSizeMB: defaultUploadMaxSizeMB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
