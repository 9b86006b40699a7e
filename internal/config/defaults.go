package config

const (
	defaultDataDir    = "~/.local/share/shortline"
	defaultStagingDir = "~/.local/share/shortline/staging"
	defaultLogDir     = "~/.local/share/shortline/logs"

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30

	defaultTickInterval        = 60
	defaultErrorRetryInterval  = 30
	defaultStagingIntervalMins = 30
	defaultGenerateTimeout     = 900
	defaultUploadTimeout       = 600
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 300
	defaultPostIntervalHours   = 24

	defaultRetryMaxAttempts = 3
	defaultRetryBaseDelay   = 1
	defaultRetryMaxDelay    = 60
	defaultRetryMultiplier  = 2.0

	defaultLLMDailyRequests    = 200
	defaultPexelsDailyRequests = 200
	defaultYouTubeDailyUnits   = 10000
	defaultResumeLookbackHours = 48

	defaultLLMBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel      = "google/gemini-3-flash-preview"
	defaultLLMTimeout    = 60
	defaultPexelsBaseURL = "https://api.pexels.com"
	defaultPexelsTimeout = 30
	defaultPexelsWorkers = 4

	defaultYouTubeCategoryID    = "22"
	defaultYouTubePrivacy       = "public"
	defaultYouTubeUploadCost    = 1600
	defaultYouTubeClientSecrets = "~/.config/shortline/client_secrets.json"
	defaultYouTubeTokenDir      = "~/.config/shortline/tokens"

	defaultNotifyRequestTimeout = 10
	defaultNotifyDedupWindow    = 600

	defaultSupervisorPollInterval     = 10
	defaultSupervisorBackoffThreshold = 3
	defaultSupervisorBackoffBase      = 5
	defaultSupervisorBackoffMax       = 300
	defaultSupervisorValidationRetry  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Workflow: Workflow{
			TickInterval:           defaultTickInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			StagingIntervalMins:    defaultStagingIntervalMins,
			GenerateTimeout:        defaultGenerateTimeout,
			UploadTimeout:          defaultUploadTimeout,
			HeartbeatInterval:      defaultHeartbeatInterval,
			HeartbeatTimeout:       defaultHeartbeatTimeout,
			DefaultPostIntervalHrs: defaultPostIntervalHours,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryMaxAttempts,
			BaseDelaySeconds: defaultRetryBaseDelay,
			MaxDelaySeconds:  defaultRetryMaxDelay,
			Multiplier:       defaultRetryMultiplier,
		},
		Quota: Quota{
			LLMDailyRequests:    defaultLLMDailyRequests,
			PexelsDailyRequests: defaultPexelsDailyRequests,
			YouTubeDailyUnits:   defaultYouTubeDailyUnits,
			ResumeLookbackHours: defaultResumeLookbackHours,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Pexels: Pexels{
			BaseURL:         defaultPexelsBaseURL,
			TimeoutSeconds:  defaultPexelsTimeout,
			DownloadWorkers: defaultPexelsWorkers,
		},
		YouTube: YouTube{
			ClientSecretsPath: defaultYouTubeClientSecrets,
			TokenDir:          defaultYouTubeTokenDir,
			CategoryID:        defaultYouTubeCategoryID,
			PrivacyStatus:     defaultYouTubePrivacy,
			UploadCostUnits:   defaultYouTubeUploadCost,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			VideoPosted:        true,
			ChannelPaused:      true,
			QuotaExhausted:     true,
			DaemonRestarts:     true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindow,
		},
		Supervisor: Supervisor{
			PollInterval:        defaultSupervisorPollInterval,
			BackoffThreshold:    defaultSupervisorBackoffThreshold,
			BackoffBaseSeconds:  defaultSupervisorBackoffBase,
			BackoffMaxSeconds:   defaultSupervisorBackoffMax,
			ValidationRetrySecs: defaultSupervisorValidationRetry,
		},
	}
}
