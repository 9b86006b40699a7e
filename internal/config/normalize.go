package config

import "strings"

// normalize expands paths and backfills zero values with defaults so that a
// partially specified config file still yields a runnable configuration.
func (c *Config) normalize() {
	c.Paths.DataDir = expandPath(orDefault(c.Paths.DataDir, defaultDataDir))
	c.Paths.StagingDir = expandPath(orDefault(c.Paths.StagingDir, defaultStagingDir))
	c.Paths.LogDir = expandPath(orDefault(c.Paths.LogDir, defaultLogDir))

	c.Logging.Format = strings.ToLower(orDefault(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(orDefault(c.Logging.Level, defaultLogLevel))
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}

	if c.Workflow.TickInterval <= 0 {
		c.Workflow.TickInterval = defaultTickInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.StagingIntervalMins < 0 {
		c.Workflow.StagingIntervalMins = defaultStagingIntervalMins
	}
	if c.Workflow.GenerateTimeout <= 0 {
		c.Workflow.GenerateTimeout = defaultGenerateTimeout
	}
	if c.Workflow.UploadTimeout <= 0 {
		c.Workflow.UploadTimeout = defaultUploadTimeout
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.DefaultPostIntervalHrs <= 0 {
		c.Workflow.DefaultPostIntervalHrs = defaultPostIntervalHours
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if c.Retry.BaseDelaySeconds <= 0 {
		c.Retry.BaseDelaySeconds = defaultRetryBaseDelay
	}
	if c.Retry.MaxDelaySeconds <= 0 {
		c.Retry.MaxDelaySeconds = defaultRetryMaxDelay
	}
	if c.Retry.Multiplier <= 1 {
		c.Retry.Multiplier = defaultRetryMultiplier
	}

	if c.Quota.LLMDailyRequests <= 0 {
		c.Quota.LLMDailyRequests = defaultLLMDailyRequests
	}
	if c.Quota.PexelsDailyRequests <= 0 {
		c.Quota.PexelsDailyRequests = defaultPexelsDailyRequests
	}
	if c.Quota.YouTubeDailyUnits <= 0 {
		c.Quota.YouTubeDailyUnits = defaultYouTubeDailyUnits
	}
	if c.Quota.ResumeLookbackHours <= 0 {
		c.Quota.ResumeLookbackHours = defaultResumeLookbackHours
	}

	c.LLM.BaseURL = orDefault(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = orDefault(c.LLM.Model, defaultLLMModel)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}

	c.Pexels.BaseURL = orDefault(c.Pexels.BaseURL, defaultPexelsBaseURL)
	if c.Pexels.TimeoutSeconds <= 0 {
		c.Pexels.TimeoutSeconds = defaultPexelsTimeout
	}
	if c.Pexels.DownloadWorkers <= 0 {
		c.Pexels.DownloadWorkers = defaultPexelsWorkers
	}

	c.YouTube.ClientSecretsPath = expandPath(orDefault(c.YouTube.ClientSecretsPath, defaultYouTubeClientSecrets))
	c.YouTube.TokenDir = expandPath(orDefault(c.YouTube.TokenDir, defaultYouTubeTokenDir))
	c.YouTube.CategoryID = orDefault(c.YouTube.CategoryID, defaultYouTubeCategoryID)
	c.YouTube.PrivacyStatus = strings.ToLower(orDefault(c.YouTube.PrivacyStatus, defaultYouTubePrivacy))
	if c.YouTube.UploadCostUnits <= 0 {
		c.YouTube.UploadCostUnits = defaultYouTubeUploadCost
	}

	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.DedupWindowSeconds <= 0 {
		c.Notifications.DedupWindowSeconds = defaultNotifyDedupWindow
	}

	if c.Supervisor.PollInterval <= 0 {
		c.Supervisor.PollInterval = defaultSupervisorPollInterval
	}
	if c.Supervisor.BackoffThreshold <= 0 {
		c.Supervisor.BackoffThreshold = defaultSupervisorBackoffThreshold
	}
	if c.Supervisor.BackoffBaseSeconds <= 0 {
		c.Supervisor.BackoffBaseSeconds = defaultSupervisorBackoffBase
	}
	if c.Supervisor.BackoffMaxSeconds <= 0 {
		c.Supervisor.BackoffMaxSeconds = defaultSupervisorBackoffMax
	}
	if c.Supervisor.ValidationRetrySecs <= 0 {
		c.Supervisor.ValidationRetrySecs = defaultSupervisorValidationRetry
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
