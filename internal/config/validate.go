package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
// It returns all problems found rather than stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.DataDir == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if c.Paths.StagingDir == "" {
		problems = append(problems, "paths.staging_dir must not be empty")
	}
	if c.Paths.LogDir == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	switch c.YouTube.PrivacyStatus {
	case "public", "unlisted", "private":
	default:
		problems = append(problems, fmt.Sprintf("youtube.privacy_status must be public, unlisted, or private, got %q", c.YouTube.PrivacyStatus))
	}

	if c.Retry.Multiplier <= 1 {
		problems = append(problems, "retry.multiplier must be greater than 1")
	}
	if c.Retry.BaseDelaySeconds > c.Retry.MaxDelaySeconds {
		problems = append(problems, "retry.base_delay_seconds must not exceed retry.max_delay_seconds")
	}

	if c.Workflow.HeartbeatInterval >= c.Workflow.HeartbeatTimeout {
		problems = append(problems, "workflow.heartbeat_interval must be less than workflow.heartbeat_timeout")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
