package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Workflow contains orchestrator timing configuration. All values are seconds
// unless the name says otherwise.
type Workflow struct {
	TickInterval           int `toml:"tick_interval"`
	ErrorRetryInterval     int `toml:"error_retry_interval"`
	StagingIntervalMins    int `toml:"staging_interval_minutes"`
	GenerateTimeout        int `toml:"generate_timeout"`
	UploadTimeout          int `toml:"upload_timeout"`
	HeartbeatInterval      int `toml:"heartbeat_interval"`
	HeartbeatTimeout       int `toml:"heartbeat_timeout"`
	DefaultPostIntervalHrs int `toml:"default_post_interval_hours"`
}

// Retry configures the shared retry policy for transient collaborator
// failures.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	BaseDelaySeconds int     `toml:"base_delay_seconds"`
	MaxDelaySeconds  int     `toml:"max_delay_seconds"`
	Multiplier       float64 `toml:"multiplier"`
}

// Quota configures daily budgets for the shared external resources.
type Quota struct {
	LLMDailyRequests    int `toml:"llm_daily_requests"`
	PexelsDailyRequests int `toml:"pexels_daily_requests"`
	YouTubeDailyUnits   int `toml:"youtube_daily_units"`
	ResumeLookbackHours int `toml:"resume_lookback_hours"`
}

// LLM contains the script-generation endpoint settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pexels contains the stock footage API settings.
type Pexels struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	DownloadWorkers int    `toml:"download_workers"`
}

// YouTube contains upload credentials and defaults.
type YouTube struct {
	ClientSecretsPath string `toml:"client_secrets_path"`
	TokenDir          string `toml:"token_dir"`
	CategoryID        string `toml:"category_id"`
	PrivacyStatus     string `toml:"privacy_status"`
	UploadCostUnits   int    `toml:"upload_cost_units"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	VideoPosted        bool   `toml:"video_posted"`
	ChannelPaused      bool   `toml:"channel_paused"`
	QuotaExhausted     bool   `toml:"quota_exhausted"`
	DaemonRestarts     bool   `toml:"daemon_restarts"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Supervisor contains restart policy for the daemon child process.
type Supervisor struct {
	PollInterval        int `toml:"poll_interval"`
	BackoffThreshold    int `toml:"backoff_threshold"`
	BackoffBaseSeconds  int `toml:"backoff_base_seconds"`
	BackoffMaxSeconds   int `toml:"backoff_max_seconds"`
	ValidationRetrySecs int `toml:"validation_retry_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Workflow      Workflow      `toml:"workflow"`
	Retry         Retry         `toml:"retry"`
	Quota         Quota         `toml:"quota"`
	LLM           LLM           `toml:"llm"`
	Pexels        Pexels        `toml:"pexels"`
	YouTube       YouTube       `toml:"youtube"`
	Notifications Notifications `toml:"notifications"`
	Supervisor    Supervisor    `toml:"supervisor"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return expandPath("~/.config/shortline/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load reads the configuration from path, falling back to the default
// location when path is empty. A missing file yields defaults; the second
// return value reports whether a file was actually read.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	} else {
		resolved = expandPath(resolved)
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg.normalize()
		return &cfg, resolved, false, nil
	case err != nil:
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, false, fmt.Errorf("parse config %s: %w", resolved, err)
	}
	cfg.normalize()
	return &cfg, resolved, true, nil
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	resolved := expandPath(path)
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(resolved, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
		}
	}
	return trimmed
}
