package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	UploadDir string `toml:"upload_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Transcription contains configuration for the Whisper-compatible transcription API.
type Transcription struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Prosody contains configuration for the local prosodic analyzer.
type Prosody struct {
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
	MinPauseMS         int     `toml:"min_pause_ms"`
	FrameMS            int     `toml:"frame_ms"`
}

// LLM contains the chat completion settings used by the feedback stage.
type LLM struct {
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	Model               string  `toml:"model"`
	Temperature         float64 `toml:"temperature"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	StageTimeoutSeconds int     `toml:"stage_timeout_seconds"`
	RetryAttempts       int     `toml:"retry_attempts"`
}

// Workflow contains configuration for daemon timing and concurrency.
type Workflow struct {
	PollIntervalSeconds       int `toml:"poll_interval_seconds"`
	ErrorRetryIntervalSeconds int `toml:"error_retry_interval_seconds"`
	MaxConcurrent             int `toml:"max_concurrent"`
	StallTimeoutSeconds       int `toml:"stall_timeout_seconds"`
	WatchdogIntervalSeconds   int `toml:"watchdog_interval_seconds"`
}

// Upload contains limits enforced on incoming recordings.
type Upload struct {
	MaxSizeMB int `toml:"max_size_mb"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for classcoach.
//
// Configuration sections by subsystem:
//   - Paths: database, upload and log directories plus the API bind address
//   - Transcription: Whisper-compatible speech-to-text API
//   - Prosody: local speech-pattern analyzer tuning
//   - LLM: chat completion API used for teaching feedback
//   - Workflow: polling, concurrency and stalled-record detection
//   - Upload: size limits for incoming recordings
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Prosody       Prosody       `toml:"prosody"`
	LLM           LLM           `toml:"llm"`
	Workflow      Workflow      `toml:"workflow"`
	Upload        Upload        `toml:"upload"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`

	dotenv map[string]string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	dotenv, err := readDotenv()
	if err != nil {
		return nil, "", false, err
	}
	cfg.dotenv = dotenv

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// readDotenv parses the optional .env file without mutating the process
// environment. Real environment variables always win over .env entries.
func readDotenv() (map[string]string, error) {
	path := defaultEnvFile
	if value, ok := os.LookupEnv(envConfigDotenv); ok && strings.TrimSpace(value) != "" {
		path = strings.TrimSpace(value)
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) lookupEnv(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	if value, ok := c.dotenv[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	return "", false
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.UploadDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the analysis database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "analyses.db")
}

// LockPath returns the location of the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "classcoachd.lock")
}

// TranscriptionTimeout returns the stage ceiling for transcription calls.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// ProsodyTimeout returns the stage ceiling for prosodic analysis.
func (c *Config) ProsodyTimeout() time.Duration {
	return time.Duration(c.Prosody.TimeoutSeconds) * time.Second
}

// FeedbackTimeout returns the stage ceiling for feedback generation.
func (c *Config) FeedbackTimeout() time.Duration {
	return time.Duration(c.LLM.StageTimeoutSeconds) * time.Second
}

// PollInterval returns how often the workflow manager looks for new submissions.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalSeconds) * time.Second
}

// StallTimeout returns how long a record may sit in a processing status before
// the watchdog marks it stalled.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Workflow.StallTimeoutSeconds) * time.Second
}

// WatchdogInterval returns how often the stalled-record sweep runs.
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.Workflow.WatchdogIntervalSeconds) * time.Second
}

// APIBaseURL returns the HTTP base URL clients use to reach the daemon API.
func (c *Config) APIBaseURL() string {
	host, port, err := net.SplitHostPort(c.Paths.APIBind)
	if err != nil {
		return "http://" + c.Paths.APIBind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// MaxUploadBytes returns the upload size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
