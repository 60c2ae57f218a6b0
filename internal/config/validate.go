package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProsody(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q must be host:port: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateProsody() error {
	if c.Prosody.SilenceThresholdDB >= 0 {
		return errors.New("prosody.silence_threshold_db must be negative (dBFS)")
	}
	if c.Prosody.FrameMS > 500 {
		return errors.New("prosody.frame_ms must be at most 500")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollIntervalSeconds < 0 {
		return errors.New("workflow.poll_interval_seconds must not be negative")
	}
	if c.Workflow.StallTimeoutSeconds < 0 {
		return errors.New("workflow.stall_timeout_seconds must not be negative")
	}
	if c.Workflow.StallTimeoutSeconds == 0 {
		return nil
	}
	longest := c.Transcription.TimeoutSeconds
	for _, value := range []int{c.Prosody.TimeoutSeconds, c.LLM.StageTimeoutSeconds} {
		if value > longest {
			longest = value
		}
	}
	if c.Workflow.StallTimeoutSeconds <= longest {
		return fmt.Errorf("workflow.stall_timeout_seconds (%d) must exceed the longest stage timeout (%d)", c.Workflow.StallTimeoutSeconds, longest)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxSizeMB <= 0 {
		return errors.New("upload.max_size_mb must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
