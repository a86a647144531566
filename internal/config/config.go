// Package config loads CLI configuration from environment variables.
//
// Configuration is declared as tagged struct fields and populated by a
// reflection-based loader. Supported tags:
//
//	env      - primary environment variable name
//	envAlt   - fallback environment variable name
//	default  - value applied when neither variable is set
//	required - "true" to fail loading when the value is missing
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all runtime configuration for the ocldev CLI.
type Config struct {
	API     APIConfig
	Import  ImportConfig
	Export  ExportConfig
	Logging LoggingConfig
}

// APIConfig describes the OCL API endpoint and credentials.
type APIConfig struct {
	URL     string        `env:"OCL_API_URL" envAlt:"OCL_ENV" default:"https://api.openconceptlab.org"`
	Token   string        `env:"OCL_API_TOKEN"`
	Timeout time.Duration `env:"OCL_API_TIMEOUT" default:"120s"`
}

// ImportConfig controls bulk-import submission and polling.
type ImportConfig struct {
	Queue        string        `env:"OCL_IMPORT_QUEUE"`
	PollDelay    time.Duration `env:"OCL_IMPORT_POLL_DELAY" default:"5s"`
	MaxPollDelay time.Duration `env:"OCL_IMPORT_MAX_POLL_DELAY" default:"30s"`
	MaxWait      time.Duration `env:"OCL_IMPORT_MAX_WAIT" default:"120m"`
	TestMode     bool          `env:"OCL_IMPORT_TEST_MODE" default:"false"`
}

// ExportConfig controls export download and generation polling.
type ExportConfig struct {
	PollDelay time.Duration `env:"OCL_EXPORT_POLL_DELAY" default:"5s"`
	MaxWait   time.Duration `env:"OCL_EXPORT_MAX_WAIT" default:"10m"`
}

// LoggingConfig controls log verbosity and output format.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.API.URL == "" {
		errs = append(errs, "OCL_API_URL is required")
	}
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		errs = append(errs, fmt.Sprintf("OCL_API_URL (%q) must start with http:// or https://", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, "OCL_API_TIMEOUT must be positive")
	}

	if c.Import.PollDelay <= 0 {
		errs = append(errs, "OCL_IMPORT_POLL_DELAY must be positive")
	}
	if c.Import.MaxPollDelay < c.Import.PollDelay {
		errs = append(errs, fmt.Sprintf("OCL_IMPORT_MAX_POLL_DELAY (%s) must be >= OCL_IMPORT_POLL_DELAY (%s)",
			c.Import.MaxPollDelay, c.Import.PollDelay))
	}
	if c.Import.MaxWait <= 0 {
		errs = append(errs, "OCL_IMPORT_MAX_WAIT must be positive")
	}

	if c.Export.PollDelay <= 0 {
		errs = append(errs, "OCL_EXPORT_POLL_DELAY must be positive")
	}
	if c.Export.MaxWait <= 0 {
		errs = append(errs, "OCL_EXPORT_MAX_WAIT must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The API token is masked.
func (c *Config) String() string {
	token := "[UNSET]"
	if c.API.Token != "" {
		token = "[MASKED]"
	}
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("API: {URL: %q, Token: %s, Timeout: %s}, ", c.API.URL, token, c.API.Timeout))
	b.WriteString(fmt.Sprintf("Import: {Queue: %q, PollDelay: %s, MaxWait: %s, TestMode: %v}, ",
		c.Import.Queue, c.Import.PollDelay, c.Import.MaxWait, c.Import.TestMode))
	b.WriteString(fmt.Sprintf("Export: {PollDelay: %s, MaxWait: %s}, ", c.Export.PollDelay, c.Export.MaxWait))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
