// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
)

const (
	// LogLevelDebug logs every launch state transition.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn reports version conflicts and other warnings only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError reports failures only.
	LogLevelError LogLevel = "error"

	// LogFormatText is the styled terminal format.
	LogFormatText LogFormat = "text"
	// LogFormatJSON emits one JSON object per record.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt emits key=value records.
	LogFormatLogfmt LogFormat = "logfmt"

	// DefaultCacheSize bounds the nested archive cache.
	DefaultCacheSize = 256
	// DefaultExtractConcurrency bounds the number of layers extracted at once.
	DefaultExtractConcurrency = 4
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level of emitted log records.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// LogFormat selects the log record encoding.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// InvalidConfigError collects the field-level errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Log     LogConfig     `json:"log" mapstructure:"log"`
		Launch  LaunchConfig  `json:"launch" mapstructure:"launch"`
		Extract ExtractConfig `json:"extract" mapstructure:"extract"`
		Verify  VerifyConfig  `json:"verify" mapstructure:"verify"`
	}

	// LogConfig configures the CLI logger.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}

	// LaunchConfig configures the launch runtime.
	LaunchConfig struct {
		// Mode is the tool-mode activation signal (BOOTPACK_MODE).
		Mode string `json:"mode,omitempty" mapstructure:"mode"`
		// CacheSize bounds the number of nested archives kept open.
		CacheSize int `json:"cache_size" mapstructure:"cache_size"`
	}

	// ExtractConfig configures layer extraction.
	ExtractConfig struct {
		Concurrency int    `json:"concurrency" mapstructure:"concurrency"`
		Destination string `json:"destination" mapstructure:"destination"`
	}

	// VerifyConfig configures integrity verification.
	VerifyConfig struct {
		// TrustedKey is the path of a key file whose public key signed
		// containers must match. Empty accepts the embedded key.
		TrustedKey string `json:"trusted_key,omitempty" mapstructure:"trusted_key"`
	}
)

func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is a known level.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

func (f LogFormat) String() string { return string(f) }

// IsValid returns whether the LogFormat is a known encoding.
func (f LogFormat) IsValid() (bool, []error) {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return true, nil
	default:
		return false, []error{&InvalidLogFormatError{Value: f}}
	}
}

func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// IsValid checks every field, including values that came from the
// environment and therefore bypassed the CUE schema.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if ok, fieldErrs := c.Log.Level.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if ok, fieldErrs := c.Log.Format.IsValid(); !ok {
		errs = append(errs, fieldErrs...)
	}
	if c.Launch.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("launch.cache_size must be positive, got %d", c.Launch.CacheSize))
	}
	if c.Extract.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("extract.concurrency must be positive, got %d", c.Extract.Concurrency))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap exposes ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Launch: LaunchConfig{
			CacheSize: DefaultCacheSize,
		},
		Extract: ExtractConfig{
			Concurrency: DefaultExtractConcurrency,
			Destination: ".",
		},
	}
}

// FallbackConfig returns the defaults used when loading fails, keeping the
// tool-mode activation signal from the environment. A launch with a mode
// set must never start the application, whatever else is broken.
func FallbackConfig() *Config {
	cfg := DefaultConfig()
	for _, key := range []string{ModeEnv, EnvPrefix + "_LAUNCH_MODE"} {
		if mode := os.Getenv(key); mode != "" {
			cfg.Launch.Mode = mode
			break
		}
	}
	return cfg
}
