package config

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

var ErrFileDoesNotExist = errors.New("config file does not exist")
var ErrReadConfigFail = errors.New("failed to read config file")
var ErrConfigParsingFail = errors.New("failed to parse config file")
var ErrInvalidConfig = errors.New("invalid config")

// ConfigError reports a validation failure. Misconfiguration is always fatal:
// the crawl must not start with a config that failed validation.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}
