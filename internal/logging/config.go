package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Config is the logger configuration, read from the LOG_* variables.
type Config struct {
	// Minimum level (debug, info, warn, error, fatal). Empty selects info.
	Level string `env:"LOG_LEVEL"`
	// json or text
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	// stdout, stderr or a file path
	Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var format Format
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		format = JSONFormat
	case "text":
		format = TextFormat
	default:
		return nil, optimization.InvalidArgument("LOG_FORMAT", cfg.Format, "expected json or text")
	}

	output, err := getOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	return New(level, output).WithFormat(format), nil
}

// ParseLevel converts a string log level to LogLevel. The empty string
// selects InfoLevel.
func ParseLevel(level string) (LogLevel, error) {
	if level == "" {
		return InfoLevel, nil
	}
	l := LogLevel(strings.ToUpper(level))
	if _, ok := severity[l]; !ok {
		return "", optimization.InvalidArgument("LOG_LEVEL", level, "expected one of debug, info, warn, error, fatal")
	}
	return l, nil
}

func getOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log output")
	}
	return file, nil
}
