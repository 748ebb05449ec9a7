package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"redis_browser/src/model"
)

var Logger = zerolog.Nop()

// New builds a logger from config without touching global state
func New(config model.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level '%s': %w", config.Level, err)
	}

	output, err := openOutput(config)
	if err != nil {
		return zerolog.Nop(), err
	}

	// Configure log format
	if strings.ToLower(config.Format) == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).Level(level).With().
		Timestamp().
		Logger(), nil
}

func openOutput(config model.LogConfig) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", config.FilePath, err)
		}
		return file, nil
	default:
		// stdout carries command output
		return os.Stderr, nil
	}
}

// InitLogger initializes the global logger with the provided configuration
func InitLogger(config model.LogConfig) error {
	l, err := New(config)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(l.GetLevel())
	switch strings.ToLower(config.TimeFormat) {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "iso8601":
		zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	Logger = l
	// Also set the global zerolog logger for compatibility
	log.Logger = Logger

	Logger.Debug().
		Str("level", config.Level).
		Str("format", config.Format).
		Str("output", config.Output).
		Msg("Logger initialized")

	return nil
}

// Component returns the global logger tagged with a component name
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event {
	return Logger.Debug()
}
