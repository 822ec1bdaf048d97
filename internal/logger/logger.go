// Package logger builds the zerolog loggers handed to every ledger component.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log level and output format.
type Config struct {
	Level      string    `yaml:"level"`
	TimeFormat string    `yaml:"time_format"`
	Pretty     bool      `yaml:"pretty"`
	Out        io.Writer `yaml:"-"` // defaults to stderr
}

// Default is the configuration New uses.
func Default() Config {
	return Config{Level: "info", TimeFormat: time.RFC3339}
}

// New returns an info-level JSON logger on stderr.
func New() zerolog.Logger {
	return NewWithConfig(Default())
}

// NewWithConfig builds a logger from cfg. An unknown level falls back to info.
func NewWithConfig(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			FormatLevel: func(i any) string {
				s, _ := i.(string)
				return colorizeLevel(s)
			},
		}
	}

	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "gnuledger").
		Logger()
}

func colorizeLevel(level string) string {
	switch level {
	case "trace":
		return "\033[35m" + level + "\033[0m"
	case "debug":
		return "\033[36m" + level + "\033[0m"
	case "info":
		return "\033[32m" + level + "\033[0m"
	case "warn":
		return "\033[33m" + level + "\033[0m"
	case "error", "fatal", "panic":
		return "\033[31m" + level + "\033[0m"
	default:
		return level
	}
}
