package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/svm-txkit/config"
)

// Init builds the root logger from the log settings of cfg.
func Init(cfg config.Config) zerolog.Logger {
	return New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)
}

// New creates a new zerolog logger writing to stdout.
// Supports console/json format, level filtering, and optional sampling.
func New(logLevel int, logFormat string, logSampler bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, logLevel, logFormat, logSampler)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(out io.Writer, logLevel int, logFormat string, logSampler bool) zerolog.Logger {
	writer := out
	if logFormat != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(zerolog.Level(logLevel)).
		With().
		Timestamp().
		Logger()

	if logSampler {
		logger = logger.Sample(&zerolog.BasicSampler{N: 5})
	}
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("component", name).Logger()
}
