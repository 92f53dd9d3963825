package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	WithField(key string, value interface{}) Logger
}

// New creates a zerolog-backed Logger writing to out. Unknown levels
// fall back to info.
func New(out io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &ZerologAdapter{logger: &l}
}

// NewStderr creates the default service logger.
func NewStderr(level string) Logger {
	return New(os.Stderr, level)
}

// ZerologAdapter adapts zerolog.Logger to our Logger interface
type ZerologAdapter struct {
	logger *zerolog.Logger
}

func (z *ZerologAdapter) Debug(msg string) { z.logger.Debug().Msg(msg) }
func (z *ZerologAdapter) Info(msg string)  { z.logger.Info().Msg(msg) }
func (z *ZerologAdapter) Warn(msg string)  { z.logger.Warn().Msg(msg) }
func (z *ZerologAdapter) Error(msg string) { z.logger.Error().Msg(msg) }
func (z *ZerologAdapter) Fatal(msg string) { z.logger.Fatal().Msg(msg) }
func (z *ZerologAdapter) WithField(key string, value interface{}) Logger {
	newLogger := z.logger.With().Interface(key, value).Logger()
	return &ZerologAdapter{logger: &newLogger}
}

type NullLogger struct{}

func (NullLogger) Debug(msg string) {}
func (NullLogger) Info(msg string)  {}
func (NullLogger) Warn(msg string)  {}
func (NullLogger) Error(msg string) {}
func (NullLogger) Fatal(msg string) {}
func (NullLogger) WithField(key string, value interface{}) Logger {
	return NullLogger{}
}

func NewNullLogger() Logger {
	return NullLogger{}
}
