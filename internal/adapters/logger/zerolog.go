package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config describes logger runtime configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Caller bool
	Output io.Writer // defaults to os.Stderr
}

// ZerologLogger implements the ports.Logger interface using zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
}

// New constructs a zerolog-backed logger from config.
func New(cfg Config) *ZerologLogger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil && cfg.Level != "" {
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	builder := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Caller {
		builder = builder.CallerWithSkipFrameCount(3)
	}
	return &ZerologLogger{logger: builder.Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *ZerologLogger {
	return &ZerologLogger{logger: zerolog.Nop()}
}

// With returns a child logger that adds a component field to every entry.
func (l *ZerologLogger) With(component string) *ZerologLogger {
	return &ZerologLogger{logger: l.logger.With().Str("component", component).Logger()}
}

// Level returns the configured minimum level.
func (l *ZerologLogger) Level() string {
	return l.logger.GetLevel().String()
}

func (l *ZerologLogger) write(e *zerolog.Event, msg string, fields ...map[string]interface{}) {
	for _, f := range fields {
		if f != nil {
			e = e.Fields(f)
		}
	}
	e.Msg(msg)
}

// Debug logs a message at Debug level.
func (l *ZerologLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(l.logger.Debug(), msg, fields...)
}

// Info logs a message at Info level.
func (l *ZerologLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(l.logger.Info(), msg, fields...)
}

// Warn logs a message at Warning level.
func (l *ZerologLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(l.logger.Warn(), msg, fields...)
}

// Error logs an error message at Error level.
func (l *ZerologLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.write(l.logger.Error().Err(err), msg, fields...)
}
