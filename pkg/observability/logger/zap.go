package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum level that gets written.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogFormat selects the encoder.
type LogFormat string

const (
	// JSONFormat writes one JSON object per entry.
	JSONFormat LogFormat = "json"
	// TextFormat writes zap's console encoding, suited to a terminal.
	TextFormat LogFormat = "text"
)

var (
	levels = map[LogLevel]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
	}
	levelAliases = map[string]LogLevel{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	formatAliases = map[string]LogFormat{
		"json":    JSONFormat,
		"text":    TextFormat,
		"console": TextFormat,
	}
)

// Config holds logger settings. Output defaults to stderr so command output
// on stdout stays clean.
type Config struct {
	Level  LogLevel
	Format LogFormat
	Output io.Writer
}

// DefaultConfig returns info level text logging.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Format: TextFormat}
}

// ZapLogger implements Logger on top of zap's sugared logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a ZapLogger from cfg. Empty level and format mean
// info and text.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	if cfg.Level == "" {
		cfg.Level = InfoLevel
	}
	level, ok := levels[cfg.Level]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{sugar: base.Sugar()}, nil
}

func newEncoder(format LogFormat) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder

	switch format {
	case JSONFormat:
		return zapcore.NewJSONEncoder(ec), nil
	case TextFormat, "":
		return zapcore.NewConsoleEncoder(ec), nil
	}
	return nil, fmt.Errorf("invalid log format: %s", format)
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// With creates a child logger.
func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(args...)}
}

// WithContext tags entries with the request ID carried by ctx.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return l.With("request_id", id)
}

// Sync flushes buffered entries. Call it before the process exits.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

// ParseLogLevel converts a config string to a LogLevel.
func ParseLogLevel(level string) (LogLevel, error) {
	if parsed, ok := levelAliases[strings.ToLower(strings.TrimSpace(level))]; ok {
		return parsed, nil
	}
	return "", fmt.Errorf("invalid log level: %s", level)
}

// ParseLogFormat converts a config string to a LogFormat.
func ParseLogFormat(format string) (LogFormat, error) {
	if parsed, ok := formatAliases[strings.ToLower(strings.TrimSpace(format))]; ok {
		return parsed, nil
	}
	return "", fmt.Errorf("invalid log format: %s", format)
}
