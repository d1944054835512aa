// Package logger builds the zap logger shared by the engine, the listener and
// the script host
package logger

import (
	"github.com/eternalApril/moonmock/internal/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger from the log section of the config.
// Level is one of debug, info, warn, error; an unknown level falls back to info.
// Format "console" gives human readable development output, anything else json
func New(cfg config.LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoding := "json"
	levelEncoder := zapcore.LowercaseLevelEncoder
	if cfg.Format == "console" {
		encoding = "console"
		levelEncoder = zapcore.CapitalColorLevelEncoder
	}

	output := cfg.Output
	if output == "" {
		output = "stderr"
	}

	zc := zap.Config{
		Level:       zap.NewAtomicLevelAt(lvl),
		Development: encoding == "console",
		Encoding:    encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    levelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	log, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return log.Named("moonmock"), nil
}

// Quiet returns a logger for embedded use that only reports errors
func Quiet() *zap.Logger {
	log, err := New(config.LogConfig{Level: "error", Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return log
}
