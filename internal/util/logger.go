package util

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LoggerOptions selects the encoder and level of the global logger
type LoggerOptions struct {
	Env     string
	Level   string
	Service string
}

// InitLogger initializes the global logger. Production writes JSON at info,
// "test" discards everything, any other env writes colored console output at
// debug. A non-empty Level overrides the env default.
func InitLogger(opts LoggerOptions) error {
	if opts.Env == "test" {
		logger = zap.NewNop()
		zap.ReplaceGlobals(logger)
		return nil
	}

	var config zap.Config
	if opts.Env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if opts.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}

	var fields []zap.Option
	if opts.Service != "" {
		fields = append(fields, zap.Fields(zap.String("service", opts.Service), zap.String("env", opts.Env)))
	}

	built, err := config.Build(fields...)
	if err != nil {
		return err
	}
	logger = built

	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
