// Package common holds the process-wide helpers shared by the command line
// tool: logger construction, run identifiers and stage timers.
package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// LogConfig holds logger configuration options
type LogConfig struct {
	// Level is the minimum level: debug, info, warn or error
	Level string
	// Format is console or json
	Format string
	// Output defaults to stderr so stdout carries only results
	Output io.Writer
}

// NewLogger creates a zap logger from cfg.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case FormatJSON:
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatConsole, "text", "":
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	var out zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if cfg.Output != nil {
		out = zapcore.Lock(zapcore.AddSync(cfg.Output))
	}
	return zap.New(zapcore.NewCore(encoder, out, level)), nil
}

// NewRunID generates a unique identifier of one run
func NewRunID() string {
	return uuid.NewString()
}

// Timer logs the time taken by a stage when the returned func is called
func Timer(logger *zap.Logger, stage string) func(fields ...zap.Field) {
	start := time.Now()
	return func(fields ...zap.Field) {
		fields = append(fields, zap.String("stage", stage), zap.Duration("elapsed", time.Since(start)))
		logger.Info("stage finished", fields...)
	}
}
