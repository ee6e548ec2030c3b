package common

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/berrythewa/inspiration-daemon/internal/config"
)

// LogFileName is the file written under log.dir when file logging is on.
const LogFileName = "inspirationd.log"

// LoggerOptions carries the CLI verbosity flags.
type LoggerOptions struct {
	Verbose bool
	Quiet   bool
}

// NewLogger creates a new logger instance
func NewLogger(cfg *config.Config, opts LoggerOptions) (*zap.Logger, error) {
	var zc zap.Config

	switch {
	case opts.Verbose:
		zc = zap.NewDevelopmentConfig()
	default:
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			level = zapcore.InfoLevel
		}
		if opts.Quiet && level < zapcore.WarnLevel {
			level = zapcore.WarnLevel
		}
		zc = zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	if cfg.Log.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	if cfg.Log.EnableFileLogging && cfg.Log.Dir != "" {
		if err := os.MkdirAll(cfg.Log.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = append(zc.OutputPaths, filepath.Join(cfg.Log.Dir, LogFileName))
	}

	return zc.Build()
}
