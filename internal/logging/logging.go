// Package logging constructs the process-wide zap.Logger. Every component
// in this module takes a *zap.Logger explicitly rather than reaching for a
// package-level global, so tests can pass zap.NewNop() and production
// wiring can pass a configured sink.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction (spec SPEC_FULL §ambient logging).
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info".
	Level string

	// Format is "console" or "json". Default: "console" for a developer
	// workstation feel, matching how the drone and controller binaries
	// are typically run interactively during development.
	Format string

	// Development puts the logger in zap's development mode, in which
	// DPanic-level logs panic. Caller info is added in either mode.
	Development bool
}

// New builds a *zap.Logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logging: invalid level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	format := cfg.Format
	if format == "" {
		format = "console"
	}

	var encoder zapcore.Encoder
	switch format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	case "console":
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(consoleCfg)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}
