// Package common provides the shared message protocol, configuration and
// logging utilities for the RPC layer.
package common

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// All RPC packages share one zap core with a runtime-adjustable level;
// GetLogger hands out named sugared loggers so every package can keep a
// package-scoped Logger variable.

var logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var baseLogger = func() *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		logLevel,
	)
	return zap.New(core)
}()

// GetLogger returns a named logger for a component (e.g. "rpc",
// "transport/tcp"). Safe to call from package init.
func GetLogger(name string) *zap.SugaredLogger {
	return baseLogger.Named(name).Sugar()
}

// SetLogLevel adjusts the level of all loggers handed out by GetLogger.
// Unknown level strings fall back to info.
func SetLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logLevel.SetLevel(zapcore.DebugLevel)
	case "warn", "warning":
		logLevel.SetLevel(zapcore.WarnLevel)
	case "error":
		logLevel.SetLevel(zapcore.ErrorLevel)
	default:
		logLevel.SetLevel(zapcore.InfoLevel)
	}
}

// InitLoggers applies the logging configuration of the server
func InitLoggers(config ServerConfig) {
	SetLogLevel(config.LogLevel)
}
