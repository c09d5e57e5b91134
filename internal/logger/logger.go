// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger instance. Set by InitLogger at process boot.
var Log *zap.Logger

const stageProd = "prod"

const sentryFlushTimeout = 2 * time.Second

// sentryEnabled tracks whether InitSentry was called with a non-empty
// DSN, so Fatal/RecoverPanic can skip the capture call otherwise.
var sentryEnabled bool

// InitLogger builds the global logger for the given deploy stage
// ("local", "dev", "prod"). Production gets JSON output with an
// ISO8601 timestamp key; every other stage gets a colorized console
// encoder.
func InitLogger(stage string) {
	var config zap.Config
	if stage == stageProd {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := config.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	Log = built
}

// InitSentry wires panic/Fatal reporting for the given deploy stage.
// dsn may be empty — Sentry stays disabled and Fatal/RecoverPanic fall
// back to logging only, matching the rest of the pack's
// DSN-empty-means-disabled convention.
func InitSentry(dsn, stage, release string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      stage,
		Release:          release,
		AttachStacktrace: true,
		TracesSampleRate: 1.0,
	}); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	sentryEnabled = true
	return nil
}

// Info logs a message at InfoLevel.
func Info(msg string, fields ...zapcore.Field) { Log.Info(msg, fields...) }

// Error logs a message at ErrorLevel.
func Error(msg string, fields ...zapcore.Field) { Log.Error(msg, fields...) }

// Debug logs a message at DebugLevel.
func Debug(msg string, fields ...zapcore.Field) { Log.Debug(msg, fields...) }

// Warn logs a message at WarnLevel.
func Warn(msg string, fields ...zapcore.Field) { Log.Warn(msg, fields...) }

// Fatal logs a message at FatalLevel, captures it to Sentry (if
// InitSentry was called with a non-empty DSN) and flushes the report
// before zap's Fatal hook exits the process.
func Fatal(msg string, fields ...zapcore.Field) {
	if sentryEnabled {
		sentry.CaptureMessage(msg)
		sentry.Flush(sentryFlushTimeout)
	}
	Log.Fatal(msg, fields...)
}

// RecoverPanic is deferred first thing in every cmd/* main(): it
// reports an in-flight panic to Sentry, flushes, and re-panics so the
// process still exits non-zero the way it would without Sentry wired.
func RecoverPanic() {
	if r := recover(); r != nil {
		if sentryEnabled {
			sentry.CurrentHub().Recover(r)
			sentry.Flush(sentryFlushTimeout)
		}
		panic(r)
	}
}

// With returns a child logger carrying the given structured fields.
func With(fields ...zapcore.Field) *zap.Logger { return Log.With(fields...) }

// Sync flushes any buffered log entries.
func Sync() error { return Log.Sync() }
