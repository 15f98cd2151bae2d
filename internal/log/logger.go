// SPDX-License-Identifier: MIT
//
// Package log is the application-wide leveled logger. It keeps a small
// package-level API (Debugf, Infof, ...) so call sites stay terse, and routes
// everything through a zap core whose level can be changed at runtime.
//
// Nothing in this package may be called from the audio callback.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// --- Global Logger State ---

var (
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

func init() {
	SetOutput(os.Stderr)
}

// newCore builds a console core that writes date, time with microseconds and
// the level, matching the layout operators are used to from the CLI.
func newCore(w zapcore.WriteSyncer) zapcore.Core {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeCaller = nil
	enc.CallerKey = ""
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), w, atomicLevel)
}

// SetOutput redirects all log output to w. Mostly useful in tests.
func SetOutput(w io.Writer) {
	l := zap.New(newCore(zapcore.Lock(zapcore.AddSync(w)))).Sugar()

	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	atomicLevel.SetLevel(level.zapLevel())
}

// GetLevel gets the current global logging level.
func GetLevel() LogLevel {
	switch atomicLevel.Level() {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.WarnLevel:
		return LevelWarn
	case zapcore.ErrorLevel:
		return LevelError
	case zapcore.FatalLevel, zapcore.PanicLevel, zapcore.DPanicLevel:
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Sync flushes any buffered log entries.
func Sync() error {
	return current().Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) {
	current().Debugf(format, v...)
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) {
	current().Infof(format, v...)
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) {
	current().Warnf(format, v...)
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) {
	current().Errorf(format, v...)
}

// Fatalf logs a formatted fatal message and exits the application.
func Fatalf(format string, v ...any) {
	current().Fatalf(format, v...)
}

// Debug logs a debug message if the level is appropriate.
func Debug(v ...any) {
	current().Debug(fmt.Sprint(v...))
}

// Info logs an info message if the level is appropriate.
func Info(v ...any) {
	current().Info(fmt.Sprint(v...))
}

// Warn logs a warning message if the level is appropriate.
func Warn(v ...any) {
	current().Warn(fmt.Sprint(v...))
}

// Error logs an error message if the level is appropriate.
func Error(v ...any) {
	current().Error(fmt.Sprint(v...))
}
