// Package logger is the printf-style logging interface every teleop package
// takes. Debug output is gated by TELEOP_DEBUG.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "TELEOP_DEBUG"

// Logger is implemented by the env, no-op and buffer loggers.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Level names a log severity as recorded by BufferLogger.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type envLogger struct {
	prefix string
}

// NewEnvLogger logs through the standard log package with prefix (e.g.
// "[serve]") in front of every line.
func NewEnvLogger(prefix string) Logger {
	return &envLogger{prefix: prefix}
}

func (l *envLogger) Debug(format string, args ...interface{}) {
	if os.Getenv(DebugEnv) != "" {
		l.printf("", format, args...)
	}
}

func (l *envLogger) Info(format string, args ...interface{}) {
	l.printf("", format, args...)
}

func (l *envLogger) Warn(format string, args ...interface{}) {
	l.printf("WARN: ", format, args...)
}

func (l *envLogger) Error(format string, args ...interface{}) {
	l.printf("ERROR: ", format, args...)
}

func (l *envLogger) printf(tag, format string, args ...interface{}) {
	log.Printf(l.prefix+" "+tag+format, args...)
}

type noopLogger struct{}

// Noop returns a logger that discards everything. The TUI uses it so log
// lines don't tear the alternate screen.
func Noop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// LogMessage is one captured line.
type LogMessage struct {
	Level   Level
	Message string
}

// BufferLogger captures messages for test assertions. It is safe for use by
// the scheduler goroutine and the test at the same time.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) Debug(format string, args ...interface{}) {
	l.record(LevelDebug, format, args...)
}

func (l *BufferLogger) Info(format string, args ...interface{}) {
	l.record(LevelInfo, format, args...)
}

func (l *BufferLogger) Warn(format string, args ...interface{}) {
	l.record(LevelWarn, format, args...)
}

func (l *BufferLogger) Error(format string, args ...interface{}) {
	l.record(LevelError, format, args...)
}

func (l *BufferLogger) record(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Lines returns a copy of the captured messages.
func (l *BufferLogger) Lines() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogMessage(nil), l.messages...)
}

// Contains reports whether any captured message contains substr.
func (l *BufferLogger) Contains(substr string) bool {
	for _, m := range l.Lines() {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// HasLevel reports whether anything was logged at level.
func (l *BufferLogger) HasLevel(level Level) bool {
	for _, m := range l.Lines() {
		if m.Level == level {
			return true
		}
	}
	return false
}
