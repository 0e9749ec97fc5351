package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger provides structured key-value logging for the worker.
type Logger struct {
	component string
	logger    *log.Logger
	debug     bool
}

// NewLogger creates a logger scoped to a component. Debug output is gated by
// the CATEGORIZE_DEBUG environment variable.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stdout, fmt.Sprintf("[%s] ", component), log.LstdFlags),
		debug:     os.Getenv("CATEGORIZE_DEBUG") != "",
	}
}

// Info logs an informational message with key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs when debug mode is on.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if !l.debug {
		return
	}
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...interface{}) {
	kvStr := ""
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		kvStr += fmt.Sprintf(" %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.logger.Printf("[%s] %s%s", level, msg, kvStr)
}
