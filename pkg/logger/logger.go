// Package logger provides the service's structured logging facade, built on
// github.com/charmbracelet/log: a centralized factory that hands out
// category-prefixed child loggers, with level and format configured once at
// process start.
//
// All log output goes to stderr so that stdout stays free for any
// structured command output emitted by cmd/flowctl.
package logger

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Category tags a logger with the subsystem it belongs to. Every log line
// carries its category as a bracketed prefix, e.g. "[engine] step failed".
type Category string

const (
	CategoryEngine     Category = "engine"
	CategoryAPI        Category = "api"
	CategoryStore      Category = "store"
	CategoryParser     Category = "parser"
	CategoryValidation Category = "validation"
	CategoryEventBus   Category = "eventbus"
	CategorySweeper    Category = "sweeper"
	CategoryCLI        Category = "cli"
	CategoryConfig     Category = "config"
)

var (
	mu       sync.Mutex
	cache    = map[Category]*log.Logger{}
	rootOnce sync.Once
)

func root() *log.Logger {
	rootOnce.Do(func() {
		log.SetOutput(os.Stderr)
		log.SetReportTimestamp(true)
	})
	return log.Default()
}

// Setup configures the global logging defaults. Call once during process
// startup, before any category logger is first used — charmbracelet/log
// child loggers copy level/formatter state at creation time, so changes
// made after a child is created do not propagate to it.
func Setup(levelName string, jsonFormat bool) error {
	level := log.InfoLevel
	if levelName != "" {
		parsed, err := log.ParseLevel(levelName)
		if err != nil {
			return err
		}
		level = parsed
	}

	mu.Lock()
	defer mu.Unlock()

	root().SetLevel(level)
	if jsonFormat {
		root().SetFormatter(log.JSONFormatter)
	} else {
		root().SetFormatter(log.TextFormatter)
	}
	// Clear the cache so subsequently-requested category loggers inherit
	// the newly applied settings instead of stale ones.
	cache = map[Category]*log.Logger{}
	return nil
}

// For returns the (cached) logger for category, creating it on first use.
func For(category Category) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := cache[category]; ok {
		return l
	}
	l := root().WithPrefix(string(category))
	cache[category] = l
	return l
}

// InfoC logs an info-level message with structured key/value pairs under category.
func InfoC(category Category, msg string, keyvals ...interface{}) { For(category).Info(msg, keyvals...) }

// InfoCF logs a printf-style info-level message under category.
func InfoCF(category Category, format string, args ...interface{}) { For(category).Infof(format, args...) }

// WarnC logs a warn-level message with structured key/value pairs under category.
func WarnC(category Category, msg string, keyvals ...interface{}) { For(category).Warn(msg, keyvals...) }

// WarnCF logs a printf-style warn-level message under category.
func WarnCF(category Category, format string, args ...interface{}) { For(category).Warnf(format, args...) }

// ErrorC logs an error-level message with structured key/value pairs under category.
func ErrorC(category Category, msg string, keyvals ...interface{}) {
	For(category).Error(msg, keyvals...)
}

// ErrorCF logs a printf-style error-level message under category.
func ErrorCF(category Category, format string, args ...interface{}) {
	For(category).Errorf(format, args...)
}

// DebugC logs a debug-level message with structured key/value pairs under category.
func DebugC(category Category, msg string, keyvals ...interface{}) {
	For(category).Debug(msg, keyvals...)
}

// DebugCF logs a printf-style debug-level message under category.
func DebugCF(category Category, format string, args ...interface{}) {
	For(category).Debugf(format, args...)
}
