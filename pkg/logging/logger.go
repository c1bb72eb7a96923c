// Package logging hands out one logrus entry per component, configured from
// LOG_LEVEL and LOG_FORMAT.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	base     *logrus.Logger
	baseOnce sync.Once
)

// Config controls the shared logger. Zero values fall back to the environment.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "text" (default) or "json"
	Output io.Writer
}

// Configure replaces the shared logger settings. Loggers already handed out
// keep pointing at the shared logger, so the change applies to them too.
func Configure(cfg Config) {
	logger := root()

	levelStr := cfg.Level
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	format := cfg.Format
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&TextFormatter{})
	}

	if cfg.Output != nil {
		logger.SetOutput(cfg.Output)
	}
}

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := root().WithField("component", component)
	loggers[component] = entry
	return entry
}

func root() *logrus.Logger {
	baseOnce.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&TextFormatter{})
		if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
			base.SetLevel(level)
		}
	})
	return base
}
