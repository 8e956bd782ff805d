package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LevelEnv names the environment variable holding the initial log level.
const LevelEnv = "BOARD_LOCATOR_LOG_LEVEL"

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()

	// stdout carries the MCP protocol, so logs go to stderr
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(ParseLevel(os.Getenv(LevelEnv)))

	// Set JSON formatter for structured logging
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}

// ParseLevel maps a level name to a logrus level. Unknown or empty names
// fall back to Info.
func ParseLevel(name string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel changes the level of the shared logger.
func SetLevel(name string) {
	Logger.SetLevel(ParseLevel(name))
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// Info logs an info message
func Info(msg string) {
	Logger.Info(msg)
}
