package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	Logger *log.Logger
	mu     sync.Mutex
)

// LogLevel represents available log levels
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// InitLogger initializes the global logger writing to stderr.
func InitLogger(level, format string) {
	InitLoggerWithOutput(os.Stderr, level, format)
}

// InitLoggerWithOutput initializes the global logger writing to w.
func InitLoggerWithOutput(w io.Writer, level, format string) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(w, level, format)
}

func initLogger(w io.Writer, level, format string) {
	Logger = log.New(w)

	logLevel := parseLogLevel(level)
	setLogLevel(Logger, logLevel)
	setFormatter(Logger, format)

	Logger.SetReportTimestamp(true)
	Logger.SetPrefix("txlab")

	Logger.Debug("Logger initialized successfully", "level", logLevel, "format", format)
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// setLogLevel configures the logger with the specified level
func setLogLevel(logger *log.Logger, level LogLevel) {
	switch level {
	case DebugLevel:
		logger.SetLevel(log.DebugLevel)
	case WarnLevel:
		logger.SetLevel(log.WarnLevel)
	case ErrorLevel:
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

func setFormatter(logger *log.Logger, format string) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}
}

// GetLogger returns the global logger instance, creating it from
// LOG_LEVEL and LOG_FORMAT on first use. Safe for concurrent callers.
func GetLogger() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if Logger == nil {
		initLogger(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	}
	return Logger
}

// WithFields creates a logger with contextual fields
func WithFields(fields ...interface{}) *log.Logger {
	return GetLogger().With(fields...)
}

// WithRun tags logger with an experiment run
func WithRun(logger *log.Logger, runID, experiment string) *log.Logger {
	return logger.With("run_id", runID, "experiment", experiment)
}

// WithWorker creates a logger tagged with a worker id
func WithWorker(logger *log.Logger, workerID int) *log.Logger {
	return logger.With("worker", workerID)
}
