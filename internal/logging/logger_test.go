package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Logger_InitLogger_LogLevelConfiguration(t *testing.T) {
	tests := []struct {
		name          string
		logLevel      string
		expectedLevel log.Level
	}{
		{name: "debug_level", logLevel: "debug", expectedLevel: log.DebugLevel},
		{name: "info_level", logLevel: "info", expectedLevel: log.InfoLevel},
		{name: "warn_level", logLevel: "warn", expectedLevel: log.WarnLevel},
		{name: "warning_level_alias", logLevel: "warning", expectedLevel: log.WarnLevel},
		{name: "error_level", logLevel: "error", expectedLevel: log.ErrorLevel},
		{name: "default_empty_level", logLevel: "", expectedLevel: log.InfoLevel},
		{name: "default_invalid_level", logLevel: "verbose", expectedLevel: log.InfoLevel},
		{name: "case_insensitive_debug", logLevel: "DEBUG", expectedLevel: log.DebugLevel},
		{name: "whitespace_trimmed", logLevel: "  warn  ", expectedLevel: log.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			InitLoggerWithOutput(&bytes.Buffer{}, tt.logLevel, "text")

			require.NotNil(t, Logger)
			assert.Equal(t, tt.expectedLevel, Logger.GetLevel())
		})
	}
}

func Test_Logger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerWithOutput(&buf, "info", "json")
	t.Cleanup(func() { Logger = nil })

	WithRun(GetLogger(), "run-1", "parallel").Info("worker completed", "successful_inserts", 10)

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "worker completed", entry["msg"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "parallel", entry["experiment"])
	assert.EqualValues(t, 10, entry["successful_inserts"])
}

func Test_Logger_WithWorker(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerWithOutput(&buf, "debug", "logfmt")
	t.Cleanup(func() { Logger = nil })

	WithWorker(WithFields("experiment", "conflict"), 7).Debug("statement")

	out := buf.String()
	assert.Contains(t, out, "worker=7")
	assert.Contains(t, out, "experiment=conflict")
}

func Test_Logger_GetLogger_LazyInit(t *testing.T) {
	Logger = nil
	t.Setenv("LOG_LEVEL", "error")

	logger := GetLogger()

	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())
	assert.Equal(t, log.ErrorLevel, logger.GetLevel())
	Logger = nil
}

func Test_Logger_GetLogger_ConcurrentLazyInit(t *testing.T) {
	Logger = nil
	t.Cleanup(func() { Logger = nil })

	const callers = 16
	loggers := make(chan *log.Logger, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loggers <- GetLogger()
		}()
	}
	wg.Wait()
	close(loggers)

	first := <-loggers
	require.NotNil(t, first)
	for l := range loggers {
		assert.Same(t, first, l, "every caller sees the same logger")
	}
}
