package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level LogLevel, format LogFormat) (*ConsoleLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{Level: level, Format: format, Output: &buf})
	require.NoError(t, err)
	logger.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return logger, &buf
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	logger, buf := newTestLogger(t, LogLevelWarn, LogFormatText)

	logger.Debug("hidden %d", 1)
	logger.Info("hidden too")
	logger.Warn("shown %s", "warn")
	logger.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[2024-05-01 12:30:00] WARN shown warn")
	assert.Contains(t, out, "ERROR shown error")
}

func TestLoggerTextFieldsAreSorted(t *testing.T) {
	logger, buf := newTestLogger(t, LogLevelDebug, LogFormatText)

	logger.WithFields(map[string]interface{}{"state": "placing", "asset": "main.obb"}).Info("copy")

	assert.Equal(t, "[2024-05-01 12:30:00] INFO {asset=main.obb, state=placing} copy\n", buf.String())
}

func TestLoggerWithFieldDoesNotMutateParent(t *testing.T) {
	logger, buf := newTestLogger(t, LogLevelInfo, LogFormatText)

	_ = logger.WithField("entry", "base.apk")
	logger.Info("plain")

	assert.NotContains(t, buf.String(), "entry=")
}

func TestLoggerJSONFormat(t *testing.T) {
	logger, buf := newTestLogger(t, LogLevelInfo, LogFormatJSON)

	logger.WithField("identifier", "com.example.app").Info(`quoted "value"`)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, `quoted "value"`, entry["message"])
	assert.Equal(t, "com.example.app", entry["identifier"])
}

func TestLoggerCompactFormat(t *testing.T) {
	logger, buf := newTestLogger(t, LogLevelInfo, LogFormatCompact)

	logger.Warn("short")

	assert.Equal(t, "W 12:30:00 short\n", buf.String())
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "xapk.log")
	var buf bytes.Buffer
	logger, err := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf, FilePath: path})
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO to file")
	assert.Contains(t, buf.String(), "INFO to file")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"", LogLevelInfo, false},
		{"WARNING", LogLevelWarn, false},
		{" error ", LogLevelError, false},
		{"verbose", LogLevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
