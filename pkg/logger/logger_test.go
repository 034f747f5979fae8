package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flico/pkg/config"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	l, err := New(&config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = New(&config.LoggingConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "flico.log")
	l, err := New(&config.LoggingConfig{Level: "info", File: path})
	require.NoError(t, err)

	l.WithField("institution", "Library of Congress").Info("file output")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file output")
	assert.Contains(t, string(data), `"app":"flico"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		assert.Contains(t, out, msg)
	}
}

func TestWithFieldsDoNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf)

	child := base.WithField("institution", "A").WithFields(map[string]interface{}{"page": 3})
	child.Info("child")
	base.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"institution":"A"`)
	assert.Contains(t, lines[0], `"page":3`)
	assert.NotContains(t, lines[1], "institution")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithError(errors.New("disk full")).Error("append failed")
	assert.Contains(t, buf.String(), `"error":"disk full"`)

	assert.Same(t, l, l.WithError(nil))
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.InfoWithFields("types", map[string]interface{}{
		"str":      "x",
		"int":      7,
		"float":    0.5,
		"bool":     true,
		"duration": 2 * time.Second,
		"strs":     []string{"a", "b"},
	})

	out := buf.String()
	assert.Contains(t, out, `"str":"x"`)
	assert.Contains(t, out, `"int":7`)
	assert.Contains(t, out, `"float":0.5`)
	assert.Contains(t, out, `"bool":true`)
	assert.Contains(t, out, `"strs":["a","b"]`)
}

func TestGlobalLogger(t *testing.T) {
	previous := globalLogger
	defer func() { globalLogger = previous }()

	test := NewTestLogger()
	SetLogger(test)

	WithField("k", "v").Info("global")
	assert.True(t, test.HasMessage("global"))
	assert.Same(t, test, GetLogger())
}

func TestTestLoggerSharesCapture(t *testing.T) {
	test := NewTestLogger()
	test.WithField("a", 1).WithError(errors.New("boom")).WarnWithFields("derived", map[string]interface{}{"b": 2})
	test.Info("plain")

	msg, ok := test.Find("derived")
	require.True(t, ok)
	assert.Equal(t, "WARN", msg.Level)
	assert.Equal(t, 1, msg.Fields["a"])
	assert.Equal(t, 2, msg.Fields["b"])
	assert.EqualError(t, msg.Error, "boom")

	assert.Len(t, test.GetMessages(), 2)
	assert.False(t, test.HasError())
	assert.Contains(t, test.String(), "[INFO] plain")

	test.Clear()
	assert.Empty(t, test.GetMessages())
}

func TestHelpers(t *testing.T) {
	test := NewTestLogger()

	LogRateLimit(test, "A", 4, time.Minute)
	LogCrawlProgress(test, "A", 50, 200)
	LogComponentStart(test, "downloader", map[string]interface{}{"page_size": 500})

	msg, ok := test.Find("Crawl progress")
	require.True(t, ok)
	assert.Equal(t, "25.0%", msg.Fields["percentage"])
	assert.True(t, test.HasMessage("Rate limit reached, cooling down"))
	assert.True(t, test.HasMessage("Component started"))

	NewNopLogger().WithField("x", 1).Info("ignored")
}
