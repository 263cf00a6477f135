package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lofterscraper/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer, level zerolog.Level) Logger {
	zlog := zerolog.New(buf).Level(level)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"disabled", &config.LoggingConfig{Level: "disabled"}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewWithRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crawl.log")

	l, err := New(&config.LoggingConfig{Level: "info", File: path, MaxSize: 1, MaxBackups: 1})
	require.NoError(t, err)

	l.InfoWithFields("Stage completed", map[string]interface{}{"stage": "discover"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Stage completed")
	assert.Contains(t, string(data), `"app":"lofterscraper"`)
}

func TestWithFieldsAccumulate(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, zerolog.DebugLevel)

	child := l.WithField("domain", "someblog").WithFields(map[string]interface{}{"page": 3})
	child.InfoWithFields("Page harvested", map[string]interface{}{"posts": 12})
	l.Info("parent untouched")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "someblog", entries[0]["domain"])
	assert.Equal(t, float64(3), entries[0]["page"])
	assert.Equal(t, float64(12), entries[0]["posts"])
	assert.NotContains(t, entries[1], "domain")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, zerolog.DebugLevel)

	l.WithError(errors.New("connection reset")).Warn("Download failed")
	assert.Same(t, l, l.WithError(nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "connection reset", entries[0]["error"])
	assert.Equal(t, "warn", entries[0]["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown")

	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, zerolog.DebugLevel)

	l.DebugWithFields("types", map[string]interface{}{
		"elapsed": 1500 * time.Millisecond,
		"ok":      true,
		"links":   []string{"a", "b"},
		"ratio":   0.5,
	})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0]["ok"])
	assert.Equal(t, []interface{}{"a", "b"}, entries[0]["links"])
	assert.Equal(t, 0.5, entries[0]["ratio"])
}

func TestLogHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogStage(tl, "harvest", 40, 2*time.Second)
	LogDownload(tl, "http://img/a.jpg", "/out/a.jpg", nil)
	LogDownload(tl, "http://img/b.jpg", "/out/b.jpg", errors.New("timeout"))

	stage := tl.GetMessagesByLevel("INFO")
	require.Len(t, stage, 1)
	assert.Equal(t, "harvest", stage[0].Fields["stage"])
	assert.Equal(t, int64(2000), stage[0].Fields["elapsed_ms"])

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	failed := tl.GetMessagesByLevel("WARN")
	require.Len(t, failed, 1)
	assert.EqualError(t, failed[0].Error, "timeout")
	assert.Equal(t, "http://img/b.jpg", failed[0].Fields["link"])
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("worker", 2)

	child.Info("processing")
	tl.Info("root")

	assert.Len(t, tl.GetMessages(), 2)
	assert.True(t, tl.HasMessage("processing"))
	assert.Equal(t, 2, tl.GetMessages()[0].Fields["worker"])
	assert.False(t, tl.HasMessage("missing"))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("k", "v").WithError(errors.New("x")).ErrorWithFields("nothing", nil)
	})
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, WithField("k", "v"))

	assert.Error(t, Initialize(&config.LoggingConfig{Level: "bogus"}))
}
