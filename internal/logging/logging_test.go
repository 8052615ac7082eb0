package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	assert.Equal(t, "casesearch.log", filepath.Base(path))
	assert.Equal(t, DefaultLogDir(), filepath.Dir(path))
	assert.Contains(t, path, ".casesearch")
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()

	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.WriteToStderr)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
}

func TestSetup_WritesJSONLines(t *testing.T) {
	// Given: a file-only configuration
	path := filepath.Join(t.TempDir(), "logs", "casesearch.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path})
	require.NoError(t, err)

	// When: logging above and below the level
	logger.Debug("hidden")
	logger.Info("drain_completed", slog.String("kind", "ZAAK"), slog.Int("count", 3))
	cleanup()

	// Then: one JSON line with the structured fields
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "drain_completed", entry["msg"])
	assert.Equal(t, "ZAAK", entry["kind"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestSetup_WithoutFileUsesStderr(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "warn"})
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, logger)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetupServeMode_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "serve.log")
	cleanup, err := SetupServeMode(Config{Level: "debug", FilePath: path, WriteToStderr: true})
	require.NoError(t, err)

	slog.Debug("tool_called", slog.String("tool", "search"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "serve_logging_initialized")
	assert.Contains(t, string(data), "tool_called")
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a writer with a 1MB limit
	path := filepath.Join(t.TempDir(), "casesearch.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.SetImmediateSync(false)

	// When: writing more than three limits worth of lines
	line := strings.Repeat("x", 1023) + "\n"
	for range 3*1024 + 10 {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Then: the current file plus at most two rotations exist
	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "casesearch.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "casesearch.log")
	w, err := NewRotatingWriter(path, 10, 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				_, _ = fmt.Fprintf(w, "goroutine=%d line=%d\n", g, i)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		assert.True(t, strings.HasPrefix(scanner.Text(), "goroutine="))
		count++
	}
	assert.Equal(t, 200, count)
}
