package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gap_service/internal/config"
)

func TestNew_StdoutFormats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			l, err := New(config.LogConfig{Level: "debug", Format: format, Output: "stdout"})
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(zap.DebugLevel))
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.log")
	l, err := New(config.LogConfig{Level: "warn", Format: "json", Output: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Info("dropped below level")
	l.Warn("category skipped", zap.String("category", "catering.cafe"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "category skipped", entry["msg"])
	assert.Equal(t, "catering.cafe", entry["category"])
	assert.Contains(t, entry, "ts")
}
