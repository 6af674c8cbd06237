package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuild_JSONLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "warn", JSON: true, Out: zapcore.AddSync(&buf)})
	defer cleanup()

	l.Info("dropped")
	l.Warn("kept", zap.String("story_id", "s1"))
	cleanup()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "s1", entry["story_id"])
	assert.Contains(t, entry, "ts")
}

func TestBuild_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "loud", JSON: true, Out: zapcore.AddSync(&buf)})
	l.Debug("hidden")
	l.Info("shown")
	cleanup()
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestToStdLogger(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "debug", JSON: true, Out: zapcore.AddSync(&buf)})
	std := ToStdLogger(l, zapcore.WarnLevel)
	std.Printf("slow sql %dms\n", 250)
	cleanup()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "slow sql 250ms", entry["msg"])
}
