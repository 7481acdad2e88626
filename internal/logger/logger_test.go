package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkItem_AttachesWorkItemIDAndExtras(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger := WorkItem(42, "file_path", "/watch/SONE-760.mp4")
	logger.Info("claimed row")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, 42, entry["work_item_id"])
	assert.Equal(t, "/watch/SONE-760.mp4", entry["file_path"])
	assert.Equal(t, "claimed row", entry["msg"])
}

func TestParseLevelFromEnv_DefaultsToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, ParseLevelFromEnv())
}

func TestParseLevelFromEnv_ParsesKnownLevels(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, ParseLevelFromEnv())
}
