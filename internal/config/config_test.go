package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvList_SplitsAndTrims(t *testing.T) {
	t.Setenv("TEST_LIST", "a, b ,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST", nil))
}

func TestGetEnvList_FallsBackToDefault(t *testing.T) {
	os.Unsetenv("TEST_LIST_MISSING")
	assert.Equal(t, []string{"x"}, getEnvList("TEST_LIST_MISSING", []string{"x"}))
}

func TestGetEnvIntList_InvalidEntryFallsBackToDefault(t *testing.T) {
	t.Setenv("TEST_INT_LIST", "1,nope,3")
	assert.Equal(t, []int{1, 5, 15}, getEnvIntList("TEST_INT_LIST", []int{1, 5, 15}))
}

func TestGetEnvDuration_ParsesSeconds(t *testing.T) {
	t.Setenv("TEST_DURATION", "10")
	d, err := getEnvDuration("TEST_DURATION", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
}

func TestValidate_RequiresCoreSettings(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestValidate_AcceptsWritableDestinationDir(t *testing.T) {
	watchDir := t.TempDir()
	destDir := t.TempDir()

	cfg := Config{
		DatabaseURL:    "postgres://localhost/test",
		WatchDir:       watchDir,
		DestinationDir: destDir,
		Catalog:        Catalog{BaseURL: "https://catalog.example.com", SearchOrder: []string{"primary"}},
		MediaServer:    MediaServer{BaseURL: "https://media.example.com", ParentFolderID: "folder-1"},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsMissingWatchDir(t *testing.T) {
	cfg := Config{
		DatabaseURL:    "postgres://localhost/test",
		WatchDir:       "/nonexistent/path/for/test",
		DestinationDir: t.TempDir(),
		Catalog:        Catalog{BaseURL: "https://catalog.example.com", SearchOrder: []string{"primary"}},
		MediaServer:    MediaServer{BaseURL: "https://media.example.com", ParentFolderID: "folder-1"},
	}
	assert.ErrorContains(t, cfg.Validate(), "WATCH_DIR")
}
