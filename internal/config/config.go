package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load env vars from .env file directly
func init() {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist (e.g. in production),
		// but we should log it just in case.
		// However, mostly we want to rely on environment variables being set.
		// If we are in local dev, this helps.
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// Catalog holds the external metadata catalog settings.
type Catalog struct {
	BaseURL     string
	Token       string
	SearchOrder []string
}

// MediaServer holds the downstream media server settings.
type MediaServer struct {
	BaseURL        string
	APIKey         string
	UserID         string
	ParentFolderID string
}

// Stability holds the file-stability debounce settings.
type Stability struct {
	CheckInterval   time.Duration
	MinStableChecks int
}

// Retry holds the retry-scheduler settings.
type Retry struct {
	MaxRetries     int
	BackoffMinutes []int
}

// Config holds every setting recognized by the ingestion pipeline.
type Config struct {
	Env string

	WatchDir        string
	DestinationDir  string
	ErrorDir        string
	VideoExtensions []string

	Catalog     Catalog
	MediaServer MediaServer
	Stability   Stability
	Retry       Retry

	DatabaseURL string
	PoolMin     int
	PoolMax     int
}

// Load reads every recognized setting from the environment, applying the
// documented defaults, and returns the assembled Config.
func Load() (Config, error) {
	cfg := Config{
		Env:             getEnv("APP_ENV", "development"),
		WatchDir:        getEnv("WATCH_DIR", ""),
		DestinationDir:  getEnv("DESTINATION_DIR", ""),
		ErrorDir:        getEnv("ERROR_DIR", ""),
		VideoExtensions: getEnvList("VIDEO_EXTENSIONS", []string{".mp4", ".mkv", ".avi", ".wmv", ".ts"}),
		Catalog: Catalog{
			BaseURL:     getEnv("CATALOG_BASE_URL", ""),
			Token:       getEnv("CATALOG_TOKEN", ""),
			SearchOrder: getEnvList("CATALOG_SEARCH_ORDER", nil),
		},
		MediaServer: MediaServer{
			BaseURL:        getEnv("MEDIA_SERVER_BASE_URL", ""),
			APIKey:         getEnv("MEDIA_SERVER_API_KEY", ""),
			UserID:         getEnv("MEDIA_SERVER_USER_ID", ""),
			ParentFolderID: getEnv("MEDIA_SERVER_PARENT_FOLDER_ID", ""),
		},
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}

	var err error
	cfg.Stability.CheckInterval, err = getEnvDuration("STABILITY_CHECK_INTERVAL_SECONDS", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.Stability.MinStableChecks, err = getEnvInt("STABILITY_MIN_STABLE_CHECKS", 2)
	if err != nil {
		return cfg, err
	}
	cfg.Retry.MaxRetries, err = getEnvInt("MAX_RETRIES", 3)
	if err != nil {
		return cfg, err
	}
	cfg.Retry.BackoffMinutes = getEnvIntList("BACKOFF_MINUTES", []int{1, 5, 15})
	cfg.PoolMin, err = getEnvInt("DB_POOL_MIN", 1)
	if err != nil {
		return cfg, err
	}
	cfg.PoolMax, err = getEnvInt("DB_POOL_MAX", 5)
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate fails fast on settings the supervisor cannot run without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.WatchDir == "" {
		return fmt.Errorf("WATCH_DIR is required")
	}
	if c.DestinationDir == "" {
		return fmt.Errorf("DESTINATION_DIR is required")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL is required")
	}
	if len(c.Catalog.SearchOrder) == 0 {
		return fmt.Errorf("CATALOG_SEARCH_ORDER must list at least one source")
	}
	if c.MediaServer.BaseURL == "" {
		return fmt.Errorf("MEDIA_SERVER_BASE_URL is required")
	}
	if c.MediaServer.ParentFolderID == "" {
		return fmt.Errorf("MEDIA_SERVER_PARENT_FOLDER_ID is required")
	}
	if info, statErr := os.Stat(c.WatchDir); statErr != nil || !info.IsDir() {
		return fmt.Errorf("WATCH_DIR %q is not an accessible directory", c.WatchDir)
	}
	if info, statErr := os.Stat(c.DestinationDir); statErr != nil || !info.IsDir() {
		return fmt.Errorf("DESTINATION_DIR %q is not an accessible directory", c.DestinationDir)
	}
	if !dirWritable(c.DestinationDir) {
		return fmt.Errorf("DESTINATION_DIR %q is not writable", c.DestinationDir)
	}
	return nil
}

// dirWritable probes writability by creating and removing a throwaway file,
// since a stat-only check can't see permission bits alone (ACLs, read-only
// mounts).
func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".vaultingest-writecheck-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if out == nil {
		return defaultValue
	}
	return out
}

func getEnvIntList(key string, defaultValue []int) []int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds: %w", key, err)
	}
	return time.Duration(secs) * time.Second, nil
}
