package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitStable_ReturnsTrueWhenSizeUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	assert.NoError(t, os.WriteFile(path, []byte("abcd"), 0o644))

	ok := waitStable(context.Background(), path, 10*time.Millisecond, 2)
	assert.True(t, ok)
}

func TestWaitStable_GrowingFileResetsCounter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	assert.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	done := make(chan bool, 1)
	go func() {
		done <- waitStable(context.Background(), path, 15*time.Millisecond, 2)
	}()

	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, os.WriteFile(path, []byte("aaaaaaaaaa"), 0o644))

	assert.True(t, <-done)
}

func TestWaitStable_MissingFileReturnsFalse(t *testing.T) {
	ok := waitStable(context.Background(), "/nonexistent/path/movie.mp4", 10*time.Millisecond, 2)
	assert.False(t, ok)
}

func TestWaitStable_RemovedMidCheckReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	assert.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	done := make(chan bool, 1)
	go func() {
		done <- waitStable(context.Background(), path, 10*time.Millisecond, 3)
	}()

	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, os.Remove(path))

	assert.False(t, <-done)
}

func TestWaitStable_ContextCanceled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.mp4")
	assert.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- waitStable(ctx, path, 50*time.Millisecond, 5)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	assert.False(t, <-done)
}
