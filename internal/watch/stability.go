package watch

import (
	"context"
	"os"
	"time"
)

// waitStable polls path's size until it has held steady across minStableChecks
// consecutive stats, spaced checkInterval apart. It returns false if the path
// disappears before stabilizing (the downloader may still be writing to a
// temp name, or the file was removed) or if ctx is canceled.
func waitStable(ctx context.Context, path string, checkInterval time.Duration, minStableChecks int) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	size := info.Size()
	stableCount := 1

	for stableCount < minStableChecks {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(checkInterval):
		}

		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() != size {
			size = info.Size()
			stableCount = 1
			continue
		}
		stableCount++
	}
	return true
}
