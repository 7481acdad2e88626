package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vaultingest/internal/logger"
	"vaultingest/internal/queue"
)

// RetryScheduler re-arms retriable error rows whose backoff has elapsed.
type RetryScheduler struct {
	store        *queue.Store
	limit        int
	pollInterval time.Duration
}

// NewRetryScheduler builds a RetryScheduler polling every ~30s,
// considering up to 10 rows per cycle.
func NewRetryScheduler(store *queue.Store) *RetryScheduler {
	return &RetryScheduler{store: store, limit: 10, pollInterval: 30 * time.Second}
}

// Run blocks, re-arming eligible rows until ctx is canceled.
func (s *RetryScheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.cycle(ctx); err != nil {
			slog.Error("retry scheduler cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *RetryScheduler) cycle(ctx context.Context) error {
	rows, err := s.store.ListRetryableErrors(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("list retryable errors: %w", err)
	}

	for _, row := range rows {
		if IsNonRetriable(row.ErrorMessage) {
			continue
		}
		l := logger.WorkItem(row.ID)
		if err := s.store.ResetForRetry(ctx, row.ID); err != nil {
			l.Error("failed to reset row for retry", "error", err)
			continue
		}
		l.Info("reset row for retry", "retry_count", row.RetryCount)
	}
	return nil
}
