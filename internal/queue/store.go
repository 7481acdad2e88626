// Package queue owns the work_items state machine: idempotent insertion,
// atomic claim, status transitions with retry scheduling, and the read
// paths the operator CLI uses. All concurrency control lives here; callers
// never touch the table directly.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vaultingest/internal/database"
	"vaultingest/internal/models"
)

// DefaultBackoffMinutes is the default retry schedule: retry_count 1 waits 1
// minute, 2 waits 5, 3 (and beyond) waits 15. Configurable via Store.backoff.
var DefaultBackoffMinutes = []int{1, 5, 15}

// Store is the queue's sole accessor: sqlx transactions, db-tagged
// structs, and RETURNING clauses drive a single-table state machine.
type Store struct {
	db       *database.DB
	backoff  []int
	maxRetry int
}

// New builds a Store. backoffMinutes and maxRetries default to
// [1, 5, 15] / 3 if zero-valued.
func New(db *database.DB, backoffMinutes []int, maxRetries int) *Store {
	if len(backoffMinutes) == 0 {
		backoffMinutes = DefaultBackoffMinutes
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Store{db: db, backoff: backoffMinutes, maxRetry: maxRetries}
}

// Add inserts a new pending row for filePath. On a unique-key conflict it
// returns the existing row unchanged — idempotent insertion, tolerant of
// watch-adapter races.
func (s *Store) Add(ctx context.Context, filePath, movieCode, actress, subtitle string) (*models.WorkItem, error) {
	const query = `
		INSERT INTO work_items (file_path, movie_code, actress, subtitle, status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (file_path) DO NOTHING
		RETURNING id, file_path, movie_code, actress, subtitle, status, error_message,
			new_path, emby_item_id, metadata_json, retry_count, next_retry_at, created_at, updated_at
	`
	var item models.WorkItem
	err := s.db.QueryRowxContext(ctx, query, filePath, movieCode, actress, subtitle).StructScan(&item)
	if errors.Is(err, sql.ErrNoRows) {
		return s.GetByPath(ctx, filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("add work item: %w", err)
	}
	return &item, nil
}

// claim atomically picks the oldest row in fromStatus, transitions it to
// toStatus, and returns it. Uses SELECT ... FOR UPDATE SKIP LOCKED so
// concurrent claimants never observe the same row.
func (s *Store) claim(ctx context.Context, fromStatus, toStatus models.Status) (*models.WorkItem, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	selectQuery := `
		SELECT id FROM work_items
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`
	err = tx.GetContext(ctx, &id, selectQuery, fromStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim select: %w", err)
	}

	var item models.WorkItem
	updateQuery := `
		UPDATE work_items SET status = $2
		WHERE id = $1
		RETURNING id, file_path, movie_code, actress, subtitle, status, error_message,
			new_path, emby_item_id, metadata_json, retry_count, next_retry_at, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, updateQuery, id, toStatus).StructScan(&item); err != nil {
		return nil, fmt.Errorf("claim update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim commit: %w", err)
	}
	return &item, nil
}

// ClaimPending claims the oldest pending row, transitioning it to
// processing.
func (s *Store) ClaimPending(ctx context.Context) (*models.WorkItem, error) {
	return s.claim(ctx, models.StatusPending, models.StatusProcessing)
}

// ClaimMoved claims the oldest moved row, transitioning it to emby_pending.
func (s *Store) ClaimMoved(ctx context.Context) (*models.WorkItem, error) {
	return s.claim(ctx, models.StatusMoved, models.StatusEmbyPending)
}

// StatusPatch carries the optional fields update_status may set alongside a
// status transition. Zero values are treated as "leave unchanged" except
// where noted.
type StatusPatch struct {
	ErrorMessage *string
	NewPath      *string
	EmbyItemID   *string
	MetadataJSON []byte
	Actress      *string
	Subtitle     *string
	MovieCode    *string
}

// UpdateStatus applies patch and transitions the row to newStatus. A
// transition to error also increments retry_count and sets next_retry_at
// per the backoff schedule. Transitioning to the row's current status still
// applies patch fields (a no-op on the status column only).
func (s *Store) UpdateStatus(ctx context.Context, id int64, newStatus models.Status, patch StatusPatch) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("update status begin tx: %w", err)
	}
	defer tx.Rollback()

	var currentRetry int
	if newStatus == models.StatusError {
		if err := tx.GetContext(ctx, &currentRetry, `SELECT retry_count FROM work_items WHERE id = $1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("update status read retry_count: %w", err)
		}
	}

	setClauses := []string{"status = :status"}
	args := map[string]any{
		"id":     id,
		"status": newStatus,
	}

	if patch.ErrorMessage != nil {
		setClauses = append(setClauses, "error_message = :error_message")
		args["error_message"] = *patch.ErrorMessage
	}
	if patch.NewPath != nil {
		setClauses = append(setClauses, "new_path = :new_path")
		args["new_path"] = *patch.NewPath
	}
	if patch.EmbyItemID != nil {
		setClauses = append(setClauses, "emby_item_id = :emby_item_id")
		args["emby_item_id"] = *patch.EmbyItemID
	}
	if patch.MetadataJSON != nil {
		setClauses = append(setClauses, "metadata_json = :metadata_json")
		args["metadata_json"] = patch.MetadataJSON
	}
	if patch.Actress != nil {
		setClauses = append(setClauses, "actress = :actress")
		args["actress"] = *patch.Actress
	}
	if patch.Subtitle != nil {
		setClauses = append(setClauses, "subtitle = :subtitle")
		args["subtitle"] = *patch.Subtitle
	}
	if patch.MovieCode != nil {
		setClauses = append(setClauses, "movie_code = :movie_code")
		args["movie_code"] = *patch.MovieCode
	}

	if newStatus == models.StatusError {
		nextRetryAt := time.Now().Add(backoffDuration(s.backoff, currentRetry+1))
		setClauses = append(setClauses, "retry_count = :retry_count", "next_retry_at = :next_retry_at")
		args["retry_count"] = currentRetry + 1
		args["next_retry_at"] = nextRetryAt
	}

	query := "UPDATE work_items SET " + joinClauses(setClauses) + " WHERE id = :id"
	boundQuery, namedArgs, err := sqlx.Named(query, args)
	if err != nil {
		return fmt.Errorf("update status build query: %w", err)
	}
	boundQuery = tx.Rebind(boundQuery)
	if _, err := tx.ExecContext(ctx, boundQuery, namedArgs...); err != nil {
		return fmt.Errorf("update status exec: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update status commit: %w", err)
	}
	return nil
}

// backoffDuration returns the wait for the k-th consecutive error
// transition (1-indexed), clamped to the last schedule entry.
func backoffDuration(schedule []int, k int) time.Duration {
	idx := k - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return time.Duration(schedule[idx]) * time.Minute
}

// ListRetryableErrors selects error rows eligible for the retry scheduler:
// retry_count <= max_retries and next_retry_at <= now.
func (s *Store) ListRetryableErrors(ctx context.Context, limit int) ([]models.WorkItem, error) {
	const query = `
		SELECT id, file_path, movie_code, actress, subtitle, status, error_message,
			new_path, emby_item_id, metadata_json, retry_count, next_retry_at, created_at, updated_at
		FROM work_items
		WHERE status = 'error' AND retry_count <= $1 AND next_retry_at <= now()
		ORDER BY next_retry_at ASC
		LIMIT $2
	`
	var items []models.WorkItem
	if err := s.db.SelectContext(ctx, &items, query, s.maxRetry, limit); err != nil {
		return nil, fmt.Errorf("list retryable errors: %w", err)
	}
	return items, nil
}

// ResetForRetry moves an error row back to pending, clearing error_message
// and next_retry_at without touching retry_count.
func (s *Store) ResetForRetry(ctx context.Context, id int64) error {
	const query = `
		UPDATE work_items
		SET status = 'pending', error_message = '', next_retry_at = NULL
		WHERE id = $1 AND status = 'error'
	`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("reset for retry: %w", err)
	}
	return nil
}

// Reset forces a row to pending regardless of current status (the CLI
// `reset` command).
func (s *Store) Reset(ctx context.Context, id int64) error {
	const query = `
		UPDATE work_items
		SET status = 'pending', error_message = '', next_retry_at = NULL
		WHERE id = $1
	`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Delete removes a row by id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM work_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete work item: %w", err)
	}
	return nil
}

// Get fetches a row by id, returning (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id int64) (*models.WorkItem, error) {
	var item models.WorkItem
	err := s.db.GetContext(ctx, &item, `
		SELECT id, file_path, movie_code, actress, subtitle, status, error_message,
			new_path, emby_item_id, metadata_json, retry_count, next_retry_at, created_at, updated_at
		FROM work_items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return &item, nil
}

// GetByPath fetches a row by its file_path, returning (nil, nil) if absent.
func (s *Store) GetByPath(ctx context.Context, path string) (*models.WorkItem, error) {
	var item models.WorkItem
	err := s.db.GetContext(ctx, &item, `
		SELECT id, file_path, movie_code, actress, subtitle, status, error_message,
			new_path, emby_item_id, metadata_json, retry_count, next_retry_at, created_at, updated_at
		FROM work_items WHERE file_path = $1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item by path: %w", err)
	}
	return &item, nil
}

// CountByStatus returns a map of status -> row count.
func (s *Store) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT status, count(*) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("count by status scan: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// ListByStatus returns up to limit rows in the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status models.Status, limit int) ([]models.WorkItem, error) {
	const query = `
		SELECT id, file_path, movie_code, actress, subtitle, status, error_message,
			new_path, emby_item_id, metadata_json, retry_count, next_retry_at, created_at, updated_at
		FROM work_items
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var items []models.WorkItem
	if err := s.db.SelectContext(ctx, &items, query, status, limit); err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	return items, nil
}

// Cleanup deletes completed rows whose updated_at is older than olderThan.
func (s *Store) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM work_items WHERE status = 'completed' AND updated_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	return result.RowsAffected()
}

func joinClauses(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}
