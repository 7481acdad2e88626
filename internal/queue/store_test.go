package queue

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultingest/internal/database"
	"vaultingest/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	sdb := sqlx.NewDb(mockDB, "postgres")
	return New(&database.DB{DB: sdb}, nil, 3), mock
}

func workItemColumns() []string {
	return []string{"id", "file_path", "movie_code", "actress", "subtitle", "status",
		"error_message", "new_path", "emby_item_id", "metadata_json", "retry_count",
		"next_retry_at", "created_at", "updated_at"}
}

func TestAdd_InsertsNewRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO work_items`).
		WithArgs("/watch/file.mp4", "", "", "").
		WillReturnRows(sqlmock.NewRows(workItemColumns()).
			AddRow(int64(1), "/watch/file.mp4", "", "", "", "pending", "", "", "", nil, 0, nil, now, now))

	item, err := store.Add(context.Background(), "/watch/file.mp4", "", "", "")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, models.StatusPending, item.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdd_ConflictReturnsExistingRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO work_items`).
		WithArgs("/watch/file.mp4", "", "", "").
		WillReturnRows(sqlmock.NewRows(workItemColumns()))

	mock.ExpectQuery(`(?s)SELECT (.+) FROM work_items WHERE file_path = \$1`).
		WithArgs("/watch/file.mp4").
		WillReturnRows(sqlmock.NewRows(workItemColumns()).
			AddRow(int64(7), "/watch/file.mp4", "", "", "", "pending", "", "", "", nil, 0, nil, now, now))

	item, err := store.Add(context.Background(), "/watch/file.mp4", "", "", "")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(7), item.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPending_NoRowsReturnsNil(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM work_items`).
		WithArgs(models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	item, err := store.ClaimPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, item)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPending_TransitionsToProcessing(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM work_items`).
		WithArgs(models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery(`UPDATE work_items SET status = \$2`).
		WithArgs(int64(3), models.StatusProcessing).
		WillReturnRows(sqlmock.NewRows(workItemColumns()).
			AddRow(int64(3), "/watch/file.mp4", "", "", "", "processing", "", "", "", nil, 0, nil, now, now))
	mock.ExpectCommit()

	item, err := store.ClaimPending(context.Background())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.StatusProcessing, item.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_ErrorTransitionIncrementsRetryCount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT retry_count FROM work_items WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"retry_count"}).AddRow(0))
	mock.ExpectExec(`UPDATE work_items SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg := "No metadata found"
	err := store.UpdateStatus(context.Background(), 5, models.StatusError, StatusPatch{ErrorMessage: &msg})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackoffDuration_ClampsToLastEntry(t *testing.T) {
	schedule := []int{1, 5, 15}
	assert.Equal(t, 1*time.Minute, backoffDuration(schedule, 1))
	assert.Equal(t, 5*time.Minute, backoffDuration(schedule, 2))
	assert.Equal(t, 15*time.Minute, backoffDuration(schedule, 3))
	assert.Equal(t, 15*time.Minute, backoffDuration(schedule, 10))
}

func TestResetForRetry_OnlyTouchesErrorRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE work_items\s+SET status = 'pending'.*WHERE id = \$1 AND status = 'error'`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.ResetForRetry(context.Background(), 9))
	require.NoError(t, mock.ExpectationsWereMet())
}
