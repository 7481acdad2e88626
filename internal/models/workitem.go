// Package models holds the persistence-facing types shared by the queue
// store and the worker loops.
package models

import "time"

// Status is the work item's position in the pipeline state machine.
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusMoved       Status = "moved"
	StatusEmbyPending Status = "emby_pending"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// WorkItem is one row of the durable queue: a single video file moving
// through parse -> catalog lookup -> move -> media-server registration.
type WorkItem struct {
	ID        int64  `db:"id" json:"id"`
	FilePath  string `db:"file_path" json:"file_path"`
	MovieCode string `db:"movie_code" json:"movie_code,omitempty"`
	Actress   string `db:"actress" json:"actress,omitempty"`
	Subtitle  string `db:"subtitle" json:"subtitle,omitempty"`

	Status       Status `db:"status" json:"status"`
	ErrorMessage string `db:"error_message" json:"error_message,omitempty"`

	NewPath     string `db:"new_path" json:"new_path,omitempty"`
	EmbyItemID  string `db:"emby_item_id" json:"emby_item_id,omitempty"`
	MetadataRaw []byte `db:"metadata_json" json:"-"`

	RetryCount  int        `db:"retry_count" json:"retry_count"`
	NextRetryAt *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the work item has reached a status the
// pipeline will no longer act on outside of an operator-triggered retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// IsRetryable reports whether an error-status work item is eligible to be
// picked back up by the retry scheduler.
func (w WorkItem) IsRetryable(maxRetries int) bool {
	return w.Status == StatusError && w.RetryCount <= maxRetries
}
