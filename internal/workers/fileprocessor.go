// Package workers implements the three consumer loops that drive a work
// item through the queue's state machine: file processor, media-server
// updater, and retry scheduler. Each loop cooperates with the others only
// through the queue store, never through in-process handoff: the watch
// adapter writes straight to the store and each loop claim-polls it on its
// own interval.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"vaultingest/internal/catalog"
	"vaultingest/internal/logger"
	"vaultingest/internal/models"
	"vaultingest/internal/parser"
	"vaultingest/internal/queue"
	"vaultingest/internal/renamer"
)

// errNoMovieCodePrefix is the one non-retriable error class (§7). The
// message's leading phrase IS the classifier — the retry scheduler
// string-matches it.
const errNoMovieCodePrefix = "No movie code"

// FileProcessor claims pending rows, resolves metadata, and moves the file
// into the library layout.
type FileProcessor struct {
	store          *queue.Store
	catalogClient  *catalog.Client
	destinationDir string
	pollInterval   time.Duration
}

// NewFileProcessor builds a FileProcessor polling every ~2s.
func NewFileProcessor(store *queue.Store, catalogClient *catalog.Client, destinationDir string) *FileProcessor {
	return &FileProcessor{
		store:          store,
		catalogClient:  catalogClient,
		destinationDir: destinationDir,
		pollInterval:   2 * time.Second,
	}
}

// Run blocks, processing rows until ctx is canceled. On cancellation the
// loop finishes any row already claimed before returning — a worker never
// abandons in-flight state.
func (p *FileProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := p.cycle(ctx)
		if err != nil {
			slog.Error("file processor cycle failed", "error", err)
		}
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.pollInterval):
			}
		}
	}
}

func (p *FileProcessor) cycle(ctx context.Context) (bool, error) {
	item, err := p.store.ClaimPending(ctx)
	if err != nil {
		return false, fmt.Errorf("claim pending: %w", err)
	}
	if item == nil {
		return false, nil
	}

	l := logger.WorkItem(item.ID, "file_path", item.FilePath)

	// The row is now claimed: finish it even if shutdown cancels ctx, so it
	// is never stranded in processing.
	ctx = context.WithoutCancel(ctx)

	if item.NewPath != "" {
		l.Info("retry after successful move, skipping straight to moved")
		if err := p.store.UpdateStatus(ctx, item.ID, models.StatusMoved, queue.StatusPatch{}); err != nil {
			l.Error("failed to advance already-moved row", "error", err)
		}
		return true, nil
	}

	if err := p.process(ctx, item); err != nil {
		msg := err.Error()
		l.Warn("file processing failed", "error", msg)
		if patchErr := p.store.UpdateStatus(ctx, item.ID, models.StatusError, queue.StatusPatch{ErrorMessage: &msg}); patchErr != nil {
			l.Error("failed to record error status", "error", patchErr)
		}
		return true, nil
	}

	return true, nil
}

func (p *FileProcessor) process(ctx context.Context, item *models.WorkItem) error {
	basename := filepath.Base(item.FilePath)
	ext := filepath.Ext(basename)

	code, ok := parser.ExtractCode(basename)
	if !ok {
		return fmt.Errorf("No movie code found")
	}
	subtitle := parser.DetectSubtitle(basename)

	record, err := p.catalogClient.Search(ctx, code)
	if err != nil {
		return fmt.Errorf("No metadata found: %w", err)
	}
	if record == nil || len(record.Actress) == 0 || record.Title == "" {
		return fmt.Errorf("No metadata found")
	}

	actress := record.Actress[0]
	newBasename := renamer.ComposeFilename(actress, subtitle, code, record.Title, ext)

	actressDir, err := renamer.LocateActressDir(p.destinationDir, actress)
	if err != nil {
		return fmt.Errorf("File move failure: %w", err)
	}

	newPath, err := renamer.Move(item.FilePath, actressDir, newBasename)
	if err != nil {
		return fmt.Errorf("File move failure: %w", err)
	}

	metadataJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("File move failure: marshal metadata: %w", err)
	}

	patch := queue.StatusPatch{
		NewPath:      &newPath,
		MetadataJSON: metadataJSON,
		Actress:      &actress,
		Subtitle:     &subtitle,
		MovieCode:    &code,
	}
	if err := p.store.UpdateStatus(ctx, item.ID, models.StatusMoved, patch); err != nil {
		return fmt.Errorf("File move failure: update status: %w", err)
	}
	return nil
}

// IsNonRetriable reports whether message is the one error class the retry
// scheduler must never re-arm.
func IsNonRetriable(message string) bool {
	return strings.HasPrefix(message, errNoMovieCodePrefix)
}
