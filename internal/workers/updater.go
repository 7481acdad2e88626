package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"vaultingest/internal/logger"
	"vaultingest/internal/mediaserver"
	"vaultingest/internal/models"
	"vaultingest/internal/queue"
)

// Updater claims moved rows, waits for the media server to index the file,
// writes metadata through, and best-effort uploads images.
type Updater struct {
	store          *queue.Store
	mediaClient    *mediaserver.Client
	parentFolderID string
	pollInterval   time.Duration
}

// NewUpdater builds an Updater polling every ~5s.
func NewUpdater(store *queue.Store, mediaClient *mediaserver.Client, parentFolderID string) *Updater {
	return &Updater{
		store:          store,
		mediaClient:    mediaClient,
		parentFolderID: parentFolderID,
		pollInterval:   5 * time.Second,
	}
}

// Run blocks, processing rows until ctx is canceled.
func (u *Updater) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := u.cycle(ctx)
		if err != nil {
			slog.Error("updater cycle failed", "error", err)
		}
		if !processed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(u.pollInterval):
			}
		}
	}
}

func (u *Updater) cycle(ctx context.Context) (bool, error) {
	item, err := u.store.ClaimMoved(ctx)
	if err != nil {
		return false, fmt.Errorf("claim moved: %w", err)
	}
	if item == nil {
		return false, nil
	}

	l := logger.WorkItem(item.ID, "new_path", item.NewPath)

	embyItemID, err := u.process(ctx, item)
	if err != nil {
		msg := err.Error()
		l.Warn("media server update failed", "error", msg)
		if patchErr := u.store.UpdateStatus(ctx, item.ID, models.StatusError, queue.StatusPatch{ErrorMessage: &msg}); patchErr != nil {
			l.Error("failed to record error status", "error", patchErr)
		}
		return true, nil
	}

	if err := u.store.UpdateStatus(ctx, item.ID, models.StatusCompleted, queue.StatusPatch{EmbyItemID: &embyItemID}); err != nil {
		l.Error("failed to mark completed", "error", err)
	}
	return true, nil
}

func (u *Updater) process(ctx context.Context, item *models.WorkItem) (string, error) {
	if err := u.mediaClient.TriggerRescan(ctx, u.parentFolderID); err != nil {
		return "", fmt.Errorf("Rescan failure: %w", err)
	}

	found, err := u.mediaClient.WaitForIndex(ctx, item.NewPath)
	if err != nil {
		if errors.Is(err, mediaserver.ErrItemNotIndexed) {
			return "", fmt.Errorf("Item not indexed")
		}
		return "", fmt.Errorf("Item not indexed: %w", err)
	}

	record, err := decodeMetadata(item.MetadataRaw)
	if err != nil {
		return "", fmt.Errorf("Metadata write failure: %w", err)
	}

	basenameNoExt := strings.TrimSuffix(filepath.Base(item.NewPath), filepath.Ext(item.NewPath))

	err = u.mediaClient.ModifyAndPost(ctx, found.ID, func(i *mediaserver.Item) {
		// Name/SortName/ForcedSortName come from the on-disk path, never the
		// catalog title — see DESIGN.md's Open Question decision on stale
		// manual renames: this worker derives them from new_path as stored
		// on the row, not a fresh stat/re-resolve.
		i.Name = basenameNoExt
		i.SortName = basenameNoExt
		i.ForcedSortName = basenameNoExt

		i.OriginalTitle = record.originalTitle
		i.Overview = record.overview
		i.ProductionYear = mediaserver.ProductionYearFromReleaseDate(record.releaseDate)
		i.PremiereDate = record.releaseDate
		i.PreferredMetadataLanguage = "en"
		i.PreferredMetadataCountryCode = "JP"
		i.LockData = true

		i.People = nil
		for _, a := range record.actress {
			i.People = append(i.People, mediaserver.Person{Name: a, Type: "Actor"})
		}
		i.GenreItems = nil
		for _, g := range record.genre {
			i.GenreItems = append(i.GenreItems, mediaserver.Named{Name: g})
		}
		if record.label != "" {
			i.Studios = []mediaserver.Named{{Name: record.label}}
		}
	})
	if err != nil {
		return "", fmt.Errorf("Metadata write failure: %w", err)
	}

	u.runImageFlow(ctx, found.ID, record)

	return found.ID, nil
}

func (u *Updater) runImageFlow(ctx context.Context, itemID string, record catalogSnapshot) {
	imageURL := mediaserver.PickImageURL(record.imageCropped, record.rawImageURL)
	if imageURL == "" {
		return
	}

	primary, err := mediaserver.DownloadImage(ctx, imageURL)
	if err != nil {
		slog.Warn("primary image download failed", "item_id", itemID, "error", err)
		return
	}
	check := mediaserverCheck(primary)
	slog.Debug("downloaded primary image", "item_id", itemID, "format", check.Format, "decodable", check.Decodable)

	wide := u.wideVariant(ctx, itemID, imageURL, primary)

	u.mediaClient.UploadImageSet(ctx, itemID, primary, wide, wide)
}

// wideVariant derives the Backdrop/Banner bytes: primarily via the catalog's
// own w=800 query-param variant, falling back to a local resize of the
// already-downloaded primary bytes if that request fails.
func (u *Updater) wideVariant(ctx context.Context, itemID, imageURL string, primary []byte) []byte {
	wideURL, err := mediaserver.WideVariantURL(imageURL)
	if err == nil {
		if wide, err := mediaserver.DownloadImage(ctx, wideURL); err == nil {
			return wide
		} else {
			slog.Warn("wide image download failed, falling back to local resize", "item_id", itemID, "error", err)
		}
	} else {
		slog.Warn("could not derive wide image variant url, falling back to local resize", "item_id", itemID, "error", err)
	}

	wide, err := mediaserver.ResizeWide(primary)
	if err != nil {
		slog.Warn("local resize fallback failed", "item_id", itemID, "error", err)
		return nil
	}
	return wide
}

// catalogSnapshot is the subset of catalog.Record the updater needs, decoded
// from the row's stored metadata_json rather than a live catalog re-query —
// the catalog response is captured verbatim at file-processor time and
// carried through the row.
type catalogSnapshot struct {
	originalTitle string
	overview      string
	releaseDate   string
	actress       []string
	genre         []string
	label         string
	imageCropped  string
	rawImageURL   string
}

func decodeMetadata(raw []byte) (catalogSnapshot, error) {
	var parsed struct {
		OriginalTitle string   `json:"original_title"`
		Overview      string   `json:"overview"`
		ReleaseDate   string   `json:"release_date"`
		Actress       []string `json:"actress"`
		Genre         []string `json:"genre"`
		Label         string   `json:"label"`
		ImageCropped  string   `json:"image_cropped"`
		RawImageURL   string   `json:"raw_image_url"`
	}
	if len(raw) == 0 {
		return catalogSnapshot{}, fmt.Errorf("no catalog metadata stored on row")
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return catalogSnapshot{}, err
	}
	return catalogSnapshot{
		originalTitle: parsed.OriginalTitle,
		overview:      parsed.Overview,
		releaseDate:   parsed.ReleaseDate,
		actress:       parsed.Actress,
		genre:         parsed.Genre,
		label:         parsed.Label,
		imageCropped:  parsed.ImageCropped,
		rawImageURL:   parsed.RawImageURL,
	}, nil
}

func mediaserverCheck(data []byte) mediaserver.ImageCheck {
	return mediaserver.CheckImage(data)
}
