// Package mediaserver is a thin HTTP client over the downstream media
// server's REST surface: rescans, item lookup, the modify-and-post write
// protocol, and best-effort image upload.
package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// indexingWaitSchedule is the exponential backoff schedule (seconds)
// between find-by-path attempts after a rescan.
var indexingWaitSchedule = []time.Duration{
	2 * time.Second, 4 * time.Second, 8 * time.Second,
	16 * time.Second, 32 * time.Second, 64 * time.Second,
}

// ErrItemNotIndexed is returned when both find-by-path and the
// find-by-filename fallback fail to locate the item after a rescan.
var ErrItemNotIndexed = fmt.Errorf("item not indexed")

// Item is the subset of the server's item detail record this pipeline reads
// and writes. Raw holds the full record as fetched; ModifyAndPost merges
// this struct's fields back onto Raw before posting, so fields the server
// carries but this struct doesn't model (ProviderIds, DateCreated,
// RunTimeTicks, MediaSources, Type, ServerId, ...) survive the round trip.
type Item struct {
	ID                           string   `json:"Id"`
	Path                         string   `json:"Path"`
	Name                         string   `json:"Name"`
	SortName                     string   `json:"SortName"`
	ForcedSortName               string   `json:"ForcedSortName"`
	OriginalTitle                string   `json:"OriginalTitle,omitempty"`
	Overview                     string   `json:"Overview,omitempty"`
	ProductionYear               int      `json:"ProductionYear,omitempty"`
	PremiereDate                 string   `json:"PremiereDate,omitempty"`
	People                       []Person `json:"People,omitempty"`
	GenreItems                   []Named  `json:"GenreItems,omitempty"`
	Studios                      []Named  `json:"Studios,omitempty"`
	PreferredMetadataLanguage    string   `json:"PreferredMetadataLanguage,omitempty"`
	PreferredMetadataCountryCode string   `json:"PreferredMetadataCountryCode,omitempty"`
	LockData                    bool     `json:"LockData"`

	// Raw is the original record as fetched, used by ModifyAndPost to
	// preserve fields not modeled above. Never sent on the wire itself.
	Raw json.RawMessage `json:"-"`
}

// Person is a cast/crew entry on an Item.
type Person struct {
	Name string `json:"Name"`
	Type string `json:"Type"`
}

// Named is a generic {Name: ...} entry used for genres and studios.
type Named struct {
	Name string `json:"Name"`
}

// Client talks to the media server over plain HTTP with the two
// authentication schemes the server requires: X-Emby-Token header for data
// endpoints, ?api_key= query parameter for image uploads.
type Client struct {
	baseURL  string
	apiKey   string
	userID   string
	http     *http.Client
	waitFunc func(ctx context.Context, d time.Duration) error
}

// New builds a Client against baseURL using apiKey for authentication.
func New(baseURL, apiKey, userID string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		userID:   userID,
		http:     &http.Client{Timeout: 30 * time.Second},
		waitFunc: defaultWait,
	}
}

func defaultWait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping checks that the media server is reachable and authenticated, via
// GET /System/Info — used by the operator CLI's doctor subcommand.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/System/Info", nil, nil)
	if err != nil {
		return fmt.Errorf("ping media server: %w", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("ping media server: status %d", resp.StatusCode)
	}
	return nil
}

// TriggerRescan fires a recursive refresh of parentFolderID. Fire-and-forget:
// any 2xx or 204 is success.
func (c *Client) TriggerRescan(ctx context.Context, parentFolderID string) error {
	path := fmt.Sprintf("/Items/%s/Refresh?Recursive=true", url.PathEscape(parentFolderID))
	resp, err := c.do(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return fmt.Errorf("trigger rescan: %w", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("rescan failed: status %d", resp.StatusCode)
	}
	return nil
}

// FindByPath returns the item whose Path exactly matches path, or nil if
// none exists.
func (c *Client) FindByPath(ctx context.Context, path string) (*Item, error) {
	items, err := c.listWithPaths(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Path == path {
			return &items[i], nil
		}
	}
	return nil, nil
}

// FindByFilename is the fallback lookup: matches on the basename of Path
// rather than the full path.
func (c *Client) FindByFilename(ctx context.Context, filename string) (*Item, error) {
	items, err := c.listWithPaths(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if filepath.Base(items[i].Path) == filename {
			return &items[i], nil
		}
	}
	return nil, nil
}

func (c *Client) listWithPaths(ctx context.Context) ([]Item, error) {
	resp, err := c.do(ctx, http.MethodGet, "/Items?Recursive=true&Fields=Path", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("list items: status %d", resp.StatusCode)
	}

	var parsed struct {
		Items []Item `json:"Items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode item list: %w", err)
	}
	return parsed.Items, nil
}

// WaitForIndex runs the indexing-wait protocol against newPath: exponential
// backoff find-by-path, falling back to find-by-filename on exhaustion.
// Returns ErrItemNotIndexed if neither locates the item.
func (c *Client) WaitForIndex(ctx context.Context, newPath string) (*Item, error) {
	for _, wait := range indexingWaitSchedule {
		if err := c.waitFunc(ctx, wait); err != nil {
			return nil, err
		}
		item, err := c.FindByPath(ctx, newPath)
		if err != nil {
			return nil, fmt.Errorf("find by path during indexing wait: %w", err)
		}
		if item != nil {
			return item, nil
		}
	}

	item, err := c.FindByFilename(ctx, filepath.Base(newPath))
	if err != nil {
		return nil, fmt.Errorf("find by filename fallback: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotIndexed
	}
	return item, nil
}

// GetItemDetails fetches the full detail record for id.
func (c *Client) GetItemDetails(ctx context.Context, id string) (*Item, error) {
	path := fmt.Sprintf("/Users/%s/Items/%s", url.PathEscape(c.userID), url.PathEscape(id))
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("get item details: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read item details body: %w", err)
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item details: %w", err)
	}
	item.Raw = raw
	return &item, nil
}

// ModifyAndPost GETs the current record for id, applies mutate, and POSTs
// the whole record back. The caller's mutate MUST set Name, SortName, and
// ForcedSortName to the on-disk basename-without-extension — this client
// does not derive them, since the catalog title is never the authoritative
// source for those fields.
func (c *Client) ModifyAndPost(ctx context.Context, id string, mutate func(*Item)) error {
	item, err := c.GetItemDetails(ctx, id)
	if err != nil {
		return fmt.Errorf("metadata write failure: %w", err)
	}

	mutate(item)
	item.LockData = true

	body, err := mergeIntoRaw(item.Raw, item)
	if err != nil {
		return fmt.Errorf("metadata write failure: encode item: %w", err)
	}

	path := fmt.Sprintf("/Items/%s", url.PathEscape(id))
	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return fmt.Errorf("metadata write failure: %w", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("metadata write failure: status %d", resp.StatusCode)
	}
	return nil
}

// mergeIntoRaw overlays item's fields onto the original record in raw, so
// the POST body is the server's own record with only the touched fields
// changed rather than a fresh object built from item's narrow field set.
func mergeIntoRaw(raw json.RawMessage, item *Item) ([]byte, error) {
	full := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &full); err != nil {
			return nil, fmt.Errorf("decode original record: %w", err)
		}
	}

	narrowBytes, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	var narrow map[string]any
	if err := json.Unmarshal(narrowBytes, &narrow); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	for k, v := range narrow {
		full[k] = v
	}

	return json.Marshal(full)
}

// DeleteImage removes an image slot, treating 404 as success.
func (c *Client) DeleteImage(ctx context.Context, id, imageType string, index int) error {
	path := fmt.Sprintf("/Items/%s/Images/%s/%d", url.PathEscape(id), imageType, index)
	resp, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete image: status %d", resp.StatusCode)
	}
	return nil
}

// UploadImage uploads raw image bytes to the given slot. Image upload
// authenticates via ?api_key= instead of the X-Emby-Token header.
func (c *Client) UploadImage(ctx context.Context, id, imageType string, data []byte) error {
	path := fmt.Sprintf("/Items/%s/Images/%s?api_key=%s", url.PathEscape(id), imageType, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build image upload request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("upload image: status %d", resp.StatusCode)
	}
	return nil
}

// imageSlot pairs an image type with the bytes to upload and how many
// existing indices to clear first (Backdrop holds up to 5).
type imageSlot struct {
	imageType  string
	data       []byte
	clearCount int
}

// UploadImageSet runs the Primary/Backdrop/Banner upload flow in parallel
// via errgroup, deleting each slot's existing images first; with only
// three slots no semaphore is needed. Per-image failures are logged, never
// returned — image upload never gates item completion.
func (c *Client) UploadImageSet(ctx context.Context, id string, primary, backdrop, banner []byte) {
	slots := []imageSlot{
		{imageType: "Primary", data: primary, clearCount: 1},
		{imageType: "Backdrop", data: backdrop, clearCount: 5},
		{imageType: "Banner", data: banner, clearCount: 1},
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, slot := range slots {
		slot := slot
		if len(slot.data) == 0 {
			continue
		}
		g.Go(func() error {
			for i := 0; i < slot.clearCount; i++ {
				if err := c.DeleteImage(gCtx, id, slot.imageType, i); err != nil {
					slog.Warn("image delete failed", "item_id", id, "type", slot.imageType, "index", i, "error", err)
				}
			}
			if err := c.UploadImage(gCtx, id, slot.imageType, slot.data); err != nil {
				slog.Warn("image upload failed", "item_id", id, "type", slot.imageType, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// ProductionYearFromReleaseDate parses the integer year out of an ISO
// YYYY-MM-DD release date, returning 0 if unparseable.
func ProductionYearFromReleaseDate(releaseDate string) int {
	if len(releaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}
