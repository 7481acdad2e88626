package mediaserver

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// imageHTTPClient is used by DownloadImage; kept separate from Client.http since image downloads hit the
// catalog's CDN, not the media server itself.
var imageHTTPClient = &http.Client{Timeout: 20 * time.Second}

// PickImageURL chooses image_cropped when present, falling back to
// raw_image_url.
func PickImageURL(imageCropped, rawImageURL string) string {
	if imageCropped != "" {
		return imageCropped
	}
	return rawImageURL
}

// WideVariantURL derives the w=800 query variant of imageURL used for the
// Backdrop and Banner slots, stripping any "horizontal" query parameter.
func WideVariantURL(imageURL string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	q := parsed.Query()
	q.Del("horizontal")
	q.Set("w", "800")
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// DownloadImage fetches imageURL and returns the body bytes. A nonempty
// body with a Content-Type beginning "image/" is accepted even on a 404
// status, since the upstream media proxy is known to emit image bytes
// alongside a 404.
func DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image download request: %w", err)
	}

	resp, err := imageHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}

	accepted := isSuccess(resp.StatusCode) || resp.StatusCode == http.StatusNotFound
	if !accepted || len(body) == 0 || !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("image download rejected: status %d content-type %q body-len %d", resp.StatusCode, contentType, len(body))
	}

	return body, nil
}

// ResizeWide re-encodes data at 800px wide, preserving aspect ratio. Used as
// a local fallback for the Backdrop/Banner slots when the catalog's own
// w=800 query-param variant (WideVariantURL) fails to download — the
// catalog's CDN query param is the primary resize path; this keeps those
// slots populated instead of skipped when that CDN request errors.
func ResizeWide(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image for local resize: %w", err)
	}
	resized := imaging.Resize(src, 800, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
