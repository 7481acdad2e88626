package mediaserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageCheck is a non-gating diagnostic performed on bytes downloaded from
// the catalog before they're uploaded to the media server. The accept/reject
// decision for an upload is a nonempty body plus an image/* content-type;
// this check never blocks an upload, it only gives the caller something
// useful to log when a "valid" image turns out to be corrupt or an
// unexpected format.
type ImageCheck struct {
	Format      string
	Width       int
	Height      int
	ContentHash string
	Decodable   bool
}

var magicBytes = map[string][]byte{
	"jpeg": {0xFF, 0xD8, 0xFF},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
}

// DetectFormat identifies an image format from its magic bytes, never from
// the server-supplied Content-Type header.
func DetectFormat(data []byte) string {
	if len(data) < 12 {
		return ""
	}
	if bytes.HasPrefix(data, magicBytes["jpeg"]) {
		return "jpeg"
	}
	if bytes.HasPrefix(data, magicBytes["png"]) {
		return "png"
	}
	if bytes.HasPrefix(data, magicBytes["gif"]) {
		return "gif"
	}
	if bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "webp"
	}
	return ""
}

// CheckImage sniffs format and dimensions for logging. Errors decoding the
// image are reported on the result, never returned, since the upload
// proceeds regardless.
func CheckImage(data []byte) ImageCheck {
	hash := sha256.Sum256(data)
	result := ImageCheck{
		Format:      DetectFormat(data),
		ContentHash: hex.EncodeToString(hash[:]),
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return result
	}
	result.Decodable = true
	result.Width = cfg.Width
	result.Height = cfg.Height
	return result
}
