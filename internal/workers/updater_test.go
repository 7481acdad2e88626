package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadata_RoundTrips(t *testing.T) {
	raw := []byte(`{
		"original_title": "Original",
		"overview": "Overview text",
		"release_date": "2026-01-15",
		"actress": ["Ruri Saijo"],
		"genre": ["Drama"],
		"label": "S1 NO.1 STYLE",
		"image_cropped": "https://cdn.example.com/img.jpg"
	}`)

	snap, err := decodeMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, "Original", snap.originalTitle)
	assert.Equal(t, []string{"Ruri Saijo"}, snap.actress)
	assert.Equal(t, "S1 NO.1 STYLE", snap.label)
}

func TestDecodeMetadata_EmptyIsError(t *testing.T) {
	_, err := decodeMetadata(nil)
	assert.Error(t, err)
}
