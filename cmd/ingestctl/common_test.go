package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorizeStatus_KnownAndUnknown(t *testing.T) {
	assert.Contains(t, colorizeStatus("error"), "error")
	assert.Equal(t, "unknown-status", colorizeStatus("unknown-status"))
}
