package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "voicedesk.log")
	logger, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Info("recording finalized")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "recording finalized")
}

func TestNewFiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicedesk.log")
	logger, err := New(Options{Level: "warn", File: path})
	require.NoError(t, err)

	logger.Info("chatty")
	logger.Warn("important")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "chatty")
	assert.Contains(t, string(data), "important")
}
