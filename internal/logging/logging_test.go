package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/toolchat/internal/model"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "toolchat.log")

	logger, err := New(model.LogConfig{Path: path, Level: "debug"})
	require.NoError(t, err)
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolchat.log")

	logger, err := New(model.LogConfig{Path: path, Level: "warn"})
	require.NoError(t, err)
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(model.LogConfig{Path: filepath.Join(t.TempDir(), "x.log"), Level: "chatty"})
	assert.Error(t, err)
}

func TestEmptyPathDisablesLogging(t *testing.T) {
	logger, err := New(model.LogConfig{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
