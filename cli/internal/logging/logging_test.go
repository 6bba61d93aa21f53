package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := New(Options{Dir: dir})
	require.NoError(t, err)

	logger.Info().Str("chat_id", "c1").Msg("chat opened")
	logger.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "pocket-chat.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chat_id":"c1"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewWithoutDirIsSilent(t *testing.T) {
	logger, closer, err := New(Options{})
	require.NoError(t, err)
	logger.Info().Msg("dropped")
	assert.NoError(t, closer.Close())
}
