package testpipe

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptCache_ReporterPath(t *testing.T) {
	cache := &ScriptCache{}

	path, err := cache.ReporterPath()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "##testpipe-begin##")
	assert.Contains(t, string(content), "TESTPIPE_SESSION")

	// Subsequent calls reuse the same file.
	again, err := cache.ReporterPath()
	require.NoError(t, err)
	assert.Equal(t, path, again)
}
