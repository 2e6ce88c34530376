package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistry_LoadsManifestTree(t *testing.T) {
	path := writeManifest(t, `
tests:
  - label: math.test.js
    children:
      - label: math
        children:
          - label: adds
            line: 4
          - label: divides
            line: 9
            column: 2
  - label: standalone
`)

	reg, err := NewRegistry(Config{ManifestFile: path})
	require.NoError(t, err)

	roots := reg.GetIdentities()
	require.Len(t, roots, 2)
	assert.Equal(t, "math.test.js", roots[0].Label)
	assert.Equal(t, "standalone", roots[1].Label)

	leaves := roots[0].Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, "adds", leaves[0].Label)
	require.NotNil(t, leaves[0].SourceLocation)
	assert.Equal(t, 4, leaves[0].SourceLocation.Line)
	assert.Equal(t, 2, leaves[1].SourceLocation.Column)

	// Parent links are wired for ancestor lookups.
	assert.Equal(t, []string{"math"}, leaves[0].AncestorLabels())
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name:     "empty manifest",
			manifest: "tests: []\n",
			wantErr:  "declares no tests",
		},
		{
			name:     "missing label",
			manifest: "tests:\n  - line: 3\n",
			wantErr:  "missing label",
		},
		{
			name:     "invalid line",
			manifest: "tests:\n  - label: t\n    line: 0\n",
			wantErr:  "line must be >= 1",
		},
		{
			name:     "not yaml",
			manifest: "{{{",
			wantErr:  "parsing manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, tt.manifest)
			_, err := NewRegistry(Config{ManifestFile: path})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRegistry_MissingFile(t *testing.T) {
	_, err := NewRegistry(Config{ManifestFile: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)

	_, err = NewRegistry(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest file is required")
}
