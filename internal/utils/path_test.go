package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name      string
		input     string
		want      string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:  "absolute path is cleaned",
			input: "/tmp/links/../links/./",
			want:  "/tmp/links",
		},
		{
			name:  "home expansion",
			input: "~/.cloudlinks/cloud_symlinks.ini",
			want:  filepath.Join(home, ".cloudlinks", "cloud_symlinks.ini"),
		},
		{
			name:  "tilde inside a name is kept",
			input: "/tmp/~backup",
			want:  "/tmp/~backup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestResolvePath_Relative(t *testing.T) {
	result, err := ResolvePath("./links")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(result))
	assert.Equal(t, "links", filepath.Base(result))
}

func TestEnsureParent(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "ledger.ini")

	require.NoError(t, EnsureParent(target))
	assert.True(t, DirExists(filepath.Join(root, "a", "b")))
	assert.False(t, FileExists(target))

	// idempotent
	require.NoError(t, EnsureParent(target))
}

func TestFileAndDirExists(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "links.tar.gz")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.True(t, DirExists(root))
	assert.False(t, DirExists(file))
	assert.True(t, FileExists(file))
	assert.False(t, FileExists(root))
	assert.False(t, FileExists(filepath.Join(root, "missing")))
}

func TestIsSubPath(t *testing.T) {
	tests := []struct {
		parent string
		child  string
		want   bool
	}{
		{"/data/links", "/data/links", true},
		{"/data/links", "/data/links/archive.tar.gz", true},
		{"/data/links", "/data/links-backup/archive.tar.gz", false},
		{"/data/links", "/data/archive.tar.gz", false},
		{"/data/links", "/data/..links/x", false},
	}

	for _, tt := range tests {
		t.Run(tt.child, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSubPath(tt.parent, tt.child))
		})
	}
}
