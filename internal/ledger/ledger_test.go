package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud_symlinks.ini")

	s, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.NoFileExists(t, path)

	_, ok := s.Get("/data/links.tar.gz")
	assert.False(t, ok)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestSave_WritesMainSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cloud_symlinks.ini")
	ts := time.Date(2024, 5, 17, 8, 30, 12, 999_000_000, time.FixedZone("CEST", 2*3600))

	s, err := Open(path)
	require.NoError(t, err)
	s.Set("/data/links.tar.gz", ts)
	require.NoError(t, s.Save(t.Context()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[main]")
	assert.Contains(t, string(data), "2024-05-17 06:30:12")

	reopened, err := Open(path)
	require.NoError(t, err)
	got, ok := reopened.Get("/data/links.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 17, 6, 30, 12, 0, time.UTC), got)
}

func TestOpen_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud_symlinks.ini")
	content := "[main]\n/data/links.tar.gz = 2023-11-02 10:00:00\n/data/other.tar.gz = not-a-date\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get("/data/links.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 11, 2, 10, 0, 0, 0, time.UTC), got)

	_, ok = s.Get("/data/other.tar.gz")
	assert.False(t, ok)
}

func TestStore_KeysAreCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud_symlinks.ini")
	// configparser lowercases keys when it writes the file
	content := "[main]\n/data/cloud/links.tar.gz = 2023-11-02 10:00:00\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	got, ok := s.Get("/Data/Cloud/Links.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 11, 2, 10, 0, 0, 0, time.UTC), got)

	s.Set("/Data/Cloud/Other.tar.gz", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(t.Context()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/data/cloud/other.tar.gz")
	assert.NotContains(t, string(data), "Other.tar.gz")

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	_, ok = reopened.Get("/DATA/CLOUD/OTHER.TAR.GZ")
	assert.True(t, ok)
}

func TestOpen_UnparseableFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud_symlinks.ini")
	require.NoError(t, os.WriteFile(path, []byte("this is\nnot an ini file\n"), 0o644))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	s.Set("/data/links.tar.gz", time.Now())
	require.NoError(t, s.Save(t.Context()))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestSave_MergesConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud_symlinks.ini")

	a, err := Open(path)
	require.NoError(t, err)
	b, err := Open(path)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, a.Record(t.Context(), "/data/a.tar.gz", now))
	require.NoError(t, b.Record(t.Context(), "/data/b.tar.gz", now))

	// b picked up a's entry while merging
	_, ok := b.Get("/data/a.tar.gz")
	assert.True(t, ok)

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
}

func TestSave_LockedLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloud_symlinks.ini")

	holder := flock.New(path + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { holder.Unlock() })

	s, err := Open(path, WithLockBackoff(func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}))
	require.NoError(t, err)
	s.Set("/data/links.tar.gz", time.Now())

	err = s.Save(t.Context())
	require.ErrorIs(t, err, ErrLedgerLocked)
	assert.NoFileExists(t, path)

	require.NoError(t, holder.Unlock())
	require.NoError(t, s.Save(t.Context()))
	assert.FileExists(t, path)
}

func TestTruncate(t *testing.T) {
	in := time.Date(2024, 1, 1, 23, 59, 59, 900_000_000, time.FixedZone("X", -3600))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 59, 59, 0, time.UTC), Truncate(in))
}
