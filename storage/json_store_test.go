package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.json")
	s, err := NewJSONStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	completed := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	entries := []*QueueEntry{
		{
			ID:         "a",
			FilePath:   "/videos/a.mp4",
			FileSize:   100 << 20,
			LibraryID:  "lib-1",
			Title:      "a.mp4",
			Status:     StatusUploading,
			VideoID:    "vid-a",
			SessionURL: "https://upload.example/sessions/a",
			BytesAcked: 40 << 20,
			CreatedAt:  time.Now().UTC().Truncate(time.Second),
		},
		{
			ID:          "b",
			FilePath:    "/videos/b.mp4",
			FileSize:    1024,
			LibraryID:   "lib-2",
			Status:      StatusSuccess,
			VideoID:     "vid-b",
			BytesAcked:  1024,
			CreatedAt:   time.Now().UTC().Truncate(time.Second),
			CompletedAt: &completed,
			Notified:    true,
			Remote: RemoteMeta{
				Title:             "b.mp4",
				StatusCode:        4,
				ProcessingPercent: 100,
			},
		},
	}

	require.NoError(t, s.Save(entries))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "vid-a", got[0].VideoID)
	assert.Equal(t, "https://upload.example/sessions/a", got[0].SessionURL)
	assert.Equal(t, int64(40<<20), got[0].BytesAcked)
	assert.Equal(t, StatusUploading, got[0].Status)

	assert.Equal(t, StatusSuccess, got[1].Status)
	assert.True(t, got[1].Notified)
	require.NotNil(t, got[1].CompletedAt)
	assert.True(t, got[1].CompletedAt.Equal(completed))
	assert.Equal(t, 100, got[1].Remote.ProcessingPercent)
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewJSONStore(path, nil)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveIsAtomicOverwrite(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save([]*QueueEntry{{ID: "x", Status: StatusPending, CreatedAt: time.Now()}}))
	require.NoError(t, s.Save([]*QueueEntry{{ID: "y", Status: StatusPending, CreatedAt: time.Now()}}))

	got, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].ID)

	// No temp files left behind.
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(s.path), ".streamup-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSecondStoreCannotTakeLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	s, err := NewJSONStore(path, nil)
	require.NoError(t, err)
	defer s.Close()

	// The lock timeout is seconds; spin a competing flock directly instead
	// of waiting it out.
	l := NewFileLock(path)
	err = l.Lock(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
}
