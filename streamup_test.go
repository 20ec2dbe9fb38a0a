package streamup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamup/config"
	"streamup/storage"
)

func testEngineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Queue.File = filepath.Join(t.TempDir(), "state", "queue.json")
	cfg.Libraries = map[string]string{"7": "key7"}
	return cfg
}

func TestEngineWiringAndPersistence(t *testing.T) {
	cfg := testEngineConfig(t)

	engine, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, os.WriteFile(file, make([]byte, 64), 0600))

	// Enqueue before Start: entries persist without being admitted.
	added, err := engine.Enqueue([]string{file}, "7", "")
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, storage.StatusPending, added[0].Status)
	assert.False(t, engine.Drained())

	require.NoError(t, engine.Close())

	// A fresh engine over the same state sees the persisted entry.
	reopened, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	entries := reopened.List()
	require.Len(t, entries, 1)
	assert.Equal(t, added[0].ID, entries[0].ID)
}

func TestEngineEnqueueWithoutCredential(t *testing.T) {
	cfg := testEngineConfig(t)

	engine, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	defer engine.Close()

	file := filepath.Join(t.TempDir(), "movie.mp4")
	require.NoError(t, os.WriteFile(file, make([]byte, 64), 0600))

	added, err := engine.Enqueue([]string{file}, "99", "")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, added[0].Status)
	assert.True(t, engine.Drained())
}

func TestEngineRejectsSecondProcess(t *testing.T) {
	cfg := testEngineConfig(t)

	first, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	defer first.Close()

	_, err = NewEngine(cfg, nil)
	assert.Error(t, err, "the queue file lock admits one engine at a time")
}
