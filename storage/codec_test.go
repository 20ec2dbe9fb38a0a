package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLegacyRecord(t *testing.T) {
	// Record shape written by the v0 persistence code: camelCase keys,
	// numeric library id, "state" instead of "status".
	raw := `{
		"id": "legacy-1",
		"file_path": "/videos/old.mp4",
		"size": 52428800,
		"libraryId": 4711,
		"state": "inProgress",
		"guid": "old-guid",
		"uploadUrl": "https://upload.example/sessions/old",
		"sent": 8388608
	}`

	var e QueueEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, "legacy-1", e.ID)
	assert.Equal(t, int64(52428800), e.FileSize)
	assert.Equal(t, "4711", e.LibraryID)
	assert.Equal(t, StatusUploading, e.Status)
	assert.Equal(t, "old-guid", e.VideoID)
	assert.Equal(t, "https://upload.example/sessions/old", e.SessionURL)
	assert.Equal(t, int64(8388608), e.BytesAcked)
}

func TestDecodeCanonicalWinsOverLegacy(t *testing.T) {
	raw := `{
		"id": "both",
		"status": "paused",
		"state": "inProgress",
		"video_id": "canonical-id",
		"videoId": "legacy-id",
		"session_url": "https://upload.example/new",
		"uploadUrl": "https://upload.example/old",
		"library_id": "7",
		"libraryId": 9
	}`

	var e QueueEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, StatusPaused, e.Status)
	assert.Equal(t, "canonical-id", e.VideoID)
	assert.Equal(t, "https://upload.example/new", e.SessionURL)
	assert.Equal(t, "7", e.LibraryID)
}

func TestDecodeUnknownStatusDefaultsToPending(t *testing.T) {
	var e QueueEntry
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","status":"???"}`), &e))
	assert.Equal(t, StatusPending, e.Status)

	var e2 QueueEntry
	require.NoError(t, json.Unmarshal([]byte(`{"id":"y"}`), &e2))
	assert.Equal(t, StatusPending, e2.Status)
}

func TestDecodeLegacyStatusNames(t *testing.T) {
	cases := map[string]Status{
		"queued":     StatusPending,
		"inProgress": StatusUploading,
		"done":       StatusSuccess,
		"error":      StatusFailed,
		"cancelled":  StatusCanceled,
	}
	for legacy, want := range cases {
		var e QueueEntry
		require.NoError(t, json.Unmarshal([]byte(`{"id":"x","state":"`+legacy+`"}`), &e))
		assert.Equal(t, want, e.Status, "legacy state %q", legacy)
	}
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StatusPending, StatusUploading))
	assert.NoError(t, ValidateTransition(StatusUploading, StatusPaused))
	assert.NoError(t, ValidateTransition(StatusPaused, StatusPending))
	assert.NoError(t, ValidateTransition(StatusUploading, StatusSuccess))

	assert.Error(t, ValidateTransition(StatusSuccess, StatusUploading))
	assert.Error(t, ValidateTransition(StatusPaused, StatusUploading))
	assert.Error(t, ValidateTransition(StatusFailed, StatusPending))
}

func TestProgressAndClone(t *testing.T) {
	e := &QueueEntry{FileSize: 200, BytesAcked: 50}
	assert.InDelta(t, 0.25, e.Progress(), 1e-9)

	e.BytesAcked = 400
	assert.Equal(t, 1.0, e.Progress())

	zero := &QueueEntry{}
	assert.Equal(t, 0.0, zero.Progress())

	c := e.Clone()
	c.BytesAcked = 0
	assert.Equal(t, int64(400), e.BytesAcked)
}
