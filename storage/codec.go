package storage

import (
	"encoding/json"
	"strconv"
)

// Legacy status names written by earlier releases.
var legacyStatusNames = map[string]Status{
	"queued":     StatusPending,
	"inProgress": StatusUploading,
	"done":       StatusSuccess,
	"error":      StatusFailed,
	"cancelled":  StatusCanceled,
}

// UnmarshalJSON decodes an entry with a per-field fallback chain: the
// canonical key is tried first, then known legacy keys, then a default.
// A record written by any prior release decodes without failing the load.
func (e *QueueEntry) UnmarshalJSON(data []byte) error {
	type alias QueueEntry
	aux := struct {
		*alias

		// Canonical keys that changed type across versions.
		LibraryIDRaw json.RawMessage `json:"library_id"`

		// Legacy keys.
		LegacyState     string          `json:"state"`
		LegacyVideoID   string          `json:"videoId"`
		LegacyGUID      string          `json:"guid"`
		LegacyUploadURL string          `json:"uploadUrl"`
		LegacyLibraryID json.RawMessage `json:"libraryId"`
		LegacySent      *int64          `json:"sent"`
		LegacySize      *int64          `json:"size"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	// status ← state ← pending
	if e.Status == "" && aux.LegacyState != "" {
		if mapped, ok := legacyStatusNames[aux.LegacyState]; ok {
			e.Status = mapped
		} else {
			e.Status = Status(aux.LegacyState)
		}
	}
	if !e.Status.Valid() {
		e.Status = StatusPending
	}

	// video_id ← videoId ← guid
	if e.VideoID == "" {
		if aux.LegacyVideoID != "" {
			e.VideoID = aux.LegacyVideoID
		} else if aux.LegacyGUID != "" {
			e.VideoID = aux.LegacyGUID
		}
	}

	// session_url ← uploadUrl
	if e.SessionURL == "" && aux.LegacyUploadURL != "" {
		e.SessionURL = aux.LegacyUploadURL
	}

	// library_id ← libraryId; either may be a JSON string or number.
	if s := flexString(aux.LibraryIDRaw); s != "" {
		e.LibraryID = s
	} else if s := flexString(aux.LegacyLibraryID); s != "" {
		e.LibraryID = s
	}

	// bytes_acked ← sent, file_size ← size
	if e.BytesAcked == 0 && aux.LegacySent != nil {
		e.BytesAcked = *aux.LegacySent
	}
	if e.FileSize == 0 && aux.LegacySize != nil {
		e.FileSize = *aux.LegacySize
	}

	return nil
}

// flexString decodes a raw JSON value that may be a string or a number
// into its string form. Returns "" for null, absent, or undecodable values.
func flexString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}
