package storage

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	// StatusPending means the entry is waiting for admission.
	StatusPending Status = "pending"
	// StatusUploading means a transfer session is active for the entry.
	StatusUploading Status = "uploading"
	// StatusPaused means the transfer is suspended, by the user or by a
	// protective pause after network loss.
	StatusPaused Status = "paused"
	// StatusSuccess means all bytes were acknowledged by the server.
	StatusSuccess Status = "success"
	// StatusFailed means the transfer ended in an unrecoverable error.
	StatusFailed Status = "failed"
	// StatusCanceled means the user discarded the entry.
	StatusCanceled Status = "canceled"
)

var terminalStatuses = map[Status]bool{
	StatusSuccess:  true,
	StatusFailed:   true,
	StatusCanceled: true,
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return terminalStatuses[s]
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUploading, StatusPaused, StatusSuccess, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Entry status transitions: pending ↔ uploading/paused → terminal.
// cancel is reachable from every non-terminal state.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusUploading: true,
		StatusPaused:    true,
		StatusFailed:    true,
		StatusCanceled:  true,
	},
	StatusUploading: {
		StatusPaused:   true,
		StatusSuccess:  true,
		StatusFailed:   true,
		StatusCanceled: true,
	},
	StatusPaused: {
		StatusPending:  true,
		StatusCanceled: true,
	},
}

// ValidateTransition checks that from → to is a legal status transition.
func ValidateTransition(from, to Status) error {
	if from.Terminal() {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid status transition: %q → %q", from, to)
	}
	return nil
}

// RemoteMeta caches metadata reported by the remote video registry. It is
// advisory only: the local Status field stays authoritative for what the
// user sees.
type RemoteMeta struct {
	// Title is the title stored on the remote resource.
	Title string `json:"title,omitempty"`
	// ThumbnailURL references the remote thumbnail, if any.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// StatusCode is the remote processing status code.
	StatusCode int `json:"status_code,omitempty"`
	// ProcessingPercent is the remote encode progress, 0-100.
	ProcessingPercent int `json:"processing_percent,omitempty"`
	// DurationSeconds is the media duration as reported by the remote.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	// ErrorText is the last remote-reported error, if any.
	ErrorText string `json:"error_text,omitempty"`
}

// QueueEntry is the unit of upload work. Entries are mutated only by the
// scheduler while holding its lock; everything else receives clones.
type QueueEntry struct {
	// ID is the stable internal identifier (UUID).
	ID string `json:"id"`

	// FilePath is the local source file. Captured once at enqueue time.
	FilePath string `json:"file_path"`
	// FileSize is the total byte length, captured once at enqueue time.
	FileSize int64 `json:"file_size"`

	// LibraryID is the target library on the remote service.
	LibraryID string `json:"library_id"`
	// CollectionID is the optional target collection.
	CollectionID string `json:"collection_id,omitempty"`
	// Title is the display title, defaulting to the file name.
	Title string `json:"title,omitempty"`

	// Status is the authoritative local lifecycle state.
	Status Status `json:"status"`
	// Error holds the human-readable failure message for failed entries.
	Error string `json:"error,omitempty"`

	// VideoID is the remote resource id. Once set it is never cleared
	// except by removing the entry.
	VideoID string `json:"video_id,omitempty"`
	// SessionURL is the resumable upload session URL.
	SessionURL string `json:"session_url,omitempty"`

	// BytesAcked counts bytes acknowledged by the server. Monotonically
	// non-decreasing while uploading.
	BytesAcked int64 `json:"bytes_acked"`

	// CreatedAt orders FIFO admission.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is set when the entry reaches success or failed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// PausedAt records the last pause-or-resume attempt. It gates
	// auto-resume after connectivity returns.
	PausedAt *time.Time `json:"paused_at,omitempty"`

	// Remote caches advisory metadata from the registry.
	Remote RemoteMeta `json:"remote"`

	// Notified guards the "ready" notification so it fires at most once.
	Notified bool `json:"notified"`
}

// Progress returns the acknowledged fraction in [0,1].
func (e *QueueEntry) Progress() float64 {
	if e.FileSize <= 0 {
		return 0
	}
	p := float64(e.BytesAcked) / float64(e.FileSize)
	if p > 1 {
		return 1
	}
	return p
}

// Clone returns a deep copy of the entry.
func (e *QueueEntry) Clone() *QueueEntry {
	c := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.PausedAt != nil {
		t := *e.PausedAt
		c.PausedAt = &t
	}
	return &c
}
