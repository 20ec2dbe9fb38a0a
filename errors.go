package streamup

import (
	"streamup/httpc"
	"streamup/queue"
	"streamup/retry"
	"streamup/storage"
	"streamup/videoapi"
)

// Error handling types exported for library users.
//
// All error types support the standard error handling patterns:
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, streamup.ErrEntryNotFound) {
//		fmt.Println("No such queue entry")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var exhausted *streamup.RetryExhaustedError
//	if errors.As(err, &exhausted) {
//		fmt.Printf("Gave up after %d attempts: %v\n", exhausted.Attempts, exhausted.Err)
//	}

// Sentinel errors from sub-packages.
var (
	// ErrEntryNotFound: the operation named an unknown queue entry.
	ErrEntryNotFound = queue.ErrNotFound
	// ErrVideoNotFound: the remote video resource no longer exists.
	ErrVideoNotFound = videoapi.ErrVideoNotFound
	// ErrNoCredential: no API key is configured for the target library.
	ErrNoCredential = videoapi.ErrNoCredential
	// ErrLockTimeout: another process holds the queue file lock.
	ErrLockTimeout = storage.ErrLockTimeout
	// ErrStorageCorrupt: the queue record failed integrity checks.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
)

// Type aliases for convenient error handling.
type (
	// StorageError wraps errors during queue persistence.
	StorageError = storage.StorageError
	// HTTPError wraps non-success HTTP responses from the remote service.
	HTTPError = httpc.HTTPError
	// RetryExhaustedError reports a protocol stage that consumed its full
	// retry schedule.
	RetryExhaustedError = retry.ExhaustedError
)
