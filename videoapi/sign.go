package videoapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// PresignedAuth is the signed credential carried by every request to the
// resumable upload endpoint. It is computed once per transfer session and
// reused for all requests in that session, so every request carries the
// exact same signature.
type PresignedAuth struct {
	LibraryID string
	VideoID   string
	Expires   int64 // unix seconds
	Signature string
}

// Signature computes the upload authorization signature:
// hex(sha256(libraryID + apiKey + expires + videoID)).
func Signature(libraryID, apiKey string, expires int64, videoID string) string {
	h := sha256.New()
	h.Write([]byte(libraryID))
	h.Write([]byte(apiKey))
	h.Write([]byte(strconv.FormatInt(expires, 10)))
	h.Write([]byte(videoID))
	return hex.EncodeToString(h.Sum(nil))
}

// Presign creates a signed credential valid for ttl from now. The expiry is
// generous: it must outlive any plausible single-file transfer, because the
// signature is never recomputed mid-session.
func Presign(libraryID, apiKey, videoID string, ttl time.Duration, now time.Time) PresignedAuth {
	expires := now.Add(ttl).Unix()
	return PresignedAuth{
		LibraryID: libraryID,
		VideoID:   videoID,
		Expires:   expires,
		Signature: Signature(libraryID, apiKey, expires, videoID),
	}
}

// Headers returns the authorization headers for upload endpoint requests.
func (a PresignedAuth) Headers() map[string]string {
	return map[string]string{
		"AuthorizationSignature": a.Signature,
		"AuthorizationExpire":    strconv.FormatInt(a.Expires, 10),
		"LibraryId":              a.LibraryID,
		"VideoId":                a.VideoID,
	}
}
