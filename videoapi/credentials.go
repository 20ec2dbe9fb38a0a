package videoapi

import (
	"errors"
	"fmt"
)

// ErrNoCredential indicates no API key is configured for a library.
// Enqueue surfaces this as an immediate terminal failure without touching
// the network.
var ErrNoCredential = errors.New("videoapi: no credential for library")

// Credentials resolves the per-library API key. The secure storage behind
// it (keychain, secret manager) is outside the engine; this is its
// interface boundary.
type Credentials interface {
	// APIKey returns the key for the given library, or an error wrapping
	// ErrNoCredential when none is configured.
	APIKey(libraryID string) (string, error)
}

// StaticCredentials is a Credentials implementation backed by an in-memory
// map, typically populated from the config file.
type StaticCredentials map[string]string

// APIKey implements Credentials.
func (c StaticCredentials) APIKey(libraryID string) (string, error) {
	key, ok := c[libraryID]
	if !ok || key == "" {
		return "", fmt.Errorf("library %s: %w", libraryID, ErrNoCredential)
	}
	return key, nil
}
