package tus

import (
	"fmt"
	"io"
	"os"
)

// readChunk reads up to chunkSize bytes of the source file starting at
// offset. The file is opened, read, and closed per chunk to bound resource
// usage over long transfers.
func readChunk(path string, offset, chunkSize, totalSize int64) ([]byte, error) {
	if offset >= totalSize {
		return nil, fmt.Errorf("offset %d beyond file size %d", offset, totalSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := chunkSize
	if remaining := totalSize - offset; remaining < n {
		n = remaining
	}

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(read) < n {
		return nil, fmt.Errorf("short read at offset %d: got %d bytes, want %d", offset, read, n)
	}
	return buf, nil
}
