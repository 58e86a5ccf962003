//go:build windows

// mmap_windows.go - MMAP-Backend-Fallback unter Windows: ohne
// golang.org/x/sys/unix liest dieser Store die Datei vollstaendig in den
// Speicher statt sie echt einzublenden. Die externe Fetch-Semantik bleibt
// identisch (Unterbereiche ohne zusaetzliche Kopie nach dem initialen Read).
package weights

import (
	"fmt"
	"os"
)

type mmapStore struct {
	data []byte
	base uint64
}

// NewMmapStore reads path fully into memory; bodyOffset is the byte offset
// within the file where the weight body begins.
func NewMmapStore(path string, bodyOffset uint64) (Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &mmapStore{data: data, base: bodyOffset}, nil
}

func (s *mmapStore) Fetch(offset, size uint64) ([]byte, error) {
	start := s.base + offset
	end := start + size
	if end > uint64(len(s.data)) {
		return nil, fmt.Errorf("short read: offset=%d size=%d region=%d", offset, size, len(s.data))
	}
	return s.data[start:end], nil
}

func (s *mmapStore) Close() error { return nil }
