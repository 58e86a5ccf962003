//go:build !windows

// mmap_unix.go - MMAP-Backend auf Unix-Systemen.
//
// Grounded on the teacher and pack-wide convention of depending on
// golang.org/x/sys for low-level platform calls; the original C
// implementation mmaps the checkpoint file read-only and private.
package weights

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type mmapStore struct {
	file   *os.File
	region []byte
	base   uint64 // offset of the weight body within the mapped file
}

// NewMmapStore opens path read-only and maps it privately. bodyOffset is
// the byte offset within the file where the weight body begins (the
// checkpoint header precedes it).
func NewMmapStore(path string, bodyOffset uint64) (Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("weights: empty file %q", path)
	}

	region, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("weights: mmap %q: %w", path, err)
	}

	return &mmapStore{file: f, region: region, base: bodyOffset}, nil
}

func (s *mmapStore) Fetch(offset, size uint64) ([]byte, error) {
	start := s.base + offset
	end := start + size
	if end > uint64(len(s.region)) {
		return nil, fmt.Errorf("short read: offset=%d size=%d region=%d", offset, size, len(s.region))
	}
	return s.region[start:end], nil
}

func (s *mmapStore) Close() error {
	err := unix.Munmap(s.region)
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
