// absolute.go - ABSOLUTE_ADDRESS-Backend: der Aufrufer liefert das gesamte
// In-Memory-Abbild des Checkpoints selbst.
package weights

import "fmt"

// absoluteStore serves fetches directly out of a caller-supplied byte slice.
type absoluteStore struct {
	body []byte
}

// NewAbsoluteStore wraps an in-memory checkpoint image already sliced to
// the start of its weight body.
func NewAbsoluteStore(body []byte) Store {
	return &absoluteStore{body: body}
}

func (s *absoluteStore) Fetch(offset, size uint64) ([]byte, error) {
	end := offset + size
	if end > uint64(len(s.body)) {
		return nil, fmt.Errorf("short read: offset=%d size=%d body=%d", offset, size, len(s.body))
	}
	return s.body[offset:end], nil
}

func (s *absoluteStore) Close() error { return nil }
