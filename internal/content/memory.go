package content

import (
	"context"
	"sync"

	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
)

// InMemory is a content-addressed blob store: the handle is derived from the
// digest, so identical bytes store once and always resolve to the same handle.
type InMemory struct {
	mu    sync.RWMutex
	blobs map[Handle][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{blobs: make(map[Handle][]byte)}
}

func (s *InMemory) Put(_ context.Context, data []byte) (Handle, error) {
	handle := Handle("mem://" + Hash(data))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[handle]; !exists {
		s.blobs[handle] = append([]byte(nil), data...)
	}
	return handle, nil
}

func (s *InMemory) Get(_ context.Context, handle Handle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[handle]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of distinct blobs stored.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
