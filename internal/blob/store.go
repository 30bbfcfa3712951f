// Package blob holds raw image payloads keyed by image id, with exact byte
// accounting so the session store can enforce its memory cap.
package blob

import "sync"

type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	bytes int64
}

func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Put stores data under id, replacing and re-accounting any existing entry.
func (s *Store) Put(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.blobs[id]; ok {
		s.bytes -= int64(len(old))
	}
	s.blobs[id] = data
	s.bytes += int64(len(data))
}

func (s *Store) Get(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	return data, ok
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.blobs[id]; ok {
		s.bytes -= int64(len(old))
		delete(s.blobs, id)
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// TotalBytes reports the summed size of all stored payloads.
func (s *Store) TotalBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// Reset drops every blob. Used by force-start and clear.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = make(map[string][]byte)
	s.bytes = 0
}
