package session

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/snapbinder/snapbinder/internal/models"
)

// snapshot is the on-disk shape of a serialized session. Payloads ride along
// base64-encoded by encoding/json.
type snapshot struct {
	Session *models.CaptureSession `json:"session"`
	Images  []imageSnapshot        `json:"images"`
}

type imageSnapshot struct {
	Record  models.StoredImage `json:"record"`
	Payload []byte             `json:"payload"`
}

// Save serializes the current session, its image records, and their payloads.
func (s *Store) Save(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoSession
	}
	snap := snapshot{Session: s.sessionCopy()}
	for _, id := range s.current.ImageIDs {
		img, ok := s.images[id]
		if !ok {
			continue
		}
		payload, _ := s.blobs.Get(id)
		snap.Images = append(snap.Images, imageSnapshot{Record: *img, Payload: payload})
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return nil
}

// Load replaces the store's state with a previously saved session. Counters
// are recomputed from the loaded images rather than trusted from the file.
func (s *Store) Load(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if snap.Session == nil {
		return fmt.Errorf("decode session: missing session record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	sess := *snap.Session
	sess.ImageIDs = nil
	sess.ImageCount = 0
	sess.UsageBytes = 0
	for _, is := range snap.Images {
		rec := is.Record
		rec.Size = int64(len(is.Payload))
		s.blobs.Put(rec.ID, is.Payload)
		s.images[rec.ID] = &rec
		sess.ImageIDs = append(sess.ImageIDs, rec.ID)
		sess.ImageCount++
		sess.UsageBytes += rec.Size
	}
	s.current = &sess
	return nil
}
