// Package session implements the capture session state machine: session
// metadata, the ordered image list, counters, and the undo buffer. Image
// payloads live in the blob store; this package owns their lifecycle.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapbinder/snapbinder/internal/blob"
	"github.com/snapbinder/snapbinder/internal/models"
)

// Limits bound a session's resource usage.
type Limits struct {
	MaxImages   int
	MaxBytes    int64
	WarnRatio   float64
	UndoTimeout time.Duration
}

// Store is the capture session store. All mutations come from a single
// controlling actor, but annotation writes arrive from the recognition
// worker, so access is mutex-guarded throughout.
type Store struct {
	mu     sync.Mutex
	limits Limits
	blobs  *blob.Store
	now    func() time.Time

	current *models.CaptureSession
	images  map[string]*models.StoredImage
	undo    *undoEntry
}

// AddResult reports the outcome of a successful AddImage call.
type AddResult struct {
	ImageID       string
	ImageCount    int
	UsageBytes    int64
	MemoryWarning bool
}

func NewStore(blobs *blob.Store, limits Limits) *Store {
	return &Store{
		limits: limits,
		blobs:  blobs,
		now:    time.Now,
		images: make(map[string]*models.StoredImage),
	}
}

// SetClock overrides the store's time source. Tests use this to force the
// undo window to expire.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Current returns a copy of the session record, or nil if none exists.
func (s *Store) Current() *models.CaptureSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionCopy()
}

func (s *Store) sessionCopy() *models.CaptureSession {
	if s.current == nil {
		return nil
	}
	cp := *s.current
	cp.ImageIDs = append([]string(nil), s.current.ImageIDs...)
	return &cp
}

// Start creates a fresh active session. If a session is active or paused it
// fails with ErrSessionActive and returns the existing session so the caller
// can decide whether to force-restart.
func (s *Store) Start(name string) (*models.CaptureSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		if s.current.Status != models.StatusIdle {
			return s.sessionCopy(), ErrSessionActive
		}
		// The ended session is retained only until it is replaced; once its
		// record goes, its payloads and undo buffer go with it.
		s.clearLocked()
	}
	s.startLocked(name)
	return s.sessionCopy(), nil
}

// ForceStart unconditionally discards all session and image data, then
// starts a fresh session.
func (s *Store) ForceStart(name string) *models.CaptureSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.startLocked(name)
	return s.sessionCopy()
}

func (s *Store) startLocked(name string) {
	s.current = &models.CaptureSession{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    models.StatusActive,
		CreatedAt: s.now(),
	}
}

// End sets the session idle. Images and counters are untouched; Clear frees
// them.
func (s *Store) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoSession
	}
	s.current.Status = models.StatusIdle
	return nil
}

// Clear frees the session record, its images, and the undo buffer.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Store) clearLocked() {
	s.current = nil
	s.images = make(map[string]*models.StoredImage)
	s.undo = nil
	s.blobs.Reset()
}

func (s *Store) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoSession
	}
	if s.current.Status != models.StatusActive {
		return ErrNotActive
	}
	s.current.Status = models.StatusPaused
	return nil
}

func (s *Store) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoSession
	}
	if s.current.Status != models.StatusPaused {
		return ErrNotPaused
	}
	s.current.Status = models.StatusActive
	return nil
}

// AddImage stores a captured payload in the current session. The capture
// succeeds even when the memory warning threshold is crossed; the warning is
// reported on the result. No state changes on any failure path.
func (s *Store) AddImage(payload []byte, meta models.ImageMeta) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Status != models.StatusActive {
		return AddResult{}, ErrNoActiveSession
	}
	if s.current.ImageCount >= s.limits.MaxImages {
		return AddResult{}, ErrMaxReached
	}
	size := int64(len(payload))
	if s.current.UsageBytes+size > s.limits.MaxBytes {
		return AddResult{}, ErrMemoryLimit
	}

	img := &models.StoredImage{
		ID:   uuid.NewString(),
		Meta: meta,
		Size: size,
	}
	if img.Meta.CapturedAt.IsZero() {
		img.Meta.CapturedAt = s.now()
	}
	s.blobs.Put(img.ID, payload)
	s.images[img.ID] = img
	s.current.ImageIDs = append(s.current.ImageIDs, img.ID)
	s.current.ImageCount++
	s.current.UsageBytes += size

	warnAt := int64(float64(s.limits.MaxBytes) * s.limits.WarnRatio)
	return AddResult{
		ImageID:       img.ID,
		ImageCount:    s.current.ImageCount,
		UsageBytes:    s.current.UsageBytes,
		MemoryWarning: s.current.UsageBytes >= warnAt,
	}, nil
}

// DeleteLast removes the most recently added image.
func (s *Store) DeleteLast() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || len(s.current.ImageIDs) == 0 {
		return ErrNothingToDelete
	}
	return s.deleteAtLocked(len(s.current.ImageIDs) - 1)
}

// DeleteAt removes the image at index in the session's ordered list.
func (s *Store) DeleteAt(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || index < 0 || index >= len(s.current.ImageIDs) {
		return ErrInvalidIndex
	}
	return s.deleteAtLocked(index)
}

func (s *Store) deleteAtLocked(index int) error {
	id := s.current.ImageIDs[index]
	img := s.images[id]
	payload, _ := s.blobs.Get(id)

	s.undo = &undoEntry{
		Image:     img,
		Payload:   payload,
		RemovedAt: s.now(),
	}

	s.current.ImageIDs = append(s.current.ImageIDs[:index], s.current.ImageIDs[index+1:]...)
	s.current.ImageCount--
	s.current.UsageBytes -= img.Size
	if s.current.UsageBytes < 0 {
		s.current.UsageBytes = 0
	}
	delete(s.images, id)
	s.blobs.Delete(id)
	return nil
}

// UndoDelete restores the buffered image. The id is re-appended at the end
// of the list; the original position is not preserved.
func (s *Store) UndoDelete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undo == nil {
		return ErrNothingToUndo
	}
	if s.undo.expired(s.now(), s.limits.UndoTimeout) {
		s.undo = nil
		return ErrUndoExpired
	}
	if s.current == nil {
		s.undo = nil
		return ErrNothingToUndo
	}
	entry := s.undo
	s.undo = nil

	s.blobs.Put(entry.Image.ID, entry.Payload)
	s.images[entry.Image.ID] = entry.Image
	s.current.ImageIDs = append(s.current.ImageIDs, entry.Image.ID)
	s.current.ImageCount = len(s.current.ImageIDs)
	s.current.UsageBytes += entry.Image.Size
	return nil
}

// Image returns a copy of the stored image record.
func (s *Store) Image(id string) (models.StoredImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return models.StoredImage{}, false
	}
	return *img, true
}

// Images returns the session's image records in capture order.
func (s *Store) Images() []models.StoredImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := make([]models.StoredImage, 0, len(s.current.ImageIDs))
	for _, id := range s.current.ImageIDs {
		if img, ok := s.images[id]; ok {
			out = append(out, *img)
		}
	}
	return out
}

// Payload returns the raw bytes for an image id.
func (s *Store) Payload(id string) ([]byte, bool) {
	return s.blobs.Get(id)
}

// AttachAnnotation writes recognition output onto a stored image. It reports
// false, without error, when the image no longer exists: late recognition
// results for deleted images are silent no-ops.
func (s *Store) AttachAnnotation(id string, ann models.Annotation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return false
	}
	img.Annotation = &ann
	return true
}
