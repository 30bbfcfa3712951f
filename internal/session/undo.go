package session

import (
	"time"

	"github.com/snapbinder/snapbinder/internal/models"
)

// undoEntry is the single-slot, time-bounded holder for the most recently
// deleted image. A new deletion overwrites it; the previous occupant's
// payload is then gone for good. Counters are recomputed on restore rather
// than snapshotted, so the count == len(imageIds) invariant survives adds
// made between the delete and the undo.
type undoEntry struct {
	Image     *models.StoredImage
	Payload   []byte
	RemovedAt time.Time
}

func (e *undoEntry) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(e.RemovedAt) >= timeout
}
