package session

import "errors"

var (
	ErrSessionActive   = errors.New("a capture session is already active")
	ErrNoSession       = errors.New("no capture session exists")
	ErrNoActiveSession = errors.New("no active capture session")
	ErrNotActive       = errors.New("session is not active")
	ErrNotPaused       = errors.New("session is not paused")
	ErrMaxReached      = errors.New("image limit reached")
	ErrMemoryLimit     = errors.New("session memory limit reached")
	ErrNothingToDelete = errors.New("no images to delete")
	ErrInvalidIndex    = errors.New("image index out of range")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrUndoExpired     = errors.New("undo window expired")
	ErrNoScreenshots   = errors.New("session has no images to export")
)

// ErrorCode maps a session error to the stable code exposed over the API.
// Unknown errors map to INTERNAL.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionActive):
		return "SESSION_ACTIVE"
	case errors.Is(err, ErrNoSession):
		return "NO_SESSION"
	case errors.Is(err, ErrNoActiveSession):
		return "NO_ACTIVE_SESSION"
	case errors.Is(err, ErrNotActive):
		return "NOT_ACTIVE"
	case errors.Is(err, ErrNotPaused):
		return "NOT_PAUSED"
	case errors.Is(err, ErrMaxReached):
		return "MAX_REACHED"
	case errors.Is(err, ErrMemoryLimit):
		return "MEMORY_LIMIT_REACHED"
	case errors.Is(err, ErrNothingToDelete):
		return "NOTHING_TO_DELETE"
	case errors.Is(err, ErrInvalidIndex):
		return "INVALID_INDEX"
	case errors.Is(err, ErrNothingToUndo):
		return "NOTHING_TO_UNDO"
	case errors.Is(err, ErrUndoExpired):
		return "UNDO_EXPIRED"
	case errors.Is(err, ErrNoScreenshots):
		return "NO_SCREENSHOTS"
	default:
		return "INTERNAL"
	}
}
