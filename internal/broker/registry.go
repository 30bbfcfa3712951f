// Package broker keeps the registry of ephemeral upload sessions used for
// cross-device ingestion. Each session is addressed by an opaque id and
// protected by a high-entropy secret token; an upload window (minutes) and a
// retention deadline (days) run on independent clocks.
package broker

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapbinder/snapbinder/internal/models"
)

var (
	ErrMaxSessions  = errors.New("maximum concurrent upload sessions reached")
	ErrNotFound     = errors.New("upload session not found")
	ErrWindowClosed = errors.New("upload window is closed")
	ErrEmptyQuery   = errors.New("search query is empty")
)

// Options bound the registry.
type Options struct {
	MaxSessions  int
	Retention    time.Duration
	UploadWindow time.Duration
	SnippetRunes int
}

// Registry is the capacity-bounded store of upload sessions. Retention
// expiry is enforced lazily: expired entries are purged when accessed and
// swept when the registry is full.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	now      func() time.Time
	sessions map[string]*models.UploadSession
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*models.UploadSession),
	}
}

// SetClock overrides the registry's time source for expiry tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Create registers a new upload session and returns it together with its
// secret token. When the registry is full an eviction sweep removes
// retention-expired sessions first; if none can be freed, creation fails.
func (r *Registry) Create(name string) (*models.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.opts.MaxSessions {
		r.sweepLocked()
	}
	if len(r.sessions) >= r.opts.MaxSessions {
		return nil, ErrMaxSessions
	}

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := r.now()
	s := &models.UploadSession{
		ID:             uuid.NewString(),
		Name:           name,
		Token:          token,
		CreatedAt:      now,
		RetainUntil:    now.Add(r.opts.Retention),
		WindowDeadline: now.Add(r.opts.UploadWindow),
	}
	r.sessions[s.ID] = s

	cp := *s
	cp.Token = token
	return &cp, nil
}

// Get returns a copy of the session, or nil when it is absent or
// retention-expired. The two cases are indistinguishable to callers, and
// expired entries are purged on access.
func (r *Registry) Get(id string) *models.UploadSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil {
		return nil
	}
	cp := *s
	cp.Token = ""
	cp.Images = append([]models.UploadImage(nil), s.Images...)
	return &cp
}

// Validate reports whether the session exists (and is unexpired) and the
// token matches exactly. Comparison is constant-time.
func (r *Registry) Validate(id, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil || token == "" {
		return false
	}
	return hmac.Equal([]byte(s.Token), []byte(token))
}

// IsWindowOpen reports whether the session still accepts uploads.
func (r *Registry) IsWindowOpen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil || s.Closed {
		return false
	}
	return r.now().Before(s.WindowDeadline)
}

// Close marks the session as no longer accepting uploads. Existing data
// stays fully readable until retention expiry.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil {
		return ErrNotFound
	}
	s.Closed = true
	return nil
}

// AddImage appends a payload (with optional pre-recognized text) and returns
// the new image's index. Token validation is the HTTP layer's job; the
// registry enforces existence and the upload window.
func (r *Registry) AddImage(id string, payload []byte, text string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil {
		return 0, ErrNotFound
	}
	if s.Closed || !r.now().Before(s.WindowDeadline) {
		return 0, ErrWindowClosed
	}
	s.Images = append(s.Images, models.UploadImage{
		Payload: payload,
		Text:    text,
		AddedAt: r.now(),
	})
	return len(s.Images) - 1, nil
}

// AttachText writes late recognition output into the slot fixed at append
// time. It is a silent no-op when the session or slot no longer exists.
func (r *Registry) AttachText(id string, index int, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil || index < 0 || index >= len(s.Images) {
		return
	}
	s.Images[index].Text = text
}

// Image returns one uploaded image by index.
func (r *Registry) Image(id string, index int) (models.UploadImage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil || index < 0 || index >= len(s.Images) {
		return models.UploadImage{}, false
	}
	return s.Images[index], true
}

// ImagesSince returns the images appended at or after index from. The poller
// uses this to pull new uploads incrementally.
func (r *Registry) ImagesSince(id string, from int) ([]models.UploadImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil {
		return nil, ErrNotFound
	}
	if from < 0 {
		from = 0
	}
	if from >= len(s.Images) {
		return nil, nil
	}
	return append([]models.UploadImage(nil), s.Images[from:]...), nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// liveLocked resolves a session id, purging it if retention-expired.
func (r *Registry) liveLocked(id string) *models.UploadSession {
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	if !r.now().Before(s.RetainUntil) {
		delete(r.sessions, id)
		return nil
	}
	return s
}

func (r *Registry) sweepLocked() {
	now := r.now()
	for id, s := range r.sessions {
		if !now.Before(s.RetainUntil) {
			delete(r.sessions, id)
		}
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
