package broker

import (
	"errors"
	"testing"
	"time"
)

func testOptions() Options {
	return Options{
		MaxSessions:  3,
		Retention:    7 * 24 * time.Hour,
		UploadWindow: 10 * time.Minute,
		SnippetRunes: 80,
	}
}

func TestCreateIssuesToken(t *testing.T) {
	r := NewRegistry(testOptions())
	s, err := r.Create("phone")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.ID == "" {
		t.Errorf("Expected a session id")
	}
	if len(s.Token) != 64 {
		t.Errorf("Expected 64 hex chars of token, got %d", len(s.Token))
	}
	if !s.WindowDeadline.Before(s.RetainUntil) {
		t.Errorf("Upload window %v should close before retention %v", s.WindowDeadline, s.RetainUntil)
	}

	// Get never reveals the token.
	got := r.Get(s.ID)
	if got == nil {
		t.Fatalf("Expected session back from Get")
	}
	if got.Token != "" {
		t.Errorf("Get leaked the token")
	}
}

func TestValidate(t *testing.T) {
	r := NewRegistry(testOptions())
	s, err := r.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tests := []struct {
		name  string
		id    string
		token string
		want  bool
	}{
		{"correct token", s.ID, s.Token, true},
		{"wrong token", s.ID, "deadbeef", false},
		{"empty token", s.ID, "", false},
		{"unknown session", "nope", s.Token, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Validate(tt.id, tt.token); got != tt.want {
				t.Errorf("Validate(%q, %q) = %v, want %v", tt.id, tt.token, got, tt.want)
			}
		})
	}
}

func TestCapacityAndSweep(t *testing.T) {
	r := NewRegistry(testOptions())
	now := time.Now()
	r.SetClock(func() time.Time { return now })

	for range 3 {
		if _, err := r.Create(""); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := r.Create(""); !errors.Is(err, ErrMaxSessions) {
		t.Fatalf("Expected ErrMaxSessions, got %v", err)
	}

	// Once retention lapses the full registry frees itself on the next create.
	now = now.Add(8 * 24 * time.Hour)
	if _, err := r.Create(""); err != nil {
		t.Fatalf("Expected sweep to make room, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 live session after sweep, got %d", r.Len())
	}
}

func TestRetentionExpiryPurgesOnAccess(t *testing.T) {
	r := NewRegistry(testOptions())
	now := time.Now()
	r.SetClock(func() time.Time { return now })

	s, err := r.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.AddImage(s.ID, []byte("img"), ""); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}

	now = now.Add(7*24*time.Hour + time.Second)
	if got := r.Get(s.ID); got != nil {
		t.Errorf("Expected expired session to be gone, got %+v", got)
	}
	if r.Validate(s.ID, s.Token) {
		t.Errorf("Expected validation to fail after expiry")
	}
	if r.Len() != 0 {
		t.Errorf("Expected purge on access, still %d sessions", r.Len())
	}
}

func TestUploadWindow(t *testing.T) {
	r := NewRegistry(testOptions())
	now := time.Now()
	r.SetClock(func() time.Time { return now })

	s, err := r.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !r.IsWindowOpen(s.ID) {
		t.Fatalf("Expected window open right after create")
	}

	now = now.Add(10*time.Minute + time.Second)
	if r.IsWindowOpen(s.ID) {
		t.Errorf("Expected window closed after deadline")
	}
	if _, err := r.AddImage(s.ID, []byte("late"), ""); !errors.Is(err, ErrWindowClosed) {
		t.Errorf("Expected ErrWindowClosed, got %v", err)
	}

	// The session itself is still readable: retention has not lapsed.
	if got := r.Get(s.ID); got == nil {
		t.Errorf("Expected session readable after window close")
	}
}

func TestCloseStopsUploads(t *testing.T) {
	r := NewRegistry(testOptions())
	s, err := r.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.AddImage(s.ID, []byte("one"), "text"); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	if err := r.Close(s.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if r.IsWindowOpen(s.ID) {
		t.Errorf("Expected window closed after Close")
	}
	if _, err := r.AddImage(s.ID, []byte("two"), ""); !errors.Is(err, ErrWindowClosed) {
		t.Errorf("Expected ErrWindowClosed after Close, got %v", err)
	}
	got := r.Get(s.ID)
	if got == nil || len(got.Images) != 1 {
		t.Errorf("Expected existing images readable after Close: %+v", got)
	}

	if err := r.Close("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAddImageIndicesAndAttachText(t *testing.T) {
	r := NewRegistry(testOptions())
	s, err := r.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i, payload := range []string{"a", "b", "c"} {
		idx, err := r.AddImage(s.ID, []byte(payload), "")
		if err != nil {
			t.Fatalf("AddImage failed: %v", err)
		}
		if idx != i {
			t.Errorf("Expected index %d, got %d", i, idx)
		}
	}

	r.AttachText(s.ID, 1, "recognized")
	img, ok := r.Image(s.ID, 1)
	if !ok || img.Text != "recognized" || string(img.Payload) != "b" {
		t.Errorf("Unexpected slot 1: %+v", img)
	}

	// Out-of-range and unknown-session writes must not panic.
	r.AttachText(s.ID, 99, "x")
	r.AttachText("nope", 0, "x")

	if _, ok := r.Image(s.ID, 3); ok {
		t.Errorf("Expected index 3 out of range")
	}
}

func TestImagesSince(t *testing.T) {
	r := NewRegistry(testOptions())
	s, err := r.Create("")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, p := range []string{"a", "b", "c"} {
		if _, err := r.AddImage(s.ID, []byte(p), ""); err != nil {
			t.Fatalf("AddImage failed: %v", err)
		}
	}

	imgs, err := r.ImagesSince(s.ID, 1)
	if err != nil {
		t.Fatalf("ImagesSince failed: %v", err)
	}
	if len(imgs) != 2 || string(imgs[0].Payload) != "b" {
		t.Errorf("Unexpected tail: %+v", imgs)
	}

	imgs, err = r.ImagesSince(s.ID, 3)
	if err != nil || imgs != nil {
		t.Errorf("Expected empty tail, got %v / %v", imgs, err)
	}

	if _, err := r.ImagesSince("nope", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
