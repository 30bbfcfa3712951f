package blob

import "testing"

func TestStoreAccounting(t *testing.T) {
	s := New()

	s.Put("a", []byte("12345"))
	s.Put("b", []byte("123"))
	if got := s.TotalBytes(); got != 8 {
		t.Errorf("Expected 8 bytes, got %d", got)
	}
	if got := s.Len(); got != 2 {
		t.Errorf("Expected 2 blobs, got %d", got)
	}

	// Replacing a key re-accounts rather than double-counting.
	s.Put("a", []byte("1"))
	if got := s.TotalBytes(); got != 4 {
		t.Errorf("Expected 4 bytes after replace, got %d", got)
	}

	s.Delete("a")
	if got := s.TotalBytes(); got != 3 {
		t.Errorf("Expected 3 bytes after delete, got %d", got)
	}

	// Deleting a missing key is a no-op.
	s.Delete("missing")
	if got := s.TotalBytes(); got != 3 {
		t.Errorf("Expected 3 bytes after missing delete, got %d", got)
	}

	data, ok := s.Get("b")
	if !ok || string(data) != "123" {
		t.Errorf("Expected to read back b, got %q ok=%v", data, ok)
	}

	s.Reset()
	if s.Len() != 0 || s.TotalBytes() != 0 {
		t.Errorf("Expected empty store after reset, got len=%d bytes=%d", s.Len(), s.TotalBytes())
	}
}
