package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snapbinder/snapbinder/internal/models"
	"github.com/snapbinder/snapbinder/internal/session"
)

type fakeSource struct {
	mu     sync.Mutex
	images []models.UploadImage
	err    error
	asked  []int
}

func (f *fakeSource) ImagesSince(id string, from int) ([]models.UploadImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, from)
	if f.err != nil {
		return nil, f.err
	}
	if from >= len(f.images) {
		return nil, nil
	}
	return append([]models.UploadImage(nil), f.images[from:]...), nil
}

func (f *fakeSource) add(payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, models.UploadImage{Payload: []byte(payload), AddedAt: time.Now()})
}

type fakeSink struct {
	mu       sync.Mutex
	payloads []string
	failAt   string
}

func (f *fakeSink) AddImage(payload []byte, meta models.ImageMeta) (session.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt != "" && string(payload) == f.failAt {
		return session.AddResult{}, session.ErrNoActiveSession
	}
	f.payloads = append(f.payloads, string(payload))
	return session.AddResult{}, nil
}

func (f *fakeSink) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition never met")
}

func TestPollerIngestsInOrder(t *testing.T) {
	source := &fakeSource{}
	source.add("a")
	source.add("b")
	sink := &fakeSink{}

	p := New(source, sink, "sess", 10*time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool { return len(sink.got()) >= 2 })
	if got := sink.got(); got[0] != "a" || got[1] != "b" {
		t.Errorf("Wrong ingest order: %v", got)
	}

	// Later uploads are picked up incrementally, not re-ingested.
	source.add("c")
	waitFor(t, func() bool { return len(sink.got()) >= 3 })
	if got := sink.got(); len(got) != 3 || got[2] != "c" {
		t.Errorf("Expected exactly a,b,c: %v", got)
	}
}

func TestPollerRetriesAfterSinkFailure(t *testing.T) {
	source := &fakeSource{}
	source.add("a")
	source.add("b")
	sink := &fakeSink{failAt: "b"}

	p := New(source, sink, "sess", 10*time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool { return len(sink.got()) >= 1 })

	// Unblock the sink; "b" must arrive exactly once on a later tick.
	sink.mu.Lock()
	sink.failAt = ""
	sink.mu.Unlock()

	waitFor(t, func() bool { return len(sink.got()) >= 2 })
	if got := sink.got(); len(got) != 2 || got[1] != "b" {
		t.Errorf("Expected a then b exactly once: %v", got)
	}
}

func TestPollerSurvivesSourceErrors(t *testing.T) {
	source := &fakeSource{err: errors.New("gone")}
	sink := &fakeSink{}

	p := New(source, sink, "sess", 10*time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	// Several failed ticks, then the source recovers.
	waitFor(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.asked) >= 3
	})
	source.mu.Lock()
	source.err = nil
	source.images = []models.UploadImage{{Payload: []byte("late")}}
	source.mu.Unlock()

	waitFor(t, func() bool { return len(sink.got()) == 1 })
}

func TestPollerStopIdempotent(t *testing.T) {
	p := New(&fakeSource{}, &fakeSink{}, "sess", time.Hour)
	p.Start(context.Background())
	p.Stop()
	p.Stop() // must not panic or deadlock

	unstarted := New(&fakeSource{}, &fakeSink{}, "sess", time.Hour)
	unstarted.Stop()
}
