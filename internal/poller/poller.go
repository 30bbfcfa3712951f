// Package poller drives the periodic pull of broker uploads into the capture
// session. A poller's lifetime is owned by the upload channel that created
// it: it must be stopped explicitly, and a failed tick skips rather than
// aborting the loop.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snapbinder/snapbinder/internal/models"
	"github.com/snapbinder/snapbinder/internal/session"
)

// Source yields broker images appended at or after a given index.
type Source interface {
	ImagesSince(id string, from int) ([]models.UploadImage, error)
}

// Sink receives pulled images; in production it is the capture service.
type Sink interface {
	AddImage(payload []byte, meta models.ImageMeta) (session.AddResult, error)
}

type Poller struct {
	source    Source
	sink      Sink
	sessionID string
	interval  time.Duration

	mu        sync.Mutex
	nextIndex int

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(source Source, sink Sink, sessionID string, interval time.Duration) *Poller {
	return &Poller{source: source, sink: sink, sessionID: sessionID, interval: interval}
}

// Start launches the poll loop. Subsequent calls are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ticker := time.NewTicker(p.interval)
			defer ticker.Stop()
			for {
				select {
				case <-loopCtx.Done():
					return
				case <-ticker.C:
					p.tick()
				}
			}
		}()
	})
}

// Stop cancels the loop and waits for the goroutine to exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
}

func (p *Poller) tick() {
	p.mu.Lock()
	from := p.nextIndex
	p.mu.Unlock()

	images, err := p.source.ImagesSince(p.sessionID, from)
	if err != nil {
		// Transient failure: skip this tick, try again on the next one.
		slog.Warn("Upload poll failed", "upload_session", p.sessionID, "err", err)
		return
	}

	ingested := 0
	for _, img := range images {
		meta := models.ImageMeta{
			SourceTitle: "uploaded image",
			CapturedAt:  img.AddedAt,
		}
		if _, err := p.sink.AddImage(img.Payload, meta); err != nil {
			// The capture session may be paused or full; retry from this
			// image on a later tick.
			slog.Warn("Failed to ingest uploaded image", "upload_session", p.sessionID, "err", err)
			break
		}
		ingested++
	}

	p.mu.Lock()
	p.nextIndex = from + ingested
	p.mu.Unlock()
	if ingested > 0 {
		slog.Info("Ingested uploaded images", "upload_session", p.sessionID, "count", ingested)
	}
}
