// Package capture is the facade consumed by the controlling device's UI: it
// ties the session store, the recognition queue, and the exporter together
// behind the capture-side operations.
package capture

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/snapbinder/snapbinder/internal/export"
	"github.com/snapbinder/snapbinder/internal/models"
	"github.com/snapbinder/snapbinder/internal/recognition"
	"github.com/snapbinder/snapbinder/internal/session"
)

type Service struct {
	store     *session.Store
	queue     *recognition.Queue
	exporter  *export.Exporter
	thumbEdge int
}

// Document is a finished export.
type Document struct {
	Filename string
	Data     []byte
}

func New(store *session.Store, queue *recognition.Queue, exporter *export.Exporter, thumbEdge int) *Service {
	return &Service{store: store, queue: queue, exporter: exporter, thumbEdge: thumbEdge}
}

func (s *Service) GetSession() *models.CaptureSession { return s.store.Current() }

func (s *Service) Start(name string) (*models.CaptureSession, error) { return s.store.Start(name) }

func (s *Service) ForceStart(name string) *models.CaptureSession { return s.store.ForceStart(name) }

func (s *Service) End() error { return s.store.End() }

func (s *Service) Pause() error { return s.store.Pause() }

func (s *Service) Resume() error { return s.store.Resume() }

// AddImage stores the capture synchronously and hands the recognition work
// to the queue without waiting for it.
func (s *Service) AddImage(payload []byte, meta models.ImageMeta) (session.AddResult, error) {
	res, err := s.store.AddImage(payload, meta)
	if err != nil {
		return session.AddResult{}, err
	}
	id := res.ImageID
	s.queue.Submit(recognition.Task{
		Label: "capture:" + id,
		Fetch: func() ([]byte, bool) { return s.store.Payload(id) },
		Commit: func(ann models.Annotation) {
			s.store.AttachAnnotation(id, ann)
		},
	})
	return res, nil
}

// SaveSession serializes the current session, payloads included, so it can
// be reloaded and exported later.
func (s *Service) SaveSession(w io.Writer) error { return s.store.Save(w) }

func (s *Service) DeleteLast() error { return s.store.DeleteLast() }

func (s *Service) DeleteAt(index int) error { return s.store.DeleteAt(index) }

func (s *Service) UndoDelete() error { return s.store.UndoDelete() }

// ExportDocument renders the session into a PDF. A session with no images is
// rejected before any page generation starts.
func (s *Service) ExportDocument(filenameOverride string) (Document, error) {
	sess := s.store.Current()
	if sess == nil {
		return Document{}, session.ErrNoSession
	}
	if sess.ImageCount == 0 {
		return Document{}, session.ErrNoScreenshots
	}

	images := s.store.Images()
	inputs := make([]export.Input, 0, len(images))
	for _, img := range images {
		payload, ok := s.store.Payload(img.ID)
		if !ok {
			continue
		}
		inputs = append(inputs, export.Input{Image: img, Payload: payload})
	}

	data, err := s.exporter.Export(sess.Name, inputs)
	if err != nil {
		return Document{}, err
	}

	filename := filenameOverride
	if filename == "" {
		filename = fmt.Sprintf("%s_%s.pdf", sanitizeFilename(sess.Name), time.Now().Format("20060102_150405"))
	}
	return Document{Filename: filename, Data: data}, nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "capture"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
