package recognition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snapbinder/snapbinder/internal/models"
)

// Task pairs a payload fetch with an annotation commit. Fetch runs when the
// worker picks the task up, not when it was submitted, so the target is
// resolved by stable identity at the last possible moment. Commit must
// tolerate the target having disappeared.
type Task struct {
	Label  string
	Fetch  func() ([]byte, bool)
	Commit func(models.Annotation)
}

// Queue runs recognition tasks one at a time in submission order. A single
// worker protects the shared recognition backend; per-task failures are
// absorbed so one bad image never stalls the queue.
type Queue struct {
	engine  Engine
	timeout time.Duration
	minDim  int
	tasks   chan Task

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewQueue(engine Engine, timeout time.Duration, minDim int) *Queue {
	return &Queue{
		engine:  engine,
		timeout: timeout,
		minDim:  minDim,
		tasks:   make(chan Task, 256),
	}
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		workerCtx, cancel := context.WithCancel(ctx)
		q.cancel = cancel
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case t := <-q.tasks:
					q.run(workerCtx, t)
				}
			}
		}()
	})
}

// Close stops the worker and waits for it to exit.
func (q *Queue) Close() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Submit enqueues a task without blocking. When the queue is saturated the
// task is marked attempted with no text instead of stalling the caller.
func (q *Queue) Submit(t Task) {
	select {
	case q.tasks <- t:
	default:
		slog.Warn("Recognition queue full, skipping", "label", t.Label)
		t.Commit(models.Annotation{Attempted: true})
	}
}

func (q *Queue) run(ctx context.Context, t Task) {
	payload, ok := t.Fetch()
	if !ok {
		// Target removed while the task was queued.
		return
	}

	ann := models.Annotation{Attempted: true}
	prepared, w, h, err := prepare(payload, q.minDim)
	if err != nil {
		slog.Warn("Recognition preprocessing failed", "label", t.Label, "err", err)
		t.Commit(ann)
		return
	}
	ann.Width = w
	ann.Height = h

	callCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	res, err := q.engine.Recognize(callCtx, prepared)
	if err != nil {
		slog.Warn("Recognition failed", "label", t.Label, "engine", q.engine.Name(), "err", err)
		t.Commit(ann)
		return
	}

	ann.Text = res.Text
	ann.Words = res.Words
	if res.Width > 0 && res.Height > 0 {
		ann.Width = res.Width
		ann.Height = res.Height
	}
	t.Commit(ann)
	slog.Info("Recognition complete", "label", t.Label, "engine", q.engine.Name(), "words", len(ann.Words))
}
