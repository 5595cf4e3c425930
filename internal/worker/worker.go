package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/designpm/designpm-core/internal/codec"
	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
)

var errNotRunning = errors.New("preview worker not running")

// PageSink receives rendered pages. AppendPage returns an error wrapping
// domain.ErrTargetGone when the pages group no longer exists, which ends the job.
type PageSink interface {
	AppendPage(ctx context.Context, groupID string, page domain.PreviewPage) error
}

// RenderJob is one document preview to render into a pages group.
type RenderJob struct {
	GroupID string
	Doc     domain.MediaItem
}

// Worker renders document previews in the background, one page at a time and
// one job at a time. Scheduling never blocks, so it is safe to call while the
// caller holds the lock the sink needs.
type Worker struct {
	renderer driven.PageRenderer
	sink     PageSink
	logger   *slog.Logger

	// Internal state
	mu      sync.Mutex
	queue   []RenderJob
	wake    chan struct{}
	pending sync.WaitGroup
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Renderer driven.PageRenderer
	Sink     PageSink
	Logger   *slog.Logger
}

// NewWorker creates a new preview worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		renderer: cfg.Renderer,
		sink:     cfg.Sink,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// SetSink sets the page sink. It must be called before Start.
func (w *Worker) SetSink(sink PageSink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sink = sink
}

// Start begins the worker loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("preview worker starting")

	go func() {
		defer close(w.doneCh)
		w.processLoop(ctx)
	}()

	return nil
}

// Stop stops the worker. Jobs still queued are dropped.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	dropped := w.queue
	w.queue = nil
	w.mu.Unlock()

	for range dropped {
		w.pending.Done()
	}

	w.logger.Info("preview worker stopped", "dropped_jobs", len(dropped))
}

// SchedulePreview queues a document for rendering into the pages group groupID.
func (w *Worker) SchedulePreview(groupID string, doc domain.MediaItem) {
	w.mu.Lock()
	w.queue = append(w.queue, RenderJob{GroupID: groupID, Doc: doc})
	w.pending.Add(1)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Drain blocks until every scheduled job has finished or been dropped.
// The worker must be running.
func (w *Worker) Drain() {
	w.pending.Wait()
}

// Pending returns the number of queued jobs not yet started.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Worker) next() (RenderJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return RenderJob{}, false
	}
	job := w.queue[0]
	w.queue = w.queue[1:]
	return job, true
}

// processLoop is the main processing loop.
func (w *Worker) processLoop(ctx context.Context) {
	for {
		for {
			job, ok := w.next()
			if !ok {
				break
			}
			w.processJob(ctx, job)
			w.pending.Done()

			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			default:
			}
		}

		select {
		case <-ctx.Done():
			w.logger.Info("preview worker context cancelled")
			return
		case <-w.stopCh:
			return
		case <-w.wake:
		}
	}
}

// processJob renders a document page by page. Each page is handed to the sink
// as soon as it is ready; the job stops at the first page whose group is gone.
func (w *Worker) processJob(ctx context.Context, job RenderJob) {
	logger := w.logger.With("group_id", job.GroupID, "document", job.Doc.DisplayName)
	startTime := time.Now()

	raw, err := codec.Decode(job.Doc.Content)
	if err != nil {
		logger.Warn("preview skipped: document payload unreadable", "error", err)
		return
	}

	count, err := w.renderer.PageCount(ctx, raw)
	if err != nil {
		logger.Warn("preview failed", "error", err)
		return
	}

	for i := 1; i <= count; i++ {
		page, err := w.renderer.RenderPage(ctx, raw, i)
		if err != nil {
			logger.Warn("page render failed", "page", i, "error", err)
			return
		}
		if err := w.sink.AppendPage(ctx, job.GroupID, page); err != nil {
			if errors.Is(err, domain.ErrTargetGone) {
				logger.Debug("preview target removed, abandoning render", "page", i)
				return
			}
			logger.Error("failed to append page", "page", i, "error", err)
			return
		}
	}

	logger.Debug("preview rendered", "pages", count, "duration", time.Since(startTime))
}

// Ping fails while the worker loop is not running.
func (w *Worker) Ping(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return errNotRunning
	}
	return nil
}
