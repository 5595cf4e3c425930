package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/designpm/designpm-core/internal/codec"
	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven/mocks"
)

// mockSink collects pages per group and reports groups listed in gone as removed.
type mockSink struct {
	mu    sync.Mutex
	pages map[string][]domain.PreviewPage
	gone  map[string]bool
}

func newMockSink() *mockSink {
	return &mockSink{
		pages: make(map[string][]domain.PreviewPage),
		gone:  make(map[string]bool),
	}
}

func (m *mockSink) AppendPage(ctx context.Context, groupID string, page domain.PreviewPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gone[groupID] {
		return fmt.Errorf("group %s: %w", groupID, domain.ErrTargetGone)
	}
	m.pages[groupID] = append(m.pages[groupID], page)
	return nil
}

func (m *mockSink) remove(groupID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gone[groupID] = true
}

func (m *mockSink) count(groupID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages[groupID])
}

func pdfItem(name string) domain.MediaItem {
	return domain.MediaItem{
		ID:          name,
		DisplayName: name,
		Content:     codec.Encode([]byte("%PDF-1.4 test"), "application/pdf"),
	}
}

func TestWorker_StartStop(t *testing.T) {
	w := NewWorker(WorkerConfig{Renderer: mocks.NewMockPageRenderer(1), Sink: newMockSink()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}
	if err := w.Ping(ctx); err != nil {
		t.Errorf("expected worker to be running: %v", err)
	}

	w.Stop()
	if err := w.Ping(ctx); err == nil {
		t.Error("expected worker to be stopped")
	}
	w.Stop() // Should not panic
}

func TestWorker_RendersPagesInOrder(t *testing.T) {
	sink := newMockSink()
	w := NewWorker(WorkerConfig{Renderer: mocks.NewMockPageRenderer(3), Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SchedulePreview("g1", pdfItem("a.pdf"))
	w.SchedulePreview("g2", pdfItem("b.pdf"))
	w.Drain()

	for _, g := range []string{"g1", "g2"} {
		if got := sink.count(g); got != 3 {
			t.Errorf("group %s: expected 3 pages, got %d", g, got)
		}
	}
	for i, p := range sink.pages["g1"] {
		if p.Number != i+1 {
			t.Errorf("expected page %d at position %d, got %d", i+1, i, p.Number)
		}
	}
}

func TestWorker_StopsWhenTargetGone(t *testing.T) {
	sink := newMockSink()
	renderer := mocks.NewMockPageRenderer(5)
	renderer.RenderPageFn = func(raw []byte, number int) (domain.PreviewPage, error) {
		if number == 2 {
			sink.remove("g1")
		}
		return domain.PreviewPage{Number: number}, nil
	}
	w := NewWorker(WorkerConfig{Renderer: renderer, Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SchedulePreview("g1", pdfItem("a.pdf"))
	w.Drain()

	if got := sink.count("g1"); got != 1 {
		t.Errorf("expected 1 page before removal, got %d", got)
	}
	if got := renderer.Rendered(); got != 2 {
		t.Errorf("expected rendering to stop after page 2, rendered %d", got)
	}
}

func TestWorker_SkipsUnreadableDocuments(t *testing.T) {
	sink := newMockSink()
	renderer := mocks.NewMockPageRenderer(2)
	renderer.PageCountFn = func(raw []byte) (int, error) {
		return 0, errors.New("not a pdf")
	}
	w := NewWorker(WorkerConfig{Renderer: renderer, Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	bad := pdfItem("bad.pdf")
	bad.Content.Data = "%%%"
	w.SchedulePreview("g1", bad)
	w.SchedulePreview("g2", pdfItem("ok.pdf"))
	w.Drain()

	if sink.count("g1") != 0 || sink.count("g2") != 0 {
		t.Error("expected no pages for unreadable documents")
	}
}

func TestWorker_ScheduleDoesNotBlock(t *testing.T) {
	w := NewWorker(WorkerConfig{Renderer: mocks.NewMockPageRenderer(1), Sink: newMockSink()})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			w.SchedulePreview(fmt.Sprintf("g%d", i), pdfItem("a.pdf"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduling blocked without a running worker")
	}
	if w.Pending() != 100 {
		t.Errorf("expected 100 pending jobs, got %d", w.Pending())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Drain()
	w.Stop()
}
