package mocks

import (
	"context"
	"sync"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// MockPageRenderer renders a fixed number of A4 pages for any input.
type MockPageRenderer struct {
	mu       sync.Mutex
	rendered int

	Pages int

	// Custom behavior hooks (optional)
	PageCountFn  func(raw []byte) (int, error)
	RenderPageFn func(raw []byte, number int) (domain.PreviewPage, error)
}

// NewMockPageRenderer creates a renderer that reports pages pages per document.
func NewMockPageRenderer(pages int) *MockPageRenderer {
	return &MockPageRenderer{Pages: pages}
}

func (m *MockPageRenderer) PageCount(ctx context.Context, raw []byte) (int, error) {
	if m.PageCountFn != nil {
		return m.PageCountFn(raw)
	}
	return m.Pages, nil
}

func (m *MockPageRenderer) RenderPage(ctx context.Context, raw []byte, number int) (domain.PreviewPage, error) {
	m.mu.Lock()
	m.rendered++
	m.mu.Unlock()

	if m.RenderPageFn != nil {
		return m.RenderPageFn(raw, number)
	}
	return domain.PreviewPage{Number: number, Width: 595, Height: 842}, nil
}

// Rendered returns how many pages were rendered.
func (m *MockPageRenderer) Rendered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rendered
}
