package render

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/crypto/blake2b"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PageRenderer = (*PDFRenderer)(nil)

// PDFRenderer lays out document previews from PDF page geometry. Each page
// is described by its number and media box size; the browser draws the page
// into a placeholder of that size.
//
// The page geometry of the most recent document is cached, since the worker
// asks for every page of one document in turn.
type PDFRenderer struct {
	conf *model.Configuration

	mu      sync.Mutex
	lastSum [blake2b.Size256]byte
	dims    []types.Dim
}

// NewPDFRenderer creates a renderer with pdfcpu's default (relaxed) validation.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{conf: model.NewDefaultConfiguration()}
}

// PageCount returns the number of pages in raw.
func (r *PDFRenderer) PageCount(ctx context.Context, raw []byte) (int, error) {
	dims, err := r.pageDims(ctx, raw)
	if err != nil {
		return 0, err
	}
	return len(dims), nil
}

// RenderPage returns the geometry of page number (1-based).
func (r *PDFRenderer) RenderPage(ctx context.Context, raw []byte, number int) (domain.PreviewPage, error) {
	dims, err := r.pageDims(ctx, raw)
	if err != nil {
		return domain.PreviewPage{}, err
	}
	if number < 1 || number > len(dims) {
		return domain.PreviewPage{}, fmt.Errorf("page %d of %d: %w", number, len(dims), domain.ErrInvalidInput)
	}
	d := dims[number-1]
	return domain.PreviewPage{Number: number, Width: d.Width, Height: d.Height}, nil
}

func (r *PDFRenderer) pageDims(ctx context.Context, raw []byte) ([]types.Dim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := blake2b.Sum256(raw)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dims != nil && sum == r.lastSum {
		return r.dims, nil
	}

	pdf, err := api.ReadValidateAndOptimize(bytes.NewReader(raw), r.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: pdfcpu read: %v", domain.ErrMediaDecodeFailure, err)
	}
	dims, err := pdf.PageDims()
	if err != nil {
		return nil, fmt.Errorf("%w: page dimensions: %v", domain.ErrMediaDecodeFailure, err)
	}

	r.lastSum, r.dims = sum, dims
	return dims, nil
}
