package driven

import (
	"context"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// PageRenderer produces the multi-page preview of an attached document.
// Pages are requested one at a time so a preview fills in progressively.
type PageRenderer interface {
	// PageCount returns the number of pages in the document.
	PageCount(ctx context.Context, raw []byte) (int, error)

	// RenderPage renders page number (1-based).
	RenderPage(ctx context.Context, raw []byte, number int) (domain.PreviewPage, error)
}
