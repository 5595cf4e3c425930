package driving

import (
	"context"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/editor"
	"github.com/designpm/designpm-core/internal/snapshot"
)

// ReportService is the lifecycle controller of the single live report.
// Every mutation of the live surface goes through it.
type ReportService interface {
	// Init restores the autosave slot, if any, after the configured delay
	Init(ctx context.Context) error

	// Snapshot collects the live report
	Snapshot(ctx context.Context) (*domain.DocumentSnapshot, error)

	// Apply replaces the live report with a serialized snapshot and saves it
	Apply(ctx context.Context, data []byte) (*snapshot.ApplyReport, error)

	// Dispatch routes one editor interaction and persists as the action requires
	Dispatch(ctx context.Context, ev editor.Event) (editor.Outcome, error)

	// Upload ingests a multi-file upload into the given target
	Upload(ctx context.Context, target domain.UploadTarget, uploads []domain.Upload) (*domain.UploadResult, error)

	// Navigate records the active module and print selection
	Navigate(ctx context.Context, cfg domain.ReportConfig) error

	// Save writes the live report immediately
	Save(ctx context.Context) error

	// Export returns the report as a self-contained file
	Export(ctx context.Context) (filename string, data []byte, err error)

	// Import validates and applies an exported file
	Import(ctx context.Context, data []byte) (*snapshot.ApplyReport, error)

	// ClearLocal wipes local storage and resets to an empty report.
	// It requires confirmed to be true.
	ClearLocal(ctx context.Context, confirmed bool) error

	// Metrics returns the derived dashboard figures
	Metrics(ctx context.Context) domain.Metrics

	// Teardown flushes stale state and stops background work
	Teardown(ctx context.Context) error
}
