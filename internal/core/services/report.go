package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
	"github.com/designpm/designpm-core/internal/core/ports/driving"
	"github.com/designpm/designpm-core/internal/editor"
	"github.com/designpm/designpm-core/internal/mediatypes"
	"github.com/designpm/designpm-core/internal/snapshot"
)

// Ensure ReportService implements driving.ReportService
var _ driving.ReportService = (*ReportService)(nil)

// ReportService owns the live surface of the single open report. All surface
// access happens under mu; persistence calls are made after mu is released.
type ReportService struct {
	mu         sync.Mutex
	surface    *editor.Surface
	meta       domain.Metadata
	builders   *editor.Builders
	dispatcher *editor.Dispatcher
	applier    *snapshot.Applier

	gateway   *PersistenceGateway
	ingestor  *MediaIngestor
	notifier  driven.Notifier
	autosaver *Autosaver

	ids            domain.IDGenerator
	now            func() time.Time
	restoreDelay   time.Duration
	flushThreshold time.Duration
	logger         *slog.Logger
}

// ReportServiceConfig holds configuration for the report service.
type ReportServiceConfig struct {
	Gateway  *PersistenceGateway
	Ingestor *MediaIngestor
	Notifier driven.Notifier
	Previews editor.PreviewScheduler // Optional: document page renderer
	IDs      domain.IDGenerator
	Now      func() time.Time
	Logger   *slog.Logger

	RestoreDelay     time.Duration // delay before restoring the autosave slot (0: restore immediately)
	AutosaveInterval time.Duration // periodic flush interval (0: no periodic flush)
	FlushThreshold   time.Duration // staleness threshold for periodic and teardown flushes (default: 60s)
}

// NewReportService creates the service with an empty report.
func NewReportService(cfg ReportServiceConfig) *ReportService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = domain.GenerateID
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	threshold := cfg.FlushThreshold
	if threshold <= 0 {
		threshold = 60 * time.Second
	}
	ingestor := cfg.Ingestor
	if ingestor == nil {
		ingestor = NewMediaIngestor(MediaIngestorConfig{Notifier: cfg.Notifier, Logger: logger})
	}

	builders := editor.NewBuilders(ids, cfg.Previews)
	dispatcher := editor.NewDispatcher(builders)

	s := &ReportService{
		surface:    editor.NewSurface(),
		meta:       domain.NewMetadata(ids(), now()),
		builders:   builders,
		dispatcher: dispatcher,
		applier: snapshot.NewApplier(snapshot.ApplierConfig{
			Builders:   builders,
			Dispatcher: dispatcher,
			Previews:   cfg.Previews,
			Logger:     logger,
		}),
		gateway:        cfg.Gateway,
		ingestor:       ingestor,
		notifier:       cfg.Notifier,
		ids:            ids,
		now:            now,
		restoreDelay:   cfg.RestoreDelay,
		flushThreshold: threshold,
		logger:         logger,
	}

	if cfg.AutosaveInterval > 0 {
		s.autosaver = NewAutosaver(AutosaverConfig{
			Flush: func(ctx context.Context) (bool, error) {
				return s.gateway.FlushIfStale(ctx, s.collect, s.flushThreshold)
			},
			Interval: cfg.AutosaveInterval,
			Logger:   logger,
		})
	}
	return s
}

// collect is the gateway's snapshot source.
func (s *ReportService) collect(_ context.Context) (*domain.DocumentSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Collect(s.surface, s.meta), nil
}

// Init waits out the restore delay, restores the autosave slot if it holds a
// report, and starts the periodic autosave. An unreadable slot is reported
// and the empty report is kept.
func (s *ReportService) Init(ctx context.Context) error {
	if s.restoreDelay > 0 {
		t := time.NewTimer(s.restoreDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	snap, warnings, err := s.gateway.LoadLocal(ctx)
	switch {
	case errors.Is(err, domain.ErrMalformedSnapshot):
		s.logger.Warn("autosaved report unreadable, starting empty", "error", err)
		s.notify(ctx, domain.Failure(err, "The autosaved report could not be read. Starting a new report."))
	case err != nil:
		return fmt.Errorf("restore autosave: %w", err)
	case snap != nil:
		report, err := s.restore(ctx, snap, warnings)
		if err != nil {
			s.logger.Warn("autosaved report rejected, starting empty", "error", err)
			s.notify(ctx, domain.Failure(err, "The autosaved report could not be restored."))
			break
		}
		s.logger.Info("autosaved report restored",
			"report_id", snap.Metadata.ReportID,
			"incomplete", report.Incomplete(),
		)
	}

	if s.autosaver != nil {
		return s.autosaver.Start(ctx)
	}
	return nil
}

// restore applies a decoded snapshot to the live surface and adopts its identity.
func (s *ReportService) restore(ctx context.Context, snap *domain.DocumentSnapshot, warnings []snapshot.Warning) (*snapshot.ApplyReport, error) {
	s.mu.Lock()
	report, err := s.applier.Apply(ctx, s.surface, snap)
	if err == nil {
		s.meta = snap.Metadata
		s.meta.SavedAt = nil
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	report.Warnings = append(warnings, report.Warnings...)
	if report.Incomplete() {
		s.notify(ctx, domain.Notification{
			Kind:      domain.NotifyInfo,
			ErrorKind: domain.KindIncompleteSnapshot,
			Message:   "Some parts of the report could not be restored and were reset.",
		})
	}
	return report, nil
}

// Snapshot collects the live report.
func (s *ReportService) Snapshot(ctx context.Context) (*domain.DocumentSnapshot, error) {
	return s.collect(ctx)
}

// Apply replaces the live report with data and writes it immediately.
func (s *ReportService) Apply(ctx context.Context, data []byte) (*snapshot.ApplyReport, error) {
	snap, warnings, err := snapshot.Decode(data)
	if err != nil {
		return nil, err
	}
	report, err := s.restore(ctx, snap, warnings)
	if err != nil {
		return nil, err
	}
	s.commit(ctx)
	return report, nil
}

// Import validates an exported file and applies it. A rejected file leaves
// the live report unchanged.
func (s *ReportService) Import(ctx context.Context, data []byte) (*snapshot.ApplyReport, error) {
	snap, warnings, err := s.gateway.ImportFromFile(ctx, data)
	if err != nil {
		return nil, err
	}
	report, err := s.restore(ctx, snap, warnings)
	if err != nil {
		s.notify(ctx, domain.Failure(err, "Import failed: "+err.Error()))
		return nil, err
	}
	s.commit(ctx)
	s.notify(ctx, domain.Success("Report imported."))
	return report, nil
}

// Dispatch routes ev and then persists as the outcome asks.
func (s *ReportService) Dispatch(ctx context.Context, ev editor.Event) (editor.Outcome, error) {
	s.mu.Lock()
	out, err := s.dispatcher.Dispatch(s.surface, ev)
	s.mu.Unlock()
	if err != nil {
		return editor.Outcome{}, err
	}

	switch out.Persist {
	case editor.PersistDebounced:
		s.gateway.ScheduleSave(s.collect)
	case editor.PersistImmediate:
		s.commit(ctx)
	}
	return out, nil
}

// Upload ingests uploads into target. Each accepted file is placed as soon as
// it has been read; the target is re-checked before every placement.
func (s *ReportService) Upload(ctx context.Context, target domain.UploadTarget, uploads []domain.Upload) (*domain.UploadResult, error) {
	place, err := s.placement(target)
	if err != nil {
		return nil, err
	}

	result, err := s.ingestor.Ingest(ctx, mediatypes.Target(target.Kind), uploads, place)
	if err != nil {
		return result, err
	}
	if len(result.Added) > 0 {
		s.commit(ctx)
	}
	return result, nil
}

func (s *ReportService) placement(target domain.UploadTarget) (PlaceFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mediatypes.Target(target.Kind) {
	case mediatypes.TargetGallery:
		section, ok := s.surface.Find(target.Section)
		if !ok || section.Kind != editor.KindMediaSection {
			return nil, fmt.Errorf("media section %s: %w", target.Section, domain.ErrTargetGone)
		}
		return func(item domain.MediaItem) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !s.surface.Attached(section) {
				return fmt.Errorf("media section %s: %w", target.Section, domain.ErrTargetGone)
			}
			s.builders.Thumb(section.Slot(editor.SlotGrid), item)
			return nil
		}, nil

	case mediatypes.TargetComparison:
		row, ok := s.surface.Find(target.Row)
		if !ok || row.Kind != editor.KindComparisonRow {
			return nil, fmt.Errorf("comparison row %s: %w", target.Row, domain.ErrTargetGone)
		}
		if row.Slot(target.Slot) == nil {
			return nil, fmt.Errorf("comparison slot %q: %w", target.Slot, domain.ErrInvalidInput)
		}
		return func(item domain.MediaItem) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if !s.surface.Attached(row) {
				return fmt.Errorf("comparison row %s: %w", target.Row, domain.ErrTargetGone)
			}
			_, err := s.builders.SetSlot(row, target.Slot, item)
			return err
		}, nil

	case mediatypes.TargetDocuments:
		return func(item domain.MediaItem) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.builders.Document(s.surface.Container(editor.RoleDocuments), s.surface.Container(editor.RolePreviews), item)
			return nil
		}, nil
	}
	return nil, fmt.Errorf("upload target %q: %w", target.Kind, domain.ErrInvalidInput)
}

// AppendPage adds a rendered preview page to the live surface. It is the
// page sink of the render worker.
func (s *ReportService) AppendPage(_ context.Context, groupID string, page domain.PreviewPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return editor.AppendPage(s.surface, groupID, page)
}

// Navigate records the active module and print selection.
func (s *ReportService) Navigate(_ context.Context, cfg domain.ReportConfig) error {
	s.mu.Lock()
	s.surface.SetConfig(cfg)
	s.mu.Unlock()
	s.gateway.ScheduleSave(s.collect)
	return nil
}

// Save writes the live report now.
func (s *ReportService) Save(ctx context.Context) error {
	if err := s.gateway.Commit(ctx, s.collect); err != nil {
		return err
	}
	s.notify(ctx, domain.Success("Report saved."))
	return nil
}

// Export renders the live report as a self-contained file.
func (s *ReportService) Export(ctx context.Context) (string, []byte, error) {
	snap, err := s.collect(ctx)
	if err != nil {
		return "", nil, err
	}
	return s.gateway.ExportToFile(snap)
}

// ClearLocal wipes local storage and starts a new, empty report.
func (s *ReportService) ClearLocal(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}

	s.mu.Lock()
	reportID := s.meta.ReportID
	s.mu.Unlock()

	if err := s.gateway.ClearLocal(ctx, reportID); err != nil {
		s.notify(ctx, domain.Failure(err, "Could not clear local storage."))
		return err
	}

	fresh := domain.NewEmptySnapshot(s.ids(), s.now())
	if _, err := s.restore(ctx, fresh, nil); err != nil {
		return fmt.Errorf("reset report: %w", err)
	}
	s.logger.Info("local storage cleared", "previous_report_id", reportID, "report_id", fresh.Metadata.ReportID)
	s.notify(ctx, domain.Info("Local storage cleared."))
	return nil
}

// Metrics returns the derived dashboard figures.
func (s *ReportService) Metrics(_ context.Context) domain.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return editor.Metrics(s.surface)
}

// Teardown stops the periodic autosave and writes the report if it is stale.
func (s *ReportService) Teardown(ctx context.Context) error {
	if s.autosaver != nil {
		s.autosaver.Stop()
	}
	_, err := s.gateway.FlushIfStale(ctx, s.collect, s.flushThreshold)
	s.gateway.Close()
	if err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}

// commit writes immediately. Failures are already reported to the user by the
// gateway and never interrupt editing.
func (s *ReportService) commit(ctx context.Context) {
	if err := s.gateway.Commit(ctx, s.collect); err != nil {
		s.logger.Warn("save failed, edits kept in memory", "error", err)
	}
}

func (s *ReportService) notify(ctx context.Context, n domain.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, n)
	}
}
