package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/designpm/designpm-core/internal/codec"
	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
	"github.com/designpm/designpm-core/internal/mediatypes"
)

// DefaultMaxMediaBytes is the per-item upload limit.
const DefaultMaxMediaBytes int64 = 5 << 20

// maxConcurrentReads bounds concurrent reads within one upload batch.
const maxConcurrentReads = 4

// PlaceFunc inserts an accepted item into the live surface. It is called once
// per accepted item, never concurrently, in the order the reads complete.
type PlaceFunc func(item domain.MediaItem) error

// MediaIngestor validates, reads and encodes uploaded files. Each file is
// handled independently: a rejected file never aborts the rest of its batch.
type MediaIngestor struct {
	registry *mediatypes.Registry
	notifier driven.Notifier
	ids      domain.IDGenerator
	maxBytes int64
	logger   *slog.Logger
}

// MediaIngestorConfig holds configuration for the ingestor.
type MediaIngestorConfig struct {
	Registry *mediatypes.Registry // default: mediatypes.DefaultRegistry()
	Notifier driven.Notifier
	IDs      domain.IDGenerator
	MaxBytes int64 // default: 5 MiB
	Logger   *slog.Logger
}

// NewMediaIngestor creates an ingestor.
func NewMediaIngestor(cfg MediaIngestorConfig) *MediaIngestor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = mediatypes.DefaultRegistry()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = domain.GenerateID
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMediaBytes
	}
	return &MediaIngestor{
		registry: registry,
		notifier: cfg.Notifier,
		ids:      ids,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// MaxBytes returns the per-item size limit.
func (m *MediaIngestor) MaxBytes() int64 {
	return m.maxBytes
}

// Ingest reads every upload concurrently and hands each accepted item to
// place as soon as its read completes. Rejections are collected, logged and
// notified per file. The returned error is non-nil only for a cancelled context.
func (m *MediaIngestor) Ingest(ctx context.Context, target mediatypes.Target, uploads []domain.Upload, place PlaceFunc) (*domain.UploadResult, error) {
	result := &domain.UploadResult{Added: []domain.MediaItem{}, Rejected: []domain.Rejection{}}

	var mu sync.Mutex
	reject := func(name string, err error) {
		mu.Lock()
		result.Rejected = append(result.Rejected, domain.NewRejection(name, err))
		mu.Unlock()
		m.logger.Warn("upload rejected", "target", target, "file", name, "error", err)
		if m.notifier != nil {
			m.notifier.Notify(ctx, domain.Failure(err, m.rejectionMessage(target, name, err)))
		}
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentReads)

	for _, up := range uploads {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			item, err := m.read(target, up)
			if err != nil {
				reject(up.Name, err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			item.ID = m.ids()
			if err := place(item); err != nil {
				m.logger.Warn("upload not placed", "target", target, "file", up.Name, "error", err)
				result.Rejected = append(result.Rejected, domain.NewRejection(up.Name, err))
				return nil
			}
			result.Added = append(result.Added, item)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// read validates and encodes one upload. Declared size and type are checked
// before any byte is read. The item ID is assigned at placement.
func (m *MediaIngestor) read(target mediatypes.Target, up domain.Upload) (domain.MediaItem, error) {
	if up.Size > m.maxBytes {
		return domain.MediaItem{}, fmt.Errorf("%s is %d bytes, limit %d: %w", up.Name, up.Size, m.maxBytes, domain.ErrOversizedMedia)
	}
	if up.MimeType != "" && !m.registry.Accepts(target, up.MimeType) {
		return domain.MediaItem{}, fmt.Errorf("%s (%s) in %s: %w", up.Name, up.MimeType, target, domain.ErrUnsupportedMediaType)
	}
	if up.Open == nil {
		return domain.MediaItem{}, fmt.Errorf("%s has no content: %w", up.Name, domain.ErrInvalidInput)
	}

	rc, err := up.Open()
	if err != nil {
		return domain.MediaItem{}, fmt.Errorf("open %s: %w", up.Name, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, m.maxBytes+1)); err != nil {
		return domain.MediaItem{}, fmt.Errorf("read %s: %w", up.Name, err)
	}
	if int64(buf.Len()) > m.maxBytes {
		return domain.MediaItem{}, fmt.Errorf("%s exceeds %d bytes: %w", up.Name, m.maxBytes, domain.ErrOversizedMedia)
	}

	if buf.Len() == 0 {
		return domain.MediaItem{}, fmt.Errorf("%s is empty: %w", up.Name, domain.ErrInvalidInput)
	}

	raw := buf.Bytes()
	mimeType := codec.Sniff(raw, up.MimeType)
	if !m.registry.Accepts(target, mimeType) {
		return domain.MediaItem{}, fmt.Errorf("%s (%s) in %s: %w", up.Name, mimeType, target, domain.ErrUnsupportedMediaType)
	}

	return domain.MediaItem{
		DisplayName: up.Name,
		Content:     codec.Encode(raw, mimeType),
	}, nil
}

func (m *MediaIngestor) rejectionMessage(target mediatypes.Target, name string, err error) string {
	switch domain.KindOf(err) {
	case domain.KindOversizedMedia:
		return name + " is too large to add."
	case domain.KindUnsupportedMediaType:
		return name + " is not a supported file type here (accepted: " + strings.Join(m.registry.Patterns(target), ", ") + ")."
	default:
		return "Could not read " + name + "."
	}
}
