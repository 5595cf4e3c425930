package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven/mocks"
	"github.com/designpm/designpm-core/internal/mediatypes"
)

var pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

func fileUpload(name, mimeType string, data []byte) domain.Upload {
	return domain.Upload{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type collector struct {
	mu    sync.Mutex
	items []domain.MediaItem
	err   error
}

func (c *collector) place(item domain.MediaItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.items = append(c.items, item)
	return nil
}

func TestIngest_PartialBatch(t *testing.T) {
	notifier := mocks.NewMockNotifier()
	m := NewMediaIngestor(MediaIngestorConfig{Notifier: notifier})
	c := &collector{}

	result, err := m.Ingest(context.Background(), mediatypes.TargetGallery, []domain.Upload{
		fileUpload("a.png", "image/png", pngBytes),
		fileUpload("notes.txt", "text/plain", []byte("hello")),
		fileUpload("b.png", "image/png", pngBytes),
	}, c.place)
	require.NoError(t, err)

	assert.Len(t, result.Added, 2)
	assert.Len(t, c.items, 2)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "notes.txt", result.Rejected[0].Name)
	assert.Equal(t, domain.KindUnsupportedMediaType, result.Rejected[0].Kind)
	unsupported := notifier.OfKind(domain.KindUnsupportedMediaType)
	require.Len(t, unsupported, 1)
	assert.Contains(t, unsupported[0].Message, "image/*")

	ids := map[string]bool{}
	for _, item := range result.Added {
		assert.Equal(t, "image/png", item.Content.MimeType)
		assert.NotEmpty(t, item.ID)
		ids[item.ID] = true
	}
	assert.Len(t, ids, 2)
}

func TestIngest_OversizedRejectedBeforeRead(t *testing.T) {
	notifier := mocks.NewMockNotifier()
	m := NewMediaIngestor(MediaIngestorConfig{Notifier: notifier, MaxBytes: 8})
	c := &collector{}

	opened := false
	up := domain.Upload{Name: "big.png", MimeType: "image/png", Size: 9, Open: func() (io.ReadCloser, error) {
		opened = true
		return io.NopCloser(bytes.NewReader(pngBytes)), nil
	}}

	result, err := m.Ingest(context.Background(), mediatypes.TargetGallery, []domain.Upload{up}, c.place)
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Empty(t, c.items)
	assert.False(t, opened)
	assert.Len(t, notifier.OfKind(domain.KindOversizedMedia), 1)
}

func TestIngest_UnderstatedSizeStillRejected(t *testing.T) {
	m := NewMediaIngestor(MediaIngestorConfig{MaxBytes: 8})
	c := &collector{}

	up := fileUpload("liar.png", "image/png", pngBytes)
	up.Size = 1

	result, err := m.Ingest(context.Background(), mediatypes.TargetGallery, []domain.Upload{up}, c.place)
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	assert.ErrorIs(t, result.Rejected[0].Err, domain.ErrOversizedMedia)
}

func TestIngest_SniffsUndeclaredType(t *testing.T) {
	m := NewMediaIngestor(MediaIngestorConfig{})
	c := &collector{}

	result, err := m.Ingest(context.Background(), mediatypes.TargetDocuments, []domain.Upload{
		fileUpload("plan", "", pdfBytes),
		fileUpload("photo", "", pngBytes),
	}, c.place)
	require.NoError(t, err)

	require.Len(t, result.Added, 1)
	assert.Equal(t, "application/pdf", result.Added[0].Content.MimeType)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "photo", result.Rejected[0].Name)
}

func TestIngest_PlacementFailureIsPerFile(t *testing.T) {
	m := NewMediaIngestor(MediaIngestorConfig{})
	c := &collector{err: domain.ErrTargetGone}

	result, err := m.Ingest(context.Background(), mediatypes.TargetGallery, []domain.Upload{
		fileUpload("a.png", "image/png", pngBytes),
	}, c.place)
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, domain.KindTargetGone, result.Rejected[0].Kind)
}

func TestIngest_OpenFailure(t *testing.T) {
	m := NewMediaIngestor(MediaIngestorConfig{})
	c := &collector{}

	up := domain.Upload{Name: "x.png", MimeType: "image/png", Size: 4, Open: func() (io.ReadCloser, error) {
		return nil, errors.New("disk gone")
	}}
	result, err := m.Ingest(context.Background(), mediatypes.TargetGallery, []domain.Upload{up, fileUpload("y.png", "image/png", pngBytes)}, c.place)
	require.NoError(t, err)
	assert.Len(t, result.Added, 1)
	assert.Len(t, result.Rejected, 1)
}

func TestIngest_EmptyFileRejected(t *testing.T) {
	notifier := mocks.NewMockNotifier()
	m := NewMediaIngestor(MediaIngestorConfig{Notifier: notifier})
	c := &collector{}

	result, err := m.Ingest(context.Background(), mediatypes.TargetDocuments, []domain.Upload{
		fileUpload("empty.pdf", "application/pdf", []byte{}),
		fileUpload("plan.pdf", "application/pdf", pdfBytes),
	}, c.place)
	require.NoError(t, err)

	require.Len(t, result.Added, 1)
	assert.Equal(t, "plan.pdf", result.Added[0].DisplayName)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "empty.pdf", result.Rejected[0].Name)
	assert.Equal(t, domain.KindInvalidInput, result.Rejected[0].Kind)
}
