package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
	"github.com/designpm/designpm-core/internal/snapshot"
)

// DefaultAutosaveKey is the storage key of the working snapshot slot.
const DefaultAutosaveKey = "DesignPM_AutoSave"

// mediaKeyPrefix namespaces the media payload set of each report.
const mediaKeyPrefix = "designpm:media:"

// errSlotBusy is returned when another writer holds the autosave slot.
var errSlotBusy = errors.New("autosave slot held by another writer")

// SnapshotSource collects a complete snapshot of the live report. It runs to
// completion before the gateway begins a write.
type SnapshotSource func(ctx context.Context) (*domain.DocumentSnapshot, error)

// MediaKey returns the storage key of a report's media payloads.
func MediaKey(reportID string) string {
	return mediaKeyPrefix + reportID
}

// mediaPayloads is the stored form of a report's media set, keyed by item ID.
type mediaPayloads struct {
	ReportID string                         `json:"reportId"`
	Items    map[string]domain.EncodedMedia `json:"items"`
}

// PersistenceGateway owns reads and writes of the autosave slot and the
// import/export file boundary. Textual snapshot and media payloads are kept
// under separate keys; unchanged content is not rewritten.
type PersistenceGateway struct {
	store       driven.KeyValueStore
	lock        driven.DistributedLock
	notifier    driven.Notifier
	logger      *slog.Logger
	autosaveKey string
	debounce    time.Duration
	lockTTL     time.Duration
	now         func() time.Time

	// writeMu serializes writes; a write never interleaves with another.
	writeMu     sync.Mutex
	textDigest  [blake2b.Size256]byte
	mediaDigest map[string][blake2b.Size256]byte
	// slotReport is the report the autosave slot currently holds
	slotReport string

	// Debounce state
	mu        sync.Mutex
	timer     *time.Timer
	pending   SnapshotSource
	lastSaved time.Time
	closed    bool
}

// PersistenceConfig holds configuration for the gateway.
type PersistenceConfig struct {
	Store       driven.KeyValueStore
	Lock        driven.DistributedLock // Optional: guards the slot across processes
	Notifier    driven.Notifier
	Logger      *slog.Logger
	AutosaveKey string        // default: DesignPM_AutoSave
	Debounce    time.Duration // quiet period before a debounced write (default: 800ms)
	LockTTL     time.Duration // default: 10s
	Now         func() time.Time
}

// NewPersistenceGateway creates a gateway.
func NewPersistenceGateway(cfg PersistenceConfig) *PersistenceGateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	key := cfg.AutosaveKey
	if key == "" {
		key = DefaultAutosaveKey
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 800 * time.Millisecond
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &PersistenceGateway{
		store:       cfg.Store,
		lock:        cfg.Lock,
		notifier:    cfg.Notifier,
		logger:      logger,
		autosaveKey: key,
		debounce:    debounce,
		lockTTL:     lockTTL,
		now:         now,
		mediaDigest: make(map[string][blake2b.Size256]byte),
	}
}

// PersistLocal writes snap to the autosave slot. The media payloads go to the
// report's media key first, and only when they changed; the textual snapshot
// then goes to the autosave slot with every payload stripped out.
//
// A quota failure is reported to the user as StorageQuotaExceeded and returned;
// nothing already stored is lost and the next trigger retries.
func (g *PersistenceGateway) PersistLocal(ctx context.Context, snap *domain.DocumentSnapshot) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	return g.write(ctx, snap)
}

func (g *PersistenceGateway) write(ctx context.Context, snap *domain.DocumentSnapshot) error {
	reportID := snap.Metadata.ReportID
	logger := g.logger.With("report_id", reportID)

	lockName := "autosave:" + reportID
	if g.lock != nil {
		acquired, err := g.lock.Acquire(ctx, lockName, g.lockTTL)
		if err != nil {
			logger.Warn("failed to acquire autosave lock", "error", err)
			return fmt.Errorf("acquire autosave lock: %w", err)
		}
		if !acquired {
			logger.Debug("autosave lock held by another writer, skipping write")
			return errSlotBusy
		}
		defer func() {
			if err := g.lock.Release(ctx, lockName); err != nil {
				logger.Warn("failed to release autosave lock", "error", err)
			}
		}()
	}

	text, media := split(snap)

	mediaData, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("encode media payloads: %w", err)
	}
	mediaSum := blake2b.Sum256(mediaData)

	textData, err := json.Marshal(text)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	textSum := blake2b.Sum256(textData)

	mediaChanged := g.mediaDigest[reportID] != mediaSum
	if !mediaChanged && g.textDigest == textSum {
		g.markSaved()
		logger.Debug("snapshot unchanged, write skipped")
		return nil
	}

	if mediaChanged {
		if err := g.store.Set(ctx, MediaKey(reportID), mediaData); err != nil {
			return g.writeFailed(ctx, logger, "media", err)
		}
		g.mediaDigest[reportID] = mediaSum

		// A large media write can outlast the lock TTL
		if g.lock != nil {
			if err := g.lock.Extend(ctx, lockName, g.lockTTL); err != nil {
				logger.Warn("autosave lock lost during media write", "error", err)
				return fmt.Errorf("extend autosave lock: %w", err)
			}
		}
	}

	savedAt := g.now().UTC()
	text.Metadata.SavedAt = &savedAt
	stamped, err := json.Marshal(text)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := g.store.Set(ctx, g.autosaveKey, stamped); err != nil {
		return g.writeFailed(ctx, logger, "snapshot", err)
	}
	g.textDigest = textSum
	g.markSaved()
	g.dropReplaced(ctx, logger, reportID)

	logger.Debug("snapshot persisted",
		"snapshot_bytes", len(stamped),
		"media_bytes", len(mediaData),
		"media_written", mediaChanged,
	)
	return nil
}

// dropReplaced deletes the media set of the report the slot held before
// reportID was written over it. Only one report lives in the slot.
func (g *PersistenceGateway) dropReplaced(ctx context.Context, logger *slog.Logger, reportID string) {
	prev := g.slotReport
	g.slotReport = reportID
	if prev == "" || prev == reportID {
		return
	}
	if err := g.store.Delete(ctx, MediaKey(prev)); err != nil {
		logger.Warn("failed to delete replaced media payloads", "previous_report_id", prev, "error", err)
		return
	}
	delete(g.mediaDigest, prev)
	logger.Debug("replaced report media deleted", "previous_report_id", prev)
}

func (g *PersistenceGateway) writeFailed(ctx context.Context, logger *slog.Logger, what string, err error) error {
	if errors.Is(err, domain.ErrStorageQuotaExceeded) {
		msg := "Local storage is full."
		if used, quota, uerr := g.store.Usage(ctx); uerr == nil && quota > 0 {
			logger.Warn("local storage quota exceeded", "write", what, "used_bytes", used, "quota_bytes", quota, "error", err)
			msg = fmt.Sprintf("Local storage is full (%s of %s used).", formatBytes(used), formatBytes(quota))
		} else {
			logger.Warn("local storage quota exceeded", "write", what, "error", err)
		}
		g.notify(ctx, domain.Failure(err,
			msg+" Your edits are kept in this session; export the report to keep a copy."))
		return fmt.Errorf("write %s: %w", what, err)
	}
	logger.Error("local write failed", "write", what, "error", err)
	g.notify(ctx, domain.Failure(err, "Autosave failed: "+err.Error()))
	return fmt.Errorf("write %s: %w", what, err)
}

func (g *PersistenceGateway) markSaved() {
	g.mu.Lock()
	g.lastSaved = g.now()
	g.mu.Unlock()
}

// split separates a snapshot into its text form, with every payload emptied,
// and the payloads keyed by media ID. The input is not modified.
func split(snap *domain.DocumentSnapshot) (*domain.DocumentSnapshot, mediaPayloads) {
	text := snap.Clone()
	text.Metadata.SavedAt = nil
	media := mediaPayloads{ReportID: snap.Metadata.ReportID, Items: make(map[string]domain.EncodedMedia)}
	text.EachMedia(func(item *domain.MediaItem) {
		media.Items[item.ID] = item.Content
		item.Content = domain.EncodedMedia{}
	})
	return text, media
}

// LoadLocal reads the autosave slot and rejoins the media payloads. It returns
// nil without error when the slot is empty. Items whose payload is missing are
// left empty; the Applier skips them.
func (g *PersistenceGateway) LoadLocal(ctx context.Context) (*domain.DocumentSnapshot, []snapshot.Warning, error) {
	data, err := g.store.Get(ctx, g.autosaveKey)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read autosave slot: %w", err)
	}

	snap, warnings, err := snapshot.Decode(data)
	if err != nil {
		return nil, nil, err
	}

	reportID := snap.Metadata.ReportID
	var media mediaPayloads
	raw, err := g.store.Get(ctx, MediaKey(reportID))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		warnings = append(warnings, snapshot.Warning{Section: "media", Message: "media payloads missing"})
	case err != nil:
		return nil, nil, fmt.Errorf("read media payloads: %w", err)
	default:
		if err := json.Unmarshal(raw, &media); err != nil {
			warnings = append(warnings, snapshot.Warning{Section: "media", Message: "media payloads unreadable"})
		}
	}

	missing := 0
	snap.EachMedia(func(item *domain.MediaItem) {
		if p, ok := media.Items[item.ID]; ok {
			item.Content = p
			return
		}
		if item.Content.Data == "" {
			item.Content = domain.EncodedMedia{}
			missing++
		}
	})
	if missing > 0 {
		g.logger.Warn("media payloads missing for autosaved items", "report_id", reportID, "missing", missing)
	}

	// The loaded state is what is stored; an identical save can be skipped.
	g.writeMu.Lock()
	g.slotReport = reportID
	text, payloads := split(snap)
	if td, err := json.Marshal(text); err == nil {
		g.textDigest = blake2b.Sum256(td)
	}
	if md, err := json.Marshal(payloads); err == nil && missing == 0 {
		g.mediaDigest[reportID] = blake2b.Sum256(md)
	}
	g.writeMu.Unlock()

	return snap, warnings, nil
}

// ExportToFile renders snap as a single self-contained, indented JSON file
// with every payload inline, and names it from the header.
func (g *PersistenceGateway) ExportToFile(snap *domain.DocumentSnapshot) (string, []byte, error) {
	out := snap.Clone()
	savedAt := g.now().UTC()
	out.Metadata.SavedAt = &savedAt

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode export: %w", err)
	}
	return ExportFilename(snap.Header, savedAt), data, nil
}

// ImportFromFile validates and decodes an import file. The document type
// marker is checked before the full parse. Failures notify the user.
func (g *PersistenceGateway) ImportFromFile(ctx context.Context, data []byte) (*domain.DocumentSnapshot, []snapshot.Warning, error) {
	snap, warnings, err := snapshot.Decode(data)
	if err != nil {
		g.logger.Warn("import rejected", "error", err)
		g.notify(ctx, domain.Failure(err, "Import failed: this file is not a DesignPM report."))
		return nil, nil, err
	}
	return snap, warnings, nil
}

// ScheduleSave (re)starts the debounce timer. When the quiet period elapses
// without another call, source is collected and written.
func (g *PersistenceGateway) ScheduleSave(source SnapshotSource) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.pending = source
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.debounce, func() {
		g.mu.Lock()
		src := g.pending
		g.pending = nil
		g.timer = nil
		g.mu.Unlock()

		if src == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := g.flush(ctx, src); err != nil {
			g.logger.Debug("debounced save failed", "error", err)
		}
	})
}

// Commit cancels any pending debounced write and writes now.
func (g *PersistenceGateway) Commit(ctx context.Context, source SnapshotSource) error {
	g.cancelPending()
	return g.flush(ctx, source)
}

// Pending reports whether a debounced write is waiting.
func (g *PersistenceGateway) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// FlushIfStale writes when a debounced write is pending or when more than
// threshold has passed since the last successful write. It reports whether it wrote.
func (g *PersistenceGateway) FlushIfStale(ctx context.Context, source SnapshotSource, threshold time.Duration) (bool, error) {
	g.mu.Lock()
	stale := g.pending != nil || g.lastSaved.IsZero() || g.now().Sub(g.lastSaved) > threshold
	g.mu.Unlock()

	if !stale {
		return false, nil
	}
	g.cancelPending()
	if err := g.flush(ctx, source); err != nil {
		return false, err
	}
	return true, nil
}

// LastSaved returns the time of the last successful write, zero if none.
func (g *PersistenceGateway) LastSaved() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSaved
}

// ClearLocal removes the autosave slot, the report's media payloads and
// those of the report the slot last held, if different.
func (g *PersistenceGateway) ClearLocal(ctx context.Context, reportID string) error {
	g.cancelPending()

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	keys := []string{g.autosaveKey, MediaKey(reportID)}
	if g.slotReport != "" && g.slotReport != reportID {
		keys = append(keys, MediaKey(g.slotReport))
	}
	if err := g.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear local storage: %w", err)
	}
	g.textDigest = [blake2b.Size256]byte{}
	delete(g.mediaDigest, reportID)
	delete(g.mediaDigest, g.slotReport)
	g.slotReport = ""

	g.mu.Lock()
	g.lastSaved = time.Time{}
	g.mu.Unlock()
	return nil
}

// Close stops the debounce timer. Pending writes are dropped; callers flush first.
func (g *PersistenceGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.pending = nil
}

func (g *PersistenceGateway) cancelPending() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.pending = nil
}

// flush collects from source and writes, holding the write lock across both
// so the newest collected state is always the one written last.
func (g *PersistenceGateway) flush(ctx context.Context, source SnapshotSource) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	snap, err := source(ctx)
	if err != nil {
		return fmt.Errorf("collect snapshot: %w", err)
	}
	return g.write(ctx, snap)
}

func (g *PersistenceGateway) notify(ctx context.Context, n domain.Notification) {
	if g.notifier != nil {
		g.notifier.Notify(ctx, n)
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

var unsafeFilename = regexp.MustCompile(`[\\/:*?"<>|\s]+`)

// ExportFilename names an export from the project (or client) and the report
// date range, e.g. "Tower-A_2026-01-01_2026-03-01.json".
func ExportFilename(h domain.Header, now time.Time) string {
	name := strings.TrimSpace(h[domain.HeaderProject])
	if name == "" {
		name = strings.TrimSpace(h[domain.HeaderClient])
	}
	if name == "" {
		name = "report"
	}

	parts := []string{name}
	start, end := strings.TrimSpace(h[domain.HeaderStart]), strings.TrimSpace(h[domain.HeaderEnd])
	switch {
	case start != "" && end != "":
		parts = append(parts, start, end)
	case start != "" || end != "":
		parts = append(parts, start+end)
	case strings.TrimSpace(h[domain.HeaderReportDate]) != "":
		parts = append(parts, strings.TrimSpace(h[domain.HeaderReportDate]))
	default:
		parts = append(parts, now.Format("2006-01-02"))
	}

	for i, p := range parts {
		parts[i] = strings.Trim(unsafeFilename.ReplaceAllString(p, "-"), "-")
	}
	return strings.Join(parts, "_") + ".json"
}
