// Package notify holds the in-process notification feed the UI polls.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NotificationFeed = (*Feed)(nil)

// DefaultTTL is how long a notification stays visible unless dismissed.
const DefaultTTL = 3 * time.Second

// FeedConfig holds configuration for Feed.
type FeedConfig struct {
	TTL    time.Duration
	IDs    domain.IDGenerator
	Now    func() time.Time
	Logger *slog.Logger
}

// Feed keeps notifications in memory until they expire or are dismissed.
// Expired entries are pruned lazily on every call.
type Feed struct {
	ttl    time.Duration
	ids    domain.IDGenerator
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	items []domain.Notification
}

// NewFeed creates a feed.
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.IDs == nil {
		cfg.IDs = domain.PrefixedIDs("ntf_", nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Feed{
		ttl:    cfg.TTL,
		ids:    cfg.IDs,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// Notify publishes n, filling in ID and CreatedAt when empty.
func (f *Feed) Notify(_ context.Context, n domain.Notification) {
	if n.ID == "" {
		n.ID = f.ids()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.now()
	}

	f.mu.Lock()
	f.prune()
	f.items = append(f.items, n)
	f.mu.Unlock()

	f.logger.Debug("notification", "id", n.ID, "kind", n.Kind, "error_kind", n.ErrorKind, "message", n.Message)
}

// List returns live notifications, oldest first.
func (f *Feed) List(_ context.Context) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prune()
	out := make([]domain.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Dismiss removes the notification with the given ID.
func (f *Feed) Dismiss(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prune()
	for i, n := range f.items {
		if n.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// prune drops expired entries. Caller holds f.mu.
func (f *Feed) prune() {
	cutoff := f.now().Add(-f.ttl)
	kept := f.items[:0]
	for _, n := range f.items {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	clear(f.items[len(kept):])
	f.items = kept
}
