package driven

import (
	"context"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// Notifier delivers short-lived user-facing notifications.
type Notifier interface {
	// Notify publishes n. Implementations assign ID and CreatedAt when empty.
	Notify(ctx context.Context, n domain.Notification)
}

// NotificationFeed is a Notifier the UI can poll and dismiss from.
type NotificationFeed interface {
	Notifier

	// List returns the notifications that have not expired or been dismissed, oldest first.
	List(ctx context.Context) []domain.Notification

	// Dismiss removes a notification. Returns domain.ErrNotFound if it is gone.
	Dismiss(ctx context.Context, id string) error
}
