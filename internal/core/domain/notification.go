package domain

import "time"

// NotificationKind classifies a user-facing notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a short-lived, dismissible message for the user.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	ErrorKind ErrorKind        `json:"errorKind,omitempty"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Success builds a success notification.
func Success(message string) Notification {
	return Notification{Kind: NotifySuccess, Message: message}
}

// Info builds an informational notification.
func Info(message string) Notification {
	return Notification{Kind: NotifyInfo, Message: message}
}

// Failure builds an error notification classified by err.
func Failure(err error, message string) Notification {
	if message == "" && err != nil {
		message = err.Error()
	}
	return Notification{Kind: NotifyError, ErrorKind: KindOf(err), Message: message}
}
