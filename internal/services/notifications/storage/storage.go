// Package storage defines persistence contracts for the notification inbox.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested notification record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a write collided with the recipient dedupe key of an
// existing row.
var ErrConflict = errors.New("record conflict")

// NotificationRecord stores one inbox row. DedupeKey is empty for rows that
// never participate in replay suppression.
type NotificationRecord struct {
	ID              string
	RecipientUserID string
	Topic           string
	PayloadJSON     string
	DedupeKey       string
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ReadAt          *time.Time
}

// NotificationPage stores one inbox page. NextPageToken is empty on the last
// page, otherwise it names the final row of this page.
type NotificationPage struct {
	Notifications []NotificationRecord
	NextPageToken string
}

// NotificationStore is the persistence contract the inbox service runs on.
type NotificationStore interface {
	PutNotification(ctx context.Context, record NotificationRecord) error
	GetNotificationByDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (NotificationRecord, error)
	ListNotifications(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (NotificationPage, error)
	CountUnreadNotifications(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (NotificationRecord, error)
}
