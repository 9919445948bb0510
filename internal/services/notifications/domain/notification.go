package domain

import (
	"errors"
	"time"
)

// Sentinel errors shared by the notifications domain and its storage
// adapters.
var (
	// ErrNotFound reports a missing notification record.
	ErrNotFound = errors.New("notification not found")
	// ErrConflict reports a write that lost a uniqueness race.
	ErrConflict = errors.New("notification conflict")
	// ErrStoreNotConfigured reports missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrRecipientUserIDRequired reports a blank recipient.
	ErrRecipientUserIDRequired = errors.New("recipient user id is required")
	// ErrTopicRequired reports a blank topic.
	ErrTopicRequired = errors.New("notification topic is required")
	// ErrNotificationIDRequired reports a blank notification id.
	ErrNotificationIDRequired = errors.New("notification id is required")
	// ErrIDGeneratorNotConfigured reports a Service built without an id source.
	ErrIDGeneratorNotConfigured = errors.New("notification id generator is not configured")
)

// Inbox pages clamp to maxPageSize; zero and negative sizes fall back to
// defaultPageSize.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Notification is one inbox item owned by a single recipient.
type Notification struct {
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

// NotificationPage is one inbox page plus the token for the next one.
type NotificationPage struct {
	Notifications []Notification
	NextPageToken string
}

// CreateIntentInput is a producer's request to notify one recipient.
type CreateIntentInput struct {
	RecipientUserID string
	Topic           string
	PayloadJSON     string
	DedupeKey       string
	Source          string
}

// ListInboxInput selects a recipient inbox page.
type ListInboxInput struct {
	RecipientUserID string
	PageSize        int
	PageToken       string
}

// MarkReadInput identifies the notification a recipient acknowledged.
type MarkReadInput struct {
	RecipientUserID string
	NotificationID  string
}

// GetUnreadStatusInput identifies the recipient inbox to summarize.
type GetUnreadStatusInput struct {
	RecipientUserID string
}

// UnreadStatus summarizes unread inbox state for one recipient.
type UnreadStatus struct {
	HasUnread   bool
	UnreadCount int
}
