package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/platform/id"
)

// Store is the persistence boundary for recipient inboxes.
type Store interface {
	FindByDedupeKey(ctx context.Context, recipientUserID, dedupeKey string) (Notification, error)
	Insert(ctx context.Context, notification Notification) error
	ListByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (NotificationPage, error)
	CountUnread(ctx context.Context, recipientUserID string) (int, error)
	MarkRead(ctx context.Context, recipientUserID, notificationID string, readAt time.Time) (Notification, error)
}

// Service owns inbox lifecycle: intent creation with dedupe, paging, unread
// summary, and acknowledgement.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService wires the inbox use-cases. A nil clock means time.Now; a nil
// newID means the shared id generator.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	svc := &Service{store: store, clock: clock, newID: newID}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newID == nil {
		svc.newID = id.NewID
	}
	return svc
}

// CreateIntent records one notification. A non-blank dedupe key makes the
// call idempotent per recipient: replays and racing producers observe the
// first stored row.
func (s *Service) CreateIntent(ctx context.Context, input CreateIntentInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Notification{}, ErrIDGeneratorNotConfigured
	}
	recipient, err := trimmedRecipient(input.RecipientUserID)
	if err != nil {
		return Notification{}, err
	}
	topic := NormalizeTopic(input.Topic)
	if topic == "" {
		return Notification{}, ErrTopicRequired
	}

	dedupeKey := strings.TrimSpace(input.DedupeKey)
	if dedupeKey != "" {
		existing, found, err := s.findByDedupeKey(ctx, recipient, dedupeKey)
		if err != nil {
			return Notification{}, err
		}
		if found {
			return existing, nil
		}
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, err
	}
	now := s.nowUTC()
	notification := Notification{
		ID:              notificationID,
		RecipientUserID: recipient,
		Topic:           topic,
		PayloadJSON:     strings.TrimSpace(input.PayloadJSON),
		DedupeKey:       dedupeKey,
		Source:          strings.TrimSpace(input.Source),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	putErr := s.store.Insert(ctx, notification)
	if putErr == nil {
		return notification, nil
	}
	if dedupeKey == "" || !errors.Is(putErr, ErrConflict) {
		return Notification{}, putErr
	}
	// A racing producer with the same dedupe key won the insert; surface
	// its row instead of the conflict.
	existing, found, err := s.findByDedupeKey(ctx, recipient, dedupeKey)
	if err != nil {
		return Notification{}, err
	}
	if !found {
		return Notification{}, putErr
	}
	return existing, nil
}

// ListInbox returns one page of a recipient inbox, newest first.
func (s *Service) ListInbox(ctx context.Context, input ListInboxInput) (NotificationPage, error) {
	if s == nil || s.store == nil {
		return NotificationPage{}, ErrStoreNotConfigured
	}
	recipient, err := trimmedRecipient(input.RecipientUserID)
	if err != nil {
		return NotificationPage{}, err
	}
	return s.store.ListByRecipient(ctx, recipient, clampPageSize(input.PageSize), strings.TrimSpace(input.PageToken))
}

// GetUnreadStatus reports whether a recipient has unread items and how many.
func (s *Service) GetUnreadStatus(ctx context.Context, input GetUnreadStatusInput) (UnreadStatus, error) {
	if s == nil || s.store == nil {
		return UnreadStatus{}, ErrStoreNotConfigured
	}
	recipient, err := trimmedRecipient(input.RecipientUserID)
	if err != nil {
		return UnreadStatus{}, err
	}
	unread, err := s.store.CountUnread(ctx, recipient)
	if err != nil {
		return UnreadStatus{}, err
	}
	return UnreadStatus{HasUnread: unread > 0, UnreadCount: unread}, nil
}

// MarkRead stamps one recipient notification as read.
func (s *Service) MarkRead(ctx context.Context, input MarkReadInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	recipient, err := trimmedRecipient(input.RecipientUserID)
	if err != nil {
		return Notification{}, err
	}
	notificationID := strings.TrimSpace(input.NotificationID)
	if notificationID == "" {
		return Notification{}, ErrNotificationIDRequired
	}
	return s.store.MarkRead(ctx, recipient, notificationID, s.nowUTC())
}

// findByDedupeKey folds the dedupe lookup into a found flag so callers can
// tell absence apart from storage failure.
func (s *Service) findByDedupeKey(ctx context.Context, recipientUserID, dedupeKey string) (Notification, bool, error) {
	existing, err := s.store.FindByDedupeKey(ctx, recipientUserID, dedupeKey)
	if err == nil {
		return existing, true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return Notification{}, false, nil
	}
	return Notification{}, false, err
}

func trimmedRecipient(raw string) (string, error) {
	recipient := strings.TrimSpace(raw)
	if recipient == "" {
		return "", ErrRecipientUserIDRequired
	}
	return recipient, nil
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	}
	return size
}

func (s *Service) nowUTC() time.Time {
	clock := s.clock
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC()
}
