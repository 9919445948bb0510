package server

import (
	"context"
	"errors"
	"time"

	"github.com/taskdeck/taskdeck/internal/services/notifications/domain"
	"github.com/taskdeck/taskdeck/internal/services/notifications/storage"
)

// storeAdapter exposes a storage.NotificationStore as the domain.Store the
// inbox service consumes, translating record types and sentinel errors.
type storeAdapter struct {
	records storage.NotificationStore
}

func newStoreAdapter(records storage.NotificationStore) *storeAdapter {
	return &storeAdapter{records: records}
}

var _ domain.Store = (*storeAdapter)(nil)

func (a *storeAdapter) guard() error {
	if a == nil || a.records == nil {
		return domain.ErrStoreNotConfigured
	}
	return nil
}

func (a *storeAdapter) FindByDedupeKey(ctx context.Context, recipientUserID, dedupeKey string) (domain.Notification, error) {
	if err := a.guard(); err != nil {
		return domain.Notification{}, err
	}
	record, err := a.records.GetNotificationByDedupeKey(ctx, recipientUserID, dedupeKey)
	if err != nil {
		return domain.Notification{}, toDomainError(err)
	}
	return fromRecord(record), nil
}

func (a *storeAdapter) Insert(ctx context.Context, notification domain.Notification) error {
	if err := a.guard(); err != nil {
		return err
	}
	if err := a.records.PutNotification(ctx, toRecord(notification)); err != nil {
		return toDomainError(err)
	}
	return nil
}

func (a *storeAdapter) ListByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (domain.NotificationPage, error) {
	if err := a.guard(); err != nil {
		return domain.NotificationPage{}, err
	}
	page, err := a.records.ListNotifications(ctx, recipientUserID, pageSize, pageToken)
	if err != nil {
		return domain.NotificationPage{}, toDomainError(err)
	}
	notifications := make([]domain.Notification, 0, len(page.Notifications))
	for _, record := range page.Notifications {
		notifications = append(notifications, fromRecord(record))
	}
	return domain.NotificationPage{
		Notifications: notifications,
		NextPageToken: page.NextPageToken,
	}, nil
}

func (a *storeAdapter) CountUnread(ctx context.Context, recipientUserID string) (int, error) {
	if err := a.guard(); err != nil {
		return 0, err
	}
	count, err := a.records.CountUnreadNotifications(ctx, recipientUserID)
	if err != nil {
		return 0, toDomainError(err)
	}
	return count, nil
}

func (a *storeAdapter) MarkRead(ctx context.Context, recipientUserID, notificationID string, readAt time.Time) (domain.Notification, error) {
	if err := a.guard(); err != nil {
		return domain.Notification{}, err
	}
	record, err := a.records.MarkNotificationRead(ctx, recipientUserID, notificationID, readAt)
	if err != nil {
		return domain.Notification{}, toDomainError(err)
	}
	return fromRecord(record), nil
}

func toRecord(notification domain.Notification) storage.NotificationRecord {
	return storage.NotificationRecord{
		ID:              notification.ID,
		RecipientUserID: notification.RecipientUserID,
		Topic:           notification.Topic,
		PayloadJSON:     notification.PayloadJSON,
		DedupeKey:       notification.DedupeKey,
		Source:          notification.Source,
		CreatedAt:       notification.CreatedAt,
		UpdatedAt:       notification.UpdatedAt,
		ReadAt:          notification.ReadAt,
	}
}

func fromRecord(record storage.NotificationRecord) domain.Notification {
	return domain.Notification{
		ID:              record.ID,
		RecipientUserID: record.RecipientUserID,
		Topic:           record.Topic,
		PayloadJSON:     record.PayloadJSON,
		DedupeKey:       record.DedupeKey,
		Source:          record.Source,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
		ReadAt:          record.ReadAt,
	}
}

func toDomainError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	}
	return err
}
