// Package sqlite provides a SQLite-backed notification inbox store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/platform/storage/sqlitedb"
	"github.com/taskdeck/taskdeck/internal/platform/storage/sqlitemigrate"
	"github.com/taskdeck/taskdeck/internal/services/notifications/storage"
	"github.com/taskdeck/taskdeck/internal/services/notifications/storage/sqlite/migrations"
)

// notificationColumns is the scan order shared by every notifications query.
const notificationColumns = "id, recipient_user_id, topic, payload_json, dedupe_key, source, created_at, updated_at, read_at"

// Store persists notification inbox rows in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a notifications SQLite store at the provided path and applies
// embedded migrations.
func Open(path string) (*Store, error) {
	sqlDB, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// guard rejects calls when the context is done or the store was never opened.
func (s *Store) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullableMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

// PutNotification upserts one inbox row keyed by id. A different row already
// holding the same recipient and dedupe key reports storage.ErrConflict.
func (s *Store) PutNotification(ctx context.Context, record storage.NotificationRecord) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	normalized, err := normalizeNotificationRecord(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   recipient_user_id = excluded.recipient_user_id,
		   topic = excluded.topic,
		   payload_json = excluded.payload_json,
		   dedupe_key = excluded.dedupe_key,
		   source = excluded.source,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at,
		   read_at = excluded.read_at`,
		normalized.ID,
		normalized.RecipientUserID,
		normalized.Topic,
		normalized.PayloadJSON,
		normalized.DedupeKey,
		normalized.Source,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
		nullableMillis(normalized.ReadAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

// GetNotificationByDedupeKey loads one notification by its recipient-scoped
// dedupe key.
func (s *Store) GetNotificationByDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (storage.NotificationRecord, error) {
	if err := s.guard(ctx); err != nil {
		return storage.NotificationRecord{}, err
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	dedupeKey = strings.TrimSpace(dedupeKey)
	if recipientUserID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("recipient user id is required")
	}
	// Rows without a dedupe key are never replay candidates.
	if dedupeKey == "" {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}

	return s.queryNotification(ctx, "get notification by dedupe key",
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE recipient_user_id = ? AND dedupe_key = ?`,
		recipientUserID, dedupeKey)
}

// ListNotifications pages one recipient inbox newest-first. The page token
// is the id of the last row on the previous page.
func (s *Store) ListNotifications(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (storage.NotificationPage, error) {
	if err := s.guard(ctx); err != nil {
		return storage.NotificationPage{}, err
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	pageToken = strings.TrimSpace(pageToken)
	if recipientUserID == "" {
		return storage.NotificationPage{}, fmt.Errorf("recipient user id is required")
	}
	if pageSize <= 0 {
		return storage.NotificationPage{}, fmt.Errorf("page size must be greater than zero")
	}

	where := "recipient_user_id = ?"
	args := []any{recipientUserID}
	if pageToken != "" {
		cursor, err := s.queryNotification(ctx, "lookup notification cursor",
			`SELECT `+notificationColumns+`
			 FROM notifications
			 WHERE recipient_user_id = ? AND id = ?`,
			recipientUserID, pageToken)
		if err != nil {
			// An expired or foreign cursor ends pagination instead of failing it.
			if errors.Is(err, storage.ErrNotFound) {
				return storage.NotificationPage{}, nil
			}
			return storage.NotificationPage{}, err
		}
		where += " AND (created_at < ? OR (created_at = ? AND id < ?))"
		createdAt := toMillis(cursor.CreatedAt)
		args = append(args, createdAt, createdAt, cursor.ID)
	}

	// One extra row decides whether another page exists.
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE `+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		append(args, pageSize+1)...)
	if err != nil {
		return storage.NotificationPage{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return collectNotificationPage(rows, pageSize)
}

// CountUnreadNotifications returns the unread row count for one recipient.
func (s *Store) CountUnreadNotifications(ctx context.Context, recipientUserID string) (int, error) {
	if err := s.guard(ctx); err != nil {
		return 0, err
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	if recipientUserID == "" {
		return 0, fmt.Errorf("recipient user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notifications WHERE recipient_user_id = ? AND read_at IS NULL`,
		recipientUserID)
	var unread int
	if err := row.Scan(&unread); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return unread, nil
}

// MarkNotificationRead stamps one recipient row as read and returns the
// updated record.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (storage.NotificationRecord, error) {
	if err := s.guard(ctx); err != nil {
		return storage.NotificationRecord{}, err
	}
	recipientUserID = strings.TrimSpace(recipientUserID)
	notificationID = strings.TrimSpace(notificationID)
	if recipientUserID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("recipient user id is required")
	}
	if notificationID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("notification id is required")
	}

	stamp := toMillis(readAt)
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE notifications
		 SET read_at = ?, updated_at = ?
		 WHERE recipient_user_id = ? AND id = ?`,
		stamp, stamp, recipientUserID, notificationID)
	if err != nil {
		return storage.NotificationRecord{}, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.NotificationRecord{}, fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}

	return s.queryNotification(ctx, "get notification by id",
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE recipient_user_id = ? AND id = ?`,
		recipientUserID, notificationID)
}

// queryNotification runs a single-row lookup and maps missing rows to
// storage.ErrNotFound.
func (s *Store) queryNotification(ctx context.Context, label, query string, args ...any) (storage.NotificationRecord, error) {
	record, err := scanNotification(s.sqlDB.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotificationRecord{}, storage.ErrNotFound
		}
		return storage.NotificationRecord{}, fmt.Errorf("%s: %w", label, err)
	}
	return record, nil
}

func normalizeNotificationRecord(record storage.NotificationRecord) (storage.NotificationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.RecipientUserID = strings.TrimSpace(record.RecipientUserID)
	record.Topic = strings.ToLower(strings.TrimSpace(record.Topic))
	record.DedupeKey = strings.TrimSpace(record.DedupeKey)
	record.Source = strings.TrimSpace(record.Source)
	record.PayloadJSON = strings.TrimSpace(record.PayloadJSON)
	if record.PayloadJSON == "" {
		record.PayloadJSON = "{}"
	}

	switch {
	case record.ID == "":
		return storage.NotificationRecord{}, fmt.Errorf("notification id is required")
	case record.RecipientUserID == "":
		return storage.NotificationRecord{}, fmt.Errorf("recipient user id is required")
	case record.Topic == "":
		return storage.NotificationRecord{}, fmt.Errorf("topic is required")
	case record.CreatedAt.IsZero():
		return storage.NotificationRecord{}, fmt.Errorf("created_at is required")
	case record.UpdatedAt.IsZero():
		return storage.NotificationRecord{}, fmt.Errorf("updated_at is required")
	}

	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	if record.ReadAt != nil {
		readAt := record.ReadAt.UTC()
		record.ReadAt = &readAt
	}
	return record, nil
}

type scanner func(dest ...any) error

func scanNotification(scan scanner) (storage.NotificationRecord, error) {
	var record storage.NotificationRecord
	var createdAt, updatedAt int64
	var readAt sql.NullInt64
	err := scan(
		&record.ID, &record.RecipientUserID, &record.Topic, &record.PayloadJSON,
		&record.DedupeKey, &record.Source, &createdAt, &updatedAt, &readAt,
	)
	if err != nil {
		return storage.NotificationRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	if readAt.Valid {
		value := fromMillis(readAt.Int64)
		record.ReadAt = &value
	}
	return record, nil
}

func collectNotificationPage(rows *sql.Rows, pageSize int) (storage.NotificationPage, error) {
	var page storage.NotificationPage
	for rows.Next() {
		record, err := scanNotification(rows.Scan)
		if err != nil {
			return storage.NotificationPage{}, fmt.Errorf("scan notification row: %w", err)
		}
		page.Notifications = append(page.Notifications, record)
	}
	if err := rows.Err(); err != nil {
		return storage.NotificationPage{}, fmt.Errorf("iterate notification rows: %w", err)
	}
	if len(page.Notifications) > pageSize {
		page.Notifications = page.Notifications[:pageSize]
		page.NextPageToken = page.Notifications[pageSize-1].ID
	}
	return page, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

var _ storage.NotificationStore = (*Store)(nil)
