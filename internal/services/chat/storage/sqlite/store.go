// Package sqlite provides a SQLite-backed chat message store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/platform/storage/sqlitedb"
	"github.com/taskdeck/taskdeck/internal/platform/storage/sqlitemigrate"
	"github.com/taskdeck/taskdeck/internal/services/chat/storage"
	"github.com/taskdeck/taskdeck/internal/services/chat/storage/sqlite/migrations"
)

// Store persists canonical chat messages in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a chat message SQLite store at the provided path and applies
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

// PutMessage inserts one canonical message row. Message ids are
// server-assigned so replays overwrite the identical row.
func (s *Store) PutMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	messageID := strings.TrimSpace(record.ID)
	projectID := strings.TrimSpace(record.ProjectID)
	senderID := strings.TrimSpace(record.SenderID)
	kind := strings.TrimSpace(record.Kind)
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	if senderID == "" {
		return fmt.Errorf("sender id is required")
	}
	if kind == "" {
		return fmt.Errorf("message kind is required")
	}

	mentioned, err := encodeMentions(record.MentionedUserIDs)
	if err != nil {
		return fmt.Errorf("encode mentioned user ids: %w", err)
	}
	var editedAt sql.NullInt64
	if record.EditedAt != nil {
		editedAt = sql.NullInt64{Int64: toMillis(*record.EditedAt), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (
		   id, project_id, sender_id, sender_name, kind, content,
		   file_url, file_name, task_id, task_title, mentioned_user_ids,
		   created_at, edited, edited_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   content = excluded.content,
		   edited = excluded.edited,
		   edited_at = excluded.edited_at`,
		messageID,
		projectID,
		senderID,
		record.SenderName,
		kind,
		record.Content,
		record.FileURL,
		record.FileName,
		record.TaskID,
		record.TaskTitle,
		mentioned,
		toMillis(record.CreatedAt),
		boolToInt(record.Edited),
		editedAt,
	)
	if err != nil {
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

// GetMessage returns one message by id scoped to a project.
func (s *Store) GetMessage(ctx context.Context, projectID, messageID string) (storage.MessageRecord, error) {
	if err := s.guard(ctx); err != nil {
		return storage.MessageRecord{}, err
	}
	projectID = strings.TrimSpace(projectID)
	messageID = strings.TrimSpace(messageID)
	if projectID == "" {
		return storage.MessageRecord{}, fmt.Errorf("project id is required")
	}
	if messageID == "" {
		return storage.MessageRecord{}, fmt.Errorf("message id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, project_id, sender_id, sender_name, kind, content,
		        file_url, file_name, task_id, task_title, mentioned_user_ids,
		        created_at, edited, edited_at
		 FROM messages
		 WHERE project_id = ? AND id = ?`,
		projectID,
		messageID,
	)

	var record storage.MessageRecord
	var mentioned string
	var createdAt int64
	var edited int
	var editedAt sql.NullInt64
	err := row.Scan(
		&record.ID,
		&record.ProjectID,
		&record.SenderID,
		&record.SenderName,
		&record.Kind,
		&record.Content,
		&record.FileURL,
		&record.FileName,
		&record.TaskID,
		&record.TaskTitle,
		&mentioned,
		&createdAt,
		&edited,
		&editedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MessageRecord{}, storage.ErrNotFound
		}
		return storage.MessageRecord{}, fmt.Errorf("get message: %w", err)
	}

	record.MentionedUserIDs, err = decodeMentions(mentioned)
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("decode mentioned user ids: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.Edited = edited != 0
	if editedAt.Valid {
		value := fromMillis(editedAt.Int64)
		record.EditedAt = &value
	}
	return record, nil
}

func encodeMentions(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMentions(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

var _ storage.MessageStore = (*Store)(nil)
