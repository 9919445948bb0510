package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/internal/services/chat/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetMessageRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 21, 9, 15, 0, 0, time.UTC)

	record := storage.MessageRecord{
		ID:               "msg-1",
		ProjectID:        "proj-1",
		SenderID:         "user-1",
		SenderName:       "Ava Torres",
		Kind:             "TEXT",
		Content:          "hello @ben, see #42",
		TaskID:           "task-1",
		TaskTitle:        "Ship the beta",
		MentionedUserIDs: []string{"user-2", "user-3"},
		CreatedAt:        now,
	}
	if err := store.PutMessage(context.Background(), record); err != nil {
		t.Fatalf("put message: %v", err)
	}

	got, err := store.GetMessage(context.Background(), "proj-1", "msg-1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Content != record.Content || got.SenderName != "Ava Torres" {
		t.Fatalf("unexpected message %+v", got)
	}
	if got.Kind != "TEXT" {
		t.Fatalf("kind = %q, want TEXT", got.Kind)
	}
	if len(got.MentionedUserIDs) != 2 || got.MentionedUserIDs[0] != "user-2" {
		t.Fatalf("mentions = %v", got.MentionedUserIDs)
	}
	if got.TaskTitle != "Ship the beta" {
		t.Fatalf("task title = %q", got.TaskTitle)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v, want %v", got.CreatedAt, now)
	}
	if got.Edited || got.EditedAt != nil {
		t.Fatalf("expected unedited round trip, got edited=%v editedAt=%v", got.Edited, got.EditedAt)
	}
}

func TestFileMessageRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 21, 9, 15, 0, 0, time.UTC)

	record := storage.MessageRecord{
		ID:         "msg-file",
		ProjectID:  "proj-1",
		SenderID:   "user-1",
		SenderName: "Ava Torres",
		Kind:       "FILE",
		Content:    "launch deck",
		FileURL:    "https://files.test/deck.pdf",
		FileName:   "deck.pdf",
		CreatedAt:  now,
	}
	if err := store.PutMessage(context.Background(), record); err != nil {
		t.Fatalf("put file message: %v", err)
	}

	got, err := store.GetMessage(context.Background(), "proj-1", "msg-file")
	if err != nil {
		t.Fatalf("get file message: %v", err)
	}
	if got.FileURL != record.FileURL || got.FileName != record.FileName {
		t.Fatalf("file fields = %q %q", got.FileURL, got.FileName)
	}
}

func TestEditedFieldsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 21, 9, 15, 0, 0, time.UTC)
	editedAt := now.Add(5 * time.Minute)

	record := storage.MessageRecord{
		ID:         "msg-edited",
		ProjectID:  "proj-1",
		SenderID:   "user-1",
		SenderName: "Ava Torres",
		Kind:       "TEXT",
		Content:    "hello (fixed typo)",
		CreatedAt:  now,
		Edited:     true,
		EditedAt:   &editedAt,
	}
	if err := store.PutMessage(context.Background(), record); err != nil {
		t.Fatalf("put edited message: %v", err)
	}

	got, err := store.GetMessage(context.Background(), "proj-1", "msg-edited")
	if err != nil {
		t.Fatalf("get edited message: %v", err)
	}
	if !got.Edited {
		t.Fatal("expected edited flag to round trip")
	}
	if got.EditedAt == nil || !got.EditedAt.Equal(editedAt) {
		t.Fatalf("edited at = %v, want %v", got.EditedAt, editedAt)
	}
}

func TestPutMessageUpsertsEditedContent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 21, 9, 15, 0, 0, time.UTC)

	record := storage.MessageRecord{
		ID:         "msg-1",
		ProjectID:  "proj-1",
		SenderID:   "user-1",
		SenderName: "Ava Torres",
		Kind:       "TEXT",
		Content:    "hello rom",
		CreatedAt:  now,
	}
	if err := store.PutMessage(context.Background(), record); err != nil {
		t.Fatalf("put message: %v", err)
	}

	editedAt := now.Add(time.Minute)
	record.Content = "hello room"
	record.Edited = true
	record.EditedAt = &editedAt
	if err := store.PutMessage(context.Background(), record); err != nil {
		t.Fatalf("put edited revision: %v", err)
	}

	got, err := store.GetMessage(context.Background(), "proj-1", "msg-1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Content != "hello room" || !got.Edited {
		t.Fatalf("revision = (%q, edited=%v), want updated content", got.Content, got.Edited)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v, want original %v preserved", got.CreatedAt, now)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	if _, err := store.GetMessage(context.Background(), "proj-1", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMessageScopedToProject(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, 8, 21, 9, 15, 0, 0, time.UTC)

	record := storage.MessageRecord{
		ID:         "msg-1",
		ProjectID:  "proj-1",
		SenderID:   "user-1",
		SenderName: "Ava Torres",
		Kind:       "TEXT",
		Content:    "hello",
		CreatedAt:  now,
	}
	if err := store.PutMessage(context.Background(), record); err != nil {
		t.Fatalf("put message: %v", err)
	}

	if _, err := store.GetMessage(context.Background(), "proj-other", "msg-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across projects, got %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	storePath := filepath.Join(t.TempDir(), "chat.db")
	store, err := Open(storePath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Fatalf("close store: %v", closeErr)
		}
	})
	return store
}
