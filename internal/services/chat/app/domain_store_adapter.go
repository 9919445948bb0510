package server

import (
	"context"
	"errors"

	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
	chatstorage "github.com/taskdeck/taskdeck/internal/services/chat/storage"
)

// messageStoreAdapter maps canonical messages onto the flat row shape the
// message store persists.
type messageStoreAdapter struct {
	messageStore chatstorage.MessageStore
}

func newMessageStoreAdapter(messageStore chatstorage.MessageStore) *messageStoreAdapter {
	return &messageStoreAdapter{messageStore: messageStore}
}

func (a *messageStoreAdapter) PutMessage(ctx context.Context, msg chatdomain.Message) error {
	if a == nil || a.messageStore == nil {
		return errors.New("message store is not configured")
	}
	return a.messageStore.PutMessage(ctx, toMessageRecord(msg))
}

func toMessageRecord(msg chatdomain.Message) chatstorage.MessageRecord {
	record := chatstorage.MessageRecord{
		ID:               msg.ID,
		ProjectID:        msg.ProjectID,
		SenderID:         msg.SenderID,
		SenderName:       msg.SenderName,
		Kind:             string(msg.Kind),
		Content:          msg.Content,
		MentionedUserIDs: msg.MentionedUserIDs,
		CreatedAt:        msg.CreatedAt,
		Edited:           msg.Edited,
		EditedAt:         msg.EditedAt,
	}
	if msg.File != nil {
		record.FileURL = msg.File.URL
		record.FileName = msg.File.Name
	}
	if msg.Task != nil {
		record.TaskID = msg.Task.ID
		record.TaskTitle = msg.Task.Title
	}
	return record
}

var _ chatdomain.Store = (*messageStoreAdapter)(nil)
