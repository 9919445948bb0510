// Package storage defines persistence contracts for canonical chat messages.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested message record is missing.
var ErrNotFound = errors.New("record not found")

// MessageRecord stores one canonical chat message row. Synthesized presence
// and system events are never written here.
type MessageRecord struct {
	ID               string
	ProjectID        string
	SenderID         string
	SenderName       string
	Kind             string
	Content          string
	FileURL          string
	FileName         string
	TaskID           string
	TaskTitle        string
	MentionedUserIDs []string
	CreatedAt        time.Time
	Edited           bool
	EditedAt         *time.Time
}

// MessageStore persists canonical chat messages.
type MessageStore interface {
	PutMessage(ctx context.Context, record MessageRecord) error
	GetMessage(ctx context.Context, projectID, messageID string) (MessageRecord, error)
}
