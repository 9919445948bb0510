package domain

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/platform/errors"
	"github.com/taskdeck/taskdeck/internal/platform/id"
)

// ErrNotFound indicates a referenced directory or message record is missing.
var ErrNotFound = stderrors.New("record not found")

// Store is the persistence boundary for canonical messages.
type Store interface {
	PutMessage(ctx context.Context, msg Message) error
}

// Directory resolves users and tasks for enrichment and mentions.
// Implementations return ErrNotFound for missing records.
type Directory interface {
	UserByID(ctx context.Context, userID string) (UserRef, error)
	UserByHandle(ctx context.Context, handle string) (UserRef, error)
	TaskByID(ctx context.Context, projectID, taskID string) (TaskRef, error)
	TaskByNumber(ctx context.Context, projectID string, number int) (TaskRef, error)
}

// Service canonicalizes and persists sender-authored messages.
type Service struct {
	store     Store
	directory Directory
	clock     func() time.Time
	newID     func() (string, error)
}

// NewService constructs the chat message save workflow.
func NewService(store Store, directory Directory, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:     store,
		directory: directory,
		clock:     clock,
		newID:     newID,
	}
}

// SaveMessage validates a request, enriches it with directory lookups, and
// persists the canonical message. Unknown mentioned users and unknown task
// references are dropped silently; an unknown sender rejects the message.
func (s *Service) SaveMessage(ctx context.Context, projectID, senderID string, req Request) (Message, error) {
	if s == nil || s.store == nil || s.directory == nil {
		return Message{}, errors.New(errors.CodeStorageUnavailable, "chat service is not configured")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return Message{}, errors.New(errors.CodeMessageProjectEmpty, "project id is required")
	}
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return Message{}, errors.New(errors.CodeMessageSenderUnknown, "sender id is required")
	}
	if err := req.Validate(); err != nil {
		return Message{}, err
	}

	sender, err := s.directory.UserByID(ctx, senderID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return Message{}, errors.New(errors.CodeMessageSenderUnknown, "sender is not a known user")
		}
		return Message{}, errors.Wrap(errors.CodeStorageUnavailable, "resolve sender", err)
	}

	mentions, err := s.resolveMentions(ctx, req.MentionedUserIDs)
	if err != nil {
		return Message{}, err
	}

	var task *TaskRef
	if taskID := strings.TrimSpace(req.MentionedTaskID); taskID != "" {
		resolved, err := s.directory.TaskByID(ctx, projectID, taskID)
		switch {
		case err == nil:
			task = &resolved
		case stderrors.Is(err, ErrNotFound):
			// Unresolvable task references are dropped, not fatal.
		default:
			return Message{}, errors.Wrap(errors.CodeStorageUnavailable, "resolve task", err)
		}
	}

	messageID, err := s.newID()
	if err != nil {
		return Message{}, errors.Wrap(errors.CodeStorageUnavailable, "generate message id", err)
	}

	msg := Message{
		ID:               messageID,
		ProjectID:        projectID,
		SenderID:         sender.ID,
		SenderName:       sender.DisplayName,
		Kind:             req.Kind,
		Content:          req.Content,
		Task:             task,
		MentionedUserIDs: mentions,
		CreatedAt:        s.clock().UTC(),
	}
	if req.Kind == KindFile {
		msg.File = &FileRef{
			URL:  strings.TrimSpace(req.FileURL),
			Name: strings.TrimSpace(req.FileName),
		}
	}

	if err := s.store.PutMessage(ctx, msg); err != nil {
		return Message{}, errors.Wrap(errors.CodeStorageUnavailable, "put message", err)
	}
	return msg, nil
}

// resolveMentions keeps only structured mention ids that resolve to real
// users. Unknown ids are dropped; directory outages abort the save.
func (s *Service) resolveMentions(ctx context.Context, ids []string) ([]string, error) {
	candidates := canonicalMentions(ids)
	if len(candidates) == 0 {
		return nil, nil
	}
	resolved := make([]string, 0, len(candidates))
	for _, userID := range candidates {
		if _, err := s.directory.UserByID(ctx, userID); err != nil {
			if stderrors.Is(err, ErrNotFound) {
				continue
			}
			return nil, errors.Wrap(errors.CodeStorageUnavailable, "resolve mentioned user", err)
		}
		resolved = append(resolved, userID)
	}
	if len(resolved) == 0 {
		return nil, nil
	}
	return resolved, nil
}
