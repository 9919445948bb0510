package server

import (
	"context"
	"errors"

	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
	dirstorage "github.com/taskdeck/taskdeck/internal/services/directory/storage"
)

// errDirectoryNotConfigured reports a lookup against missing directory wiring.
var errDirectoryNotConfigured = errors.New("directory store is not configured")

// directoryAdapter exposes directory storage through the lookup surfaces
// chat needs: message enrichment and handshake authorization.
type directoryAdapter struct {
	store dirstorage.Store
}

func newDirectoryAdapter(store dirstorage.Store) *directoryAdapter {
	return &directoryAdapter{store: store}
}

func (a *directoryAdapter) UserByID(ctx context.Context, userID string) (chatdomain.UserRef, error) {
	if a == nil || a.store == nil {
		return chatdomain.UserRef{}, errDirectoryNotConfigured
	}
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return chatdomain.UserRef{}, mapDirectoryError(err)
	}
	return toUserRef(user), nil
}

func (a *directoryAdapter) UserByHandle(ctx context.Context, handle string) (chatdomain.UserRef, error) {
	if a == nil || a.store == nil {
		return chatdomain.UserRef{}, errDirectoryNotConfigured
	}
	user, err := a.store.GetUserByHandle(ctx, handle)
	if err != nil {
		return chatdomain.UserRef{}, mapDirectoryError(err)
	}
	return toUserRef(user), nil
}

func (a *directoryAdapter) TaskByID(ctx context.Context, projectID, taskID string) (chatdomain.TaskRef, error) {
	if a == nil || a.store == nil {
		return chatdomain.TaskRef{}, errDirectoryNotConfigured
	}
	task, err := a.store.GetTask(ctx, projectID, taskID)
	if err != nil {
		return chatdomain.TaskRef{}, mapDirectoryError(err)
	}
	return chatdomain.TaskRef{ID: task.ID, Title: task.Title}, nil
}

func (a *directoryAdapter) TaskByNumber(ctx context.Context, projectID string, number int) (chatdomain.TaskRef, error) {
	if a == nil || a.store == nil {
		return chatdomain.TaskRef{}, errDirectoryNotConfigured
	}
	task, err := a.store.GetTaskByNumber(ctx, projectID, number)
	if err != nil {
		return chatdomain.TaskRef{}, mapDirectoryError(err)
	}
	return chatdomain.TaskRef{ID: task.ID, Title: task.Title}, nil
}

func (a *directoryAdapter) ProjectByID(ctx context.Context, projectID string) (chatdomain.ProjectRef, error) {
	if a == nil || a.store == nil {
		return chatdomain.ProjectRef{}, errDirectoryNotConfigured
	}
	project, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return chatdomain.ProjectRef{}, mapDirectoryError(err)
	}
	return chatdomain.ProjectRef{ID: project.ID, Name: project.Name}, nil
}

func (a *directoryAdapter) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	if a == nil || a.store == nil {
		return false, errDirectoryNotConfigured
	}
	return a.store.IsMember(ctx, projectID, userID)
}

func toUserRef(user dirstorage.User) chatdomain.UserRef {
	return chatdomain.UserRef{
		ID:          user.ID,
		Handle:      user.Handle,
		DisplayName: user.DisplayName,
	}
}

// mapDirectoryError folds storage sentinels into the domain sentinel chat
// resolves against.
func mapDirectoryError(err error) error {
	if errors.Is(err, dirstorage.ErrNotFound) {
		return chatdomain.ErrNotFound
	}
	return err
}

var (
	_ chatdomain.Directory = (*directoryAdapter)(nil)
	_ identityDirectory    = (*directoryAdapter)(nil)
)
