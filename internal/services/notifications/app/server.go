// Package server wires the notifications inbox service to its storage.
//
// Taskdeck services deliver notifications in process: producers hold an
// *Inbox and call the domain service directly instead of dialing a
// separate notifications server.
package server

import (
	"fmt"

	"github.com/taskdeck/taskdeck/internal/services/notifications/domain"
	"github.com/taskdeck/taskdeck/internal/services/notifications/storage"
	"github.com/taskdeck/taskdeck/internal/services/notifications/storage/sqlite"
)

// Inbox owns the notification inbox service and its backing store.
type Inbox struct {
	store   *sqlite.Store
	service *domain.Service
}

// NewInbox opens the notifications store at dbPath and wires the domain service.
func NewInbox(dbPath string) (*Inbox, error) {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open notifications storage: %w", err)
	}
	return &Inbox{
		store:   store,
		service: domain.NewService(newStoreAdapter(store), nil, nil),
	}, nil
}

// NewInboxWithStore wires the domain service over an existing store.
func NewInboxWithStore(store storage.NotificationStore) *Inbox {
	return &Inbox{service: domain.NewService(newStoreAdapter(store), nil, nil)}
}

// Service returns the inbox domain service.
func (i *Inbox) Service() *domain.Service {
	if i == nil {
		return nil
	}
	return i.service
}

// Close releases the backing store when this inbox owns one.
func (i *Inbox) Close() error {
	if i == nil || i.store == nil {
		return nil
	}
	return i.store.Close()
}
