// Package storage defines persistence contracts for directory records:
// the users, projects, memberships, and tasks the chat service resolves
// against.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested directory record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a uniqueness constraint was violated.
var ErrConflict = errors.New("record already exists")

// User stores one account visible to chat and notifications.
type User struct {
	ID          string
	Handle      string
	DisplayName string
	CreatedAt   time.Time
}

// Project stores one project whose members share a chat room.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Member stores one project membership.
type Member struct {
	ProjectID string
	UserID    string
	Role      string
	CreatedAt time.Time
}

// Task stores one unit of work inside a project. Number is the short
// per-project reference used in chat text markers.
type Task struct {
	ID        string
	ProjectID string
	Number    int
	Title     string
	Status    string
	CreatedAt time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	PutUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string) (User, error)
	GetUserByHandle(ctx context.Context, handle string) (User, error)
}

// ProjectStore persists projects and their memberships.
type ProjectStore interface {
	PutProject(ctx context.Context, project Project) error
	GetProject(ctx context.Context, projectID string) (Project, error)
	PutMember(ctx context.Context, member Member) error
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
	ListMembers(ctx context.Context, projectID string) ([]Member, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	PutTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, projectID, taskID string) (Task, error)
	GetTaskByNumber(ctx context.Context, projectID string, number int) (Task, error)
}

// Store combines all directory persistence contracts.
type Store interface {
	UserStore
	ProjectStore
	TaskStore
}
