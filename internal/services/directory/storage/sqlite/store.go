// Package sqlite provides a SQLite-backed directory storage implementation.
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
	"github.com/taskdeck/taskdeck/internal/services/directory/storage"
	"github.com/taskdeck/taskdeck/internal/services/directory/storage/sqlite/migrations"
)

// Store persists directory records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a directory SQLite store at the provided path and applies
// embedded migrations.
func Open(path string) (*Store, error) {
	sqlDB, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
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

// PutUser upserts one user account. The handle must stay unique across
// other users.
func (s *Store) PutUser(ctx context.Context, user storage.User) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	userID := strings.TrimSpace(user.ID)
	handle := strings.TrimSpace(user.Handle)
	displayName := strings.TrimSpace(user.DisplayName)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if handle == "" {
		return fmt.Errorf("user handle is required")
	}
	if displayName == "" {
		return fmt.Errorf("user display name is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, handle, display_name, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   handle = excluded.handle,
		   display_name = excluded.display_name`,
		userID,
		handle,
		displayName,
		toMillis(user.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser returns one user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (storage.User, error) {
	if err := s.guard(ctx); err != nil {
		return storage.User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, handle, display_name, created_at FROM users WHERE id = ?`,
		userID,
	)
	return scanUser(row.Scan)
}

// GetUserByHandle returns one user by unique handle.
func (s *Store) GetUserByHandle(ctx context.Context, handle string) (storage.User, error) {
	if err := s.guard(ctx); err != nil {
		return storage.User{}, err
	}
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return storage.User{}, fmt.Errorf("user handle is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, handle, display_name, created_at FROM users WHERE handle = ?`,
		handle,
	)
	return scanUser(row.Scan)
}

// PutProject upserts one project.
func (s *Store) PutProject(ctx context.Context, project storage.Project) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	projectID := strings.TrimSpace(project.ID)
	name := strings.TrimSpace(project.Name)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	if name == "" {
		return fmt.Errorf("project name is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO projects (id, name, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name`,
		projectID,
		name,
		toMillis(project.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	return nil
}

// GetProject returns one project by id.
func (s *Store) GetProject(ctx context.Context, projectID string) (storage.Project, error) {
	if err := s.guard(ctx); err != nil {
		return storage.Project{}, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return storage.Project{}, fmt.Errorf("project id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, created_at FROM projects WHERE id = ?`,
		projectID,
	)
	var project storage.Project
	var createdAt int64
	if err := row.Scan(&project.ID, &project.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Project{}, storage.ErrNotFound
		}
		return storage.Project{}, fmt.Errorf("get project: %w", err)
	}
	project.CreatedAt = fromMillis(createdAt)
	return project, nil
}

// PutMember upserts one project membership.
func (s *Store) PutMember(ctx context.Context, member storage.Member) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	projectID := strings.TrimSpace(member.ProjectID)
	userID := strings.TrimSpace(member.UserID)
	role := strings.TrimSpace(member.Role)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if role == "" {
		role = "member"
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO project_members (project_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id, user_id) DO UPDATE SET
		   role = excluded.role`,
		projectID,
		userID,
		role,
		toMillis(member.CreatedAt),
	)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("put member: %w", err)
	}
	return nil
}

// IsMember reports whether the user belongs to the project.
func (s *Store) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	if err := s.guard(ctx); err != nil {
		return false, err
	}
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	if projectID == "" {
		return false, fmt.Errorf("project id is required")
	}
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT 1 FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID,
		userID,
	)
	var found int
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check member: %w", err)
	}
	return true, nil
}

// ListMembers returns all memberships for a project ordered by user id.
func (s *Store) ListMembers(ctx context.Context, projectID string) ([]storage.Member, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT project_id, user_id, role, created_at
		 FROM project_members
		 WHERE project_id = ?
		 ORDER BY user_id ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []storage.Member
	for rows.Next() {
		var member storage.Member
		var createdAt int64
		if err := rows.Scan(&member.ProjectID, &member.UserID, &member.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		member.CreatedAt = fromMillis(createdAt)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member rows: %w", err)
	}
	return members, nil
}

// PutTask upserts one task. The per-project number must stay unique.
func (s *Store) PutTask(ctx context.Context, task storage.Task) error {
	if err := s.guard(ctx); err != nil {
		return err
	}
	taskID := strings.TrimSpace(task.ID)
	projectID := strings.TrimSpace(task.ProjectID)
	title := strings.TrimSpace(task.Title)
	status := strings.TrimSpace(task.Status)
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	if task.Number <= 0 {
		return fmt.Errorf("task number must be greater than zero")
	}
	if title == "" {
		return fmt.Errorf("task title is required")
	}
	if status == "" {
		status = "open"
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO tasks (id, project_id, number, title, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   status = excluded.status`,
		taskID,
		projectID,
		task.Number,
		title,
		status,
		toMillis(task.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		if isForeignKeyConstraintError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// GetTask returns one task by id scoped to a project.
func (s *Store) GetTask(ctx context.Context, projectID, taskID string) (storage.Task, error) {
	if err := s.guard(ctx); err != nil {
		return storage.Task{}, err
	}
	projectID = strings.TrimSpace(projectID)
	taskID = strings.TrimSpace(taskID)
	if projectID == "" {
		return storage.Task{}, fmt.Errorf("project id is required")
	}
	if taskID == "" {
		return storage.Task{}, fmt.Errorf("task id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, project_id, number, title, status, created_at
		 FROM tasks
		 WHERE project_id = ? AND id = ?`,
		projectID,
		taskID,
	)
	return scanTask(row.Scan)
}

// GetTaskByNumber returns one task by its per-project number.
func (s *Store) GetTaskByNumber(ctx context.Context, projectID string, number int) (storage.Task, error) {
	if err := s.guard(ctx); err != nil {
		return storage.Task{}, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return storage.Task{}, fmt.Errorf("project id is required")
	}
	if number <= 0 {
		return storage.Task{}, fmt.Errorf("task number must be greater than zero")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, project_id, number, title, status, created_at
		 FROM tasks
		 WHERE project_id = ? AND number = ?`,
		projectID,
		number,
	)
	return scanTask(row.Scan)
}

type scanner func(dest ...any) error

func scanUser(scan scanner) (storage.User, error) {
	var user storage.User
	var createdAt int64
	if err := scan(&user.ID, &user.Handle, &user.DisplayName, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.User{}, storage.ErrNotFound
		}
		return storage.User{}, fmt.Errorf("scan user row: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return user, nil
}

func scanTask(scan scanner) (storage.Task, error) {
	var task storage.Task
	var createdAt int64
	if err := scan(&task.ID, &task.ProjectID, &task.Number, &task.Title, &task.Status, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Task{}, storage.ErrNotFound
		}
		return storage.Task{}, fmt.Errorf("scan task row: %w", err)
	}
	task.CreatedAt = fromMillis(createdAt)
	return task, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "unique constraint failed")
}

func isForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "foreign key constraint failed")
}

var _ storage.Store = (*Store)(nil)
