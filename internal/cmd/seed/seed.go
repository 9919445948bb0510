// Package seed provisions local development fixtures: demo users, a demo
// project with members and tasks, and optionally signed dev tokens for
// connecting chat clients.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	entrypoint "github.com/taskdeck/taskdeck/internal/platform/cmd"
	dirstorage "github.com/taskdeck/taskdeck/internal/services/directory/storage"
	dirsqlite "github.com/taskdeck/taskdeck/internal/services/directory/storage/sqlite"
)

// Config is the seed CLI's configuration, filled from TASKDECK_* environment
// variables with flag overrides on top.
type Config struct {
	DirectoryDBPath string        `env:"TASKDECK_DIRECTORY_DB_PATH"   envDefault:"directory.db"`
	ProjectID       string        `env:"TASKDECK_SEED_PROJECT_ID"     envDefault:"demo"`
	PrintTokens     bool          `env:"TASKDECK_SEED_PRINT_TOKENS"`
	TokenSecret     string        `env:"TASKDECK_AUTH_TOKEN_SECRET"`
	TokenIssuer     string        `env:"TASKDECK_AUTH_TOKEN_ISSUER"   envDefault:"taskdeck-auth"`
	TokenAudience   string        `env:"TASKDECK_AUTH_TOKEN_AUDIENCE" envDefault:"taskdeck-chat"`
	TokenTTL        time.Duration `env:"TASKDECK_SEED_TOKEN_TTL"      envDefault:"24h"`
}

// ParseConfig resolves the seed configuration from the environment and args.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.LoadConfig(fs, args, &cfg, func() {
		fs.StringVar(&cfg.DirectoryDBPath, "directory-db", cfg.DirectoryDBPath, "directory SQLite database path")
		fs.StringVar(&cfg.ProjectID, "project", cfg.ProjectID, "project id to seed")
		fs.BoolVar(&cfg.PrintTokens, "print-tokens", cfg.PrintTokens, "print signed dev tokens for the seeded users")
		fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "HMAC secret for dev tokens")
		fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "dev token lifetime")
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fixtures is the demo data set one seed run upserts.
type fixtures struct {
	project dirstorage.Project
	users   []dirstorage.User
	tasks   []dirstorage.Task
}

func demoFixtures(projectID string, now time.Time) fixtures {
	return fixtures{
		project: dirstorage.Project{ID: projectID, Name: "Demo Launch", CreatedAt: now},
		users: []dirstorage.User{
			{ID: "user-ava", Handle: "ava", DisplayName: "Ava Torres", CreatedAt: now},
			{ID: "user-ben", Handle: "ben", DisplayName: "Ben Okafor", CreatedAt: now},
			{ID: "user-cleo", Handle: "cleo", DisplayName: "Cleo Martins", CreatedAt: now},
		},
		tasks: []dirstorage.Task{
			{ID: "task-ci", ProjectID: projectID, Number: 1, Title: "Set up CI pipeline", Status: "open", CreatedAt: now},
			{ID: "task-onboarding", ProjectID: projectID, Number: 2, Title: "Design onboarding flow", Status: "open", CreatedAt: now},
			{ID: "task-login", ProjectID: projectID, Number: 3, Title: "Fix login redirect", Status: "in_progress", CreatedAt: now},
		},
	}
}

// Run upserts the demo fixtures into the directory database. Reruns are
// safe; every write is an upsert.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return errors.New("project id is required")
	}
	if cfg.PrintTokens && strings.TrimSpace(cfg.TokenSecret) == "" {
		return errors.New("token secret is required to print dev tokens")
	}

	store, err := dirsqlite.Open(cfg.DirectoryDBPath)
	if err != nil {
		return fmt.Errorf("open directory storage: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(out, "close directory storage: %v\n", closeErr)
		}
	}()

	data := demoFixtures(projectID, time.Now().UTC())
	for _, user := range data.users {
		if err := upsertUser(ctx, store, user); err != nil {
			return err
		}
	}
	if err := store.PutProject(ctx, data.project); err != nil {
		return fmt.Errorf("seed project %s: %w", data.project.ID, err)
	}
	for _, user := range data.users {
		member := dirstorage.Member{ProjectID: projectID, UserID: user.ID, Role: "member", CreatedAt: data.project.CreatedAt}
		if err := store.PutMember(ctx, member); err != nil {
			return fmt.Errorf("seed membership %s: %w", user.ID, err)
		}
	}
	for _, task := range data.tasks {
		if err := upsertTask(ctx, store, task); err != nil {
			return err
		}
	}

	members, err := store.ListMembers(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list project members: %w", err)
	}
	fmt.Fprintf(out, "seeded project %q with %d members and %d tasks (%s)\n",
		projectID, len(members), len(data.tasks), cfg.DirectoryDBPath)

	if !cfg.PrintTokens {
		return nil
	}
	fmt.Fprintf(out, "dev tokens (ttl %s):\n", cfg.TokenTTL)
	for _, user := range data.users {
		token, err := mintDevToken(cfg, user)
		if err != nil {
			return fmt.Errorf("mint token for %s: %w", user.ID, err)
		}
		fmt.Fprintf(out, "  %-10s %s\n", user.Handle, token)
	}
	return nil
}

// upsertUser tolerates handle conflicts from earlier seeds of other projects.
func upsertUser(ctx context.Context, store *dirsqlite.Store, user dirstorage.User) error {
	err := store.PutUser(ctx, user)
	if err == nil || errors.Is(err, dirstorage.ErrConflict) {
		return nil
	}
	return fmt.Errorf("seed user %s: %w", user.ID, err)
}

func upsertTask(ctx context.Context, store *dirsqlite.Store, task dirstorage.Task) error {
	err := store.PutTask(ctx, task)
	if err == nil || errors.Is(err, dirstorage.ErrConflict) {
		return nil
	}
	return fmt.Errorf("seed task %s: %w", task.ID, err)
}

// mintDevToken signs a short-lived HS256 token the chat handshake accepts.
func mintDevToken(cfg Config, user dirstorage.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"name": user.DisplayName,
		"iss":  cfg.TokenIssuer,
		"aud":  cfg.TokenAudience,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.TokenSecret))
}
