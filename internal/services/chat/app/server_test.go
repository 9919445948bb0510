package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/websocket"

	dirstorage "github.com/taskdeck/taskdeck/internal/services/directory/storage"
	dirsqlite "github.com/taskdeck/taskdeck/internal/services/directory/storage/sqlite"
	notifdomain "github.com/taskdeck/taskdeck/internal/services/notifications/domain"
)

func testServerConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		HTTPAddr:            "127.0.0.1:0",
		ChatDBPath:          filepath.Join(dir, "chat.db"),
		DirectoryDBPath:     filepath.Join(dir, "directory.db"),
		NotificationsDBPath: filepath.Join(dir, "notifications.db"),
		TokenSecret:         testTokenSecret,
		TokenIssuer:         testTokenIssuer,
		TokenAudience:       testTokenAudience,
		TextMentionMarkers:  true,
	}
}

// mintLiveToken signs a token against the real clock for tests that exercise
// the fully wired server.
func mintLiveToken(t *testing.T, userID, displayName string) string {
	t.Helper()
	now := time.Now()
	return mintToken(t, testTokenSecret, identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    testTokenIssuer,
			Audience:  jwt.ClaimStrings{testTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		DisplayName: displayName,
	})
}

func TestNewServerValidatesConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing http addr", func(c *Config) { c.HTTPAddr = " " }},
		{"missing token secret", func(c *Config) { c.TokenSecret = "" }},
		{"missing token issuer", func(c *Config) { c.TokenIssuer = "" }},
		{"missing token audience", func(c *Config) { c.TokenAudience = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			config := testServerConfig(t)
			tc.mutate(&config)
			if _, err := NewServer(config); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

func TestServeNilServer(t *testing.T) {
	t.Parallel()

	var s *Server
	if err := s.Serve(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := NewServer(testServerConfig(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop on cancel")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "listen address is required") {
		t.Fatalf("error = %v, want missing listen address", err)
	}
}

func TestRunStartsAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, testServerConfig(t))
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestRoomEndpointRejectsNonGET(t *testing.T) {
	t.Parallel()

	server, err := NewServer(testServerConfig(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer server.Close()

	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ws/projects/42", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

// TestServerEndToEndExchange drives the fully wired server: real SQLite
// stores, JWT handshake, one message with a task reference and a mention,
// then verifies the persisted row and the mention intent.
func TestServerEndToEndExchange(t *testing.T) {
	t.Parallel()

	config := testServerConfig(t)
	seedDirectory(t, config.DirectoryDBPath)

	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(server.Close)

	ts := httptest.NewServer(server.httpServer.Handler)
	t.Cleanup(ts.Close)

	dialRoom := func(userID, displayName string) *websocket.Conn {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/projects/42?" + tokenQueryParam + "=" + mintLiveToken(t, userID, displayName)
		conn, err := websocket.Dial(wsURL, "", ts.URL)
		if err != nil {
			t.Fatalf("dial room as %s: %v", userID, err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		if joined := nextMessage(t, conn); joined.Type != "USER_JOINED" {
			t.Fatalf("first frame = %+v, want own USER_JOINED", joined)
		}
		return conn
	}

	connA := dialRoom("user-a", "Ava Torres")
	connB := dialRoom("user-b", "Ben Okafor")
	if joined := nextMessage(t, connA); joined.Type != "USER_JOINED" {
		t.Fatal("sender must observe the second member joining")
	}

	sendFrame(t, connA, map[string]any{
		"type":       "chat.send",
		"request_id": "req-e2e",
		"payload": map[string]any{
			"content":          "deploy fix please @ben",
			"mentionedTaskId":  "task-7",
			"mentionedUserIds": []string{"user-b"},
		},
	})

	if frame := nextFrame(t, connA); frame.Type != frameTypeAck {
		t.Fatalf("frame = %q, want ack", frame.Type)
	}
	msg := nextMessage(t, connB)
	if msg.ID == "" || msg.Type != "TEXT" || msg.Content != "deploy fix please @ben" {
		t.Fatalf("delivered message = %+v", msg)
	}
	if msg.SenderName != "Ava Torres" {
		t.Fatalf("sender name = %q, want Ava Torres", msg.SenderName)
	}
	if len(msg.MentionedUsers) != 1 || msg.MentionedUsers[0] != "user-b" {
		t.Fatalf("mentioned users = %v, want [user-b]", msg.MentionedUsers)
	}

	// The canonical row survives in the message store.
	record, err := server.chatStore.GetMessage(context.Background(), "42", msg.ID)
	if err != nil {
		t.Fatalf("load persisted message: %v", err)
	}
	if record.Content != "deploy fix please @ben" || record.SenderID != "user-a" {
		t.Fatalf("persisted record = %+v", record)
	}
	if record.TaskID != "task-7" || record.TaskTitle != "Fix login" {
		t.Fatalf("persisted task ref = %q/%q, want resolved task-7", record.TaskID, record.TaskTitle)
	}

	// The mention lands in Ben's inbox once the dispatcher drains.
	waitFor(t, "mention intent", func() bool {
		page, err := server.inbox.Service().ListInbox(context.Background(), notifdomain.ListInboxInput{RecipientUserID: "user-b"})
		return err == nil && len(page.Notifications) == 1
	})
	page, err := server.inbox.Service().ListInbox(context.Background(), notifdomain.ListInboxInput{RecipientUserID: "user-b"})
	if err != nil {
		t.Fatalf("list inbox: %v", err)
	}
	if page.Notifications[0].Topic != notifdomain.TopicChatMention {
		t.Fatalf("intent topic = %q, want %q", page.Notifications[0].Topic, notifdomain.TopicChatMention)
	}
}

// seedDirectory provisions the users, project, membership, and task rows the
// end-to-end exchange expects.
func seedDirectory(t *testing.T, dbPath string) {
	t.Helper()
	store, err := dirsqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open directory store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close directory store: %v", err)
		}
	}()

	ctx := context.Background()
	now := time.Now().UTC()
	users := []dirstorage.User{
		{ID: "user-a", Handle: "ava", DisplayName: "Ava Torres", CreatedAt: now},
		{ID: "user-b", Handle: "ben", DisplayName: "Ben Okafor", CreatedAt: now},
	}
	for _, user := range users {
		if err := store.PutUser(ctx, user); err != nil {
			t.Fatalf("seed user %s: %v", user.ID, err)
		}
	}
	if err := store.PutProject(ctx, dirstorage.Project{ID: "42", Name: "Launch", CreatedAt: now}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	for _, user := range users {
		if err := store.PutMember(ctx, dirstorage.Member{ProjectID: "42", UserID: user.ID, Role: "member", CreatedAt: now}); err != nil {
			t.Fatalf("seed membership %s: %v", user.ID, err)
		}
	}
	if err := store.PutTask(ctx, dirstorage.Task{ID: "task-7", ProjectID: "42", Number: 7, Title: "Fix login", Status: "open", CreatedAt: now}); err != nil {
		t.Fatalf("seed task: %v", err)
	}
}
