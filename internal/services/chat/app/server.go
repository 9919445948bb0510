package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/platform/id"
	"github.com/taskdeck/taskdeck/internal/platform/timeouts"
	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
	chatsqlite "github.com/taskdeck/taskdeck/internal/services/chat/storage/sqlite"
	dirsqlite "github.com/taskdeck/taskdeck/internal/services/directory/storage/sqlite"
	notifapp "github.com/taskdeck/taskdeck/internal/services/notifications/app"
)

// Config carries what the chat process needs at startup: a listen address,
// paths for the chat, directory, and notifications databases, and the trust
// anchors for handshake tokens. The directory and notifications services run
// in process, so there are no peer addresses to dial.
type Config struct {
	HTTPAddr            string
	ChatDBPath          string
	DirectoryDBPath     string
	NotificationsDBPath string
	TokenSecret         string
	TokenIssuer         string
	TokenAudience       string
	TextMentionMarkers  bool
	MentionQueueSize    int
	ReadHeaderTimeout   time.Duration
	ShutdownTimeout     time.Duration
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.HTTPAddr) == "":
		return errors.New("http listen address is required")
	case strings.TrimSpace(c.TokenSecret) == "":
		return errors.New("auth token secret is required")
	case strings.TrimSpace(c.TokenIssuer) == "":
		return errors.New("auth token issuer is required")
	case strings.TrimSpace(c.TokenAudience) == "":
		return errors.New("auth token audience is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = timeouts.Shutdown
	}
	return c
}

// Server owns the chat listener and every resource behind it. Closing the
// server closes the stores of the in-process directory and notifications
// services as well.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	chatStore       *chatsqlite.Store
	directoryStore  *dirsqlite.Store
	inbox           *notifapp.Inbox
	dispatcher      *mentionDispatcher
}

// NewServer opens the three backing stores and assembles the websocket
// gateway around them.
func NewServer(config Config) (*Server, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	chatStore, err := chatsqlite.Open(config.ChatDBPath)
	if err != nil {
		return nil, fmt.Errorf("open chat storage: %w", err)
	}
	directoryStore, err := dirsqlite.Open(config.DirectoryDBPath)
	if err != nil {
		_ = chatStore.Close()
		return nil, fmt.Errorf("open directory storage: %w", err)
	}
	inbox, err := notifapp.NewInbox(config.NotificationsDBPath)
	if err != nil {
		_ = directoryStore.Close()
		_ = chatStore.Close()
		return nil, fmt.Errorf("open notifications storage: %w", err)
	}

	directory := newDirectoryAdapter(directoryStore)
	verifier := newTokenVerifier([]byte(strings.TrimSpace(config.TokenSecret)),
		strings.TrimSpace(config.TokenIssuer), strings.TrimSpace(config.TokenAudience), nil)
	registry := newRoomRegistry()
	dispatcher := startMentionDispatcher(&inboxNotifier{inbox: inbox.Service()}, config.MentionQueueSize)

	gateway := &wsGateway{
		authorizer: newDirectoryAuthorizer(verifier, directory),
		chat:       chatdomain.NewService(newMessageStoreAdapter(chatStore), directory, nil, nil),
		registry:   registry,
		rooms:      newBroadcaster(registry),
		mentions:   newMentionExtractor(directory, config.TextMentionMarkers),
		dispatcher: dispatcher,
		clock:      time.Now,
		newConnID:  id.NewID,
	}

	addr := strings.TrimSpace(config.HTTPAddr)
	return &Server{
		addr:            addr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           newHandler(gateway),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		chatStore:      chatStore,
		directoryStore: directoryStore,
		inbox:          inbox,
		dispatcher:     dispatcher,
	}, nil
}

// Run brings up the chat process and blocks until ctx is canceled or the
// listener fails. The chat binary calls this once.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return err
	}
	defer server.Close()
	return server.Serve(ctx)
}

// Serve accepts connections until ctx is canceled, then drains open
// connections within the shutdown budget.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return errors.New("chat server is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	failed := make(chan error, 1)
	go func() { failed <- s.httpServer.ListenAndServe() }()
	log.Printf("chat: listening on %s", s.addr)

	select {
	case err := <-failed:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listener: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain http connections: %w", err)
	}
	return nil
}

// Close releases server resources. The mention dispatcher drains queued
// notifications before the stores shut down.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.dispatcher != nil {
		s.dispatcher.close()
	}
	if s.inbox != nil {
		if err := s.inbox.Close(); err != nil {
			log.Printf("chat: close notifications inbox: %v", err)
		}
	}
	if s.directoryStore != nil {
		if err := s.directoryStore.Close(); err != nil {
			log.Printf("chat: close directory storage: %v", err)
		}
	}
	if s.chatStore != nil {
		if err := s.chatStore.Close(); err != nil {
			log.Printf("chat: close chat storage: %v", err)
		}
	}
}
