// Package chat parses chat command flags and composes the realtime
// transport entrypoint.
package chat

import (
	"context"
	"flag"

	entrypoint "github.com/taskdeck/taskdeck/internal/platform/cmd"
	server "github.com/taskdeck/taskdeck/internal/services/chat/app"
)

// Config is the chat binary's startup configuration, filled from TASKDECK_*
// environment variables with flag overrides on top.
type Config struct {
	HTTPAddr            string `env:"TASKDECK_CHAT_HTTP_ADDR"             envDefault:":8085"`
	ChatDBPath          string `env:"TASKDECK_CHAT_DB_PATH"               envDefault:"chat.db"`
	DirectoryDBPath     string `env:"TASKDECK_DIRECTORY_DB_PATH"          envDefault:"directory.db"`
	NotificationsDBPath string `env:"TASKDECK_NOTIFICATIONS_DB_PATH"      envDefault:"notifications.db"`
	TokenSecret         string `env:"TASKDECK_AUTH_TOKEN_SECRET"`
	TokenIssuer         string `env:"TASKDECK_AUTH_TOKEN_ISSUER"          envDefault:"taskdeck-auth"`
	TokenAudience       string `env:"TASKDECK_AUTH_TOKEN_AUDIENCE"        envDefault:"taskdeck-chat"`
	TextMentionMarkers  bool   `env:"TASKDECK_CHAT_TEXT_MENTION_MARKERS"  envDefault:"true"`
	MentionQueueSize    int    `env:"TASKDECK_CHAT_MENTION_QUEUE_SIZE"    envDefault:"128"`
}

// ParseConfig resolves the chat configuration from the environment and args.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	err := entrypoint.LoadConfig(fs, args, &cfg, func() {
		fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat HTTP listen address")
		fs.StringVar(&cfg.ChatDBPath, "chat-db", cfg.ChatDBPath, "chat message SQLite database path")
		fs.StringVar(&cfg.DirectoryDBPath, "directory-db", cfg.DirectoryDBPath, "directory SQLite database path")
		fs.StringVar(&cfg.NotificationsDBPath, "notifications-db", cfg.NotificationsDBPath, "notifications SQLite database path")
		fs.StringVar(&cfg.TokenSecret, "token-secret", cfg.TokenSecret, "HMAC secret for handshake access tokens")
		fs.StringVar(&cfg.TokenIssuer, "token-issuer", cfg.TokenIssuer, "required access token issuer")
		fs.StringVar(&cfg.TokenAudience, "token-audience", cfg.TokenAudience, "required access token audience")
		fs.BoolVar(&cfg.TextMentionMarkers, "text-mention-markers", cfg.TextMentionMarkers, "scan message text for @handle and #number markers")
		fs.IntVar(&cfg.MentionQueueSize, "mention-queue-size", cfg.MentionQueueSize, "mention dispatcher queue capacity")
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the chat transport under the process entrypoint, which owns
// telemetry setup and flush.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunService(ctx, entrypoint.ServiceChat, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:            cfg.HTTPAddr,
			ChatDBPath:          cfg.ChatDBPath,
			DirectoryDBPath:     cfg.DirectoryDBPath,
			NotificationsDBPath: cfg.NotificationsDBPath,
			TokenSecret:         cfg.TokenSecret,
			TokenIssuer:         cfg.TokenIssuer,
			TokenAudience:       cfg.TokenAudience,
			TextMentionMarkers:  cfg.TextMentionMarkers,
			MentionQueueSize:    cfg.MentionQueueSize,
		})
	})
}
