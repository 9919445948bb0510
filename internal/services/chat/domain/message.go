// Package domain holds the chat message model and the save workflow the
// transport layer delegates to.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taskdeck/taskdeck/internal/platform/errors"
)

// MessageKind tags one chat event with its payload shape.
type MessageKind string

const (
	// KindText is a plain text message authored by a member.
	KindText MessageKind = "TEXT"
	// KindFile is a shared file reference with an optional caption.
	KindFile MessageKind = "FILE"
	// KindTaskUpdate is a member-authored note about task activity.
	KindTaskUpdate MessageKind = "TASK_UPDATE"
	// KindUserJoined announces a member joining the room. Synthesized.
	KindUserJoined MessageKind = "USER_JOINED"
	// KindUserLeft announces a member leaving the room. Synthesized.
	KindUserLeft MessageKind = "USER_LEFT"
	// KindSystem is a server-authored announcement. Synthesized.
	KindSystem MessageKind = "SYSTEM"
)

// MaxContentRunes caps author-provided message content.
const MaxContentRunes = 2000

// Synthesized reports whether the kind is server-authored and therefore
// never accepted from clients and never persisted.
func (k MessageKind) Synthesized() bool {
	switch k {
	case KindUserJoined, KindUserLeft, KindSystem:
		return true
	default:
		return false
	}
}

// ParseClientKind maps a wire type token to a client-sendable kind.
// An empty token defaults to TEXT.
func ParseClientKind(raw string) (MessageKind, error) {
	token := strings.ToUpper(strings.TrimSpace(raw))
	switch MessageKind(token) {
	case "":
		return KindText, nil
	case KindText, KindFile, KindTaskUpdate:
		return MessageKind(token), nil
	case KindUserJoined, KindUserLeft, KindSystem:
		return "", errors.New(errors.CodeMessageKindReserved, fmt.Sprintf("message kind %s is server-assigned", token))
	default:
		return "", errors.New(errors.CodeMessageKindInvalid, fmt.Sprintf("unknown message kind %q", raw))
	}
}

// FileRef points at one shared file.
type FileRef struct {
	URL  string
	Name string
}

// TaskRef points at one task mentioned by a message.
type TaskRef struct {
	ID    string
	Title string
}

// UserRef is the directory view of one user needed by chat.
type UserRef struct {
	ID          string
	Handle      string
	DisplayName string
}

// ProjectRef is the directory view of one project needed by chat.
type ProjectRef struct {
	ID   string
	Name string
}

// Message is one chat event in its canonical form. Instances are immutable
// once built; an edit produces a new value.
type Message struct {
	ID               string // empty until persisted
	ProjectID        string
	SenderID         string
	SenderName       string
	Kind             MessageKind
	Content          string
	File             *FileRef
	Task             *TaskRef
	MentionedUserIDs []string
	CreatedAt        time.Time
	Edited           bool
	EditedAt         *time.Time
}

// Request is one sender-authored message before canonicalization.
type Request struct {
	Content          string
	Kind             MessageKind
	FileURL          string
	FileName         string
	MentionedTaskID  string
	MentionedUserIDs []string
}

// Validate enforces kind/field constraints before the request reaches
// persistence or any broadcast.
func (r Request) Validate() error {
	switch r.Kind {
	case KindText, KindTaskUpdate:
		if strings.TrimSpace(r.Content) == "" {
			return errors.New(errors.CodeMessageContentEmpty, "message content is required")
		}
		if strings.TrimSpace(r.FileURL) != "" || strings.TrimSpace(r.FileName) != "" {
			return errors.New(errors.CodeMessageFileRefForbidden, "file reference is only valid for FILE messages")
		}
	case KindFile:
		if strings.TrimSpace(r.FileURL) == "" || strings.TrimSpace(r.FileName) == "" {
			return errors.New(errors.CodeMessageFileRefRequired, "FILE messages require fileUrl and fileName")
		}
	case KindUserJoined, KindUserLeft, KindSystem:
		return errors.New(errors.CodeMessageKindReserved, fmt.Sprintf("message kind %s is server-assigned", r.Kind))
	default:
		return errors.New(errors.CodeMessageKindInvalid, fmt.Sprintf("unknown message kind %q", string(r.Kind)))
	}
	if utf8.RuneCountInString(r.Content) > MaxContentRunes {
		return errors.New(errors.CodeMessageContentTooLong, fmt.Sprintf("message content exceeds %d characters", MaxContentRunes))
	}
	return nil
}

// NewUserJoined builds the synthesized join announcement for one member.
// It carries no persisted identifier.
func NewUserJoined(projectID, projectName string, user UserRef, at time.Time) Message {
	return newPresence(KindUserJoined, "joined", projectID, projectName, user, at)
}

// NewUserLeft builds the synthesized leave announcement for one member.
func NewUserLeft(projectID, projectName string, user UserRef, at time.Time) Message {
	return newPresence(KindUserLeft, "left", projectID, projectName, user, at)
}

func newPresence(kind MessageKind, verb, projectID, projectName string, user UserRef, at time.Time) Message {
	content := fmt.Sprintf("%s %s", user.DisplayName, verb)
	if strings.TrimSpace(projectName) != "" {
		content = fmt.Sprintf("%s %s", content, projectName)
	}
	return Message{
		ProjectID:  projectID,
		SenderID:   user.ID,
		SenderName: user.DisplayName,
		Kind:       kind,
		Content:    content,
		CreatedAt:  at.UTC(),
	}
}

// canonicalMentions dedupes, trims, and sorts a mentioned-user id set.
func canonicalMentions(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
