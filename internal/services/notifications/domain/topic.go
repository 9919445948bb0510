package domain

import (
	"encoding/json"
	"strings"
)

const (
	// TopicChatMention is the canonical topic for chat mention notifications.
	TopicChatMention = "chat.mention"
	// TopicTaskAssigned is the canonical topic for task assignment notifications.
	TopicTaskAssigned = "task.assigned"
	// TopicProjectInvite is the canonical topic for project invitation notifications.
	TopicProjectInvite = "project.invite"
)

// NormalizeTopic normalizes a producer-provided topic token.
func NormalizeTopic(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// MentionPayload is the payload schema stored for TopicChatMention items.
type MentionPayload struct {
	MessageID   string `json:"message_id"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name,omitempty"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	Preview     string `json:"preview,omitempty"`
	TaskID      string `json:"task_id,omitempty"`
	TaskTitle   string `json:"task_title,omitempty"`
}

const mentionPreviewMaxRunes = 140

// NewMentionPayload builds a mention payload with the message body trimmed to
// a short inbox preview.
func NewMentionPayload(messageID, projectID, projectName, senderID, senderName, body string) MentionPayload {
	preview := strings.TrimSpace(body)
	if runes := []rune(preview); len(runes) > mentionPreviewMaxRunes {
		preview = string(runes[:mentionPreviewMaxRunes])
	}
	return MentionPayload{
		MessageID:   strings.TrimSpace(messageID),
		ProjectID:   strings.TrimSpace(projectID),
		ProjectName: strings.TrimSpace(projectName),
		SenderID:    strings.TrimSpace(senderID),
		SenderName:  strings.TrimSpace(senderName),
		Preview:     preview,
	}
}

// Encode returns the payload serialized for storage.
func (p MentionPayload) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// MentionDedupeKey returns the dedupe key that keeps one mention notification
// per message regardless of how many mention sources matched.
func MentionDedupeKey(messageID string) string {
	return TopicChatMention + ":" + strings.TrimSpace(messageID)
}
