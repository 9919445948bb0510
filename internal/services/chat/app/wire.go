package server

import (
	"encoding/json"
	"strings"
	"time"

	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
)

// Frame types carried in the WebSocket envelope.
const (
	frameTypeSend    = "chat.send"
	frameTypeMessage = "chat.message"
	frameTypeAck     = "chat.ack"
	frameTypeError   = "chat.error"
)

// wsFrame is the envelope for every frame in either direction.
type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// sendPayload is the client payload for chat.send frames.
type sendPayload struct {
	Content          string   `json:"content"`
	Type             string   `json:"type,omitempty"`
	FileURL          string   `json:"fileUrl,omitempty"`
	FileName         string   `json:"fileName,omitempty"`
	MentionedTaskID  string   `json:"mentionedTaskId,omitempty"`
	MentionedUserIDs []string `json:"mentionedUserIds,omitempty"`
}

// toRequest maps the wire payload to a domain request. The wire type token
// is resolved here so reserved kinds are rejected before validation.
func (p sendPayload) toRequest() (chatdomain.Request, error) {
	kind, err := chatdomain.ParseClientKind(p.Type)
	if err != nil {
		return chatdomain.Request{}, err
	}
	return chatdomain.Request{
		Content:          p.Content,
		Kind:             kind,
		FileURL:          p.FileURL,
		FileName:         p.FileName,
		MentionedTaskID:  p.MentionedTaskID,
		MentionedUserIDs: p.MentionedUserIDs,
	}, nil
}

// messageEnvelope wraps a room message for chat.message frames.
type messageEnvelope struct {
	Message wireMessage `json:"message"`
}

// wireMessage is the client view of one chat event. Sender ids stay
// server-side; clients see display names only.
type wireMessage struct {
	ID             string       `json:"id,omitempty"`
	Type           string       `json:"type"`
	Content        string       `json:"content"`
	SenderName     string       `json:"senderName"`
	FileURL        string       `json:"fileUrl,omitempty"`
	FileName       string       `json:"fileName,omitempty"`
	MentionedTask  *wireTaskRef `json:"mentionedTask,omitempty"`
	MentionedUsers []string     `json:"mentionedUsers,omitempty"`
	CreatedAt      string       `json:"createdAt"`
	Edited         bool         `json:"edited"`
	EditedAt       string       `json:"editedAt,omitempty"`
}

// wireTaskRef is the client view of a mentioned task.
type wireTaskRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ackEnvelope is the chat.ack payload confirming one persisted message.
type ackEnvelope struct {
	MessageID string `json:"messageId"`
	CreatedAt string `json:"createdAt"`
}

// wsErrorEnvelope is the chat.error payload.
type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

// wsError carries a machine-readable failure to the offending sender.
type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// toWireMessage converts a canonical message to its client shape.
// Timestamps are RFC 3339 in UTC.
func toWireMessage(msg chatdomain.Message) wireMessage {
	wm := wireMessage{
		ID:             msg.ID,
		Type:           string(msg.Kind),
		Content:        msg.Content,
		SenderName:     msg.SenderName,
		MentionedUsers: msg.MentionedUserIDs,
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339),
		Edited:         msg.Edited,
	}
	if msg.File != nil {
		wm.FileURL = msg.File.URL
		wm.FileName = msg.File.Name
	}
	if msg.Task != nil {
		wm.MentionedTask = &wireTaskRef{ID: msg.Task.ID, Title: msg.Task.Title}
	}
	if msg.EditedAt != nil {
		wm.EditedAt = msg.EditedAt.UTC().Format(time.RFC3339)
	}
	return wm
}

// encodeMessageFrame serializes one room message into a complete frame.
// Broadcast serialization happens exactly once per message; callers reuse
// the returned bytes for every member write.
func encodeMessageFrame(msg chatdomain.Message) ([]byte, error) {
	payload, err := json.Marshal(messageEnvelope{Message: toWireMessage(msg)})
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(wsFrame{Type: frameTypeMessage, Payload: payload})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// normalizeFrameType canonicalizes a client frame type token.
func normalizeFrameType(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
