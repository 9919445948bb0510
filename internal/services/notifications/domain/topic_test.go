package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeTopic(t *testing.T) {
	t.Parallel()

	if got := NormalizeTopic("  CHAT.MENTION  "); got != TopicChatMention {
		t.Fatalf("NormalizeTopic = %q, want %q", got, TopicChatMention)
	}
	if got := NormalizeTopic("Project.Invite"); got != TopicProjectInvite {
		t.Fatalf("NormalizeTopic = %q, want %q", got, TopicProjectInvite)
	}
}

func TestNewMentionPayloadTrimsPreview(t *testing.T) {
	t.Parallel()

	body := "  " + strings.Repeat("x", 200)
	payload := NewMentionPayload("msg-1", "proj-42", "Atlas Launch", "user-a", "Ava Torres", body)

	if payload.MessageID != "msg-1" {
		t.Fatalf("MessageID = %q, want %q", payload.MessageID, "msg-1")
	}
	if got := len([]rune(payload.Preview)); got != 140 {
		t.Fatalf("preview length = %d, want 140", got)
	}
}

func TestMentionPayloadEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	payload := NewMentionPayload("msg-1", "proj-42", "Atlas Launch", "user-a", "Ava Torres", "ping @brook")
	raw, err := payload.Encode()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	var decoded MentionPayload
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded != payload {
		t.Fatalf("decoded payload = %+v, want %+v", decoded, payload)
	}
}

func TestMentionDedupeKey(t *testing.T) {
	t.Parallel()

	if got := MentionDedupeKey(" msg-1 "); got != "chat.mention:msg-1" {
		t.Fatalf("MentionDedupeKey = %q, want %q", got, "chat.mention:msg-1")
	}
}
