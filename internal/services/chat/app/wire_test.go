package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	apperrors "github.com/taskdeck/taskdeck/internal/platform/errors"
	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
)

func TestToWireMessageMapsCanonicalFields(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2026, 8, 20, 16, 30, 0, 0, time.UTC)
	editedAt := createdAt.Add(5 * time.Minute)
	msg := chatdomain.Message{
		ID:               "msg-1",
		ProjectID:        "proj-1",
		SenderID:         "user-a",
		SenderName:       "Ava Torres",
		Kind:             chatdomain.KindText,
		Content:          "hello room",
		Task:             &chatdomain.TaskRef{ID: "task-1", Title: "Ship the beta"},
		MentionedUserIDs: []string{"user-b"},
		CreatedAt:        createdAt,
		Edited:           true,
		EditedAt:         &editedAt,
	}

	wire := toWireMessage(msg)
	if wire.ID != "msg-1" || wire.Type != "TEXT" || wire.SenderName != "Ava Torres" {
		t.Fatalf("wire message = %+v", wire)
	}
	if wire.CreatedAt != "2026-08-20T16:30:00Z" {
		t.Fatalf("createdAt = %q, want RFC 3339 UTC", wire.CreatedAt)
	}
	if !wire.Edited || wire.EditedAt != "2026-08-20T16:35:00Z" {
		t.Fatalf("edit state = (%v, %q), want round-tripped", wire.Edited, wire.EditedAt)
	}
	if wire.MentionedTask == nil || wire.MentionedTask.Title != "Ship the beta" {
		t.Fatalf("mentioned task = %+v", wire.MentionedTask)
	}
	if len(wire.MentionedUsers) != 1 || wire.MentionedUsers[0] != "user-b" {
		t.Fatalf("mentioned users = %v", wire.MentionedUsers)
	}
}

func TestToWireMessageOmitsAbsentRefs(t *testing.T) {
	t.Parallel()

	msg := chatdomain.Message{
		ID:         "msg-1",
		SenderName: "Ava Torres",
		Kind:       chatdomain.KindText,
		Content:    "plain",
		CreatedAt:  time.Date(2026, 8, 20, 16, 30, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(toWireMessage(msg))
	if err != nil {
		t.Fatalf("marshal wire message: %v", err)
	}
	for _, field := range []string{"fileUrl", "fileName", "mentionedTask", "editedAt"} {
		if strings.Contains(string(raw), field) {
			t.Fatalf("wire json %s must omit %q", raw, field)
		}
	}
}

func TestToWireMessageCarriesFileRef(t *testing.T) {
	t.Parallel()

	msg := chatdomain.Message{
		ID:         "msg-1",
		SenderName: "Ava Torres",
		Kind:       chatdomain.KindFile,
		Content:    "final deck",
		File:       &chatdomain.FileRef{URL: "https://files.test/deck.pdf", Name: "deck.pdf"},
		CreatedAt:  time.Date(2026, 8, 20, 16, 30, 0, 0, time.UTC),
	}

	wire := toWireMessage(msg)
	if wire.FileURL != "https://files.test/deck.pdf" || wire.FileName != "deck.pdf" {
		t.Fatalf("file ref = (%q, %q)", wire.FileURL, wire.FileName)
	}
}

func TestEncodeMessageFrameWrapsEnvelope(t *testing.T) {
	t.Parallel()

	frameBytes, err := encodeMessageFrame(testMessage("proj-1"))
	if err != nil {
		t.Fatalf("encode message frame: %v", err)
	}

	var frame wsFrame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		t.Fatalf("decode frame envelope: %v", err)
	}
	if frame.Type != frameTypeMessage {
		t.Fatalf("frame type = %q, want %q", frame.Type, frameTypeMessage)
	}
	var envelope messageEnvelope
	if err := json.Unmarshal(frame.Payload, &envelope); err != nil {
		t.Fatalf("decode message payload: %v", err)
	}
	if envelope.Message.Content != "hello room" {
		t.Fatalf("message content = %q", envelope.Message.Content)
	}
}

func TestSendPayloadDefaultsToText(t *testing.T) {
	t.Parallel()

	req, err := sendPayload{Content: "hello"}.toRequest()
	if err != nil {
		t.Fatalf("to request: %v", err)
	}
	if req.Kind != chatdomain.KindText {
		t.Fatalf("kind = %q, want TEXT default", req.Kind)
	}
}

func TestSendPayloadRejectsReservedKinds(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{"USER_JOINED", "USER_LEFT", "SYSTEM"} {
		_, err := sendPayload{Content: "hi", Type: kind}.toRequest()
		if err == nil {
			t.Fatalf("kind %s must be rejected", kind)
		}
		if got := apperrors.CodeOf(err); got != apperrors.CodeMessageKindReserved {
			t.Fatalf("error code for %s = %q, want %q", kind, got, apperrors.CodeMessageKindReserved)
		}
	}
}

func TestNormalizeFrameType(t *testing.T) {
	t.Parallel()

	if got := normalizeFrameType("  Chat.Send "); got != frameTypeSend {
		t.Fatalf("normalized type = %q, want %q", got, frameTypeSend)
	}
}
