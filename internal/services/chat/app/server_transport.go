package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	apperrors "github.com/taskdeck/taskdeck/internal/platform/errors"
	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
)

// Handshake token sources.
const (
	tokenQueryParam = "token"
	tokenCookieName = "td_token"
)

// Per-connection budgets. The rate budget is frames per second.
const (
	maxFrameBytes = 16 * 1024
	maxFrameRate  = 40
	maxBadFrames  = 3
)

// closeDrainBudget bounds the inbound drain before a budget close.
const closeDrainBudget = 250 * time.Millisecond

// chatService is the save collaborator the transport delegates inbound
// messages to. *chatdomain.Service satisfies it.
type chatService interface {
	SaveMessage(ctx context.Context, projectID, senderID string, req chatdomain.Request) (chatdomain.Message, error)
}

// wsGateway drives the per-connection lifecycle: handshake authorization,
// registration, the inbound frame loop, and the leave announcement.
type wsGateway struct {
	authorizer wsAuthorizer
	chat       chatService
	registry   *roomRegistry
	rooms      *broadcaster
	mentions   *mentionExtractor
	dispatcher *mentionDispatcher
	clock      func() time.Time
	newConnID  func() (string, error)
}

// newHandler builds the chat routes: liveness plus the project room endpoint.
func newHandler(gateway *wsGateway) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
	})
	mux.HandleFunc(http.MethodGet+" /ws/projects/{projectID}", gateway.handleHandshake)
	return mux
}

// handleHandshake authorizes the join before the WebSocket upgrade. Both the
// room id and a verified identity are hard preconditions; there is no
// anonymous or partial membership.
func (g *wsGateway) handleHandshake(w http.ResponseWriter, r *http.Request) {
	if g == nil || g.authorizer == nil {
		http.Error(w, "websocket auth is not configured", http.StatusServiceUnavailable)
		return
	}

	projectID := strings.TrimSpace(r.PathValue("projectID"))
	if projectID == "" {
		http.Error(w, "project id is required", http.StatusNotFound)
		return
	}

	accessToken := accessTokenFromRequest(r)
	if accessToken == "" {
		log.Printf("chat: websocket unauthorized: missing access token for project=%q remote=%s", projectID, r.RemoteAddr)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	grant, err := g.authorizer.Authorize(r.Context(), accessToken, projectID)
	if err != nil {
		status := handshakeStatus(err)
		log.Printf("chat: websocket rejected: project=%q remote=%s status=%d err=%v", projectID, r.RemoteAddr, status, err)
		http.Error(w, handshakeStatusText(status), status)
		return
	}

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		g.serveConn(conn, grant)
	})
	wsHandler.ServeHTTP(w, r)
}

// accessTokenFromRequest pulls the bearer token from the token query
// parameter, falling back to the session cookie browsers send.
func accessTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := strings.TrimSpace(r.URL.Query().Get(tokenQueryParam)); token != "" {
		return token
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

// handshakeStatus maps authorization failures onto handshake HTTP statuses.
// Unknown projects answer 403 like non-membership so probes cannot tell the
// two apart.
func handshakeStatus(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeTokenMissing, apperrors.CodeTokenInvalid, apperrors.CodeTokenExpired:
		return http.StatusUnauthorized
	case apperrors.CodeProjectNotFound, apperrors.CodeProjectMemberRequired:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

func handshakeStatusText(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "project membership required"
	default:
		return "room join is unavailable"
	}
}

// serveConn owns one member connection from registration through its leave
// announcement. It runs on the goroutine websocket.Handler starts per
// connection, so reads for different members never block each other.
func (g *wsGateway) serveConn(transport *websocket.Conn, grant joinGrant) {
	connID, err := g.newConnID()
	if err != nil {
		log.Printf("chat: drop connection project=%q user=%q: generate conn id: %v", grant.projectID, grant.userID, err)
		_ = transport.Close()
		return
	}
	conn := newWSConn(connID, grant.userID, grant.displayName, grant.projectName, transport)
	defer g.closeConn(conn)

	g.registry.register(grant.projectID, grant.userID, conn)
	member := chatdomain.UserRef{ID: grant.userID, DisplayName: grant.displayName}
	joined := chatdomain.NewUserJoined(grant.projectID, grant.projectName, member, g.clock())
	// No exclusion: the joiner seeing its own announcement confirms the join.
	g.rooms.broadcastMessage(grant.projectID, joined, nil)

	g.readLoop(transport, conn, grant)
}

// readLoop decodes inbound frames until the peer goes away or a budget
// closes the connection. Every failure here is scoped to this one member.
func (g *wsGateway) readLoop(transport *websocket.Conn, conn *wsConn, grant joinGrant) {
	ctx := context.Background()
	if request := transport.Request(); request != nil {
		ctx = request.Context()
	}

	decoder := json.NewDecoder(transport)
	windowStart := g.clock()
	framesThisWindow := 0
	badFrames := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || conn.isClosed() {
				return
			}
			badFrames++
			writeWSError(conn, "", apperrors.WireInvalidArgument, "invalid frame payload", false)
			if badFrames >= maxBadFrames {
				drainInbound(transport)
				return
			}
			continue
		}
		badFrames = 0

		if len(frame.Payload) > maxFrameBytes {
			writeCodedError(conn, frame.RequestID, apperrors.New(apperrors.CodePayloadTooLarge, "payload too large"))
			continue
		}

		if now := g.clock(); now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesThisWindow = 0
		}
		framesThisWindow++
		if framesThisWindow > maxFrameRate {
			writeCodedError(conn, frame.RequestID, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded"))
			drainInbound(transport)
			return
		}

		switch normalizeFrameType(frame.Type) {
		case frameTypeSend:
			g.handleSend(ctx, conn, grant, frame)
		default:
			writeWSError(conn, frame.RequestID, apperrors.WireInvalidArgument, "unsupported frame type", false)
		}
	}
}

// handleSend validates one sender-authored message, persists it through the
// chat service, acks the sender, fans the canonical form out to the whole
// room, and queues mention notifications. Rejections answer the sender only.
func (g *wsGateway) handleSend(ctx context.Context, conn *wsConn, grant joinGrant, frame wsFrame) {
	var payload sendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeWSError(conn, frame.RequestID, apperrors.WireInvalidArgument, "invalid send payload", false)
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		writeCodedError(conn, frame.RequestID, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeCodedError(conn, frame.RequestID, err)
		return
	}

	msg, err := g.chat.SaveMessage(ctx, grant.projectID, grant.userID, req)
	if err != nil {
		log.Printf("chat: reject send conn=%s project=%q user=%q: %v", conn.id, grant.projectID, grant.userID, err)
		writeCodedError(conn, frame.RequestID, err)
		return
	}

	// Ack first so the sender can correlate the request id with the
	// server-assigned message id even if the fanout prunes it later.
	ackErr := conn.writeFrame(wsFrame{
		Type:      frameTypeAck,
		RequestID: frame.RequestID,
		Payload: encodePayload(ackEnvelope{
			MessageID: msg.ID,
			CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
		}),
	})
	if ackErr != nil {
		log.Printf("chat: write ack conn=%s project=%q: %v", conn.id, grant.projectID, ackErr)
	}

	// The sender is included so it observes the canonical message rather
	// than trusting its own echo.
	g.rooms.broadcastMessage(grant.projectID, msg, nil)
	g.notifyMentions(ctx, grant.projectName, msg)
}

// notifyMentions resolves who a saved message mentions and hands the result
// to the async dispatcher. Failures never affect room delivery.
func (g *wsGateway) notifyMentions(ctx context.Context, projectName string, msg chatdomain.Message) {
	if g.mentions == nil || g.dispatcher == nil {
		return
	}
	result := g.mentions.extract(ctx, msg)
	if len(result.userIDs) == 0 {
		return
	}
	mention := MentionContext{
		ProjectID:   msg.ProjectID,
		ProjectName: projectName,
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderName,
		Excerpt:     msg.Content,
	}
	if result.task != nil {
		mention.TaskID = result.task.ID
		mention.TaskTitle = result.task.Title
	}
	g.dispatcher.enqueue(result.userIDs, mention)
}

// drainInbound discards inbound bytes still queued when a budget ends the
// read loop. Closing a socket with unread data makes the peer's stack reset
// the connection and drop frames already written, so the final error frame
// would never reach the client.
func drainInbound(transport *websocket.Conn) {
	_ = transport.SetReadDeadline(time.Now().Add(closeDrainBudget))
	_, _ = io.Copy(io.Discard, transport)
}

// closeConn tears one connection down and announces the leave when the
// registry still held it. Members pruned during a broadcast pass were
// unregistered there, so this close stays silent and double-close is a no-op.
func (g *wsGateway) closeConn(conn *wsConn) {
	projectID, userID, found := g.registry.unregister(conn)
	conn.close()
	if !found {
		return
	}
	member := chatdomain.UserRef{ID: userID, DisplayName: conn.displayName}
	left := chatdomain.NewUserLeft(projectID, conn.projectName, member, g.clock())
	g.rooms.broadcastMessage(projectID, left, nil)
}

// writeWSError answers one connection with a chat.error frame.
func writeWSError(conn *wsConn, requestID, code, message string, retryable bool) {
	err := conn.writeFrame(wsFrame{
		Type:      frameTypeError,
		RequestID: requestID,
		Payload: encodePayload(wsErrorEnvelope{
			Error: wsError{Code: code, Message: message, Retryable: retryable},
		}),
	})
	if err != nil && !errors.Is(err, errConnClosed) {
		log.Printf("chat: write error frame conn=%s: %v", conn.id, err)
	}
}

// writeCodedError maps a domain error onto its wire code before replying.
func writeCodedError(conn *wsConn, requestID string, err error) {
	code := apperrors.CodeOf(err)
	message := err.Error()
	if code == apperrors.CodeUnknown {
		message = "internal error"
	}
	writeWSError(conn, requestID, code.WireCode(), message, code.Retryable())
}

func encodePayload(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("chat: marshal frame payload: %v", err)
		return nil
	}
	return raw
}
