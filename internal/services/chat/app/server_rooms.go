package server

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskdeck/taskdeck/internal/platform/timeouts"
)

// errConnClosed reports a write against a connection already torn down.
var errConnClosed = errors.New("connection is closed")

// frameWriter is the transport surface a connection writes frames through.
// *websocket.Conn satisfies it.
type frameWriter interface {
	Write(p []byte) (int, error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// wsConn is one member connection to a project room. Writes are serialized
// so concurrent broadcasts cannot interleave frame bytes.
type wsConn struct {
	id          string
	userID      string
	displayName string
	projectName string

	mu        sync.Mutex
	transport frameWriter
	closed    atomic.Bool
}

func newWSConn(id, userID, displayName, projectName string, transport frameWriter) *wsConn {
	return &wsConn{
		id:          id,
		userID:      userID,
		displayName: displayName,
		projectName: projectName,
		transport:   transport,
	}
}

// writeRaw sends pre-encoded frame bytes with the shared write deadline.
func (c *wsConn) writeRaw(frame []byte) error {
	if c.isClosed() {
		return errConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transport.SetWriteDeadline(time.Now().Add(timeouts.WSWrite)); err != nil {
		return err
	}
	if _, err := c.transport.Write(frame); err != nil {
		return err
	}
	return nil
}

// writeFrame encodes and sends one frame to this connection only.
func (c *wsConn) writeFrame(frame wsFrame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.writeRaw(raw)
}

// close tears down the transport once. Later closes are no-ops.
func (c *wsConn) close() {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.transport.Close()
}

func (c *wsConn) isClosed() bool {
	return c.closed.Load()
}

// membership records which room a connection currently belongs to.
type membership struct {
	projectID string
	userID    string
}

// roomRegistry tracks live connections per project room. Rooms exist only
// while they have at least one member.
type roomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[*wsConn]struct{}
	conns map[*wsConn]membership
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{
		rooms: make(map[string]map[*wsConn]struct{}),
		conns: make(map[*wsConn]membership),
	}
}

// register adds a connection to a project room, creating the room on first
// use. Registering a connection already tracked elsewhere moves it.
func (r *roomRegistry) register(projectID, userID string, conn *wsConn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[conn]; ok {
		r.removeLocked(prev.projectID, conn)
	}

	room, ok := r.rooms[projectID]
	if !ok {
		room = make(map[*wsConn]struct{})
		r.rooms[projectID] = room
	}
	room[conn] = struct{}{}
	r.conns[conn] = membership{projectID: projectID, userID: userID}
}

// unregister removes a connection from its room and reports the membership
// it held. Unregistering an unknown connection is a no-op.
func (r *roomRegistry) unregister(conn *wsConn) (projectID, userID string, found bool) {
	if conn == nil {
		return "", "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[conn]
	if !ok {
		return "", "", false
	}
	delete(r.conns, conn)
	r.removeLocked(current.projectID, conn)
	return current.projectID, current.userID, true
}

func (r *roomRegistry) removeLocked(projectID string, conn *wsConn) {
	room, ok := r.rooms[projectID]
	if !ok {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(r.rooms, projectID)
	}
}

// membersOf returns a snapshot of the room's connections. Mutating the
// registry during iteration over the snapshot is safe.
func (r *roomRegistry) membersOf(projectID string) []*wsConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[projectID]
	if !ok {
		return nil
	}
	members := make([]*wsConn, 0, len(room))
	for conn := range room {
		members = append(members, conn)
	}
	return members
}

// hasRoom reports whether the project currently has any live connections.
func (r *roomRegistry) hasRoom(projectID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[projectID]
	return ok
}

// size returns the current member count of a room.
func (r *roomRegistry) size(projectID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[projectID])
}
