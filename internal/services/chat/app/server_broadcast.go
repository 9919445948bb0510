package server

import (
	"log"

	chatdomain "github.com/taskdeck/taskdeck/internal/services/chat/domain"
)

// broadcaster fans frames out to every live connection in a project room.
type broadcaster struct {
	registry *roomRegistry
}

func newBroadcaster(registry *roomRegistry) *broadcaster {
	return &broadcaster{registry: registry}
}

// broadcastMessage serializes msg once and delivers it to every member of
// the project room except exclude. A serialization failure aborts the whole
// broadcast; it is logged and no member receives a partial frame. Returns
// the number of successful deliveries.
func (b *broadcaster) broadcastMessage(projectID string, msg chatdomain.Message, exclude *wsConn) int {
	frame, err := encodeMessageFrame(msg)
	if err != nil {
		log.Printf("chat: drop broadcast for project=%q kind=%s: encode message: %v", projectID, msg.Kind, err)
		return 0
	}
	return b.broadcastFrame(projectID, frame, exclude)
}

// broadcastFrame writes pre-encoded frame bytes to a snapshot of the room.
// Connections that are already closed are marked without a write attempt;
// failed writes mark the connection and the pass continues. Marked
// connections are unregistered and torn down after the pass so one dead
// member never blocks delivery to the rest. The excluded connection is
// never marked.
func (b *broadcaster) broadcastFrame(projectID string, frame []byte, exclude *wsConn) int {
	members := b.registry.membersOf(projectID)

	delivered := 0
	var stale []*wsConn
	for _, conn := range members {
		if conn == exclude {
			continue
		}
		if conn.isClosed() {
			stale = append(stale, conn)
			continue
		}
		if err := conn.writeRaw(frame); err != nil {
			log.Printf("chat: drop member conn=%s project=%q user=%q: write frame: %v", conn.id, projectID, conn.userID, err)
			stale = append(stale, conn)
			continue
		}
		delivered++
	}

	for _, conn := range stale {
		b.registry.unregister(conn)
		conn.close()
	}
	return delivered
}
