// Package chat implements real-time messaging transport for project rooms.
//
// It keeps WebSocket lifecycle, room membership, and fan-out isolated from
// domain logic so the directory service remains the source of truth for
// projects, members, and tasks.
package chat
