// Package timeouts is the single home for the duration budgets taskdeck
// services share.
package timeouts

import "time"

// ReadHeader bounds the wait for HTTP request headers.
const ReadHeader = 5 * time.Second

// Shutdown bounds the drain of in-flight requests on graceful shutdown.
const Shutdown = 5 * time.Second

// WSWrite caps a single WebSocket frame write so one stalled peer cannot
// hold up a room broadcast.
const WSWrite = 10 * time.Second

// NotifyDispatch caps one mention-notification delivery attempt.
const NotifyDispatch = 5 * time.Second

// SQLiteBusy is the busy handler budget encoded into SQLite DSNs.
const SQLiteBusy = 5 * time.Second
