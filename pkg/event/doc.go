// Package event defines the notifications hamctl produces and the sinks
// that carry them to the rest of the application.
//
// Sessions and supervisors never reach a global bus. Each one is handed a
// Sink at construction. A Hub fans one stream out to any number of
// subscribers (WebSocket clients, tests), MultiSink combines sinks, and
// NATSSink and SlogSink forward events to a broker or the log.
//
// Emit must not block for long: it runs on the session goroutine between
// polls.
package event
