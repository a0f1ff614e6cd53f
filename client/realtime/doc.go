// Package realtime is the client side of the change subscription channel.
//
// A Subscriber opens one named channel for a table and delivers row events and status
// transitions to exactly one Handler. Dialer is the WebSocket implementation that speaks
// the v1 realtime contract; realtimetest provides in-memory fakes. Timers come from a
// Clock so reconnect and settling windows can be driven deterministically in tests.
package realtime
