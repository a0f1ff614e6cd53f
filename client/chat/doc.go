// Package chat keeps a client's view of the shared chat log in sync with the server.
//
// Manager loads the most recent history, subscribes to message inserts and deletes,
// merges both into one ordered, de-duplicated view and reconnects after channel
// failures. Submit posts a new message; the message itself comes back through the
// channel rather than being inserted optimistically.
package chat
